/*
Package domain contains the core types of the ITP assistant.

It defines the catalog entities, the per-step session model driven by the dialogue,
and the records produced by a tax calculation. The package is kept free of I/O and
persistence concerns so every adapter and the dialogue can share it.

# Key Entities

  - Vehicle: An immutable catalog entry (maker, model, year, fiscal power and value).
  - Session: A conversation snapshot. Its Stage carries only the data valid for the current step.
  - TransferResult: What the user sees after a calculation.
  - TransferRecord: The append-only audit entry written for every calculation.
*/
package domain
