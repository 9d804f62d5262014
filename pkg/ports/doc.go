/*
Package ports defines the driven ports (interfaces) of the ITP assistant.

These interfaces decouple the dialogue and the calculation service from concrete
storage, transport and delivery implementations.

# Key Interfaces

  - VehicleCatalog: Searches vehicles by maker/year and fetches one by id.
  - TransferLedger: Appends the audit record of every calculation.
  - SessionStore: Persists conversation sessions by key (get/put/delete).
  - DistributedLocker: Serializes access to one session across replicas.
  - Channel: Delivers replies to the user over an external messaging channel.
*/
package ports
