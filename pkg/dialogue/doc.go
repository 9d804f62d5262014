/*
Package dialogue implements the conversation that walks a user from a maker name to a
computed transfer tax.

The Machine is stateless: it receives the stored session (or nil) and one message, and
returns an Outcome describing the reply and what must happen to the stored session.
Persistence and delivery belong to the caller.

Global commands (reset, help, rates) are recognized before the current step is consulted.
*/
package dialogue
