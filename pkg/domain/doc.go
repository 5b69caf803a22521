/*
Package domain contains the core models of the swapflow workflow engine.

It defines the session record, the typed per-workflow scratch state, inbound events
and replies, the error taxonomy, and the wallet and transaction entities exchanged with
the outside world. The package is kept free of I/O.

# Key Entities

  - Session: the only unit of continuity between stateless requests.
  - Flow: a tagged union with one state struct per workflow (Buy, Sell, Withdraw, ...).
  - Event: a command, a button callback or free text.
  - Error: a classified failure that decides how the session reacts.
*/
package domain
