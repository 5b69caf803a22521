/*
Package ports defines the driven ports (interfaces) of the swapflow engine.

These interfaces decouple the workflow core from external implementations, allowing
it to work with various session stores, chains, aggregators and databases.

# Key Interfaces

  - SessionStore: persists session records with a TTL.
  - DistributedLocker: provides session leases across replicas.
  - ActionDispatcher: the single entry point used by transports.
  - WalletProvider, Chain, SwapAggregator: custody, chain access and pricing.
  - Accounts, Ledger: relational persistence.
*/
package ports
