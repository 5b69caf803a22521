/*
Package swapflow is a session-driven workflow engine for a custodial trading chat backend.

A user talks to the service through short JSON requests (commands, button callbacks and free
text). Each request is routed to a step of one of the workflows (buy, sell, withdraw, import,
export, create and settings) and answered with a reply and a set of buttons. The position inside a
workflow lives in the session, so a conversation survives restarts and can be served by any replica.

# Architecture

The service follows a Hexagonal layout. The core (pkg/domain, internal/workflow,
internal/dispatch, internal/pipeline) knows nothing about storage or transport; adapters plug
into the ports declared in pkg/ports:

  - Sessions: in memory or Redis, optionally sealed with AES-GCM (pkg/adapters, pkg/persistence).
  - Ledger and accounts: SQLite through GORM (internal/adapters/sqlstore).
  - Custody: private keys sealed with XChaCha20-Poly1305 (internal/adapters/custody).
  - Chain: an EVM JSON-RPC node through go-ethereum (internal/adapters/evm).
  - Pricing: the OpenOcean aggregator API (internal/adapters/openocean).

Every trade goes through the same pipeline: quote, confirm, execute, record. An execution intent
is written before a transaction is signed so that the reconciler (internal/reconcile) can finish
what a crash interrupted.

# Usage

	swapflow serve --config swapflow.yaml
	swapflow session ls
	swapflow reconcile
*/
package swapflow
