// Package capability implements the host side of the guest/host boundary: the
// registry of named operations guest code may call, and the stateful services
// behind them.
//
// # Services
//
// [Store] is a two-layer key-value store: writes stage until an atomic
// [Store.Commit] applies them, subject to per-key, per-value and aggregate
// limits. [Ledger] queues state-change intents and charges gas when a batch
// executes; an over-budget batch rolls back whole. [Gateway] is the only
// network path guest code has, and it checks every hostname against a domain
// allowlist first. [Chain] serves the read-only block context and batch
// ledger-API queries.
//
// # Registry
//
// [Bind] wires every service method into a [Registry] under its wire name.
// The set is closed by construction: an isolate bootstrapped against the
// registry can reach these operations and nothing else.
//
//	registry := capability.NewRegistry()
//	capability.Bind(registry, capability.Services{
//	    Store:   capability.NewStore(),
//	    Ledger:  capability.NewLedger(),
//	    Gateway: capability.NewGateway(capability.GatewayConfig{}),
//	    Chain:   capability.NewChain(""),
//	})
//
// All services are safe for concurrent use. The store and the ledger are each
// individually atomic, but a store commit and a ledger execute may interleave;
// each guards only its own invariants.
package capability
