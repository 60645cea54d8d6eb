// Package tanaedge executes untrusted Tana contracts inside per-request
// QuickJS isolates running under WebAssembly.
//
// # Overview
//
// A contract is a short-lived script with method-named entry points (Get,
// Post). Each invocation gets a fresh isolate with zero ambient capabilities;
// everything a contract can observe or mutate goes through the host-side
// capability registry: a staged key-value store with atomic commit, a
// gas-metered transaction ledger, a domain-allowlisted fetch gateway, and
// read-only block context.
//
// # Basic Usage
//
//	engine, _ := isolate.NewEngine()
//	defer engine.Close()
//
//	registry := capability.NewRegistry()
//	capability.Bind(registry, capability.Services{
//	    Store:   capability.NewStore(),
//	    Ledger:  capability.NewLedger(),
//	    Gateway: capability.NewGateway(capability.GatewayConfig{}),
//	    Chain:   capability.NewChain(""),
//	})
//
//	disp := contract.NewDispatcher("./contracts", engine, registry)
//	out, err := disp.Invoke(ctx, contract.Invocation{
//	    ContractID: "hello",
//	    Method:     "get",
//	})
//
// See the [capability], [isolate], and [contract] packages for detailed API
// documentation.
package tanaedge
