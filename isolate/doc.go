// Package isolate runs guest programs in throwaway QuickJS instances under
// WebAssembly.
//
// Each [Engine.Run] instantiates a fresh WASM module, so no interpreter state
// leaks between invocations. The embedded guest bootstrap (stdlib.js) builds
// the tana module namespace, installs the __tanaImport shim, and deletes the
// engine-provided std/os globals before the caller's program runs. That
// leaves the capability protocol as the isolate's only exit.
//
// Host calls travel over the process's standard streams: the guest embeds
// \x00TANA:{json}\x00 frames in stderr, the host dispatches them through a
// [capability.Registry] and answers with one JSON line on stdin. The guest
// blocks on that line, which makes every host call synchronous from the
// isolate's point of view; asynchronous capability wrappers resolve as soon
// as the interpreter drains its job queue, which QuickJS does before exit.
package isolate
