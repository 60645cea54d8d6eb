// Package contract turns HTTP-shaped invocations into isolate runs.
//
// A [Dispatcher] locates contract source on disk, transpiles TypeScript where
// needed, rewrites tana module imports into __tanaImport calls, wraps the body
// in an entry-point harness for the requested method, and executes the whole
// program in a fresh isolate. The contract's structured result comes back over
// the isolate's stdout; anything else the contract printed is surfaced as
// plain output.
package contract
