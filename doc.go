// Package perch is the client core for PerchDB. It coordinates session-scoped,
// nested transactions: each session carries a stack of open transactions, and
// only the outermost ("root") close resolves the transaction's fate on the
// remote side — commit when clean, delete (rollback) when any level failed.
// Concrete session backends live in subpackages: inhttp talks to a PerchDB
// server over its REST transaction endpoints, inmemory runs entirely
// in-process, and restapi hosts a development server speaking the same wire
// protocol. This package owns the lifecycle rules only; it never constructs
// the statements that run inside a transaction.
package perch

// Concurrency model
//
// A Registry (and the transactions stacked in it) belongs to one execution
// context. Attach a fresh Registry per goroutine or request-scoped call tree
// with WithRegistry; contexts that never attach one fall back to a shared
// process-wide registry, and in that configuration using a single session
// concurrently from multiple goroutines is unsupported. Within one context no
// locking is needed: all stack operations happen sequentially in the caller's
// own call graph.
