// Package rbridge drives a persistent R interpreter from Go.
//
// The package exposes a narrow two-operation surface:
//
//   - [Executor.Execute]: run a script fragment in the shared R environment
//   - [Executor.Fetch]: evaluate an expression yielding a raw vector and
//     return its bytes
//
// [Session] implements Executor on top of an R subprocess started with
// --vanilla --quiet --no-echo. The session's global environment persists
// across calls: assignments made by one Execute are visible to the next,
// which is how GeoLift datasets (GeoTestData_PreTest, MarketSelections, ...)
// stay bound between plotting calls.
//
// # Concurrency
//
// A Session is a shared, mutable, externally-owned environment. It is NOT
// safe for concurrent use: issue one call at a time per session, from one
// goroutine. The package deliberately does not serialize access itself.
//
// # Error propagation
//
// Script failures inside R surface as [*EvalError] carrying the
// interpreter's own message verbatim; no retry, no recovery. EvalError
// unwraps to [ErrEval].
package rbridge
