package rbridge

import "context"

// Executor runs script fragments inside a persistent R environment.
//
// Implementations are not safe for concurrent use; callers issue one call
// at a time per executor.
type Executor interface {
	// Execute runs an R script fragment. Side effects (assignments,
	// attached packages) persist in the session environment.
	Execute(ctx context.Context, script string) error

	// Fetch evaluates an R expression that yields a raw vector and
	// returns its bytes.
	Fetch(ctx context.Context, expr string) ([]byte, error)
}
