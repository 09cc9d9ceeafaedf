// Package idempotent executes keyed import steps at most once per job,
// caching results for dependent steps and isolating per-key failures so
// one bad entity never blocks its siblings.
package idempotent

import "context"

// StepFn performs one entity's creation or upload and returns the
// destination-assigned result (folder id, item id).
type StepFn func(ctx context.Context) (string, error)

// Executor runs steps exactly once per key within a job's lifetime.
type Executor interface {
	// ExecuteOnce runs fn at most once for key. If an earlier call
	// already succeeded, the cached result is returned without invoking
	// fn or touching the network. A failure inside fn is recorded
	// against the key and returned; a later call for the same key may
	// retry. label is a human-readable name used in diagnostics.
	ExecuteOnce(ctx context.Context, key, label string, fn StepFn) (string, error)

	// Cached returns the stored result for key, if the step succeeded.
	Cached(key string) (string, bool)

	// Errors lists the keys whose most recent execution failed.
	Errors() []KeyError
}

// KeyError records one key's failed step.
type KeyError struct {
	Key   string
	Label string
	Err   error
}
