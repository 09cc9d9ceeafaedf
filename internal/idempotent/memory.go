package idempotent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memory is a job-lifetime, in-process Executor. Concurrent calls for
// the same key are collapsed so the step still runs at most once.
type Memory struct {
	logger *slog.Logger
	flight singleflight.Group

	mu       sync.Mutex
	results  map[string]string
	failures map[string]KeyError
}

// NewMemory creates an empty in-memory executor.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}

	return &Memory{
		logger:   logger,
		results:  make(map[string]string),
		failures: make(map[string]KeyError),
	}
}

// ExecuteOnce implements Executor.
func (m *Memory) ExecuteOnce(ctx context.Context, key, label string, fn StepFn) (string, error) {
	if v, ok := m.Cached(key); ok {
		m.logger.Debug("step already executed, returning cached result",
			slog.String("key", key),
			slog.String("label", label),
		)

		return v, nil
	}

	v, err, _ := m.flight.Do(key, func() (any, error) {
		// A concurrent caller may have finished while we waited.
		if cached, ok := m.Cached(key); ok {
			return cached, nil
		}

		res, stepErr := fn(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()

		if stepErr != nil {
			m.failures[key] = KeyError{Key: key, Label: label, Err: stepErr}

			m.logger.Warn("step failed",
				slog.String("key", key),
				slog.String("label", label),
				slog.String("error", stepErr.Error()),
			)

			return "", stepErr
		}

		delete(m.failures, key)
		m.results[key] = res

		return res, nil
	})
	if err != nil {
		return "", fmt.Errorf("idempotent: step %q (key %s): %w", label, key, err)
	}

	return v.(string), nil
}

// Cached implements Executor.
func (m *Memory) Cached(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.results[key]

	return v, ok
}

// Errors implements Executor. Results are ordered by key for stable
// reporting.
func (m *Memory) Errors() []KeyError {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make([]KeyError, 0, len(m.failures))
	for _, ke := range m.failures {
		errs = append(errs, ke)
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Key < errs[j].Key })

	return errs
}
