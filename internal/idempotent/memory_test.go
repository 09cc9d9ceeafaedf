package idempotent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ExecutesOnce(t *testing.T) {
	m := NewMemory(nil)

	var calls int

	fn := func(context.Context) (string, error) {
		calls++
		return "folder-123", nil
	}

	ctx := context.Background()

	v, err := m.ExecuteOnce(ctx, "A1", "Vacation", fn)
	require.NoError(t, err)
	assert.Equal(t, "folder-123", v)

	v, err = m.ExecuteOnce(ctx, "A1", "Vacation", fn)
	require.NoError(t, err)
	assert.Equal(t, "folder-123", v)
	assert.Equal(t, 1, calls, "second call must short-circuit from the cache")
}

func TestMemory_Cached(t *testing.T) {
	m := NewMemory(nil)

	_, ok := m.Cached("missing")
	assert.False(t, ok)

	_, err := m.ExecuteOnce(context.Background(), "k", "l", func(context.Context) (string, error) {
		return "result", nil
	})
	require.NoError(t, err)

	v, ok := m.Cached("k")
	assert.True(t, ok)
	assert.Equal(t, "result", v)
}

func TestMemory_FailureIsRecordedNotCached(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	stepErr := errors.New("upload rejected")

	_, err := m.ExecuteOnce(ctx, "A1-P1", "beach.jpg", func(context.Context) (string, error) {
		return "", stepErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, stepErr)

	_, ok := m.Cached("A1-P1")
	assert.False(t, ok, "failures must not populate the cache")

	errs := m.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "A1-P1", errs[0].Key)
	assert.Equal(t, "beach.jpg", errs[0].Label)
	assert.ErrorIs(t, errs[0].Err, stepErr)
}

func TestMemory_FailureDoesNotBlockSiblings(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	_, err := m.ExecuteOnce(ctx, "bad", "bad", func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)

	v, err := m.ExecuteOnce(ctx, "good", "good", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestMemory_RetryAfterFailure(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	var calls int

	fn := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}

		return "ok", nil
	}

	_, err := m.ExecuteOnce(ctx, "k", "l", fn)
	require.Error(t, err)

	v, err := m.ExecuteOnce(ctx, "k", "l", fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Empty(t, m.Errors(), "a later success clears the recorded failure")
}

func TestMemory_ConcurrentSameKeyCollapses(t *testing.T) {
	m := NewMemory(nil)

	var calls atomic.Int64

	fn := func(context.Context) (string, error) {
		calls.Add(1)
		return "shared", nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := m.ExecuteOnce(context.Background(), "k", "l", fn)
			assert.NoError(t, err)
			assert.Equal(t, "shared", v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "concurrent callers must share one execution")
}

func TestMemory_ErrorsSortedByKey(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	for _, key := range []string{"c", "a", "b"} {
		_, _ = m.ExecuteOnce(ctx, key, key, func(context.Context) (string, error) { //nolint:errcheck // failures expected
			return "", errors.New("x")
		})
	}

	errs := m.Errors()
	require.Len(t, errs, 3)
	assert.Equal(t, "a", errs[0].Key)
	assert.Equal(t, "b", errs[1].Key)
	assert.Equal(t, "c", errs[2].Key)
}
