package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokens is a TokenProvider whose refresh swaps in the next token
// from a queue. It records how many times Refresh was called.
type fakeTokens struct {
	mu         sync.Mutex
	current    string
	next       []string
	refreshes  int
	refreshErr error
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.current
}

func (f *fakeTokens) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refreshErr != nil {
		return f.refreshErr
	}

	f.refreshes++

	if len(f.next) > 0 {
		f.current = f.next[0]
		f.next = f.next[1:]
	}

	return nil
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.refreshes
}

func newTestClient(srvURL string, tokens TokenProvider) *Client {
	if tokens == nil {
		tokens = &fakeTokens{current: "test-token"}
	}

	return NewClient(srvURL, http.DefaultClient, tokens, nil, slog.Default())
}

func TestCreateFolder_RefreshRetryOn401(t *testing.T) {
	tokens := &fakeTokens{current: "stale", next: []string{"fresh"}}

	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		switch calls {
		case 1:
			assert.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
		case 2:
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"folder-123","name":"Vacation"}`)
		default:
			t.Errorf("unexpected request %d", calls)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, tokens)

	id, err := client.CreateFolder(context.Background(), "Vacation")
	require.NoError(t, err)
	assert.Equal(t, "folder-123", id)
	assert.Equal(t, 1, tokens.refreshCount(), "exactly one refresh per 401")
	assert.Equal(t, 2, calls)
}

func TestClient_SecondUnauthorizedIsFatal(t *testing.T) {
	tokens := &fakeTokens{current: "stale", next: []string{"still-stale"}}

	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"InvalidAuthenticationToken"}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, tokens)

	_, err := client.CreateFolder(context.Background(), "Vacation")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, tokens.refreshCount(), "no second refresh after the retry fails")
	assert.Equal(t, 2, calls, "exactly one retry")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "InvalidAuthenticationToken")
}

func TestClient_NonAuthErrorNotRetried(t *testing.T) {
	tokens := &fakeTokens{current: "tok"}

	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInsufficientStorage)
		fmt.Fprint(w, `{"error":{"code":"quotaLimitReached"}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, tokens)

	_, err := client.CreateFolder(context.Background(), "Vacation")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, 1, calls, "non-401 must not be retried")
	assert.Zero(t, tokens.refreshCount())
	assert.Contains(t, err.Error(), "507")
	assert.Contains(t, err.Error(), "quotaLimitReached")
}

func TestClient_RefreshFailureSurfaces(t *testing.T) {
	refreshErr := errors.New("refresh token revoked")
	tokens := &fakeTokens{current: "stale", refreshErr: refreshErr}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, tokens)

	_, err := client.CreateFolder(context.Background(), "Vacation")
	require.Error(t, err)
	assert.ErrorIs(t, err, refreshErr)
}

func TestClient_SetsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"f1"}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)

	_, err := client.CreateFolder(context.Background(), "a")
	require.NoError(t, err)
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, classifyStatus(http.StatusUnauthorized), ErrUnauthorized)
	assert.ErrorIs(t, classifyStatus(http.StatusForbidden), ErrForbidden)
	assert.ErrorIs(t, classifyStatus(http.StatusNotFound), ErrNotFound)
	assert.ErrorIs(t, classifyStatus(http.StatusConflict), ErrConflict)
	assert.ErrorIs(t, classifyStatus(http.StatusTooManyRequests), ErrThrottled)
	assert.ErrorIs(t, classifyStatus(http.StatusBadGateway), ErrServerError)
	assert.NoError(t, classifyStatus(http.StatusOK))
}
