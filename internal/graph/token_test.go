package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newTokenEndpoint serves oauth2 token responses, handing out
// access-1, access-2, ... on successive refreshes.
func newTokenEndpoint(t *testing.T) (*oauth2.Config, *int) {
	t.Helper()

	var (
		mu    sync.Mutex
		count int
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))

		mu.Lock()
		count++
		n := count
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"access-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID: "test-client",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL},
	}

	return cfg, &count
}

func TestOAuthProvider_Refresh(t *testing.T) {
	cfg, count := newTokenEndpoint(t)

	provider := NewOAuthProvider(cfg, &oauth2.Token{
		AccessToken:  "access-0",
		RefreshToken: "refresh-1",
	}, nil, nil)

	assert.Equal(t, "access-0", provider.Token())

	require.NoError(t, provider.Refresh(context.Background()))
	assert.Equal(t, "access-1", provider.Token())
	assert.Equal(t, 1, *count)
}

func TestOAuthProvider_RefreshKeepsRefreshToken(t *testing.T) {
	cfg, _ := newTokenEndpoint(t)

	provider := NewOAuthProvider(cfg, &oauth2.Token{
		AccessToken:  "access-0",
		RefreshToken: "refresh-1",
	}, nil, nil)

	// The endpoint omits refresh_token from its responses, so a second
	// refresh must still present the original one.
	require.NoError(t, provider.Refresh(context.Background()))
	require.NoError(t, provider.Refresh(context.Background()))
	assert.Equal(t, "access-2", provider.Token())
}

func TestOAuthProvider_ConcurrentRefreshIsSafe(t *testing.T) {
	cfg, _ := newTokenEndpoint(t)

	provider := NewOAuthProvider(cfg, &oauth2.Token{
		AccessToken:  "access-0",
		RefreshToken: "refresh-1",
	}, nil, nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, provider.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	// Whatever interleaving occurred, the cell holds a usable token.
	assert.Contains(t, provider.Token(), "access-")
}

func TestOAuthProvider_OnRefreshCallback(t *testing.T) {
	cfg, _ := newTokenEndpoint(t)

	var saved *oauth2.Token

	provider := NewOAuthProvider(cfg, &oauth2.Token{
		AccessToken:  "access-0",
		RefreshToken: "refresh-1",
	}, func(tok *oauth2.Token) { saved = tok }, nil)

	require.NoError(t, provider.Refresh(context.Background()))
	require.NotNil(t, saved)
	assert.Equal(t, "access-1", saved.AccessToken)
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider("fixed")
	assert.Equal(t, "fixed", p.Token())
	assert.Error(t, p.Refresh(context.Background()))
}
