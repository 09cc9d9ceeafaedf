package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
)

// TokenProvider supplies the bearer token attached to every outgoing
// request and renews it when the service reports it expired. Refresh
// must be safe under concurrent calls: two callers that both observed a
// 401 may refresh back-to-back, and the second refresh must not corrupt
// a token the first already renewed.
type TokenProvider interface {
	Token() string
	Refresh(ctx context.Context) error
}

// OAuthProvider is a TokenProvider backed by an oauth2 refresh token.
// The token cell is mutated in place under a mutex; every request reads
// the current access token through Token.
type OAuthProvider struct {
	cfg    *oauth2.Config
	logger *slog.Logger

	mu  sync.Mutex
	tok *oauth2.Token

	// onRefresh, when set, receives each renewed token. The CLI uses it
	// to persist tokens across runs.
	onRefresh func(*oauth2.Token)
}

// NewOAuthProvider wraps an initial token. onRefresh may be nil.
func NewOAuthProvider(
	cfg *oauth2.Config, tok *oauth2.Token, onRefresh func(*oauth2.Token), logger *slog.Logger,
) *OAuthProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &OAuthProvider{cfg: cfg, tok: tok, onRefresh: onRefresh, logger: logger}
}

// Token returns the current access token.
func (p *OAuthProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tok.AccessToken
}

// Refresh exchanges the stored refresh token for a fresh access token
// and replaces the cell's contents. Refreshing a token that is already
// fresh simply installs the newer one.
func (p *OAuthProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Force the exchange by presenting only the refresh token — the
	// token source would otherwise hand back the unexpired access token
	// the server just rejected.
	src := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: p.tok.RefreshToken})

	fresh, err := src.Token()
	if err != nil {
		return fmt.Errorf("graph: refreshing token: %w", err)
	}

	// Some providers omit the refresh token on renewal; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = p.tok.RefreshToken
	}

	p.tok = fresh

	p.logger.Info("refreshed authorization token",
		slog.Time("expiry", fresh.Expiry),
	)

	if p.onRefresh != nil {
		p.onRefresh(fresh)
	}

	return nil
}

// StaticProvider returns a fixed token and fails on refresh. Useful for
// short-lived tokens obtained out of band.
type StaticProvider string

func (s StaticProvider) Token() string { return string(s) }

func (s StaticProvider) Refresh(context.Context) error {
	return fmt.Errorf("graph: static token cannot be refreshed")
}
