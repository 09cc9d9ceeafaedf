package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/photoport/photoport/internal/chunk"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://graph.microsoft.com"

const userAgent = "photoport/0.1"

// Client issues authenticated requests against the drive API. It applies
// client-side request pacing and a uniform expiry policy: a 401 response
// triggers exactly one token refresh and one resend; every other non-2xx
// response is surfaced to the caller without retrying.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *rate.Limiter // nil disables pacing
	logger     *slog.Logger

	// chunkSize is the upload segment size. Tests shrink it to exercise
	// multi-chunk transfers with small payloads.
	chunkSize int64
}

// NewClient creates an API client. limiter may be nil to disable
// client-side pacing; httpClient may be nil for http.DefaultClient.
func NewClient(
	baseURL string, httpClient *http.Client, tokens TokenProvider,
	limiter *rate.Limiter, logger *slog.Logger,
) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    limiter,
		logger:     logger,
		chunkSize:  chunk.DefaultSize,
	}
}

// SetChunkSize overrides the upload segment size. Zero or negative
// values are ignored.
func (c *Client) SetChunkSize(size int64) {
	if size > 0 {
		c.chunkSize = size
	}
}

// do sends the request produced by build, applying rate pacing and the
// single refresh-and-retry policy. build is invoked once per attempt so
// the retry carries a fresh body and the renewed token.
//
// On success the caller owns the response body. On failure the body has
// been read and released into the returned *Error.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	resp, err := c.send(ctx, build)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainBody(resp)

		if refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
			return nil, refreshErr
		}

		resp, err = c.send(ctx, build)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			body = []byte("(failed to read response body)")
		}

		c.logger.Warn("request failed",
			slog.Int("status", resp.StatusCode),
		)

		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	c.logger.Debug("request succeeded",
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// send performs a single attempt: wait for the limiter, build the
// request, attach the current bearer token, execute.
func (c *Client) send(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("graph: waiting for rate limiter: %w", err)
		}
	}

	req, err := build()
	if err != nil {
		return nil, fmt.Errorf("graph: building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: %s %s: %w", req.Method, req.URL.Path, err)
	}

	return resp, nil
}

// drainBody reads and closes a response body so the connection can be
// reused for the retry.
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain
	resp.Body.Close()
}
