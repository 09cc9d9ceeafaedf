// Package graph provides an HTTP client for a Microsoft-Graph-shaped
// drive API: folder creation, upload sessions, and chunked content
// transfer, with a single refresh-and-retry policy for expired tokens.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for response classification.
// Use errors.Is(err, graph.ErrUnauthorized) to check.
var (
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrConflict     = errors.New("graph: conflict")
	ErrThrottled    = errors.New("graph: throttled")
	ErrServerError  = errors.New("graph: server error")

	// ErrProtocol marks a 2xx response missing a field the API contract
	// guarantees (folder id, upload URL, final item id).
	ErrProtocol = errors.New("graph: malformed response")
)

// Error wraps a sentinel with the HTTP status code, status text, and the
// raw response body, kept verbatim for diagnostics.
type Error struct {
	StatusCode int
	Message    string
	Body       string
	Err        error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph: HTTP %d %s: %s", e.StatusCode, e.Message, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
