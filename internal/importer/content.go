package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// StageStore hands back streams for content that was staged to
// temporary storage during export.
type StageStore interface {
	Stream(ctx context.Context, jobID, key string) (io.ReadCloser, error)
}

// DirStore is a StageStore over a local directory tree with one
// subdirectory per job.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at root.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Stream implements StageStore.
func (s *DirStore) Stream(_ context.Context, jobID, key string) (io.ReadCloser, error) {
	path := filepath.Join(s.root, jobID, filepath.FromSlash(key))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: opening staged content %s: %w", path, err)
	}

	return f, nil
}

// openContent resolves a photo's byte stream: staged content wins, then
// the direct fetchable location. A photo with neither is a local data
// error, never retried.
func (im *Importer) openContent(ctx context.Context, jobID string, p Photo) (io.ReadCloser, error) {
	switch {
	case p.StagedKey != "":
		if im.stage == nil {
			return nil, fmt.Errorf("importer: photo %s is staged but no staging store is configured", p.ID)
		}

		return im.stage.Stream(ctx, jobID, p.StagedKey)

	case p.FetchableURL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.FetchableURL, nil)
		if err != nil {
			return nil, fmt.Errorf("importer: building fetch request for photo %s: %w", p.ID, err)
		}

		resp, err := im.fetchClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("importer: fetching photo %s: %w", p.ID, err)
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			resp.Body.Close()
			return nil, fmt.Errorf("importer: fetching photo %s: HTTP %d from %s", p.ID, resp.StatusCode, p.FetchableURL)
		}

		return resp.Body, nil

	default:
		return nil, fmt.Errorf("importer: photo %s has no staged content and no fetchable url", p.ID)
	}
}
