package importer

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/photoport/photoport/internal/graph"
	"github.com/photoport/photoport/internal/idempotent"
)

// Importer imports albums and photos into the destination drive.
type Importer struct {
	client      *graph.Client
	exec        idempotent.Executor
	stage       StageStore
	fetchClient *http.Client
	logger      *slog.Logger
	workers     int
	progress    func(p Photo) graph.ProgressFunc
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers sets how many photos upload concurrently. Albums are
// always driven to completion first, and each photo's chunk sequence
// stays strictly ordered regardless of this setting.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithFetchClient overrides the HTTP client used for direct fetchable
// URLs.
func WithFetchClient(c *http.Client) Option {
	return func(im *Importer) {
		if c != nil {
			im.fetchClient = c
		}
	}
}

// WithProgress installs a per-photo progress callback factory.
func WithProgress(fn func(p Photo) graph.ProgressFunc) Option {
	return func(im *Importer) {
		im.progress = fn
	}
}

// New creates an Importer. stage may be nil when every photo carries a
// fetchable URL.
func New(
	client *graph.Client, exec idempotent.Executor, stage StageStore,
	logger *slog.Logger, opts ...Option,
) *Importer {
	if logger == nil {
		logger = slog.Default()
	}

	im := &Importer{
		client:      client,
		exec:        exec,
		stage:       stage,
		fetchClient: http.DefaultClient,
		logger:      logger,
		workers:     1,
	}

	for _, opt := range opts {
		opt(im)
	}

	return im
}

// Result summarizes one Import invocation.
type Result struct {
	AlbumsImported int
	PhotosImported int
	Failures       []idempotent.KeyError
}

// Import creates every album's destination folder, then uploads every
// photo. Albums complete first because each photo's upload step resolves
// its folder id from the executor's cache. A failed entity is recorded
// in the Result and never aborts its siblings; only context cancellation
// stops the run.
func (im *Importer) Import(ctx context.Context, col Collection) (*Result, error) {
	im.logger.Info("importing collection",
		slog.String("job_id", col.JobID),
		slog.Int("albums", len(col.Albums)),
		slog.Int("photos", len(col.Photos)),
	)

	for _, album := range col.Albums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := SanitizeTitle(album.Name, album.ID)

		//nolint:errcheck // per-key failures are recorded by the executor
		_, _ = im.exec.ExecuteOnce(ctx, album.ID, album.Name,
			func(ctx context.Context) (string, error) {
				return im.client.CreateFolder(ctx, name)
			})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)

	for _, photo := range col.Photos {
		p := photo

		g.Go(func() error {
			//nolint:errcheck // per-key failures are recorded by the executor
			_, _ = im.exec.ExecuteOnce(gctx, photoKey(p), p.Title,
				func(ctx context.Context) (string, error) {
					return im.importPhoto(ctx, col.JobID, p)
				})

			// Only cancellation propagates; step failures stay per-key.
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := im.buildResult(col)

	im.logger.Info("collection import finished",
		slog.String("job_id", col.JobID),
		slog.Int("albums_imported", res.AlbumsImported),
		slog.Int("photos_imported", res.PhotosImported),
		slog.Int("failures", len(res.Failures)),
	)

	return res, nil
}

// importPhoto is the per-photo step: resolve the destination folder,
// open the source stream, and drive the upload session protocol.
func (im *Importer) importPhoto(ctx context.Context, jobID string, p Photo) (string, error) {
	var folderID string

	if p.AlbumID != "" {
		id, ok := im.exec.Cached(p.AlbumID)
		if !ok {
			return "", &MissingAlbumError{PhotoID: p.ID, AlbumID: p.AlbumID}
		}

		folderID = id
	}

	rc, err := im.openContent(ctx, jobID, p)
	if err != nil {
		return "", err
	}

	title := SanitizeTitle(p.Title, p.ID)

	var progress graph.ProgressFunc
	if im.progress != nil {
		progress = im.progress(p)
	}

	return im.client.Upload(ctx, folderID, title, p.MediaType, rc, progress)
}

// buildResult counts cached successes and collects recorded failures.
func (im *Importer) buildResult(col Collection) *Result {
	res := &Result{Failures: im.exec.Errors()}

	for _, album := range col.Albums {
		if _, ok := im.exec.Cached(album.ID); ok {
			res.AlbumsImported++
		}
	}

	for _, p := range col.Photos {
		if _, ok := im.exec.Cached(photoKey(p)); ok {
			res.PhotosImported++
		}
	}

	return res
}

// MissingAlbumError reports a photo whose album has no cached
// destination folder — its album step failed or never ran.
type MissingAlbumError struct {
	PhotoID string
	AlbumID string
}

func (e *MissingAlbumError) Error() string {
	return "importer: no destination folder for album " + e.AlbumID + " (photo " + e.PhotoID + ")"
}
