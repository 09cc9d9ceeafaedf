package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
	"golang.org/x/time/rate"

	"github.com/photoport/photoport/internal/config"
	"github.com/photoport/photoport/internal/graph"
	"github.com/photoport/photoport/internal/idempotent"
	"github.com/photoport/photoport/internal/importer"
	"github.com/photoport/photoport/internal/tokenfile"
)

var flagWorkers int

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <manifest.json>",
		Short: "Import a photo collection into the destination drive",
		Long: `Import the albums and photos listed in a source export manifest.

Albums are created first; photos then upload into their album's
destination folder (or the default Pictures path when they have none).
Every step is idempotent: re-running an interrupted job skips work that
already completed.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "concurrent photo uploads (overrides config)")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	cfg, err := config.LoadOrDefault(flagConfigPath)
	if err != nil {
		return err
	}

	col, err := loadManifest(args[0])
	if err != nil {
		return err
	}

	client, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}

	exec, cleanup, err := buildExecutor(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	workers := cfg.Transfer.Workers
	if flagWorkers > 0 {
		workers = flagWorkers
	}

	var stage importer.StageStore
	if cfg.Staging.Root != "" {
		stage = importer.NewDirStore(cfg.Staging.Root)
	}

	opts := []importer.Option{importer.WithWorkers(workers)}
	if factory := progressFactory(); factory != nil {
		opts = append(opts, importer.WithProgress(factory))
	}

	im := importer.New(client, exec, stage, logger, opts...)

	res, err := im.Import(cmd.Context(), col)
	if err != nil {
		return err
	}

	printResult(col, res)

	if len(res.Failures) > 0 {
		return fmt.Errorf("%d of %d entities failed to import", len(res.Failures), len(col.Albums)+len(col.Photos))
	}

	return nil
}

// buildClient wires the token provider, rate limiter, and API client
// from configuration.
func buildClient(cfg *config.Config, logger *slog.Logger) (*graph.Client, error) {
	if cfg.API.TokenPath == "" {
		return nil, fmt.Errorf("api.token_path is not configured")
	}

	tok, err := tokenfile.Load(cfg.API.TokenPath)
	if err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID: cfg.API.ClientID,
		Endpoint: microsoft.AzureADEndpoint("common"),
	}

	tokenPath := cfg.API.TokenPath
	provider := graph.NewOAuthProvider(oauthCfg, tok, func(fresh *oauth2.Token) {
		if saveErr := tokenfile.Save(tokenPath, fresh); saveErr != nil {
			logger.Warn("failed to persist refreshed token",
				slog.String("path", tokenPath),
				slog.String("error", saveErr.Error()),
			)
		}
	}, logger)

	var limiter *rate.Limiter
	if cfg.API.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.API.RequestsPerSecond), cfg.API.Burst)
	}

	client := graph.NewClient(cfg.API.BaseURL, transferHTTPClient(), provider, limiter, logger)
	client.SetChunkSize(cfg.Transfer.ChunkSizeBytes())

	return client, nil
}

// buildExecutor returns the persistent step store when one is
// configured, otherwise a job-lifetime in-memory executor.
func buildExecutor(cfg *config.Config, logger *slog.Logger) (idempotent.Executor, func(), error) {
	if cfg.Job.StatePath == "" {
		return idempotent.NewMemory(logger), func() {}, nil
	}

	store, err := idempotent.OpenStore(cfg.Job.StatePath, logger)
	if err != nil {
		return nil, nil, err
	}

	return store, func() { store.Close() }, nil
}
