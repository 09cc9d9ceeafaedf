package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photoport/photoport/internal/config"
	"github.com/photoport/photoport/internal/idempotent"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorded import steps",
		Long: `Display the persisted outcome of every import step: destination ids
for completed albums and photos, and the error for failed ones.

Requires job.state_path to be configured — without a step database the
idempotency cache lives only in memory for the duration of a run.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	cfg, err := config.LoadOrDefault(flagConfigPath)
	if err != nil {
		return err
	}

	if cfg.Job.StatePath == "" {
		return fmt.Errorf("job.state_path is not configured; nothing to report")
	}

	store, err := idempotent.OpenStore(cfg.Job.StatePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	printSteps(records)

	return nil
}
