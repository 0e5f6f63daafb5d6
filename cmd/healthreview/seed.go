package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/healthreview/internal/adapters/repository"
	"github.com/okian/healthreview/internal/config"
	"github.com/okian/healthreview/pkg/logger"
)

var errEphemeralStore = errors.New("seeding the memory store has no lasting effect; use serve --seed or present --seed")

var seedDemo bool

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load a YAML fixture into the configured store",
	Long: `Imports users, clients, metrics, the presentation schedule and weekly
reports. Records are upserted, so seeding twice is safe.

Fixture ids are optional; references may use names, and report weeks may be
"current", "previous" or a signed offset such as "-2".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "load the built-in demo fixture")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return err
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	if cfg.StoreDriver == config.DriverMemory {
		return errEphemeralStore
	}

	var fixture string
	if len(args) == 1 {
		fixture = args[0]
	}
	data, err := loadFixture(fixture, seedDemo)
	if err != nil {
		return err
	}

	store, err := repository.New(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := seedStore(ctx, store, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d clients, %d metrics, %d schedule entries, %d reports\n",
		len(data.Users), len(data.Clients), len(data.Metrics), len(data.Schedule), len(data.Reports))
	return nil
}
