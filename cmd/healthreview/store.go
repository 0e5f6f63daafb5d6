package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/healthreview/internal/adapters/repository"
	"github.com/okian/healthreview/internal/config"
	"github.com/okian/healthreview/internal/seed"
	"github.com/okian/healthreview/pkg/logger"
)

var errNoFixture = errors.New("no fixture given: pass a file or --demo")

// openStore opens the configured store and, when asked, seeds it.
func openStore(ctx context.Context, cfg *config.Config, fixture string, demo bool) (repository.Store, error) {
	store, err := repository.New(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if fixture == "" && !demo {
		return store, nil
	}
	data, err := loadFixture(fixture, demo)
	if err == nil {
		err = seedStore(ctx, store, data)
	}
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func seedStore(ctx context.Context, store repository.Store, data repository.Dataset) error {
	if err := seed.Apply(ctx, store, data); err != nil {
		return err
	}
	logger.Get().Info(ctx, "store seeded",
		logger.Int("users", len(data.Users)),
		logger.Int("clients", len(data.Clients)),
		logger.Int("metrics", len(data.Metrics)),
		logger.Int("reports", len(data.Reports)))
	return nil
}

func loadFixture(fixture string, demo bool) (repository.Dataset, error) {
	now := time.Now()
	switch {
	case fixture != "":
		return seed.LoadFile(fixture, now)
	case demo:
		return seed.Demo(now)
	}
	return repository.Dataset{}, errNoFixture
}
