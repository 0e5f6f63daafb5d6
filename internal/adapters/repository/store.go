// Package repository persists the review directory (clients, users, metrics,
// schedule) and the weekly score reports.
package repository

import (
	"context"

	"github.com/okian/healthreview/internal/domain/model"
)

// Dataset is a bulk snapshot used for seeding a store.
type Dataset struct {
	Users    []model.User          `yaml:"users"`
	Clients  []model.Client        `yaml:"clients"`
	Metrics  []model.Metric        `yaml:"metrics"`
	Schedule []model.ScheduleEntry `yaml:"schedule"`
	Reports  []model.WeeklyReport  `yaml:"reports"`
}

// Store provides read/write access to the review state.
//
// Reports exist only once they hold at least one score. Scores inside a
// report are ordered by metric id.
type Store interface {
	// Clients returns every client ordered by id.
	Clients(ctx context.Context) ([]model.Client, error)
	// Client returns one client or ErrNotFound.
	Client(ctx context.Context, id string) (model.Client, error)

	// Metrics returns every metric ordered by sort order, then id.
	Metrics(ctx context.Context) ([]model.Metric, error)
	// Metric returns one metric or ErrNotFound.
	Metric(ctx context.Context, id string) (model.Metric, error)

	// Users returns every user ordered by id.
	Users(ctx context.Context) ([]model.User, error)

	// Schedule returns the presentation schedule ordered by presentation order.
	Schedule(ctx context.Context) ([]model.ScheduleEntry, error)
	// ReplaceSchedule swaps the whole schedule atomically.
	ReplaceSchedule(ctx context.Context, entries []model.ScheduleEntry) error

	// Reports returns all reports of week ordered by client id.
	Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error)
	// Report returns one report or ErrNotFound.
	Report(ctx context.Context, clientID string, week model.Week) (model.WeeklyReport, error)
	// UpsertScore writes one score and returns the updated report.
	UpsertScore(ctx context.Context, clientID string, week model.Week, metricID string, score model.Score) (model.WeeklyReport, error)

	// Import upserts every record of the dataset.
	Import(ctx context.Context, data Dataset) error

	// Close releases the store's resources.
	Close() error
}
