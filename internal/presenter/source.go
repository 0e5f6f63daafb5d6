package presenter

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/types"
)

// Source supplies presentation inputs and persists score changes. The
// in-process service and the REST client both satisfy it.
type Source interface {
	Clients(ctx context.Context) ([]model.Client, error)
	Metrics(ctx context.Context) ([]model.Metric, error)
	Users(ctx context.Context) ([]model.User, error)
	Schedule(ctx context.Context) ([]model.ScheduleEntry, error)
	Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error)
	SetScore(ctx context.Context, change types.ScoreChange) (types.ScoreChangeAck, error)
}

// inputs is one consistent snapshot of everything a presentation needs.
type inputs struct {
	clients  []model.Client
	metrics  []model.Metric
	users    []model.User
	schedule []model.ScheduleEntry
	reports  []model.WeeklyReport
	previous []model.WeeklyReport
}

// loadInputs fetches every input concurrently. The first failure cancels
// the rest.
func loadInputs(ctx context.Context, src Source, week model.Week) (inputs, error) {
	var in inputs
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.clients, err = src.Clients(ctx)
		return wrapLoad("clients", err)
	})
	g.Go(func() (err error) {
		in.metrics, err = src.Metrics(ctx)
		return wrapLoad("metrics", err)
	})
	g.Go(func() (err error) {
		in.users, err = src.Users(ctx)
		return wrapLoad("users", err)
	})
	g.Go(func() (err error) {
		in.schedule, err = src.Schedule(ctx)
		return wrapLoad("schedule", err)
	})
	g.Go(func() (err error) {
		in.reports, err = src.Reports(ctx, week)
		return wrapLoad("reports", err)
	})
	g.Go(func() (err error) {
		in.previous, err = src.Reports(ctx, week.Previous())
		return wrapLoad("previous reports", err)
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

func wrapLoad(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
