// Package scorecopy replays last week's scores onto the current week for a
// single client.
package scorecopy

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/healthreview/internal/domain/model"
)

// ScoreSetter persists one score. It is the onScoreChange contract.
type ScoreSetter interface {
	SetScore(ctx context.Context, clientID, metricID string, score model.Score) error
}

// SetterFunc adapts a function to ScoreSetter.
type SetterFunc func(ctx context.Context, clientID, metricID string, score model.Score) error

// SetScore calls f.
func (f SetterFunc) SetScore(ctx context.Context, clientID, metricID string, score model.Score) error {
	return f(ctx, clientID, metricID, score)
}

// Outcome is what happened to one previous score.
type Outcome string

// Outcomes.
const (
	Copied        Outcome = "copied"
	Skipped       Outcome = "skipped"
	Failed        Outcome = "failed"
	NotAttempted  Outcome = "not_attempted"
	UnknownMetric Outcome = "unknown_metric"
)

// Item records one previous score and its outcome.
type Item struct {
	MetricID string      `json:"metric_id"`
	Score    model.Score `json:"score"`
	Outcome  Outcome     `json:"outcome"`
	Err      error       `json:"-"`
}

// Result lists every previous score in report order.
type Result struct {
	ClientID string `json:"client_id"`
	Items    []Item `json:"items"`
}

// Count returns how many items ended with outcome o.
func (r Result) Count(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == o {
			n++
		}
	}
	return n
}

// Complete reports whether every applicable score was copied.
func (r Result) Complete() bool {
	return r.Count(Failed) == 0 && r.Count(NotAttempted) == 0
}

// Err joins the per-item failures, or returns nil.
func (r Result) Err() error {
	var errs []error
	for _, it := range r.Items {
		if it.Outcome == Failed {
			errs = append(errs, fmt.Errorf("metric %s: %w", it.MetricID, it.Err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCopyFailed, errors.Join(errs...))
}

// Copy issues one SetScore per applicable previous score, sequentially and in
// report order. A failed call is recorded and the loop continues; a cancelled
// ctx stops it and marks the remainder not attempted.
func Copy(ctx context.Context, client model.Client, metrics []model.Metric, previous *model.WeeklyReport, setter ScoreSetter) (Result, error) {
	res := Result{ClientID: client.ID}
	if previous == nil {
		return res, ErrNoPreviousReport
	}
	byID := model.MetricsByID(metrics)
	res.Items = make([]Item, 0, len(previous.Scores))

	for _, entry := range previous.Scores {
		item := Item{MetricID: entry.MetricID, Score: entry.Score}
		metric, ok := byID[entry.MetricID]
		switch {
		case !ok:
			item.Outcome = UnknownMetric
		case !metric.AppliesTo(client):
			item.Outcome = Skipped
		case ctx.Err() != nil:
			item.Outcome = NotAttempted
			item.Err = ctx.Err()
		default:
			if err := setter.SetScore(ctx, client.ID, entry.MetricID, entry.Score); err != nil {
				item.Outcome = Failed
				item.Err = err
			} else {
				item.Outcome = Copied
			}
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}
