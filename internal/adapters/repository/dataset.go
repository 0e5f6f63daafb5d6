package repository

import (
	"fmt"
	"sort"

	"github.com/okian/healthreview/internal/domain/model"
)

// Validate checks ids, enums and weeks before anything is written.
func (d Dataset) Validate() error {
	for i, u := range d.Users {
		if u.ID == "" {
			return fmt.Errorf("%w: user #%d has no id", ErrInvalidRecord, i)
		}
	}
	for i, c := range d.Clients {
		if c.ID == "" {
			return fmt.Errorf("%w: client #%d has no id", ErrInvalidRecord, i)
		}
	}
	for i, m := range d.Metrics {
		if m.ID == "" {
			return fmt.Errorf("%w: metric #%d has no id", ErrInvalidRecord, i)
		}
		if _, err := model.ParseApplicability(string(m.Applicability)); err != nil {
			return fmt.Errorf("%w: metric %s: %w", ErrInvalidRecord, m.ID, err)
		}
	}
	for i, s := range d.Schedule {
		if s.ManagerID == "" {
			return fmt.Errorf("%w: schedule #%d has no manager id", ErrInvalidRecord, i)
		}
	}
	for _, r := range d.Reports {
		if r.ClientID == "" {
			return fmt.Errorf("%w: report without client id", ErrInvalidRecord)
		}
		if _, err := model.ParseWeek(string(r.Week)); err != nil {
			return fmt.Errorf("%w: report %s: %w", ErrInvalidRecord, r.ClientID, err)
		}
		for _, e := range r.Scores {
			if !e.Score.Valid() {
				return fmt.Errorf("%w: report %s/%s metric %s: %w", ErrInvalidRecord, r.ClientID, r.Week, e.MetricID, model.ErrInvalidScore)
			}
		}
	}
	return nil
}

func sortMetrics(metrics []model.Metric) {
	sort.SliceStable(metrics, func(i, j int) bool {
		if metrics[i].SortOrder != metrics[j].SortOrder {
			return metrics[i].SortOrder < metrics[j].SortOrder
		}
		return metrics[i].ID < metrics[j].ID
	})
}

func sortSchedule(entries []model.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PresentationOrder != entries[j].PresentationOrder {
			return entries[i].PresentationOrder < entries[j].PresentationOrder
		}
		return entries[i].ManagerID < entries[j].ManagerID
	})
}

func sortScores(scores []model.ScoreEntry) {
	sort.Slice(scores, func(i, j int) bool { return scores[i].MetricID < scores[j].MetricID })
}
