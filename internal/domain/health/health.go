// Package health derives overall client health and the per-manager summary
// slide from weekly reports.
package health

import (
	"sort"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/sequence"
)

// Level is an overall health indicator.
type Level string

// Levels. Unknown means nothing has been scored yet.
const (
	Unknown Level = "unknown"
	Green   Level = Level(model.Green)
	Amber   Level = Level(model.Amber)
	Red     Level = Level(model.Red)
)

// Summarize counts scores per level.
func Summarize(scores []model.ScoreEntry) model.StatusSummary {
	r := model.WeeklyReport{Scores: scores}
	r.Recount()
	return r.StatusSummary
}

// Overall takes the worst scored level.
func Overall(s model.StatusSummary) Level {
	switch {
	case s.Red > 0:
		return Red
	case s.Amber > 0:
		return Amber
	case s.Green > 0:
		return Green
	}
	return Unknown
}

// Cell is one metric score on a summary row. Score is empty when unscored.
type Cell struct {
	MetricID   string      `json:"metric_id"`
	Score      model.Score `json:"score,omitempty"`
	Applicable bool        `json:"applicable"`
}

// ClientRow is one client on a summary slide.
type ClientRow struct {
	ClientID   string              `json:"client_id"`
	ClientName string              `json:"client_name"`
	Summary    model.StatusSummary `json:"status_summary"`
	Overall    Level               `json:"overall"`
	Cells      []Cell              `json:"cells"`
}

// Slide aggregates every client of one manager's group.
type Slide struct {
	ManagerKey  string              `json:"manager_key"`
	ManagerName string              `json:"manager_name"`
	Start       int                 `json:"start"`
	End         int                 `json:"end"`
	Rows        []ClientRow         `json:"rows"`
	Totals      model.StatusSummary `json:"totals"`
	Overall     Level               `json:"overall"`
}

// ManagerSummary builds the slide for the group containing position. Metrics
// are laid out in SortOrder, then name.
func ManagerSummary(seq []sequence.Entry, position int, reports map[string]model.WeeklyReport, metrics []model.Metric) (Slide, bool) {
	g, ok := sequence.GroupAt(seq, position)
	if !ok {
		return Slide{}, false
	}
	ordered := SortMetrics(metrics)
	slide := Slide{ManagerKey: g.ManagerKey, ManagerName: g.ManagerName, Start: g.Start, End: g.End}
	for _, e := range seq[g.Start : g.End+1] {
		row := ClientRow{ClientID: e.ID, ClientName: e.Name}
		rep, has := reports[e.ID]
		if has {
			row.Summary = rep.StatusSummary
		}
		for _, m := range ordered {
			cell := Cell{MetricID: m.ID, Applicable: m.AppliesTo(e.Client)}
			if has {
				if s, scored := rep.ScoreFor(m.ID); scored {
					cell.Score = s
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		row.Overall = Overall(row.Summary)
		slide.Totals = slide.Totals.Add(row.Summary)
		slide.Rows = append(slide.Rows, row)
	}
	slide.Overall = Overall(slide.Totals)
	return slide, true
}

// SortMetrics returns a copy ordered by SortOrder, then name.
func SortMetrics(metrics []model.Metric) []model.Metric {
	out := append([]model.Metric(nil), metrics...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}
