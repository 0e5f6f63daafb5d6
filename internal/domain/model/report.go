package model

import (
	"fmt"
	"strings"
)

// Score is a traffic-light rating for one metric.
type Score string

// Score levels.
const (
	Green Score = "green"
	Amber Score = "amber"
	Red   Score = "red"
)

// ParseScore validates s.
func ParseScore(s string) (Score, error) {
	switch Score(strings.ToLower(strings.TrimSpace(s))) {
	case Green:
		return Green, nil
	case Amber:
		return Amber, nil
	case Red:
		return Red, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScore, s)
}

// Valid reports whether s is one of the known levels.
func (s Score) Valid() bool {
	_, err := ParseScore(string(s))
	return err == nil
}

// ScoreEntry is the score of one metric in a report.
type ScoreEntry struct {
	MetricID string `json:"metric_id" yaml:"metric_id"`
	Score    Score  `json:"score" yaml:"score"`
}

// StatusSummary counts scores per level.
type StatusSummary struct {
	Green int `json:"green"`
	Amber int `json:"amber"`
	Red   int `json:"red"`
}

// Total returns the number of scored metrics.
func (s StatusSummary) Total() int { return s.Green + s.Amber + s.Red }

// Add accumulates o into s.
func (s StatusSummary) Add(o StatusSummary) StatusSummary {
	return StatusSummary{Green: s.Green + o.Green, Amber: s.Amber + o.Amber, Red: s.Red + o.Red}
}

// WeeklyReport holds a client's scores for one week.
type WeeklyReport struct {
	ClientID      string        `json:"client_id" yaml:"client_id"`
	Week          Week          `json:"week" yaml:"week"`
	Scores        []ScoreEntry  `json:"scores" yaml:"scores"`
	StatusSummary StatusSummary `json:"status_summary" yaml:"-"`
}

// ScoreFor returns the score of metricID, if present.
func (r *WeeklyReport) ScoreFor(metricID string) (Score, bool) {
	if r == nil {
		return "", false
	}
	for _, e := range r.Scores {
		if e.MetricID == metricID {
			return e.Score, true
		}
	}
	return "", false
}

// SetScore inserts or replaces the score of metricID and recomputes the summary.
func (r *WeeklyReport) SetScore(metricID string, score Score) {
	replaced := false
	for i := range r.Scores {
		if r.Scores[i].MetricID == metricID {
			r.Scores[i].Score = score
			replaced = true
			break
		}
	}
	if !replaced {
		r.Scores = append(r.Scores, ScoreEntry{MetricID: metricID, Score: score})
	}
	r.Recount()
}

// Recount recomputes StatusSummary from Scores.
func (r *WeeklyReport) Recount() {
	var s StatusSummary
	for _, e := range r.Scores {
		switch e.Score {
		case Green:
			s.Green++
		case Amber:
			s.Amber++
		case Red:
			s.Red++
		}
	}
	r.StatusSummary = s
}

// Clone returns a deep copy.
func (r WeeklyReport) Clone() WeeklyReport {
	r.Scores = append([]ScoreEntry(nil), r.Scores...)
	return r
}

// ReportsByClient indexes reports by client id.
func ReportsByClient(reports []WeeklyReport) map[string]WeeklyReport {
	out := make(map[string]WeeklyReport, len(reports))
	for _, r := range reports {
		out[r.ClientID] = r
	}
	return out
}
