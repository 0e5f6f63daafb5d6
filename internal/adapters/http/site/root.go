// Package site serves a read-only HTML overview of a week's presentation
// order at the root path.
package site

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/types"
	"github.com/okian/healthreview/pkg/logger"
)

// ErrRender is returned when the overview template fails.
var ErrRender = errors.New("overview render failed")

// Source supplies the data shown on the overview.
type Source interface {
	Sequence(ctx context.Context, week model.Week) (types.SequenceView, error)
	Reports(ctx context.Context, week model.Week) ([]model.WeeklyReport, error)
}

// Register attaches the overview at "/" on mux. Other unmatched paths 404.
func Register(_ context.Context, mux *http.ServeMux, src Source) {
	if mux == nil {
		panic("mux is nil")
	}
	h := NewRootHandler(src)
	mux.HandleFunc("/", h.HandleRoot)
}

// RootHandler renders the overview page.
type RootHandler struct {
	src Source
	now func() time.Time
}

// NewRootHandler creates a new root handler.
func NewRootHandler(src Source) *RootHandler {
	return &RootHandler{src: src, now: time.Now}
}

type overviewRow struct {
	Index   int
	Name    string
	Overall health.Level
	Summary model.StatusSummary
}

type overviewGroup struct {
	ManagerName string
	Rows        []overviewRow
	Totals      model.StatusSummary
	Overall     health.Level
}

type overviewPage struct {
	Week     model.Week
	Label    string
	Previous model.Week
	Next     model.Week
	Groups   []overviewGroup
}

// HandleRoot handles GET / with an optional ?week=YYYY-MM-DD.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	const op = "site.HandleRoot"
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	week := model.WeekOf(h.now())
	if q := r.URL.Query().Get("week"); q != "" {
		parsed, err := model.ParseWeek(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		week = parsed
	}

	page, err := h.build(r.Context(), week)
	if err != nil {
		logger.Get().Error(r.Context(), "overview load failed", logger.String("op", op), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := overviewTemplate.Execute(&buf, page); err != nil {
		logger.Get().Error(r.Context(), "overview render failed", logger.String("op", op), logger.Error(errors.Join(ErrRender, err)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (h *RootHandler) build(ctx context.Context, week model.Week) (overviewPage, error) {
	view, err := h.src.Sequence(ctx, week)
	if err != nil {
		return overviewPage{}, err
	}
	reports, err := h.src.Reports(ctx, week)
	if err != nil {
		return overviewPage{}, err
	}
	byClient := model.ReportsByClient(reports)

	page := overviewPage{Week: week, Label: week.Label(), Previous: week.Previous(), Next: week.Next()}
	for _, g := range view.Groups {
		og := overviewGroup{ManagerName: g.ManagerName}
		for _, e := range view.Entries[g.Start : g.End+1] {
			row := overviewRow{Index: e.Index, Name: e.Name, Overall: health.Unknown}
			if rep, ok := byClient[e.ID]; ok {
				row.Summary = rep.StatusSummary
				row.Overall = health.Overall(rep.StatusSummary)
			}
			og.Totals = og.Totals.Add(row.Summary)
			og.Rows = append(og.Rows, row)
		}
		og.Overall = health.Overall(og.Totals)
		page.Groups = append(page.Groups, og)
	}
	return page, nil
}
