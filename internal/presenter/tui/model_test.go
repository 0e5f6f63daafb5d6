package tui

import (
	"context"
	"io"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/navigator"
	"github.com/okian/healthreview/internal/domain/types"
	"github.com/okian/healthreview/internal/presenter"
	"github.com/okian/healthreview/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const week model.Week = "2024-01-08"

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func strPtr(s string) *string { return &s }

type stubSource struct {
	mu      sync.Mutex
	reports map[model.Week][]model.WeeklyReport
	writes  []types.ScoreChange
}

func (s *stubSource) Clients(context.Context) ([]model.Client, error) {
	return []model.Client{
		{ID: "c1", Name: "Acme", ManagerID: strPtr("u1"), ClientType: "cro"},
		{ID: "c2", Name: "Beta", ManagerID: strPtr("u1")},
		{ID: "c3", Name: "Gamma", ManagerID: strPtr("u2")},
	}, nil
}

func (s *stubSource) Metrics(context.Context) ([]model.Metric, error) {
	return []model.Metric{
		{ID: "conv", Name: "Conversion", Applicability: model.CROOnly, SortOrder: 1},
		{ID: "nps", Name: "NPS", SortOrder: 2},
	}, nil
}

func (s *stubSource) Users(context.Context) ([]model.User, error) {
	return []model.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}}, nil
}

func (s *stubSource) Schedule(context.Context) ([]model.ScheduleEntry, error) {
	return []model.ScheduleEntry{{ManagerID: "u1", PresentationOrder: 1}}, nil
}

func (s *stubSource) Reports(_ context.Context, w model.Week) ([]model.WeeklyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.WeeklyReport(nil), s.reports[w]...), nil
}

func (s *stubSource) SetScore(_ context.Context, change types.ScoreChange) (types.ScoreChangeAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, change)
	return types.ScoreChangeAck{Status: types.StatusApplied}, nil
}

func newModel(t *testing.T) (Model, *presenter.Session, *stubSource, *bool) {
	t.Helper()
	src := &stubSource{reports: map[model.Week][]model.WeeklyReport{}}
	prev := model.WeeklyReport{ClientID: "c1", Week: week.Previous()}
	prev.SetScore("conv", model.Green)
	prev.SetScore("nps", model.Amber)
	// Beta is not a CRO client, so its only previous score does not apply.
	beta := model.WeeklyReport{ClientID: "c2", Week: week.Previous()}
	beta.SetScore("conv", model.Red)
	src.reports[week.Previous()] = []model.WeeklyReport{prev, beta}

	closed := false
	s, err := presenter.Load(context.Background(), src, week, presenter.WithOnClose(func() { closed = true }))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(s.Close)
	return New(context.Background(), s), s, src, &closed
}

func press(m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// settle runs cmd and feeds its message back, as the bubbletea loop would.
func settle(m Model, cmd tea.Cmd) Model {
	if cmd == nil {
		return m
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestModelNavigation(t *testing.T) {
	Convey("Given a presenter model", t, func() {
		m, s, _, closed := newModel(t)

		Convey("When pressing right arrow and space", func() {
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyRight})
			m, _ = press(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})

			Convey("Then the session advances into the summary", func() {
				So(s.State(), ShouldResemble, navigator.State{Mode: navigator.ShowingSummary, Position: 1})
				So(m.View(), ShouldContainSubstring, "Alice · summary")
			})

			Convey("Then left arrow goes back to the last client", func() {
				m, _ = press(m, tea.KeyMsg{Type: tea.KeyLeft})
				So(s.State(), ShouldResemble, navigator.State{Mode: navigator.Viewing, Position: 1})
				So(m.View(), ShouldContainSubstring, "Beta")
			})
		})

		Convey("When pressing a digit", func() {
			m, _ = press(m, runes("3"))

			Convey("Then the session jumps to that client", func() {
				So(s.State(), ShouldResemble, navigator.State{Mode: navigator.Viewing, Position: 2})
				So(m.View(), ShouldContainSubstring, "Gamma")
			})
		})

		Convey("When clicking the position indicator", func() {
			next, _ := m.Update(tea.MouseMsg{X: 2 * indicatorWidth, Y: indicatorRow, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
			m = next.(Model)

			Convey("Then the session jumps to the clicked client", func() {
				So(s.State().Position, ShouldEqual, 2)
			})
		})

		Convey("When the terminal is too narrow for every cell", func() {
			next, _ := m.Update(tea.WindowSizeMsg{Width: 2 * indicatorWidth, Height: 40})
			m = next.(Model)
			m.Update(tea.MouseMsg{X: indicatorWidth, Y: indicatorRow, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})

			Convey("Then the indicator is paged and the ellipsis cell is not a target", func() {
				So(m.View(), ShouldContainSubstring, "…")
				So(s.State(), ShouldResemble, navigator.Initial())
			})

			Convey("Then the first cell of a later page is that page's client, not the first client", func() {
				m, _ = press(m, runes("3"))
				m.Update(tea.MouseMsg{X: 0, Y: indicatorRow, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
				So(s.State().Position, ShouldEqual, 2)
			})
		})

		Convey("When clicking elsewhere", func() {
			m.Update(tea.MouseMsg{X: 2 * indicatorWidth, Y: indicatorRow + 3, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})

			Convey("Then nothing moves", func() {
				So(s.State(), ShouldResemble, navigator.Initial())
			})
		})

		Convey("When pressing esc", func() {
			_, cmd := press(m, tea.KeyMsg{Type: tea.KeyEsc})

			Convey("Then the session closes and the program quits", func() {
				So(*closed, ShouldBeTrue)
				So(s.State().Closed(), ShouldBeTrue)
				So(cmd, ShouldNotBeNil)
				_, quit := cmd().(tea.QuitMsg)
				So(quit, ShouldBeTrue)
			})
		})
	})
}

func TestModelScoring(t *testing.T) {
	Convey("Given a presenter model on a CRO client", t, func() {
		m, s, src, _ := newModel(t)

		Convey("When scoring the second metric amber", func() {
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyDown})
			m, cmd := press(m, runes("a"))
			m = settle(m, cmd)

			Convey("Then the write targets that metric and the week", func() {
				So(src.writes, ShouldHaveLength, 1)
				So(src.writes[0].MetricID, ShouldEqual, "nps")
				So(src.writes[0].Score, ShouldEqual, model.Amber)
				So(src.writes[0].Week, ShouldEqual, week)
				So(m.View(), ShouldContainSubstring, "saved nps")
			})
		})

		Convey("When copying last week", func() {
			m, cmd := press(m, runes("c"))
			m = settle(m, cmd)

			Convey("Then both scores are copied and the banner shows", func() {
				So(src.writes, ShouldHaveLength, 2)
				So(s.View().Copied, ShouldBeTrue)
				So(m.View(), ShouldContainSubstring, "copied from last week")
			})

			Convey("Then navigating hides the banner", func() {
				m, _ = press(m, tea.KeyMsg{Type: tea.KeyRight})
				So(s.View().Copied, ShouldBeFalse)
			})
		})

		Convey("When navigating away before a score save runs", func() {
			m, cmd := press(m, runes("g"))
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyRight})
			m = settle(m, cmd)

			Convey("Then the score lands on the client shown at the keypress", func() {
				So(src.writes, ShouldHaveLength, 1)
				So(src.writes[0].ClientID, ShouldEqual, "c1")
				So(src.writes[0].MetricID, ShouldEqual, "conv")
				So(src.writes[0].Score, ShouldEqual, model.Green)
				So(m.View(), ShouldContainSubstring, "saved conv")
			})
		})

		Convey("When navigating away before a copy runs", func() {
			m, cmd := press(m, runes("c"))
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyRight})
			m = settle(m, cmd)

			Convey("Then the copy targets the original client without a banner", func() {
				So(src.writes, ShouldHaveLength, 2)
				for _, w := range src.writes {
					So(w.ClientID, ShouldEqual, "c1")
				}
				So(s.View().Entry.ID, ShouldEqual, "c2")
				So(s.View().Copied, ShouldBeFalse)
			})
		})

		Convey("When copying onto a client whose previous scores do not apply", func() {
			m, _ = press(m, runes("2"))
			m, cmd := press(m, runes("c"))
			m = settle(m, cmd)

			Convey("Then nothing is written and the status says so", func() {
				So(src.writes, ShouldBeEmpty)
				So(m.View(), ShouldContainSubstring, "nothing to copy from last week")
			})
		})

		Convey("When on a summary slide", func() {
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyRight})
			m, _ = press(m, tea.KeyMsg{Type: tea.KeyRight})
			_, cmd := press(m, runes("g"))

			Convey("Then scoring does nothing", func() {
				So(cmd, ShouldBeNil)
				So(src.writes, ShouldBeEmpty)
			})
		})

		Convey("When moving to the previous week", func() {
			m, cmd := press(m, runes("["))
			m = settle(m, cmd)

			Convey("Then the session shows that week", func() {
				So(s.View().Week, ShouldEqual, week.Previous())
				So(m.View(), ShouldContainSubstring, "reloaded")
			})
		})
	})
}

func TestModelHelp(t *testing.T) {
	Convey("Given a presenter model", t, func() {
		m, _, _, _ := newModel(t)

		Convey("When toggling help", func() {
			m, _ = press(m, runes("?"))

			Convey("Then the full key map is shown", func() {
				So(m.help.ShowAll, ShouldBeTrue)
				So(m.View(), ShouldContainSubstring, "prev week")
			})
		})
	})
}

func TestIndicatorPage(t *testing.T) {
	Convey("Given indicator widths", t, func() {
		cases := []struct {
			total, pos, width int
			start, end        int
		}{
			{3, 0, 0, 0, 3},
			{10, 4, 20, 0, 10},
			{30, 0, 20, 0, 9},
			{30, 12, 20, 9, 18},
			{30, 29, 20, 27, 30},
			{5, 4, 2, 4, 5},
		}
		for _, c := range cases {
			start, end := indicatorPage(c.total, c.pos, c.width)
			So([]int{start, end}, ShouldResemble, []int{c.start, c.end})
			So(c.pos, ShouldBeBetweenOrEqual, start, end-1)
			So((end-start)*indicatorWidth, ShouldBeLessThanOrEqualTo, max(c.width, c.total*indicatorWidth))
		}
	})
}
