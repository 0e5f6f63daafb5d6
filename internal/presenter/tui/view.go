package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/sequence"
	"github.com/okian/healthreview/internal/presenter"
)

// View implements tea.Model.
func (m Model) View() string {
	v := m.session.View()
	if v.State.Closed() {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header(v))
	b.WriteByte('\n')
	b.WriteString(m.indicator(v))
	b.WriteString("\n\n")

	switch {
	case v.Empty():
		b.WriteString(m.theme.Slide.Render(m.theme.Subtle.Render("No clients to present for this week.")))
	case v.Summary != nil:
		b.WriteString(m.theme.Slide.Render(m.summarySlide(v, v.Summary)))
	case v.Entry != nil:
		b.WriteString(m.theme.Slide.Render(m.clientSlide(v)))
	}
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(m.theme.Error.Render("error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(m.theme.Subtle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) header(v presenter.View) string {
	title := m.theme.Title.Render("Client Health Review") + "  " + m.theme.Subtle.Render(v.Week.Label())
	if v.Empty() {
		return title
	}
	pos := fmt.Sprintf("%d / %d", v.State.Position+1, v.Total())
	if v.State.ShowingSummary() {
		pos += " · summary"
	}
	return title + "  " + m.theme.Subtle.Render(pos)
}

// indicator draws one cell per client of the current page; a click on cell i
// jumps to client start+i. A trailing ellipsis marks a paged indicator.
func (m Model) indicator(v presenter.View) string {
	var b strings.Builder
	start, end := indicatorPage(v.Total(), v.State.Position, m.width)
	for i := start; i < end; i++ {
		var cell string
		switch {
		case i == v.State.Position:
			cell = m.theme.Current.Render("●")
		case i < v.State.Position:
			cell = m.theme.Visited.Render("●")
		default:
			cell = m.theme.Pending.Render("○")
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", indicatorWidth-1))
	}
	if end-start < v.Total() {
		b.WriteString(m.theme.Subtle.Render("…"))
	}
	return b.String()
}

// indicatorPage returns the range of positions whose cells fit in width
// columns. The page holding pos is shown; a zero width shows everything.
func indicatorPage(total, pos, width int) (start, end int) {
	slots := width / indicatorWidth
	if width <= 0 || total <= slots {
		return 0, total
	}
	// one slot is kept for the ellipsis
	per := max(slots-1, 1)
	start = (pos / per) * per
	return start, min(start+per, total)
}

func (m Model) clientSlide(v presenter.View) string {
	e := v.Entry
	var b strings.Builder

	b.WriteString(m.theme.Title.Render(e.Name))
	b.WriteString("  ")
	b.WriteString(m.theme.level(v.Overall))
	b.WriteByte('\n')
	b.WriteString(m.theme.Manager.Render(e.ManagerName))
	if e.ContactName != "" {
		b.WriteString(m.theme.Subtle.Render("  contact: " + e.ContactName))
	}
	if e.ClientType != "" {
		b.WriteString(m.theme.Subtle.Render("  type: " + e.ClientType))
	}
	if v.Copied {
		b.WriteString("  ")
		b.WriteString(m.theme.Banner.Render("✓ copied from last week"))
	}
	b.WriteString("\n\n")

	if len(v.Metrics) == 0 {
		b.WriteString(m.theme.Subtle.Render("No metrics apply to this client."))
		return b.String()
	}

	nameWidth := 0
	for _, mt := range v.Metrics {
		nameWidth = max(nameWidth, lipgloss.Width(mt.Name))
	}
	for i, mt := range v.Metrics {
		marker := "  "
		if i == m.cursor {
			marker = m.theme.Cursor.Render("▸ ")
		}
		cur, _ := v.Report.ScoreFor(mt.ID)
		prev, _ := v.Previous.ScoreFor(mt.ID)
		line := fmt.Sprintf("%s%-*s  %s", marker, nameWidth, mt.Name, padRight(m.theme.score(cur), 10))
		line += m.theme.Subtle.Render("  last week ") + m.theme.score(prev)
		if v.IsSaving(mt.ID) {
			line += m.theme.Subtle.Render("  saving…")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) summarySlide(v presenter.View, s *health.Slide) string {
	var b strings.Builder
	b.WriteString(m.theme.Title.Render(s.ManagerName + " · summary"))
	b.WriteString("  ")
	b.WriteString(m.theme.level(s.Overall))
	b.WriteString("\n\n")

	nameWidth := 0
	for _, r := range s.Rows {
		nameWidth = max(nameWidth, lipgloss.Width(r.ClientName))
	}
	for _, r := range s.Rows {
		var cells []string
		for _, c := range r.Cells {
			cells = append(cells, m.theme.dot(c.Score, c.Applicable))
		}
		fmt.Fprintf(&b, "%-*s  %s  %s  %s\n",
			nameWidth, r.ClientName,
			strings.Join(cells, " "),
			padRight(m.theme.level(r.Overall), 9),
			m.theme.Subtle.Render(counts(r.Summary.Green, r.Summary.Amber, r.Summary.Red)))
	}
	b.WriteByte('\n')
	b.WriteString(m.theme.Subtle.Render("totals " + counts(s.Totals.Green, s.Totals.Amber, s.Totals.Red)))
	b.WriteString(m.theme.Subtle.Render(fmt.Sprintf("  clients %d–%d of %d", s.Start+1, s.End+1, len(v.Sequence))))
	if next := nextManager(v.Sequence, s.End); next != "" {
		b.WriteString(m.theme.Subtle.Render("  next: " + next))
	}
	return b.String()
}

func counts(g, a, r int) string {
	return fmt.Sprintf("G%d A%d R%d", g, a, r)
}

func nextManager(seq []sequence.Entry, end int) string {
	if end+1 < len(seq) {
		return seq[end+1].ManagerName
	}
	return ""
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
