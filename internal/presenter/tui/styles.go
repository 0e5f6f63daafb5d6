package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/okian/healthreview/internal/domain/health"
	"github.com/okian/healthreview/internal/domain/model"
)

// Theme is the presenter's palette.
type Theme struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Manager  lipgloss.Style
	Cursor   lipgloss.Style
	Banner   lipgloss.Style
	Error    lipgloss.Style
	Slide    lipgloss.Style
	Current  lipgloss.Style
	Visited  lipgloss.Style
	Pending  lipgloss.Style
	Green    lipgloss.Style
	Amber    lipgloss.Style
	Red      lipgloss.Style
	Unscored lipgloss.Style
}

// DefaultTheme returns the default palette.
func DefaultTheme() Theme {
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f8fafc")),
		Subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		Manager:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a5b4fc")),
		Cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#38bdf8")),
		Banner:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f172a")).Background(lipgloss.Color("#22c55e")).Padding(0, 1),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		Slide:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#475569")).Padding(1, 2),
		Current:  lipgloss.NewStyle().Foreground(lipgloss.Color("#38bdf8")),
		Visited:  lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b")),
		Pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("#334155")),
		Green:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e")),
		Amber:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b")),
		Red:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444")),
		Unscored: lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280")),
	}
}

func (t Theme) score(s model.Score) string {
	switch s {
	case model.Green:
		return t.Green.Render("● green")
	case model.Amber:
		return t.Amber.Render("● amber")
	case model.Red:
		return t.Red.Render("● red")
	}
	return t.Unscored.Render("○ —")
}

func (t Theme) dot(s model.Score, applicable bool) string {
	if !applicable {
		return t.Unscored.Render("·")
	}
	switch s {
	case model.Green:
		return t.Green.Render("●")
	case model.Amber:
		return t.Amber.Render("●")
	case model.Red:
		return t.Red.Render("●")
	}
	return t.Unscored.Render("○")
}

func (t Theme) level(l health.Level) string {
	switch l {
	case health.Green:
		return t.Green.Render("GREEN")
	case health.Amber:
		return t.Amber.Render("AMBER")
	case health.Red:
		return t.Red.Render("RED")
	}
	return t.Unscored.Render("UNSCORED")
}
