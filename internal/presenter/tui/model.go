// Package tui renders a presenter session as a full-screen bubbletea program.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/okian/healthreview/internal/domain/model"
	"github.com/okian/healthreview/internal/domain/scorecopy"
	"github.com/okian/healthreview/internal/presenter"
)

// Position indicator layout: one row below the header, two columns per client.
const (
	indicatorRow   = 1
	indicatorWidth = 2
)

// RefreshMsg asks the model to redraw from the session, e.g. after the copied
// flag expired.
type RefreshMsg struct{}

// scoreSavedMsg reports an asynchronous score save.
type scoreSavedMsg struct {
	metricID string
	err      error
}

// copyDoneMsg reports an asynchronous copy from last week.
type copyDoneMsg struct {
	result scorecopy.Result
	err    error
}

// reloadedMsg reports an asynchronous reload or week change.
type reloadedMsg struct {
	err error
}

// Notifier forwards session callbacks into a running program. It is created
// before the program so it can be handed to presenter.WithOnChange.
type Notifier struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach binds the program that receives notifications.
func (n *Notifier) Attach(p *tea.Program) {
	n.mu.Lock()
	n.program = p
	n.mu.Unlock()
}

// Notify sends RefreshMsg to the attached program, if any.
func (n *Notifier) Notify() {
	n.mu.Lock()
	p := n.program
	n.mu.Unlock()
	if p != nil {
		p.Send(RefreshMsg{})
	}
}

// Model is the top-level bubbletea model for presenter mode.
type Model struct {
	ctx     context.Context
	session *presenter.Session
	keys    KeyMap
	theme   Theme
	help    help.Model

	width  int
	height int

	// cursor selects a metric row on the client slide.
	cursor int
	status string
	err    error
}

// New creates a model driving session.
func New(ctx context.Context, session *presenter.Session) Model {
	return Model{
		ctx:     ctx,
		session: session,
		keys:    DefaultKeyMap(),
		theme:   DefaultTheme(),
		help:    help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case RefreshMsg:
		return m, nil

	case scoreSavedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.status = "saved " + msg.metricID
		}
		return m, nil

	case copyDoneMsg:
		m.err = msg.err
		switch {
		case errors.Is(msg.err, scorecopy.ErrNoPreviousReport):
			m.err = nil
			m.status = "no report last week"
		case msg.err == nil && msg.result.Count(scorecopy.Copied) == 0:
			m.status = "nothing to copy from last week"
		case msg.err == nil:
			m.status = fmt.Sprintf("copied %d scores from last week", msg.result.Count(scorecopy.Copied))
		}
		return m, nil

	case reloadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "reloaded"
		}
		m.cursor = 0
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if idx, ok := digitIndex(msg); ok {
		m.navigated()
		m.session.JumpTo(idx)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Exit()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		m.navigated()
		m.session.Advance()

	case key.Matches(msg, m.keys.Prev):
		m.navigated()
		m.session.Retreat()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if n := len(m.session.View().Metrics); m.cursor < n-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Green):
		return m, m.score(model.Green)
	case key.Matches(msg, m.keys.Amber):
		return m, m.score(model.Amber)
	case key.Matches(msg, m.keys.Red):
		return m, m.score(model.Red)

	case key.Matches(msg, m.keys.Copy):
		return m, m.copyPrevious()

	case key.Matches(msg, m.keys.Reload):
		return m, m.reload(m.session.View().Week)
	case key.Matches(msg, m.keys.PrevWeek):
		return m, m.reload(m.session.View().Week.Previous())
	case key.Matches(msg, m.keys.NextWeek):
		return m, m.reload(m.session.View().Week.Next())

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// handleMouse maps a left click on the position indicator to a jump.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionPress {
		return m, nil
	}
	if msg.Y != indicatorRow || msg.X < 0 {
		return m, nil
	}
	v := m.session.View()
	start, end := indicatorPage(v.Total(), v.State.Position, m.width)
	idx := start + msg.X/indicatorWidth
	if idx >= end {
		return m, nil
	}
	m.navigated()
	m.session.JumpTo(idx)
	return m, nil
}

func (m *Model) navigated() {
	m.cursor = 0
	m.status = ""
	m.err = nil
}

func (m Model) score(s model.Score) tea.Cmd {
	v := m.session.View()
	if v.Entry == nil || m.cursor >= len(v.Metrics) {
		return nil
	}
	clientID, metricID := v.Entry.ID, v.Metrics[m.cursor].ID
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return scoreSavedMsg{metricID: metricID, err: session.SetScoreFor(ctx, clientID, metricID, s)}
	}
}

func (m Model) copyPrevious() tea.Cmd {
	v := m.session.View()
	if v.Entry == nil {
		return nil
	}
	clientID := v.Entry.ID
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		res, err := session.CopyPreviousFor(ctx, clientID)
		return copyDoneMsg{result: res, err: err}
	}
}

func (m Model) reload(week model.Week) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return reloadedMsg{err: session.ChangeWeek(ctx, week)}
	}
}

// digitIndex maps keys 1-9 to positions 0-8.
func digitIndex(msg tea.KeyMsg) (int, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return 0, false
	}
	return int(r - '1'), true
}
