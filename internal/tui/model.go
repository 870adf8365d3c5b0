// Package tui is the interactive shell: a home view to convert a name and
// save a candidate, and a saved view to browse and delete saved names.
//
// All state transitions go through the session controller. Calls that may
// block (conversion and persistence) run as tea.Cmds, so the event loop never
// waits on the network.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/irum/internal/session"
	"github.com/MrWong99/irum/internal/validate"
)

// Messages produced by the commands below.
type (
	convertDoneMsg struct{ err error }
	savedMsg       struct {
		added bool
		err   error
	}
	deletedMsg struct{ removed bool }
)

// Model is the bubbletea model of the shell.
type Model struct {
	ctx  context.Context
	ctrl *session.Controller
	now  func() time.Time

	input    textinput.Model
	touched  bool // input edited or submitted at least once
	inflight int  // submits started but not finished
	notice   string
	cursor   int // saved view
	width    int
	height   int
	quitting bool
}

// Option configures a [Model].
type Option func(*Model)

// WithClock sets the clock relative save times are computed against.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// NewModel returns the shell over ctrl. ctx bounds every controller call.
func NewModel(ctx context.Context, ctrl *session.Controller, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "English name, e.g. Alice"
	ti.CharLimit = validate.MaxLen + 10
	ti.Prompt = "Name: "
	ti.SetValue(ctrl.Snapshot().Input)
	ti.Focus()

	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		now:    time.Now,
		input:  ti,
		width:  80,
		height: 24,
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case convertDoneMsg:
		m.inflight--
		return m, nil

	case savedMsg:
		switch {
		case errors.Is(msg.err, session.ErrDuplicateEntry):
			m.notice = "That name is already saved."
		case msg.err != nil:
			m.notice = msg.err.Error()
		case !msg.added:
			m.notice = ""
		default:
			if saved := m.ctrl.Saved(); len(saved) > 0 {
				m.notice = fmt.Sprintf("Saved %s.", saved[0].LocalizedName)
			}
		}
		return m, nil

	case deletedMsg:
		if msg.removed {
			m.notice = "Deleted."
		}
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		if m.ctrl.Snapshot().View == session.ViewSaved {
			return m.updateSaved(msg)
		}
		return m.updateHome(msg)
	}
	return m, nil
}

func (m Model) updateHome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.ctrl.Navigate(session.ViewSaved)
		m.notice = ""
		m.clampCursor()
		return m, nil

	case "enter":
		m.touched = true
		name := m.input.Value()
		if !m.canSubmit() {
			m.ctrl.ChangeInput(name)
			return m, nil
		}
		m.notice = ""
		m.inflight++
		return m, m.submitCmd(name)

	case "up":
		m.ctrl.Select(m.ctrl.Snapshot().Selected - 1)
		return m, nil

	case "down":
		m.ctrl.Select(m.ctrl.Snapshot().Selected + 1)
		return m, nil

	case "ctrl+s":
		return m, m.saveCmd()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.touched = true
		m.ctrl.ChangeInput(v)
	}
	return m, cmd
}

func (m Model) updateSaved(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "tab", "esc":
		m.ctrl.Navigate(session.ViewHome)
		m.notice = ""
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.ctrl.Saved())-1 {
			m.cursor++
		}

	case "d", "delete", "x":
		return m, m.deleteCmd(m.cursor)
	}
	return m, nil
}

// canSubmit reports whether enter starts a conversion: the input must be
// valid and no conversion may be in flight.
func (m Model) canSubmit() bool {
	if m.loading() {
		return false
	}
	return validate.Name(m.input.Value()) == nil
}

func (m Model) loading() bool {
	return m.inflight > 0 || m.ctrl.Snapshot().Loading
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Saved())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) submitCmd(name string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return convertDoneMsg{err: ctrl.Submit(ctx, name)}
	}
}

func (m Model) saveCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		added, err := ctrl.SaveCurrent(ctx)
		return savedMsg{added: added, err: err}
	}
}

func (m Model) deleteCmd(i int) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return deletedMsg{removed: ctrl.DeleteSaved(ctx, i)}
	}
}
