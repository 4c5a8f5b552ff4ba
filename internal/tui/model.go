// Package tui is the terminal version of the in-page redirect switch.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Rorqualx/ytorigin/internal/types"
)

// storeTimeout bounds each preference read or write.
const storeTimeout = 5 * time.Second

// Preference is the stored redirect switch.
type Preference interface {
	Key() string
	Enabled(ctx context.Context) (bool, error)
	Set(ctx context.Context, enabled bool) error
}

// loadedMsg carries the initial preference read.
type loadedMsg struct {
	enabled bool
	err     error
}

// savedMsg is sent when a write finishes.
type savedMsg struct {
	enabled bool
	err     error
}

// Model is a one-switch bubbletea screen over a Preference.
type Model struct {
	pref    Preference
	backend string
	styles  Styles

	enabled bool
	loaded  bool
	saving  bool
	changed bool
	warning string
	err     error
}

// New creates a Model. backend is shown so the user knows which store is edited.
func New(pref Preference, backend string) Model {
	return Model{pref: pref, backend: backend, styles: DefaultStyles()}
}

// Enabled returns the switch state shown on screen.
func (m Model) Enabled() bool { return m.enabled }

// Changed reports whether a write succeeded during the session.
func (m Model) Changed() bool { return m.changed }

// Err returns the last store error.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	pref := m.pref
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		enabled, err := pref.Enabled(ctx)
		return loadedMsg{enabled: enabled, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loaded = true
		m.enabled = msg.enabled
		switch {
		case errors.Is(msg.err, types.ErrInvalidPrefValue):
			m.warning = "Stored value was unreadable, showing the default"
		case msg.err != nil:
			m.err = msg.err
		}
		return m, nil

	case savedMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.warning = ""
		m.enabled = msg.enabled
		m.changed = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ", "enter", "t":
			return m.set(!m.enabled)
		case "y", "right", "l":
			return m.set(true)
		case "n", "left", "h":
			return m.set(false)
		}
	}
	return m, nil
}

// set starts a write unless one is running or the state already matches.
func (m Model) set(enabled bool) (tea.Model, tea.Cmd) {
	if !m.loaded || m.saving || (enabled == m.enabled && m.err == nil) {
		return m, nil
	}
	m.saving = true
	pref := m.pref
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return savedMsg{enabled: enabled, err: pref.Set(ctx, enabled)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	s := m.styles

	state := s.Subtle.Render("loading...")
	if m.loaded {
		state = s.Off.Render("OFF")
		if m.enabled {
			state = s.On.Render("ON")
		}
		if m.saving {
			state += " " + s.Subtle.Render("saving...")
		}
	}

	lines := []string{
		s.Title.Render("ytorigin"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center, s.Label.Render("Redirect mobile pages to desktop  "), state),
		s.Subtle.Render("store: " + m.backend + "  key: " + m.pref.Key()),
	}
	if m.warning != "" {
		lines = append(lines, "", s.Warning.Render(m.warning))
	}
	if m.err != nil {
		lines = append(lines, "", s.Error.Render("Error: "+m.err.Error()))
	}
	lines = append(lines, "", s.Subtle.Render("space toggle • y/n set • q quit"))

	return s.Box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Run shows the toggle screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, pref Preference, backend string) (Model, error) {
	final, err := tea.NewProgram(New(pref, backend), tea.WithContext(ctx)).Run()
	if m, ok := final.(Model); ok {
		return m, err
	}
	return Model{}, err
}

var _ tea.Model = Model{}
