// Package tui provides the Bubble Tea screens for lessons, chapter
// exercises, drills and progress.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/frametype/internal/scoring"
)

// countdownMsg is one second of a lesson's pre-quiz countdown.
type countdownMsg struct{ gen int }

// advanceMsg fires when a chapter quiz may move to its next question.
type advanceMsg struct{ token int }

// feedbackMsg fires when a drill's answer feedback has been shown long enough.
type feedbackMsg struct{ token int }

func countdownAfter(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return countdownMsg{gen: gen} })
}

func advanceAfter(d time.Duration, token int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return advanceMsg{token: token} })
}

func feedbackAfter(d time.Duration, token int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return feedbackMsg{token: token} })
}

// typedKeys converts a key press into the keys a run understands. Pasted
// runes arrive as one message and are split.
func typedKeys(msg tea.KeyMsg) []string {
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		return []string{scoring.KeyBackspace}
	case tea.KeySpace:
		return []string{" "}
	case tea.KeyRunes:
		if msg.Alt {
			return nil
		}
		out := make([]string, 0, len(msg.Runes))
		for _, r := range msg.Runes {
			out = append(out, string(r))
		}
		return out
	default:
		return nil
	}
}

var (
	keyQuit = key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	keyBack = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back"))
)

// screen holds what every screen needs to lay itself out.
type screen struct {
	width  int
	height int
	help   help.Model
}

func newScreen() screen {
	return screen{help: help.New()}
}

func (s *screen) resize(msg tea.WindowSizeMsg) {
	s.width = msg.Width
	s.height = msg.Height
	s.help.Width = msg.Width
}

// contentWidth is the width text is wrapped to.
func (s screen) contentWidth() int {
	if s.width == 0 {
		return 0
	}
	w := int(float64(s.width) * 0.70)
	if w < 1 {
		w = 1
	}
	return w
}

// layout centres body and pins footer and the key help to the bottom.
func (s screen) layout(header, body, footer string, bindings []key.Binding) string {
	helpLine := s.help.ShortHelpView(bindings)
	if s.width == 0 || s.height == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer, helpLine)
	}
	bodyHeight := s.height - 3
	if bodyHeight < 1 {
		return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, body)
	}
	top := lipgloss.Place(s.width, 1, lipgloss.Center, lipgloss.Top, header)
	middle := lipgloss.Place(s.width, bodyHeight, lipgloss.Center, lipgloss.Center, body)
	bottom := lipgloss.Place(s.width, 1, lipgloss.Center, lipgloss.Center, footer)
	helpRow := lipgloss.Place(s.width, 1, lipgloss.Center, lipgloss.Center, helpLine)
	return top + "\n" + middle + "\n" + bottom + "\n" + helpRow
}
