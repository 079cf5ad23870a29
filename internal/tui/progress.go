package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
	"github.com/verte-zerg/frametype/internal/stats"
)

const (
	tabLessons = iota
	tabCharacters
	tabChapters
	tabBadges
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))

	keyPrevTab = key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev tab"))
	keyNextTab = key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next tab"))
	keyClose   = key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit"))
)

// ProgressModel browses a user's progress in tabbed tables.
type ProgressModel struct {
	screen
	cur   *curriculum.Curriculum
	p     model.UserProgress
	learn model.LearnProgress

	tabs      []string
	activeTab int
	tables    []table.Model
}

// NewProgressModel builds the tables from a snapshot of the aggregates.
func NewProgressModel(cur *curriculum.Curriculum, p model.UserProgress, learn model.LearnProgress) *ProgressModel {
	m := &ProgressModel{
		screen: newScreen(),
		cur:    cur,
		p:      p,
		learn:  learn,
		tabs:   []string{"Lessons", "Characters", "Chapters", "Badges"},
	}
	m.tables = []table.Model{
		buildTable(stats.LessonRows(cur.Lessons, p)),
		buildTable(stats.CharRows(stats.AggregatesFromProgress(p), 0)),
		buildTable(stats.ChapterRows(cur.Chapters, learn)),
		buildTable([]string{"", "Badge", "Requirement"}, stats.BadgeRows(p)),
	}
	m.tables[m.activeTab].Focus()
	return m
}

// buildTable sizes each column to its widest cell.
func buildTable(headers []string, rows [][]string) table.Model {
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		w := runewidth.StringWidth(h)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, runewidth.StringWidth(row[i]))
			}
		}
		columns[i] = table.Column{Title: h, Width: max(w, 1)}
	}
	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(min(len(rows), 20)+1),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(false)
	return styles
}

// Init implements tea.Model.
func (m *ProgressModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)
		for i := range m.tables {
			m.tables[i].SetHeight(max(1, msg.Height-8))
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit), key.Matches(msg, keyClose):
			return m, tea.Quit
		case key.Matches(msg, keyPrevTab):
			m.moveTab(-1)
			return m, nil
		case key.Matches(msg, keyNextTab):
			m.moveTab(1)
			return m, nil
		}
		var cmd tea.Cmd
		m.tables[m.activeTab], cmd = m.tables[m.activeTab].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ProgressModel) moveTab(delta int) {
	m.tables[m.activeTab].Blur()
	m.activeTab = (m.activeTab + delta + len(m.tabs)) % len(m.tabs)
	m.tables[m.activeTab].Focus()
}

func (m *ProgressModel) renderTabs() string {
	tabs := make([]string, len(m.tabs))
	for i, name := range m.tabs {
		if i == m.activeTab {
			tabs[i] = activeNavStyle.Render(name)
		} else {
			tabs[i] = inactiveNavStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *ProgressModel) summary() string {
	switch m.activeTab {
	case tabLessons:
		return fmt.Sprintf("%d/%d lessons passed · gate %d%% · current lesson %d",
			len(m.p.CompletedLevels), len(m.cur.Lessons), lesson.EffectiveThreshold(m.p.Settings), m.p.CurrentLevel)
	case tabCharacters:
		weak := stats.WeakestChars(stats.AggregatesFromProgress(m.p), 5)
		if len(weak) == 0 {
			return "No drill attempts yet."
		}
		return "Weakest: " + strings.Join(weak, " ")
	case tabChapters:
		return fmt.Sprintf("%d chapters completed", len(m.learn.CompletedChapters))
	case tabBadges:
		return fmt.Sprintf("%d/%d badges · arena levels %d", len(m.p.Badges), len(progress.Badges), len(m.p.ArenaLevels))
	}
	return ""
}

// View implements tea.Model.
func (m *ProgressModel) View() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		mutedStyle.Render(m.summary()),
		"",
		m.tables[m.activeTab].View(),
	)
	help := m.help.ShortHelpView([]key.Binding{keyPrevTab, keyNextTab, keyUp, keyDown, keyClose})
	return lipgloss.JoinVertical(lipgloss.Left, body, "", help)
}
