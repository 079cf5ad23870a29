package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/frametype/internal/drill"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/session"
)

var keyAgain = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "again"))

// DrillModel runs a character drill or, with arena set, a practice arena
// text for one level.
type DrillModel struct {
	screen
	ctx   context.Context
	sess  *session.Session
	level int
	arena bool

	last    *drill.Answer
	result  *model.RunResult
	cleared bool
	errMsg  string
}

// NewDrillModel opens a drill over level.
func NewDrillModel(ctx context.Context, sess *session.Session, level int, arena bool) (*DrillModel, error) {
	m := &DrillModel{screen: newScreen(), ctx: ctx, sess: sess, level: level, arena: arena}
	if err := m.start(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DrillModel) start() error {
	m.last = nil
	m.result = nil
	m.cleared = false
	m.errMsg = ""
	if m.arena {
		_, err := m.sess.StartArena(m.level)
		return err
	}
	_, err := m.sess.StartDrill(m.level)
	return err
}

// Init implements tea.Model.
func (m *DrillModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *DrillModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)
		return m, nil
	case feedbackMsg:
		if m.sess.DrillNext(msg.token) {
			m.last = nil
			m.finishDrill()
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit), key.Matches(msg, keyBack):
			return m, tea.Quit
		case m.result != nil:
			if key.Matches(msg, keyAgain) {
				if err := m.start(); err != nil {
					m.errMsg = err.Error()
				}
			}
			return m, nil
		case m.arena:
			return m, m.arenaKey(msg)
		default:
			return m, m.drillKey(msg)
		}
	}
	return m, nil
}

func (m *DrillModel) drillKey(msg tea.KeyMsg) tea.Cmd {
	keys := typedKeys(msg)
	if len(keys) != 1 {
		return nil
	}
	ans, ok, err := m.sess.OnDrillKey(keys[0])
	if errors.Is(err, drill.ErrFeedback) || !ok {
		return nil
	}
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.last = &ans
	return feedbackAfter(drill.FeedbackDelay, ans.Token)
}

func (m *DrillModel) finishDrill() {
	d := m.sess.Drill()
	if d == nil || !d.Done() {
		return
	}
	res, err := m.sess.FinishDrill(m.ctx)
	if err != nil && !errors.Is(err, session.ErrAlreadyRecorded) {
		m.errMsg = err.Error()
		return
	}
	m.result = &res
}

func (m *DrillModel) arenaKey(msg tea.KeyMsg) tea.Cmd {
	a := m.sess.Arena()
	if a == nil {
		return nil
	}
	for _, k := range typedKeys(msg) {
		m.sess.OnArenaKey(k)
		if a.Completed() {
			out, err := m.sess.FinishArena(m.ctx)
			if err != nil && !errors.Is(err, session.ErrAlreadyRecorded) {
				m.errMsg = err.Error()
				return nil
			}
			m.result = &out.Result
			m.cleared = out.Cleared
			break
		}
	}
	return nil
}

// View implements tea.Model.
func (m *DrillModel) View() string {
	kind := "Character drill"
	if m.arena {
		kind = "Practice arena"
	}
	header := titleStyle.Render(fmt.Sprintf("%s · level %d", kind, m.level))
	var body, footer string
	bindings := []key.Binding{keyBack, keyQuit}
	switch {
	case m.result != nil:
		body = m.renderResult()
		bindings = []key.Binding{keyAgain, keyBack, keyQuit}
	case m.arena:
		body = renderRun(m.sess.Arena().Run(), m.contentWidth())
		footer = m.arenaFooter()
	default:
		body = m.renderPrompt()
		footer = m.drillFooter()
	}
	if m.errMsg != "" {
		body += "\n\n" + failStyle.Render(m.errMsg)
	}
	return m.layout(header, body, footer, bindings)
}

func (m *DrillModel) renderPrompt() string {
	d := m.sess.Drill()
	if d == nil {
		return ""
	}
	if m.last != nil {
		prompted := m.last.Event.Prompted
		if m.last.Correct {
			return glyphStyle.Render(prompted) + "\n" + successStyle.Render("Correct")
		}
		return glyphStyle.Render(prompted) + "\n" + failStyle.Render(fmt.Sprintf("It was %s", prompted))
	}
	current, ok := d.Current()
	if !ok {
		return ""
	}
	return glyphStyle.Render(current)
}

func (m *DrillModel) drillFooter() string {
	d := m.sess.Drill()
	if d == nil {
		return ""
	}
	pos, total := d.Position()
	return footerStyle.Render(fmt.Sprintf("%d/%d  Accuracy %d%%", pos, total, d.Accuracy()))
}

func (m *DrillModel) arenaFooter() string {
	a := m.sess.Arena()
	if a == nil || a.Run() == nil {
		return ""
	}
	target := len(a.Run().Target())
	pct := 0
	if target > 0 {
		pct = a.Run().Cursor() * 100 / target
	}
	return footerStyle.Render(fmt.Sprintf("Progress %d%%  Clear at %d%%", pct, drill.ArenaPassAccuracy))
}

func (m *DrillModel) renderResult() string {
	res := m.result
	lines := []string{}
	switch {
	case !m.arena:
		lines = append(lines, titleStyle.Render("Drill complete"))
	case m.cleared:
		lines = append(lines, successStyle.Render(fmt.Sprintf("Level %d cleared", m.level)))
	default:
		lines = append(lines, failStyle.Render("Not cleared yet"))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Accuracy %d%%  ·  %d CPM  ·  %d WPM", res.AccuracyPct, res.CPM, res.WPM),
		fmt.Sprintf("Errors %d", res.ErrorCount),
	)
	return modalStyle.Render(strings.Join(lines, "\n"))
}
