package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/progress"
	"github.com/verte-zerg/frametype/internal/session"
)

var (
	keyQuiz       = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "take quiz"))
	keyReady      = key.NewBinding(key.WithKeys("enter"), key.WithHelp("any key", "ready"))
	keyRestart    = key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "restart"))
	keyNextModule = key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next module"))
	keyPrevModule = key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "prev module"))
	keyRetake     = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "quiz again"))
	keyPractice   = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "practice"))
	keyNextLesson = key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next lesson"))
)

// LessonModel is the typing screen of one lesson.
type LessonModel struct {
	screen
	ctx  context.Context
	sess *session.Session

	report  *session.RunReport
	badges  []progress.Badge
	errMsg  string
	hasLast bool
	lastWPM int
	lastAcc int
}

// NewLessonModel opens lessonID in sess. With quiz set the lesson starts in
// quiz mode.
func NewLessonModel(ctx context.Context, sess *session.Session, lessonID int, quiz bool) (*LessonModel, error) {
	if _, err := sess.StartLesson(lessonID, quiz); err != nil {
		return nil, err
	}
	m := &LessonModel{screen: newScreen(), ctx: ctx, sess: sess}
	m.loadLast()
	return m, nil
}

// Init implements tea.Model.
func (m *LessonModel) Init() tea.Cmd {
	return nil
}

func (m *LessonModel) machine() *lesson.Machine {
	return m.sess.Lesson()
}

// Update implements tea.Model.
func (m *LessonModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)
		return m, nil
	case countdownMsg:
		return m, m.handleCountdown(msg.gen)
	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		if m.report != nil {
			return m, m.handleReportKey(msg)
		}
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *LessonModel) handleCountdown(gen int) tea.Cmd {
	mc := m.machine()
	if mc == nil {
		return nil
	}
	if mc.Tick(gen) {
		return nil
	}
	if _, counting := mc.Countdown(); counting && mc.Generation() == gen {
		return countdownAfter(gen)
	}
	return nil
}

func (m *LessonModel) handleReportKey(msg tea.KeyMsg) tea.Cmd {
	mc := m.machine()
	switch {
	case key.Matches(msg, keyNextLesson) && m.report.Quiz != nil && m.report.Quiz.Passed:
		if _, err := m.sess.NextLesson(); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.clearReport()
	case key.Matches(msg, keyRetake):
		if err := mc.RequestQuiz(); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.clearReport()
	case key.Matches(msg, keyPractice):
		mc.ReturnToPractice()
		m.clearReport()
	}
	return nil
}

func (m *LessonModel) clearReport() {
	m.report = nil
	m.badges = nil
	m.errMsg = ""
}

func (m *LessonModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	mc := m.machine()
	switch mc.Mode() {
	case lesson.ModePrepare:
		if key.Matches(msg, keyBack) {
			if err := mc.Cancel(); err != nil {
				m.errMsg = err.Error()
			}
			return nil
		}
		// Any other key starts the countdown once.
		if _, counting := mc.Countdown(); counting {
			return nil
		}
		gen, err := mc.Ready()
		if err != nil {
			m.errMsg = err.Error()
			return nil
		}
		return countdownAfter(gen)
	case lesson.ModePractice:
		switch {
		case key.Matches(msg, keyQuiz):
			if err := mc.RequestQuiz(); err != nil {
				m.errMsg = err.Error()
			}
			return nil
		case key.Matches(msg, keyNextModule):
			mc.NextModule()
			return nil
		case key.Matches(msg, keyPrevModule):
			mc.PrevModule()
			return nil
		case key.Matches(msg, keyBack):
			return tea.Quit
		}
	case lesson.ModeQuiz:
		if key.Matches(msg, keyBack) {
			mc.ReturnToPractice()
			return nil
		}
	}
	if key.Matches(msg, keyRestart) {
		mc.RestartRun()
		return nil
	}
	for _, k := range typedKeys(msg) {
		m.sess.OnKeystroke(k)
		if mc.Completed() {
			m.finish()
			break
		}
	}
	return nil
}

func (m *LessonModel) finish() {
	report, err := m.sess.OnRunComplete(m.ctx)
	if err != nil {
		if !errors.Is(err, session.ErrAlreadyRecorded) {
			m.errMsg = err.Error()
		}
		return
	}
	m.report = &report
	if report.Quiz != nil {
		m.badges = report.Quiz.NewBadges
	}
	m.lastWPM = report.Completion.Result.WPM
	m.lastAcc = report.Completion.Result.AccuracyPct
	m.hasLast = true
}

// loadLast seeds the footer from the lesson's stored quiz score.
func (m *LessonModel) loadLast() {
	mc := m.machine()
	if mc == nil {
		return
	}
	score, ok := m.sess.Aggregator().Progress().LessonScores[mc.Lesson().ID]
	if !ok {
		return
	}
	m.lastWPM = score.WPM
	m.lastAcc = score.Accuracy
	m.hasLast = true
}

// View implements tea.Model.
func (m *LessonModel) View() string {
	mc := m.machine()
	if mc == nil {
		return ""
	}
	header := titleStyle.Render(fmt.Sprintf("Lesson %d · %s", mc.Lesson().ID, mc.Lesson().Name)) +
		"  " + mutedStyle.Render(m.modeLabel())
	var body string
	switch {
	case m.report != nil:
		body = m.renderReport()
	case mc.Mode() == lesson.ModePrepare:
		body = m.renderPrepare()
	default:
		body = renderRun(mc.Run(), m.contentWidth())
	}
	if m.errMsg != "" {
		body += "\n\n" + failStyle.Render(m.errMsg)
	}
	return m.layout(header, body, m.renderFooter(), m.bindings())
}

func (m *LessonModel) modeLabel() string {
	mc := m.machine()
	switch mc.Mode() {
	case lesson.ModePractice:
		return fmt.Sprintf("practice %d/%d", mc.Module()+1, max(len(mc.Lesson().Practice), 1))
	case lesson.ModePrepare:
		return "get ready"
	default:
		return "quiz"
	}
}

func (m *LessonModel) bindings() []key.Binding {
	mc := m.machine()
	if m.report != nil {
		b := []key.Binding{keyRetake, keyPractice}
		if m.report.Quiz != nil && m.report.Quiz.Passed {
			b = append(b, keyNextLesson)
		}
		return append(b, keyQuit)
	}
	switch mc.Mode() {
	case lesson.ModePractice:
		return []key.Binding{keyQuiz, keyNextModule, keyPrevModule, keyRestart, keyQuit}
	case lesson.ModePrepare:
		return []key.Binding{keyReady, keyBack, keyQuit}
	default:
		return []key.Binding{keyRestart, keyPractice, keyQuit}
	}
}

func (m *LessonModel) renderPrepare() string {
	mc := m.machine()
	left, counting := mc.Countdown()
	if counting {
		return titleStyle.Render(fmt.Sprintf("%d", left))
	}
	lines := []string{
		"Type the quiz text start to finish.",
		fmt.Sprintf("Pass with %d%% accuracy and %d CPM.", m.sess.Aggregator().Threshold(), lesson.MinCPMThreshold),
		"",
		mutedStyle.Render("Press enter when ready."),
	}
	return strings.Join(lines, "\n")
}

func (m *LessonModel) renderReport() string {
	c := m.report.Completion
	res := c.Result
	lines := []string{}
	if c.Quiz {
		if c.Outcome.Passed {
			lines = append(lines, successStyle.Render("Quiz passed"))
		} else {
			lines = append(lines, failStyle.Render("Quiz not passed"))
		}
	} else {
		lines = append(lines, titleStyle.Render("Practice complete"))
	}
	lines = append(lines,
		"",
		fmt.Sprintf("Accuracy %d%%  ·  %d CPM  ·  %d WPM", res.AccuracyPct, res.CPM, res.WPM),
		fmt.Sprintf("Errors %d  ·  %.1fs", res.ErrorCount, float64(res.ElapsedMs)/1000),
	)
	for _, issue := range c.Outcome.Issues {
		lines = append(lines, failStyle.Render("· "+issue))
	}
	if m.report.Quiz != nil && m.report.Quiz.Score.Best != nil {
		best := m.report.Quiz.Score.Best
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("Best %d%% · %d WPM · %d attempts", best.Accuracy, best.WPM, m.report.Quiz.Score.Attempts)))
	}
	for _, b := range m.badges {
		lines = append(lines, successStyle.Render("Badge earned: "+b.Title))
	}
	lines = append(lines, "", mutedStyle.Render(c.Outcome.Recommendation.String()))
	return modalStyle.Render(strings.Join(lines, "\n"))
}

func (m *LessonModel) renderFooter() string {
	mc := m.machine()
	if mc == nil || mc.Run() == nil {
		return ""
	}
	target := len(mc.Run().Target())
	progressPct := 0
	if target > 0 {
		progressPct = mc.Run().Cursor() * 100 / target
	}
	segments := []string{fmt.Sprintf("Progress %d%%", progressPct)}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d WPM · %d%%", m.lastWPM, m.lastAcc))
	}
	segments = append(segments, fmt.Sprintf("Gate %d%%", m.sess.Aggregator().Threshold()))
	return footerStyle.Render(strings.Join(segments, "  "))
}
