package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/frametype/internal/chapter"
	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/session"
)

type chapterView int

const (
	viewOverview chapterView = iota
	viewFlashcards
	viewChoice
	viewTranslation
)

var (
	keyUp        = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	keyDown      = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	keyOpen      = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open"))
	keyStartOver = key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start over"))
	keyPrevCard  = key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev"))
	keyNextCard  = key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next"))
	keyFlip      = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "flip"))
	keyDone      = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "done"))
	keyChoose    = key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "choose"))
	keyTryAgain  = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "try again"))
	keySubmit    = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit"))
	keyReveal    = key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reveal"))
)

// quizStages are the stages listed on the overview, in order.
var quizStages = []model.Stage{
	model.StageFlashcards,
	model.StageLetterQuiz,
	model.StageWordQuiz,
	model.StageTranslationQuiz,
}

var stageTitles = map[model.Stage]string{
	model.StageFlashcards:      "Flashcards",
	model.StageLetterQuiz:      "Letter recognition",
	model.StageWordQuiz:        "Word recognition",
	model.StageTranslationQuiz: "Word translation",
}

// ChapterModel is the structured exercise screen of one chapter.
type ChapterModel struct {
	screen
	sess *session.Session
	ch   curriculum.Chapter

	view    chapterView
	stage   model.Stage
	cursor  int
	card    int
	flipped bool
	input   textinput.Model
	hint    string
	reveal  string
	notice  string
	errMsg  string
}

// NewChapterModel enters chapterID in sess, opening on the overview with the
// resume stage selected.
func NewChapterModel(sess *session.Session, chapterID int) (*ChapterModel, error) {
	ch, resume, err := sess.EnterChapter(chapterID)
	if err != nil {
		return nil, err
	}
	input := textinput.New()
	input.Placeholder = "translation"
	input.CharLimit = 64
	m := &ChapterModel{screen: newScreen(), sess: sess, ch: ch, input: input}
	for i, st := range quizStages {
		if st == resume {
			m.cursor = i
		}
	}
	if resume == model.StageComplete {
		m.cursor = len(quizStages) - 1
	}
	return m, nil
}

// Init implements tea.Model.
func (m *ChapterModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *ChapterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg)
		return m, nil
	case advanceMsg:
		return m, m.handleAdvance(msg.token)
	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		switch m.view {
		case viewFlashcards:
			return m, m.updateFlashcards(msg)
		case viewChoice:
			return m, m.updateChoice(msg)
		case viewTranslation:
			return m, m.updateTranslation(msg)
		default:
			return m, m.updateOverview(msg)
		}
	}
	if m.view == viewTranslation {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ChapterModel) exercise() model.ExerciseProgress {
	ex, err := m.sess.Exercise()
	if err != nil {
		return model.NewExerciseProgress(m.ch.ID)
	}
	return ex
}

func (m *ChapterModel) updateOverview(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keyBack):
		return tea.Quit
	case key.Matches(msg, keyUp):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keyDown):
		if m.cursor < len(quizStages)-1 {
			m.cursor++
		}
	case key.Matches(msg, keyStartOver):
		if _, err := m.sess.StartOver(); err != nil {
			m.errMsg = err.Error()
			return nil
		}
		m.cursor = 0
		m.notice = "Back to flashcards. Completed stages stay completed."
	case key.Matches(msg, keyOpen):
		return m.openStage(quizStages[m.cursor])
	}
	return nil
}

func (m *ChapterModel) openStage(stage model.Stage) tea.Cmd {
	m.errMsg = ""
	m.notice = ""
	if err := m.sess.OpenStage(stage); err != nil {
		if errors.Is(err, chapter.ErrStageLocked) {
			m.errMsg = "Finish the earlier stages first."
		} else {
			m.errMsg = err.Error()
		}
		return nil
	}
	m.stage = stage
	m.hint = ""
	m.reveal = ""
	switch stage {
	case model.StageFlashcards:
		m.view = viewFlashcards
		m.card = 0
		m.flipped = false
	case model.StageLetterQuiz, model.StageWordQuiz:
		m.view = viewChoice
	case model.StageTranslationQuiz:
		m.view = viewTranslation
		m.input.Reset()
		return m.input.Focus()
	}
	return nil
}

func (m *ChapterModel) leave() {
	m.sess.LeaveStage()
	m.input.Blur()
	m.view = viewOverview
}

func (m *ChapterModel) completeStage() {
	_, err := m.sess.OnChapterStageComplete(m.ch.ID, m.stage)
	m.leave()
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.notice = stageTitles[m.stage] + " complete."
	if m.stage == model.StageTranslationQuiz {
		m.notice = "Chapter complete."
	}
	if idx := m.stage.Index(); idx+1 < len(quizStages) {
		m.cursor = idx + 1
	}
}

func (m *ChapterModel) updateFlashcards(msg tea.KeyMsg) tea.Cmd {
	cards := m.ch.Flashcards
	switch {
	case key.Matches(msg, keyBack):
		m.leave()
	case key.Matches(msg, keyPrevCard):
		if m.card > 0 {
			m.card--
			m.flipped = false
		}
	case key.Matches(msg, keyNextCard):
		if m.card < len(cards)-1 {
			m.card++
			m.flipped = false
		}
	case key.Matches(msg, keyFlip) || msg.Type == tea.KeySpace:
		if len(cards) == 0 {
			return nil
		}
		m.flipped = !m.flipped
		if m.flipped {
			if _, err := m.sess.ViewFlashcard(cards[m.card].ID); err != nil {
				m.errMsg = err.Error()
			}
		}
	case key.Matches(msg, keyDone):
		if !chapter.FlashcardsComplete(m.exercise(), m.ch) {
			m.errMsg = "Flip every card before moving on."
			return nil
		}
		m.errMsg = ""
		m.completeStage()
	}
	return nil
}

func (m *ChapterModel) updateChoice(msg tea.KeyMsg) tea.Cmd {
	q := m.sess.ChoiceQuiz()
	if q == nil {
		m.leave()
		return nil
	}
	switch {
	case key.Matches(msg, keyBack):
		m.leave()
	case key.Matches(msg, keyTryAgain) && q.State() == chapter.AnsweredWrong:
		if err := q.TryAgain(); err != nil {
			m.errMsg = err.Error()
		}
	case key.Matches(msg, keyChoose):
		n, err := strconv.Atoi(msg.String())
		if err != nil || n < 1 || n > len(q.Choices()) {
			return nil
		}
		token, correct, err := q.Select(q.Choices()[n-1])
		if err != nil {
			return nil
		}
		if correct {
			return advanceAfter(chapter.CorrectAdvanceDelay, token)
		}
	}
	return nil
}

func (m *ChapterModel) updateTranslation(msg tea.KeyMsg) tea.Cmd {
	q := m.sess.Translation()
	if q == nil {
		m.leave()
		return nil
	}
	switch {
	case key.Matches(msg, keyBack):
		m.leave()
		return nil
	case key.Matches(msg, keyReveal):
		answer, token, err := q.Reveal()
		if err != nil {
			return nil
		}
		m.reveal = answer
		return advanceAfter(chapter.RevealAdvanceDelay, token)
	case key.Matches(msg, keyTryAgain) && q.State() == chapter.AnsweredWrong:
		if err := q.TryAgain(); err == nil {
			m.input.Reset()
		}
		return nil
	case key.Matches(msg, keySubmit):
		token, correct, err := q.Submit(m.input.Value())
		if err != nil {
			return nil
		}
		if correct {
			return advanceAfter(chapter.CorrectAdvanceDelay, token)
		}
		if h, ok := q.Hint(); ok {
			m.hint = h
		}
		return nil
	}
	if q.State() != chapter.Answering {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *ChapterModel) handleAdvance(token int) tea.Cmd {
	switch m.view {
	case viewChoice:
		q := m.sess.ChoiceQuiz()
		if q == nil || !q.Advance(token) {
			return nil
		}
		if q.Finished() {
			m.completeStage()
		}
	case viewTranslation:
		q := m.sess.Translation()
		if q == nil || !q.Advance(token) {
			return nil
		}
		m.hint = ""
		m.reveal = ""
		m.input.Reset()
		if q.Finished() {
			m.completeStage()
		}
	}
	return nil
}

// View implements tea.Model.
func (m *ChapterModel) View() string {
	header := titleStyle.Render(fmt.Sprintf("Chapter %d · %s", m.ch.ID, m.ch.Title))
	var body string
	var bindings []key.Binding
	switch m.view {
	case viewFlashcards:
		body = m.renderFlashcards()
		bindings = []key.Binding{keyPrevCard, keyNextCard, keyFlip, keyDone, keyBack}
	case viewChoice:
		body = m.renderChoice()
		bindings = []key.Binding{keyChoose, keyTryAgain, keyBack}
	case viewTranslation:
		body = m.renderTranslation()
		bindings = []key.Binding{keySubmit, keyReveal, keyBack}
	default:
		body = m.renderOverview()
		bindings = []key.Binding{keyUp, keyDown, keyOpen, keyStartOver, keyBack}
	}
	if m.notice != "" {
		body += "\n\n" + successStyle.Render(m.notice)
	}
	if m.errMsg != "" {
		body += "\n\n" + failStyle.Render(m.errMsg)
	}
	return m.layout(header, body, "", append(bindings, keyQuit))
}

func (m *ChapterModel) renderOverview() string {
	if !m.ch.HasExercises() {
		return m.ch.Introduction
	}
	ex := m.exercise()
	lines := []string{mutedStyle.Render(m.ch.Description), ""}
	for i, st := range quizStages {
		mark := "  "
		switch {
		case chapter.StageDone(ex, st):
			mark = successStyle.Render("✓ ")
		case !chapter.CanOpen(ex, st):
			mark = mutedStyle.Render("· ")
		}
		label := stageTitles[st]
		if st == model.StageFlashcards {
			label = fmt.Sprintf("%s (%d/%d)", label, len(ex.FlashcardsViewed), len(m.ch.Flashcards))
		}
		row := mark + label
		if i == m.cursor {
			row = activeCardStyle.Render(row)
		} else {
			row = cardStyle.Render(row)
		}
		lines = append(lines, row)
	}
	if m.sess.Aggregator().Learn().CompletedChapters.Has(m.ch.ID) {
		lines = append(lines, "", successStyle.Render("Chapter complete"))
	}
	return strings.Join(lines, "\n")
}

func (m *ChapterModel) renderFlashcards() string {
	cards := m.ch.Flashcards
	if len(cards) == 0 {
		return mutedStyle.Render("No flashcards.")
	}
	c := cards[m.card]
	face := glyphStyle.Render(c.Frame)
	if m.flipped {
		face = glyphStyle.Render(c.Roman)
		if c.Description != "" {
			face += "\n" + mutedStyle.Render(c.Description)
		}
	}
	ex := m.exercise()
	status := fmt.Sprintf("Card %d/%d · viewed %d/%d", m.card+1, len(cards), len(ex.FlashcardsViewed), len(cards))
	return lipgloss.JoinVertical(lipgloss.Center, activeCardStyle.Render(face), "", mutedStyle.Render(status))
}

func (m *ChapterModel) renderChoice() string {
	q := m.sess.ChoiceQuiz()
	if q == nil {
		return ""
	}
	question, ok := q.Question()
	if !ok {
		return successStyle.Render("Done")
	}
	lines := []string{
		mutedStyle.Render(fmt.Sprintf("Question %d/%d", q.Index()+1, q.Len())),
		question.Prompt,
		glyphStyle.Render(question.Display),
	}
	for i, choice := range q.Choices() {
		row := fmt.Sprintf("%d. %s", i+1, choice)
		if choice == q.Selected() {
			switch q.State() {
			case chapter.AnsweredCorrect:
				row = successStyle.Render(row)
			case chapter.AnsweredWrong:
				row = failStyle.Render(row)
			}
		}
		lines = append(lines, row)
	}
	switch q.State() {
	case chapter.AnsweredCorrect:
		lines = append(lines, "", successStyle.Render("Correct!"))
	case chapter.AnsweredWrong:
		lines = append(lines, "", failStyle.Render("Not quite. Press enter to try again."))
	}
	return strings.Join(lines, "\n")
}

func (m *ChapterModel) renderTranslation() string {
	q := m.sess.Translation()
	if q == nil {
		return ""
	}
	question, ok := q.Question()
	if !ok {
		return successStyle.Render("Done")
	}
	lines := []string{
		mutedStyle.Render(fmt.Sprintf("Word %d/%d", q.Index()+1, q.Len())),
		glyphStyle.Render(question.FrameWord),
		m.input.View(),
	}
	if m.hint != "" {
		lines = append(lines, mutedStyle.Render("Starts with "+m.hint))
	}
	switch q.State() {
	case chapter.AnsweredCorrect:
		lines = append(lines, "", successStyle.Render("Correct!"))
	case chapter.AnsweredWrong:
		msg := "Not quite. Press enter to try again."
		if q.CanReveal() {
			msg += " ctrl+r reveals the answer."
		}
		lines = append(lines, "", failStyle.Render(msg))
	case chapter.Revealed:
		lines = append(lines, "", mutedStyle.Render("Answer: "+m.reveal))
	}
	return strings.Join(lines, "\n")
}
