package tui

import (
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/frametype/internal/chapter"
	"github.com/verte-zerg/frametype/internal/model"
)

func flipAllCards(t *testing.T, m *ChapterModel) {
	t.Helper()
	for i := range m.ch.Flashcards {
		m.Update(keyOf(tea.KeySpace))
		if i < len(m.ch.Flashcards)-1 {
			m.Update(keyOf(tea.KeyRight))
		}
	}
}

func TestChapterFlashcardsGateTheStage(t *testing.T) {
	sess := newTestSession(t)
	m, err := NewChapterModel(sess, 2)
	if err != nil {
		t.Fatalf("NewChapterModel: %v", err)
	}
	m.Update(keyOf(tea.KeyEnter))
	if m.view != viewFlashcards {
		t.Fatalf("expected flashcards view, got %d", m.view)
	}
	m.Update(keyOf(tea.KeyEnter))
	if m.view != viewFlashcards || m.errMsg == "" {
		t.Fatalf("done must be refused before every card is flipped")
	}

	flipAllCards(t, m)
	m.Update(keyOf(tea.KeyEnter))
	if m.view != viewOverview {
		t.Fatalf("expected overview after flashcards, got %d", m.view)
	}
	ex, err := sess.Exercise()
	if err != nil {
		t.Fatalf("Exercise: %v", err)
	}
	if !ex.FlashcardsReviewed || ex.CurrentStage != model.StageLetterQuiz {
		t.Fatalf("unexpected exercise %+v", ex)
	}
	if m.cursor != 1 {
		t.Fatalf("cursor should move to the letter quiz, got %d", m.cursor)
	}
}

func TestChapterLockedStage(t *testing.T) {
	sess := newTestSession(t)
	m, err := NewChapterModel(sess, 2)
	if err != nil {
		t.Fatalf("NewChapterModel: %v", err)
	}
	m.Update(keyOf(tea.KeyDown))
	m.Update(keyOf(tea.KeyDown))
	m.Update(keyOf(tea.KeyEnter))
	if m.view != viewOverview || m.errMsg == "" {
		t.Fatalf("word quiz must be locked on a fresh chapter")
	}
}

func TestChapterChoiceAdvanceIgnoresStaleToken(t *testing.T) {
	sess := newTestSession(t)
	m, err := NewChapterModel(sess, 2)
	if err != nil {
		t.Fatalf("NewChapterModel: %v", err)
	}
	m.Update(keyOf(tea.KeyEnter))
	flipAllCards(t, m)
	m.Update(keyOf(tea.KeyEnter))
	m.Update(keyOf(tea.KeyEnter))
	if m.view != viewChoice {
		t.Fatalf("expected letter quiz, got %d", m.view)
	}
	q := sess.ChoiceQuiz()
	question, _ := q.Question()

	wrong := -1
	for i, c := range q.Choices() {
		if c != question.Answer {
			wrong = i
			break
		}
	}
	if wrong >= 0 {
		m.Update(runes(strconv.Itoa(wrong + 1)))
		if q.State() != chapter.AnsweredWrong {
			t.Fatalf("expected a wrong answer, got %d", q.State())
		}
		m.Update(keyOf(tea.KeyEnter))
	}

	for i, c := range q.Choices() {
		if c == question.Answer {
			_, cmd := m.Update(runes(strconv.Itoa(i + 1)))
			if cmd == nil {
				t.Fatalf("a correct answer should schedule an advance")
			}
		}
	}
	if q.State() != chapter.AnsweredCorrect {
		t.Fatalf("expected a correct answer, got %d", q.State())
	}
	m.Update(advanceMsg{token: -1})
	if q.Index() != 0 {
		t.Fatalf("stale advance moved the quiz")
	}
	m.Update(keyOf(tea.KeyEsc))
	if m.view != viewOverview || sess.ChoiceQuiz() != nil {
		t.Fatalf("esc should leave the quiz")
	}
}

func TestChapterTranslationHintAndReveal(t *testing.T) {
	sess := newTestSession(t)
	m, err := NewChapterModel(sess, 2)
	if err != nil {
		t.Fatalf("NewChapterModel: %v", err)
	}
	m.Update(keyOf(tea.KeyEnter))
	flipAllCards(t, m)
	m.Update(keyOf(tea.KeyEnter))
	for _, st := range []model.Stage{model.StageLetterQuiz, model.StageWordQuiz} {
		if _, err := sess.OnChapterStageComplete(2, st); err != nil {
			t.Fatalf("complete %s: %v", st, err)
		}
	}
	m.cursor = 3
	m.Update(keyOf(tea.KeyEnter))
	if m.view != viewTranslation {
		t.Fatalf("expected translation view, got %d", m.view)
	}
	q := sess.Translation()

	m.Update(keyOf(tea.KeyEnter))
	if q.Misses() != 0 {
		t.Fatalf("blank submit must not count as a miss")
	}
	m.Update(runes("ab"))
	m.Update(keyOf(tea.KeyCtrlH))
	if m.hint != "" || m.input.Value() != "a" {
		t.Fatalf("ctrl+h must edit the answer, got hint=%q input=%q", m.hint, m.input.Value())
	}
	m.input.Reset()
	for i := 0; i < chapter.RevealAfterMisses; i++ {
		m.Update(runes("zzz"))
		m.Update(keyOf(tea.KeyEnter))
		if q.State() != chapter.AnsweredWrong {
			t.Fatalf("expected a miss, got %d", q.State())
		}
		if m.hint == "" || !strings.Contains(m.View(), "Starts with "+m.hint) {
			t.Fatalf("hint should show after a miss, got %q", m.hint)
		}
		if i < chapter.RevealAfterMisses-1 {
			m.Update(keyOf(tea.KeyEnter))
		}
	}
	_, cmd := m.Update(keyOf(tea.KeyCtrlR))
	if cmd == nil || q.State() != chapter.Revealed || m.reveal == "" {
		t.Fatalf("reveal should be available after %d misses", chapter.RevealAfterMisses)
	}
}
