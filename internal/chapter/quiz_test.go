package chapter

import (
	"errors"
	"testing"

	"github.com/verte-zerg/frametype/internal/generator"
)

func TestChoiceQuizFlow(t *testing.T) {
	q := NewChoiceQuiz(testChapter().LetterQuiz, identity{})
	if q.Len() != 2 || q.State() != Answering {
		t.Fatalf("unexpected start: len=%d state=%v", q.Len(), q.State())
	}

	_, correct, err := q.Select("E")
	if err != nil || correct {
		t.Fatalf("expected a wrong answer, got %v %v", correct, err)
	}
	if q.State() != AnsweredWrong || q.Selected() != "E" {
		t.Fatalf("wrong answers wait for try again")
	}
	if _, _, err := q.Select("A"); !errors.Is(err, ErrNotAnswering) {
		t.Fatalf("expected ErrNotAnswering before try again, got %v", err)
	}
	if q.Advance(0) {
		t.Fatalf("a wrong answer must not advance")
	}
	if err := q.TryAgain(); err != nil {
		t.Fatalf("TryAgain: %v", err)
	}
	if q.Index() != 0 {
		t.Fatalf("try again keeps the same question")
	}

	token, correct, err := q.Select("A")
	if err != nil || !correct {
		t.Fatalf("expected a correct answer, got %v %v", correct, err)
	}
	if !q.Advance(token) || q.Index() != 1 {
		t.Fatalf("expected advance to question 2")
	}

	token, _, _ = q.Select("E")
	if !q.Advance(token) {
		t.Fatalf("expected final advance")
	}
	if !q.Finished() {
		t.Fatalf("advancing past the last question finishes the quiz")
	}
	if _, ok := q.Question(); ok {
		t.Fatalf("finished quiz has no question")
	}
}

func TestChoiceQuizCancelDropsAdvance(t *testing.T) {
	q := NewChoiceQuiz(testChapter().LetterQuiz, identity{})
	token, _, _ := q.Select("A")
	q.Cancel()
	if q.Advance(token) {
		t.Fatalf("cancelled advance must not apply")
	}
	if q.Index() != 0 {
		t.Fatalf("index moved after cancel")
	}
}

func TestChoiceQuizShufflesEachQuestion(t *testing.T) {
	qs := testChapter().LetterQuiz
	q := NewChoiceQuiz(qs, generator.NewSeeded(5))
	if len(q.Choices()) != len(qs[0].Choices) {
		t.Fatalf("shuffle lost choices: %v", q.Choices())
	}
	if &q.Choices()[0] == &qs[0].Choices[0] {
		t.Fatalf("choices must be a copy")
	}
}

func TestTranslationQuizHintAndReveal(t *testing.T) {
	q := NewTranslationQuiz(testChapter().TranslationQuiz)
	if _, ok := q.Hint(); ok {
		t.Fatalf("no hint before the first miss")
	}
	if _, _, err := q.Submit("   "); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
	if q.Misses() != 0 {
		t.Fatalf("blank input must not count as a miss")
	}

	if _, correct, _ := q.Submit("bis"); correct {
		t.Fatalf("expected a miss")
	}
	hint, ok := q.Hint()
	if !ok || hint != "b" {
		t.Fatalf("expected hint b, got %q %v", hint, ok)
	}
	if q.CanReveal() {
		t.Fatalf("reveal needs two misses")
	}
	if _, _, err := q.Reveal(); !errors.Is(err, ErrRevealLocked) {
		t.Fatalf("expected ErrRevealLocked, got %v", err)
	}

	if err := q.TryAgain(); err != nil {
		t.Fatalf("TryAgain: %v", err)
	}
	_, _, _ = q.Submit("bas")
	if !q.CanReveal() {
		t.Fatalf("reveal unlocks after two misses")
	}
	answer, token, err := q.Reveal()
	if err != nil || answer != "bus" {
		t.Fatalf("Reveal = %q, %v", answer, err)
	}
	if !q.Advance(token) || !q.Finished() {
		t.Fatalf("a revealed answer completes the question")
	}
}

func TestTranslationQuizFoldsCaseAndSpace(t *testing.T) {
	q := NewTranslationQuiz(testChapter().TranslationQuiz)
	token, correct, err := q.Submit("  BuS \n")
	if err != nil || !correct {
		t.Fatalf("expected a match, got %v %v", correct, err)
	}
	if q.Advance(token + 1) {
		t.Fatalf("stale token must be ignored")
	}
	if !q.Advance(token) || !q.Finished() {
		t.Fatalf("expected quiz to finish")
	}
}

func TestMatchAnswer(t *testing.T) {
	cases := []struct {
		input, answer string
		want          bool
	}{
		{"cup", "cup", true},
		{" CUP ", "cup", true},
		{"cu p", "cup", false},
		{"", "cup", false},
	}
	for _, tc := range cases {
		if got := MatchAnswer(tc.input, tc.answer); got != tc.want {
			t.Errorf("MatchAnswer(%q, %q) = %v, want %v", tc.input, tc.answer, got, tc.want)
		}
	}
}
