package chapter

import (
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// identity keeps choice order stable so tests can pick by position.
type identity struct{}

func (identity) Shuffle(items []string) []string { return append([]string(nil), items...) }

func testChapter() curriculum.Chapter {
	return curriculum.Chapter{
		ID:    2,
		Title: "Circles",
		Flashcards: []curriculum.Flashcard{
			{ID: "fc-1", Frame: "A", Roman: "A"},
			{ID: "fc-2", Frame: "E", Roman: "E"},
		},
		LetterQuiz: []curriculum.ChoiceQuestion{
			{ID: "lr-1", Display: "A", Choices: []string{"A", "E"}, Answer: "A"},
			{ID: "lr-2", Display: "E", Choices: []string{"A", "E"}, Answer: "E"},
		},
		WordQuiz: []curriculum.ChoiceQuestion{
			{ID: "wr-1", Display: "CUP", Choices: []string{"cup", "cap"}, Answer: "cup"},
		},
		TranslationQuiz: []curriculum.TranslationQuestion{
			{ID: "wt-1", FrameWord: "BUS", Answer: "bus"},
		},
	}
}

func viewAll(t *testing.T, l model.LearnProgress, ch curriculum.Chapter) model.LearnProgress {
	t.Helper()
	for _, id := range ch.FlashcardIDs() {
		var err error
		l, err = MarkFlashcardViewed(l, ch, id)
		if err != nil {
			t.Fatalf("MarkFlashcardViewed %s: %v", id, err)
		}
	}
	return l
}

func complete(t *testing.T, l model.LearnProgress, ch curriculum.Chapter, stage model.Stage) (model.LearnProgress, model.ExerciseProgress) {
	t.Helper()
	l, ex, err := MarkStageComplete(l, ch, stage, now)
	if err != nil {
		t.Fatalf("MarkStageComplete %s: %v", stage, err)
	}
	return l, ex
}

func TestFullChapterCompletes(t *testing.T) {
	ch := testChapter()
	l := viewAll(t, model.NewLearnProgress(), ch)
	l, ex := complete(t, l, ch, model.StageFlashcards)
	if ex.CurrentStage != model.StageLetterQuiz || !ex.FlashcardsReviewed {
		t.Fatalf("unexpected exercise after flashcards: %+v", ex)
	}
	l, _ = complete(t, l, ch, model.StageLetterQuiz)
	l, _ = complete(t, l, ch, model.StageWordQuiz)
	if l.CompletedChapters.Has(2) {
		t.Fatalf("chapter must not complete before the translation quiz")
	}
	l, ex = complete(t, l, ch, model.StageTranslationQuiz)

	if !l.CompletedChapters.Has(2) {
		t.Fatalf("expected chapter 2 in completed chapters")
	}
	if ex.CurrentStage != model.StageComplete {
		t.Fatalf("expected complete, got %s", ex.CurrentStage)
	}
	if ex.CompletedAt == nil || !ex.CompletedAt.Equal(now) {
		t.Fatalf("completedAt = %v", ex.CompletedAt)
	}
}

func TestFlashcardsRequireEveryCard(t *testing.T) {
	ch := testChapter()
	l, err := MarkFlashcardViewed(model.NewLearnProgress(), ch, "fc-1")
	if err != nil {
		t.Fatalf("MarkFlashcardViewed: %v", err)
	}
	l, err = MarkFlashcardViewed(l, ch, "fc-1")
	if err != nil {
		t.Fatalf("repeat view: %v", err)
	}
	if n := len(l.Exercises[2].FlashcardsViewed); n != 1 {
		t.Fatalf("repeat views must not count twice, got %d", n)
	}
	if _, _, err := MarkStageComplete(l, ch, model.StageFlashcards, now); !errors.Is(err, ErrFlashcardsIncomplete) {
		t.Fatalf("expected ErrFlashcardsIncomplete, got %v", err)
	}
	if _, err := MarkFlashcardViewed(l, ch, "nope"); !errors.Is(err, ErrUnknownFlashcard) {
		t.Fatalf("expected ErrUnknownFlashcard, got %v", err)
	}
}

func TestStagesCannotBeSkipped(t *testing.T) {
	ch := testChapter()
	l := model.NewLearnProgress()
	for _, stage := range []model.Stage{model.StageLetterQuiz, model.StageWordQuiz, model.StageTranslationQuiz} {
		if _, _, err := MarkStageComplete(l, ch, stage, now); !errors.Is(err, ErrStageLocked) {
			t.Fatalf("%s: expected ErrStageLocked, got %v", stage, err)
		}
	}
	if _, _, err := MarkStageComplete(l, ch, model.StageComplete, now); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	if _, _, err := MarkStageComplete(l, ch, model.Stage("bogus"), now); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	if len(l.Exercises) != 0 {
		t.Fatalf("rejected transitions must not create state")
	}
}

func TestStageCompletionIsIdempotent(t *testing.T) {
	ch := testChapter()
	l := viewAll(t, model.NewLearnProgress(), ch)
	l, _ = complete(t, l, ch, model.StageFlashcards)
	l, _ = complete(t, l, ch, model.StageLetterQuiz)
	l, ex := complete(t, l, ch, model.StageFlashcards)
	if ex.CurrentStage != model.StageWordQuiz {
		t.Fatalf("repeat completion moved the stage to %s", ex.CurrentStage)
	}
	_ = l
}

func TestStartOverKeepsFlags(t *testing.T) {
	ch := testChapter()
	l := viewAll(t, model.NewLearnProgress(), ch)
	for _, stage := range []model.Stage{model.StageFlashcards, model.StageLetterQuiz, model.StageWordQuiz, model.StageTranslationQuiz} {
		l, _ = complete(t, l, ch, stage)
	}
	completedAt := *l.Exercises[2].CompletedAt

	l = StartOver(l, 2)
	ex := l.Exercises[2]
	if ex.CurrentStage != model.StageFlashcards {
		t.Fatalf("expected flashcards after start over, got %s", ex.CurrentStage)
	}
	if !ex.LetterQuizDone || !ex.WordQuizDone || !ex.TranslationQuizDone || !l.CompletedChapters.Has(2) {
		t.Fatalf("start over must keep completion flags: %+v", ex)
	}
	if !CanOpen(ex, model.StageTranslationQuiz) {
		t.Fatalf("completed stages stay open for review")
	}

	// A review pass walks forward again.
	l, ex = complete(t, l, ch, model.StageFlashcards)
	if ex.CurrentStage != model.StageLetterQuiz {
		t.Fatalf("expected letter quiz, got %s", ex.CurrentStage)
	}
	l, ex = complete(t, l, ch, model.StageTranslationQuiz)
	if ex.CurrentStage != model.StageLetterQuiz {
		t.Fatalf("reviewing a later stage must not skip ahead, got %s", ex.CurrentStage)
	}
	if !ex.CompletedAt.Equal(completedAt) {
		t.Fatalf("completedAt must keep the first completion")
	}
}

func TestEnterAndResume(t *testing.T) {
	ch := testChapter()
	l := Enter(model.NewLearnProgress(), 2)
	if l.LastAccessedChapter != 2 || len(l.Exercises) != 0 {
		t.Fatalf("unexpected learn progress: %+v", l)
	}
	if Resume(l, 2) != model.StageFlashcards {
		t.Fatalf("new chapters start at flashcards")
	}
	l = viewAll(t, l, ch)
	l, _ = complete(t, l, ch, model.StageFlashcards)
	if Resume(l, 2) != model.StageLetterQuiz {
		t.Fatalf("expected resume at letter quiz")
	}
}

func TestIntroChapterHasNoExercises(t *testing.T) {
	ch := curriculum.Chapter{ID: 1, Title: "Intro"}
	if _, _, err := MarkStageComplete(model.NewLearnProgress(), ch, model.StageFlashcards, now); !errors.Is(err, ErrNoExercises) {
		t.Fatalf("expected ErrNoExercises, got %v", err)
	}
}

func TestReducersDoNotMutateInput(t *testing.T) {
	ch := testChapter()
	l := model.NewLearnProgress()
	_, _ = MarkFlashcardViewed(l, ch, "fc-1")
	_ = StartOver(l, 2)
	_ = Enter(l, 2)
	if len(l.Exercises) != 0 || l.LastAccessedChapter != 0 {
		t.Fatalf("input was mutated: %+v", l)
	}
}
