// Package chapter tracks the structured exercises of a chapter: flashcards,
// two multiple-choice quizzes and a translation quiz, completed in order.
//
// Reducers take a model.LearnProgress and return an updated copy; the input is
// never modified, so callers may hand them to progress.Aggregator.UpdateLearn.
package chapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
)

var (
	ErrUnknownStage         = errors.New("unknown chapter stage")
	ErrStageLocked          = errors.New("chapter stage is locked")
	ErrFlashcardsIncomplete = errors.New("not every flashcard has been viewed")
	ErrUnknownFlashcard     = errors.New("unknown flashcard")
	ErrNoExercises          = errors.New("chapter has no exercises")
)

// Exercise returns the saved exercise of chapterID, or the initial state when
// the learner has not interacted with it yet.
func Exercise(l model.LearnProgress, chapterID int) model.ExerciseProgress {
	if ex, ok := l.Exercises[chapterID]; ok {
		return ex.Clone()
	}
	return model.NewExerciseProgress(chapterID)
}

// Enter records a visit to chapterID. It does not create exercise state.
func Enter(l model.LearnProgress, chapterID int) model.LearnProgress {
	out := normalize(l)
	out.LastAccessedChapter = chapterID
	return out
}

// Resume returns the stage a learner continues from.
func Resume(l model.LearnProgress, chapterID int) model.Stage {
	return Exercise(l, chapterID).CurrentStage
}

// MarkFlashcardViewed records that cardID was flipped. Repeat views are no-ops.
func MarkFlashcardViewed(l model.LearnProgress, ch curriculum.Chapter, cardID string) (model.LearnProgress, error) {
	if !ch.HasExercises() {
		return l, fmt.Errorf("chapter %d: %w", ch.ID, ErrNoExercises)
	}
	if !hasCard(ch, cardID) {
		return l, fmt.Errorf("%q: %w", cardID, ErrUnknownFlashcard)
	}
	out := normalize(l)
	ex := Exercise(out, ch.ID)
	if ex.FlashcardsViewed.Has(cardID) {
		return out, nil
	}
	ex.FlashcardsViewed[cardID] = struct{}{}
	out.Exercises[ch.ID] = ex
	return out, nil
}

// FlashcardsComplete reports whether every flashcard of ch has been viewed.
func FlashcardsComplete(ex model.ExerciseProgress, ch curriculum.Chapter) bool {
	for _, id := range ch.FlashcardIDs() {
		if !ex.FlashcardsViewed.Has(id) {
			return false
		}
	}
	return true
}

// StageDone reports whether stage has been completed at least once.
func StageDone(ex model.ExerciseProgress, stage model.Stage) bool {
	switch stage {
	case model.StageFlashcards:
		return ex.FlashcardsReviewed
	case model.StageLetterQuiz:
		return ex.LetterQuizDone
	case model.StageWordQuiz:
		return ex.WordQuizDone
	case model.StageTranslationQuiz:
		return ex.TranslationQuizDone
	case model.StageComplete:
		return ex.CompletedAt != nil
	}
	return false
}

// CanOpen reports whether stage may be worked on. The current stage and any
// earlier stage are open, as is a completed stage and the one right after it.
func CanOpen(ex model.ExerciseProgress, stage model.Stage) bool {
	idx := stage.Index()
	if idx < 0 || stage == model.StageComplete {
		return false
	}
	if idx <= ex.CurrentStage.Index() || StageDone(ex, stage) {
		return true
	}
	return idx > 0 && StageDone(ex, model.Stages[idx-1])
}

// MarkStageComplete records stage as done for ch. The current stage moves to
// the next one only when stage is the current stage, so it never skips ahead
// or moves backward. Completing the translation quiz always adds the chapter
// to the completed set.
func MarkStageComplete(l model.LearnProgress, ch curriculum.Chapter, stage model.Stage, now time.Time) (model.LearnProgress, model.ExerciseProgress, error) {
	if !stage.Valid() || stage == model.StageComplete {
		return l, Exercise(l, ch.ID), fmt.Errorf("%q: %w", stage, ErrUnknownStage)
	}
	if !ch.HasExercises() {
		return l, Exercise(l, ch.ID), fmt.Errorf("chapter %d: %w", ch.ID, ErrNoExercises)
	}
	ex := Exercise(l, ch.ID)
	if !CanOpen(ex, stage) {
		return l, ex, fmt.Errorf("%s in chapter %d: %w", stage, ch.ID, ErrStageLocked)
	}
	if stage == model.StageFlashcards && !FlashcardsComplete(ex, ch) {
		return l, ex, ErrFlashcardsIncomplete
	}

	out := normalize(l)
	switch stage {
	case model.StageFlashcards:
		ex.FlashcardsReviewed = true
	case model.StageLetterQuiz:
		ex.LetterQuizDone = true
	case model.StageWordQuiz:
		ex.WordQuizDone = true
	case model.StageTranslationQuiz:
		ex.TranslationQuizDone = true
		if ex.CompletedAt == nil {
			t := now
			ex.CompletedAt = &t
		}
		out.CompletedChapters[ch.ID] = struct{}{}
	}
	if ex.CurrentStage == stage {
		ex.CurrentStage = model.Stages[stage.Index()+1]
	}
	out.Exercises[ch.ID] = ex
	return out, ex.Clone(), nil
}

// StartOver rewinds chapterID to flashcards for a review pass. Completion
// flags and the completed-chapter set are kept.
func StartOver(l model.LearnProgress, chapterID int) model.LearnProgress {
	out := normalize(l)
	ex := Exercise(out, chapterID)
	ex.CurrentStage = model.StageFlashcards
	out.Exercises[chapterID] = ex
	return out
}

func hasCard(ch curriculum.Chapter, id string) bool {
	for _, card := range ch.Flashcards {
		if card.ID == id {
			return true
		}
	}
	return false
}

func normalize(l model.LearnProgress) model.LearnProgress {
	// Clone allocates every set and map, including ones missing from l.
	return l.Clone()
}
