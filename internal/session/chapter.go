package session

import (
	"errors"
	"fmt"

	"github.com/verte-zerg/frametype/internal/chapter"
	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
)

var ErrNoChapter = errors.New("no active chapter")

// EnterChapter opens chapterID in its neutral overview, discarding any run or
// quiz in progress, and returns the stage the learner resumes at.
func (s *Session) EnterChapter(chapterID int) (curriculum.Chapter, model.Stage, error) {
	ch, err := s.cur.Chapter(chapterID)
	if err != nil {
		return curriculum.Chapter{}, "", err
	}
	s.discard()
	s.chapterID = chapterID
	l, _ := s.agg.UpdateLearn(func(l model.LearnProgress) (model.LearnProgress, error) {
		return chapter.Enter(l, chapterID), nil
	})
	return ch, chapter.Resume(l, chapterID), nil
}

// Exercise returns the saved state of the active chapter.
func (s *Session) Exercise() (model.ExerciseProgress, error) {
	if s.chapterID == 0 {
		return model.ExerciseProgress{}, ErrNoChapter
	}
	return chapter.Exercise(s.agg.Learn(), s.chapterID), nil
}

// ViewFlashcard records a flip of cardID in the active chapter.
func (s *Session) ViewFlashcard(cardID string) (model.ExerciseProgress, error) {
	ch, err := s.activeChapter()
	if err != nil {
		return model.ExerciseProgress{}, err
	}
	l, err := s.agg.UpdateLearn(func(l model.LearnProgress) (model.LearnProgress, error) {
		return chapter.MarkFlashcardViewed(l, ch, cardID)
	})
	return chapter.Exercise(l, ch.ID), err
}

// OpenStage starts the runner for a quiz stage of the active chapter,
// discarding any quiz in progress. Flashcards need no runner.
func (s *Session) OpenStage(stage model.Stage) error {
	ch, err := s.activeChapter()
	if err != nil {
		return err
	}
	if !chapter.CanOpen(chapter.Exercise(s.agg.Learn(), ch.ID), stage) {
		return fmt.Errorf("%s in chapter %d: %w", stage, ch.ID, chapter.ErrStageLocked)
	}
	s.discardQuiz()
	switch stage {
	case model.StageFlashcards:
	case model.StageLetterQuiz:
		s.choiceQuiz = chapter.NewChoiceQuiz(ch.LetterQuiz, s.gen)
	case model.StageWordQuiz:
		s.choiceQuiz = chapter.NewChoiceQuiz(ch.WordQuiz, s.gen)
	case model.StageTranslationQuiz:
		s.translation = chapter.NewTranslationQuiz(ch.TranslationQuiz)
	default:
		return fmt.Errorf("%q: %w", stage, chapter.ErrUnknownStage)
	}
	return nil
}

// LeaveStage returns to the chapter overview, dropping pending advances.
func (s *Session) LeaveStage() {
	s.discardQuiz()
}

// OnChapterStageComplete records stage as completed for chapterID.
func (s *Session) OnChapterStageComplete(chapterID int, stage model.Stage) (model.ExerciseProgress, error) {
	ch, err := s.cur.Chapter(chapterID)
	if err != nil {
		return model.ExerciseProgress{}, err
	}
	var ex model.ExerciseProgress
	_, err = s.agg.UpdateLearn(func(l model.LearnProgress) (model.LearnProgress, error) {
		var next model.LearnProgress
		var err error
		next, ex, err = chapter.MarkStageComplete(l, ch, stage, s.now())
		return next, err
	})
	if err != nil {
		return chapter.Exercise(s.agg.Learn(), chapterID), err
	}
	if chapterID == s.chapterID {
		s.discardQuiz()
	}
	return ex, nil
}

// StartOver rewinds the active chapter to flashcards.
func (s *Session) StartOver() (model.ExerciseProgress, error) {
	ch, err := s.activeChapter()
	if err != nil {
		return model.ExerciseProgress{}, err
	}
	s.discardQuiz()
	l, _ := s.agg.UpdateLearn(func(l model.LearnProgress) (model.LearnProgress, error) {
		return chapter.StartOver(l, ch.ID), nil
	})
	return chapter.Exercise(l, ch.ID), nil
}

func (s *Session) activeChapter() (curriculum.Chapter, error) {
	if s.chapterID == 0 {
		return curriculum.Chapter{}, ErrNoChapter
	}
	return s.cur.Chapter(s.chapterID)
}
