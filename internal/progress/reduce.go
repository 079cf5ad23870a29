package progress

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/model"
)

// ErrInvalidThreshold is returned for an accuracy threshold outside [96,100].
var ErrInvalidThreshold = errors.New("accuracy threshold out of range")

// QuizOutcome is the result of folding a quiz into the aggregate.
type QuizOutcome struct {
	Passed    bool
	Score     model.LessonScore
	NewBadges []Badge
}

// RecordKeystrokeAccuracy counts one drill attempt for char and recomputes its accuracy.
func RecordKeystrokeAccuracy(p model.UserProgress, char string, correct bool) model.UserProgress {
	out := p.Clone()
	out.TotalAttempts[char]++
	if correct {
		out.CorrectAttempts[char]++
	}
	total := out.TotalAttempts[char]
	out.Accuracy[char] = int(math.Round(float64(out.CorrectAttempts[char]) / float64(total) * 100))
	return out
}

// CompleteLessonQuiz records a quiz result for lessonID. A pass adds the lesson
// to CompletedLevels and moves CurrentLevel to the next lesson; badges are
// re-evaluated against lessonIDs.
func CompleteLessonQuiz(p model.UserProgress, lessonIDs []int, lessonID int, res model.RunResult) (model.UserProgress, QuizOutcome) {
	out := p.Clone()
	passed := lesson.Passed(res, lesson.EffectiveThreshold(out.Settings))

	var prev *model.LessonScore
	if existing, ok := out.LessonScores[lessonID]; ok {
		prev = &existing
	}
	score := lesson.MergeScore(prev, lessonID, res, passed)
	out.LessonScores[lessonID] = score

	if passed {
		out.CompletedLevels[lessonID] = struct{}{}
		if next, ok := nextID(lessonIDs, lessonID); ok && next > out.CurrentLevel {
			out.CurrentLevel = next
		}
	}

	before := out.Badges
	out.Badges = EvaluateBadges(out, lessonIDs)
	return out, QuizOutcome{
		Passed:    passed,
		Score:     score,
		NewBadges: NewlyEarned(before, out.Badges),
	}
}

// CompleteLevel marks a practice-arena level as cleared.
func CompleteLevel(p model.UserProgress, levelID int) model.UserProgress {
	out := p.Clone()
	out.ArenaLevels[levelID] = struct{}{}
	return out
}

// UpdateSettings merges patch into the settings. Nil fields are left unchanged.
func UpdateSettings(p model.UserProgress, patch model.Settings) (model.UserProgress, error) {
	if v := patch.CustomAccuracyThreshold; v != nil {
		if *v < lesson.DefaultAccuracyThreshold || *v > lesson.MaxAccuracyThreshold {
			return p, fmt.Errorf("%w: %d", ErrInvalidThreshold, *v)
		}
	}
	out := p.Clone()
	if v := patch.CustomAccuracyThreshold; v != nil {
		threshold := *v
		out.Settings.CustomAccuracyThreshold = &threshold
	}
	return out, nil
}

// SetCurrentLevel selects the lesson the user is working on.
func SetCurrentLevel(p model.UserProgress, lessonID int) model.UserProgress {
	out := p.Clone()
	out.CurrentLevel = lessonID
	return out
}

// Normalize fills missing collections on an aggregate loaded from storage.
func Normalize(p model.UserProgress) model.UserProgress {
	def := model.NewUserProgress()
	if p.CurrentLevel < 1 {
		p.CurrentLevel = def.CurrentLevel
	}
	if p.CompletedLevels == nil {
		p.CompletedLevels = def.CompletedLevels
	}
	if p.ArenaLevels == nil {
		p.ArenaLevels = def.ArenaLevels
	}
	if p.Accuracy == nil {
		p.Accuracy = def.Accuracy
	}
	if p.TotalAttempts == nil {
		p.TotalAttempts = def.TotalAttempts
	}
	if p.CorrectAttempts == nil {
		p.CorrectAttempts = def.CorrectAttempts
	}
	if p.LessonScores == nil {
		p.LessonScores = def.LessonScores
	}
	if p.Badges == nil {
		p.Badges = def.Badges
	}
	return p
}

// NormalizeLearn fills missing collections on chapter progress loaded from storage.
func NormalizeLearn(l model.LearnProgress) model.LearnProgress {
	if l.CompletedChapters == nil {
		l.CompletedChapters = model.IntSet{}
	}
	if l.Exercises == nil {
		l.Exercises = map[int]model.ExerciseProgress{}
	}
	for id, ex := range l.Exercises {
		if ex.FlashcardsViewed == nil {
			ex.FlashcardsViewed = model.StringSet{}
		}
		if !ex.CurrentStage.Valid() {
			ex.CurrentStage = model.StageFlashcards
		}
		l.Exercises[id] = ex
	}
	return l
}

func nextID(ids []int, id int) (int, bool) {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	for _, candidate := range sorted {
		if candidate > id {
			return candidate, true
		}
	}
	return 0, false
}
