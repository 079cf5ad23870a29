// Package lesson implements the practice/prepare/quiz flow of a single lesson
// and the rules that grade a quiz run.
package lesson

import (
	"fmt"

	"github.com/verte-zerg/frametype/internal/model"
)

const (
	// DefaultAccuracyThreshold is the quiz accuracy gate when the user has not raised it.
	DefaultAccuracyThreshold = 96
	// MaxAccuracyThreshold is the highest gate a user may choose.
	MaxAccuracyThreshold = 100
	// MinCPMThreshold is the fixed quiz speed gate.
	MinCPMThreshold = 20
)

// Recommendation is the suggested next step after a run.
type Recommendation int

const (
	RecommendTakeQuiz Recommendation = iota
	RecommendNextLesson
	RecommendPracticeAgain
)

// String returns the message shown for the recommendation.
func (r Recommendation) String() string {
	switch r {
	case RecommendTakeQuiz:
		return "Recommend: Take the Quiz"
	case RecommendNextLesson:
		return "Recommend: Next Lesson"
	case RecommendPracticeAgain:
		return "Recommend: Practice Again"
	default:
		return "unknown"
	}
}

// Outcome grades a finished run.
type Outcome struct {
	Quiz           bool
	Passed         bool
	Recommendation Recommendation
	// Issues lists unmet quiz criteria, e.g. "accuracy below 96%".
	Issues []string
}

// EffectiveThreshold resolves the accuracy gate for the given settings.
func EffectiveThreshold(settings model.Settings) int {
	if settings.CustomAccuracyThreshold == nil {
		return DefaultAccuracyThreshold
	}
	v := *settings.CustomAccuracyThreshold
	if v < DefaultAccuracyThreshold {
		return DefaultAccuracyThreshold
	}
	if v > MaxAccuracyThreshold {
		return MaxAccuracyThreshold
	}
	return v
}

// Passed applies the dual accuracy and speed gate.
func Passed(res model.RunResult, accuracyThreshold int) bool {
	return res.AccuracyPct >= accuracyThreshold && res.CPM >= MinCPMThreshold
}

// Evaluate grades a run. Practice runs are never graded and always recommend the quiz.
func Evaluate(res model.RunResult, quiz bool, accuracyThreshold int) Outcome {
	if !quiz {
		return Outcome{Recommendation: RecommendTakeQuiz}
	}
	out := Outcome{Quiz: true}
	if res.AccuracyPct < accuracyThreshold {
		out.Issues = append(out.Issues, fmt.Sprintf("accuracy below %d%%", accuracyThreshold))
	}
	if res.CPM < MinCPMThreshold {
		out.Issues = append(out.Issues, fmt.Sprintf("speed below %d CPM", MinCPMThreshold))
	}
	out.Passed = len(out.Issues) == 0
	if out.Passed {
		out.Recommendation = RecommendNextLesson
	} else {
		out.Recommendation = RecommendPracticeAgain
	}
	return out
}

// Dominates reports whether candidate outranks best: higher accuracy, or equal
// accuracy with higher WPM.
func Dominates(candidate, best model.Score) bool {
	if candidate.Accuracy != best.Accuracy {
		return candidate.Accuracy > best.Accuracy
	}
	return candidate.WPM > best.WPM
}

// MergeScore folds a quiz result into the lesson's record. Attempts always
// increase, the latest metrics are kept, Passed stays true once earned, and
// Best only changes when the new result dominates it.
func MergeScore(prev *model.LessonScore, lessonID int, res model.RunResult, passed bool) model.LessonScore {
	latest := model.Score{Accuracy: res.AccuracyPct, CPM: res.CPM, WPM: res.WPM}
	next := model.LessonScore{
		LessonID: lessonID,
		Accuracy: res.AccuracyPct,
		CPM:      res.CPM,
		WPM:      res.WPM,
		Passed:   passed,
		Attempts: 1,
		Best:     &latest,
	}
	if prev == nil {
		return next
	}
	next.Attempts = prev.Attempts + 1
	next.Passed = passed || prev.Passed
	if prev.Best != nil && !Dominates(latest, *prev.Best) {
		best := *prev.Best
		next.Best = &best
	}
	return next
}
