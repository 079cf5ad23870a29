package stats

import (
	"fmt"
	"io"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
)

// LessonStatus is the label shown for a lesson in progress listings.
func LessonStatus(p model.UserProgress, lessonID int) string {
	switch {
	case p.CompletedLevels.Has(lessonID):
		return "passed"
	case p.LessonScores[lessonID].Attempts > 0:
		return "attempted"
	case lessonID == p.CurrentLevel:
		return "current"
	default:
		return "-"
	}
}

// LessonRows returns the header and one row per lesson with the last and
// best quiz scores.
func LessonRows(lessons []curriculum.Lesson, p model.UserProgress) ([]string, [][]string) {
	headers := []string{"#", "Lesson", "Status", "Attempts", "Last", "Best Acc", "Best WPM"}
	rows := make([][]string, 0, len(lessons))
	for _, l := range lessons {
		score := p.LessonScores[l.ID]
		last, bestAcc, bestWPM := "-", "-", "-"
		if score.Attempts > 0 {
			last = fmt.Sprintf("%d%% %dwpm", score.Accuracy, score.WPM)
		}
		if score.Best != nil {
			bestAcc = fmt.Sprintf("%d%%", score.Best.Accuracy)
			bestWPM = fmt.Sprintf("%d", score.Best.WPM)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", l.ID),
			l.Name,
			LessonStatus(p, l.ID),
			fmt.Sprintf("%d", score.Attempts),
			last,
			bestAcc,
			bestWPM,
		})
	}
	return headers, rows
}

// RenderLessons prints the lesson table.
func RenderLessons(w io.Writer, lessons []curriculum.Lesson, p model.UserProgress) error {
	if _, err := fmt.Fprintf(w, "Lessons (%d/%d passed, gate %d%%)\n", len(p.CompletedLevels), len(lessons), lesson.EffectiveThreshold(p.Settings)); err != nil {
		return err
	}
	headers, rows := LessonRows(lessons, p)
	return writeTable(w, headers, rows, map[int]bool{0: true, 3: true, 5: true, 6: true})
}

// BadgeRows returns one row per badge; earned badges are marked "*".
func BadgeRows(p model.UserProgress) [][]string {
	rows := make([][]string, 0, len(progress.Badges))
	for _, b := range progress.Badges {
		mark := " "
		if p.Badges.Has(b.ID) {
			mark = "*"
		}
		rows = append(rows, []string{mark, b.Title, b.Description})
	}
	return rows
}

// RenderBadges prints every badge and whether it has been earned.
func RenderBadges(w io.Writer, p model.UserProgress) error {
	if _, err := fmt.Fprintf(w, "Badges (%d/%d)\n", len(p.Badges), len(progress.Badges)); err != nil {
		return err
	}
	return writeTable(w, nil, BadgeRows(p), nil)
}

// ChapterRows returns the header and the stage reached in each chapter.
func ChapterRows(chapters []curriculum.Chapter, l model.LearnProgress) ([]string, [][]string) {
	rows := make([][]string, 0, len(chapters))
	for _, ch := range chapters {
		stage := "-"
		if ex, ok := l.Exercises[ch.ID]; ok {
			stage = string(ex.CurrentStage)
		}
		if !ch.HasExercises() {
			stage = "reading"
		}
		done := ""
		if l.CompletedChapters.Has(ch.ID) {
			done = "done"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", ch.ID), ch.Title, stage, done})
	}
	return []string{"#", "Chapter", "Stage", ""}, rows
}

// RenderChapters prints the chapter table.
func RenderChapters(w io.Writer, chapters []curriculum.Chapter, l model.LearnProgress) error {
	if _, err := fmt.Fprintf(w, "Chapters (%d completed)\n", len(l.CompletedChapters)); err != nil {
		return err
	}
	headers, rows := ChapterRows(chapters, l)
	return writeTable(w, headers, rows, map[int]bool{0: true})
}
