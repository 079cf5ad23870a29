// Package storetest holds behavior checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/store"
)

// Run exercises a backend created by open. Each subtest gets a fresh backend.
func Run(t *testing.T, open func(t *testing.T) store.Backend) {
	t.Run("ProgressNotFound", func(t *testing.T) {
		b := open(t)
		if _, err := b.LoadProgress(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := b.LoadChapterProgress(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for chapters, got %v", err)
		}
	})
	t.Run("ProgressRoundTrip", func(t *testing.T) { testProgressRoundTrip(t, open(t)) })
	t.Run("ProgressOverwrite", func(t *testing.T) { testProgressOverwrite(t, open(t)) })
	t.Run("ChapterRoundTrip", func(t *testing.T) { testChapterRoundTrip(t, open(t)) })
	t.Run("Runs", func(t *testing.T) { testRuns(t, open(t)) })
	t.Run("DeleteUser", func(t *testing.T) { testDeleteUser(t, open(t)) })
}

func sampleProgress() model.UserProgress {
	p := model.NewUserProgress()
	p.CurrentLevel = 4
	p.CompletedLevels = model.NewIntSet(1, 2, 3)
	p.ArenaLevels = model.NewIntSet(2)
	p.TotalAttempts["F"] = 4
	p.CorrectAttempts["F"] = 3
	p.Accuracy["F"] = 75
	p.LessonScores[1] = model.LessonScore{
		LessonID: 1, Accuracy: 97, CPM: 150, WPM: 30, Passed: true, Attempts: 2,
		Best: &model.Score{Accuracy: 98, CPM: 140, WPM: 28},
	}
	p.LessonScores[5] = model.LessonScore{LessonID: 5, Accuracy: 50, CPM: 10, WPM: 2, Attempts: 1}
	p.Badges = model.NewStringSet("steady")
	threshold := 98
	p.Settings.CustomAccuracyThreshold = &threshold
	return p
}

func testProgressRoundTrip(t *testing.T, b store.Backend) {
	ctx := context.Background()
	want := sampleProgress()
	if err := b.SaveProgress(ctx, "u1", want); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	got, err := b.LoadProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadProgress: %v", err)
	}
	if got.CurrentLevel != 4 {
		t.Fatalf("current level = %d", got.CurrentLevel)
	}
	if len(got.CompletedLevels) != 3 || !got.CompletedLevels.Has(2) {
		t.Fatalf("completed levels = %v", got.CompletedLevels.Sorted())
	}
	if !got.ArenaLevels.Has(2) {
		t.Fatalf("arena levels = %v", got.ArenaLevels.Sorted())
	}
	if got.Accuracy["F"] != 75 || got.TotalAttempts["F"] != 4 || got.CorrectAttempts["F"] != 3 {
		t.Fatalf("char accuracy not restored: %v %v %v", got.Accuracy, got.TotalAttempts, got.CorrectAttempts)
	}
	score := got.LessonScores[1]
	if !score.Passed || score.Attempts != 2 || score.Best == nil || score.Best.WPM != 28 {
		t.Fatalf("lesson score not restored: %+v", score)
	}
	if got.LessonScores[5].Best != nil {
		t.Fatalf("expected no best score for lesson 5")
	}
	if !got.Badges.Has("steady") {
		t.Fatalf("badges = %v", got.Badges.Sorted())
	}
	if got.Settings.CustomAccuracyThreshold == nil || *got.Settings.CustomAccuracyThreshold != 98 {
		t.Fatalf("threshold not restored")
	}
}

func testProgressOverwrite(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if err := b.SaveProgress(ctx, "u1", sampleProgress()); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	next := model.NewUserProgress()
	next.CompletedLevels = model.NewIntSet(7)
	if err := b.SaveProgress(ctx, "u1", next); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	got, err := b.LoadProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadProgress: %v", err)
	}
	if len(got.CompletedLevels) != 1 || !got.CompletedLevels.Has(7) {
		t.Fatalf("expected only lesson 7, got %v", got.CompletedLevels.Sorted())
	}
	if len(got.LessonScores) != 0 || len(got.Badges) != 0 || got.Settings.CustomAccuracyThreshold != nil {
		t.Fatalf("stale rows survived overwrite: %+v", got)
	}
}

func testChapterRoundTrip(t *testing.T, b store.Backend) {
	ctx := context.Background()
	done := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	l := model.NewLearnProgress()
	l.LastAccessedChapter = 3
	l.CompletedChapters = model.NewIntSet(2)
	ex := model.NewExerciseProgress(2)
	ex.CurrentStage = model.StageComplete
	ex.FlashcardsReviewed = true
	ex.FlashcardsViewed = model.NewStringSet("2-fc-1", "2-fc-2")
	ex.LetterQuizDone = true
	ex.WordQuizDone = true
	ex.TranslationQuizDone = true
	ex.CompletedAt = &done
	l.Exercises[2] = ex
	l.Exercises[3] = model.NewExerciseProgress(3)

	if err := b.SaveChapterProgress(ctx, "u1", l); err != nil {
		t.Fatalf("SaveChapterProgress: %v", err)
	}
	got, err := b.LoadChapterProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadChapterProgress: %v", err)
	}
	if got.LastAccessedChapter != 3 || !got.CompletedChapters.Has(2) {
		t.Fatalf("unexpected learn progress: %+v", got)
	}
	gotEx := got.Exercises[2]
	if gotEx.CurrentStage != model.StageComplete || !gotEx.TranslationQuizDone || len(gotEx.FlashcardsViewed) != 2 {
		t.Fatalf("unexpected exercise: %+v", gotEx)
	}
	if gotEx.CompletedAt == nil || !gotEx.CompletedAt.Equal(done) {
		t.Fatalf("completedAt = %v", gotEx.CompletedAt)
	}
	if got.Exercises[3].CurrentStage != model.StageFlashcards {
		t.Fatalf("unexpected chapter 3 stage %q", got.Exercises[3].CurrentStage)
	}
}

func testRuns(t *testing.T, b store.Backend) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	runs := []model.RunRecord{
		{ID: "r1", UserID: "u1", Kind: model.RunQuiz, LessonID: 1, StartedAt: base, EndedAt: base.Add(time.Minute),
			Result: model.RunResult{AccuracyPct: 90, CPM: 100, WPM: 20},
			Chars:  []model.CharStats{{Char: "f", Correct: 3, Incorrect: 1}}},
		{ID: "r2", UserID: "u1", Kind: model.RunPractice, LessonID: 1, StartedAt: base.Add(2 * time.Minute), EndedAt: base.Add(3 * time.Minute),
			Result: model.RunResult{AccuracyPct: 100, CPM: 120, WPM: 24},
			Chars:  []model.CharStats{{Char: "f", Correct: 2}, {Char: "j", Correct: 1, Incorrect: 2}}},
		{ID: "r3", UserID: "u2", Kind: model.RunQuiz, LessonID: 2, StartedAt: base, EndedAt: base.Add(time.Minute),
			Chars: []model.CharStats{{Char: "z", Incorrect: 9}}},
	}
	for _, run := range runs {
		if err := b.InsertRun(ctx, run); err != nil {
			t.Fatalf("InsertRun %s: %v", run.ID, err)
		}
	}

	all, err := b.ListRuns(ctx, model.ReportConfig{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 2 || all[0].RunID != "r1" || all[1].RunID != "r2" {
		t.Fatalf("unexpected runs: %+v", all)
	}
	if all[0].Result.WPM != 20 || all[0].Kind != model.RunQuiz {
		t.Fatalf("run fields not restored: %+v", all[0])
	}
	quizzes, err := b.ListRuns(ctx, model.ReportConfig{UserID: "u1", Kind: model.RunQuiz})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(quizzes) != 1 {
		t.Fatalf("expected 1 quiz run, got %d", len(quizzes))
	}

	weak, err := b.GetWeakChars(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("GetWeakChars: %v", err)
	}
	byChar := map[string]model.CharAggregate{}
	for _, agg := range weak {
		byChar[agg.Char] = agg
	}
	if byChar["f"].Correct != 2 || byChar["j"].Incorrect != 2 || len(byChar) != 2 {
		t.Fatalf("weak chars should only cover the latest run: %+v", weak)
	}

	aggs, err := b.ListCharAggregatesForRuns(ctx, []string{"r1", "r2"})
	if err != nil {
		t.Fatalf("ListCharAggregatesForRuns: %v", err)
	}
	for _, agg := range aggs {
		if agg.Char == "f" && (agg.Correct != 5 || agg.Incorrect != 1) {
			t.Fatalf("unexpected f aggregate: %+v", agg)
		}
		if agg.Char == "z" {
			t.Fatalf("aggregate leaked another user's run")
		}
	}
}

func testDeleteUser(t *testing.T, b store.Backend) {
	ctx := context.Background()
	if err := b.SaveProgress(ctx, "u1", sampleProgress()); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	if err := b.SaveChapterProgress(ctx, "u1", model.NewLearnProgress()); err != nil {
		t.Fatalf("SaveChapterProgress: %v", err)
	}
	if err := b.InsertRun(ctx, model.RunRecord{ID: "r1", UserID: "u1", Kind: model.RunQuiz, EndedAt: time.Now()}); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if err := b.SaveProgress(ctx, "u2", model.NewUserProgress()); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}
	if err := b.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := b.LoadProgress(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := b.LoadChapterProgress(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected chapter ErrNotFound after delete, got %v", err)
	}
	runs, err := b.ListRuns(ctx, model.ReportConfig{UserID: "u1"})
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected no runs after delete, got %v %v", runs, err)
	}
	if _, err := b.LoadProgress(ctx, "u2"); err != nil {
		t.Fatalf("other users must survive: %v", err)
	}
}
