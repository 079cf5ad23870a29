package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
)

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 10}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "+++" {
		t.Fatalf("flat series must keep its length, got %q", got)
	}
	if Sparkline(nil) != "" {
		t.Fatalf("empty series renders nothing")
	}
}

func TestResample(t *testing.T) {
	got := Resample([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected resample: %v", got)
	}
	if len(Resample([]float64{1, 2}, 10)) != 2 {
		t.Fatalf("short series must not grow")
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6}, 2)
	want := []float64{2, 3, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected average: %v", got)
		}
	}
}

func TestWeakestChars(t *testing.T) {
	aggs := []model.CharAggregate{
		{Char: "A", Correct: 9, Incorrect: 1},
		{Char: "B", Correct: 1, Incorrect: 1},
		{Char: "C"},
		{Char: "D", Correct: 3, Incorrect: 1},
	}
	got := WeakestChars(aggs, 2)
	if len(got) != 2 || got[0] != "B" || got[1] != "D" {
		t.Fatalf("unexpected weakest: %v", got)
	}
	runes := WeakRunes(SelectWeakChars(aggs, 1))
	if _, ok := runes['b']; !ok || len(runes) != 1 {
		t.Fatalf("expected lower-cased b, got %v", runes)
	}
}

func TestAggregatesFromProgress(t *testing.T) {
	p := model.NewUserProgress()
	p.TotalAttempts["F"] = 4
	p.CorrectAttempts["F"] = 3
	aggs := AggregatesFromProgress(p)
	if len(aggs) != 1 || aggs[0].Correct != 3 || aggs[0].Incorrect != 1 {
		t.Fatalf("unexpected aggregates: %+v", aggs)
	}
}

func TestRenderTrends(t *testing.T) {
	runs := []model.RunAggregate{
		{RunID: "1", Kind: model.RunQuiz, LessonID: 2, Result: model.RunResult{WPM: 10}},
		{RunID: "2", Kind: model.RunPractice, LessonID: 2, Result: model.RunResult{WPM: 99}},
		{RunID: "3", Kind: model.RunQuiz, LessonID: 2, Result: model.RunResult{WPM: 30}},
	}
	var buf bytes.Buffer
	if err := RenderTrends(&buf, runs, 1, 40); err != nil {
		t.Fatalf("RenderTrends: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Lesson 2") || !strings.Contains(out, " 30.0") {
		t.Fatalf("unexpected trend output:\n%s", out)
	}
	if strings.Contains(out, "99") {
		t.Fatalf("practice runs must not appear in quiz trends")
	}
}

func TestRenderLessonsAndBadges(t *testing.T) {
	lessons := []curriculum.Lesson{{ID: 1, Name: "Home Row"}, {ID: 2, Name: "Reach"}}
	p := model.NewUserProgress()
	p.CompletedLevels = model.NewIntSet(1)
	p.CurrentLevel = 2
	p.LessonScores[1] = model.LessonScore{LessonID: 1, Accuracy: 97, WPM: 31, Attempts: 2, Passed: true,
		Best: &model.Score{Accuracy: 98, WPM: 33}}
	p.Badges = model.NewStringSet("completionist")

	var buf bytes.Buffer
	if err := RenderLessons(&buf, lessons, p); err != nil {
		t.Fatalf("RenderLessons: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1/2 passed", "gate 96%", "passed", "current", "98%", "97% 31wpm"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := RenderBadges(&buf, p); err != nil {
		t.Fatalf("RenderBadges: %v", err)
	}
	if !strings.Contains(buf.String(), "* Completionist") {
		t.Fatalf("earned badge not marked:\n%s", buf.String())
	}
}

func TestRenderCharTableLimit(t *testing.T) {
	aggs := []model.CharAggregate{
		{Char: "a", Correct: 50},
		{Char: "b", Correct: 1, Incorrect: 1},
		{Char: " ", Correct: 30},
	}
	var buf bytes.Buffer
	if err := RenderCharTable(&buf, "Characters", aggs, 2); err != nil {
		t.Fatalf("RenderCharTable: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "\nb ") || !strings.Contains(out, "<space>") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
