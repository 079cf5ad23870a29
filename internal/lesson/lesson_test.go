package lesson

import (
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
)

func intPtr(v int) *int { return &v }

func testLesson() curriculum.Lesson {
	return curriculum.Lesson{
		ID:       3,
		Name:     "Test",
		Practice: []string{"ab", "cd"},
		Quiz:     "fj",
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestPassGate(t *testing.T) {
	tests := []struct {
		name       string
		res        model.RunResult
		wantPassed bool
		wantIssues []string
	}{
		{name: "exact thresholds", res: model.RunResult{AccuracyPct: 96, CPM: 20}, wantPassed: true},
		{name: "accuracy short", res: model.RunResult{AccuracyPct: 95, CPM: 200}, wantIssues: []string{"accuracy below 96%"}},
		{name: "speed short", res: model.RunResult{AccuracyPct: 100, CPM: 19}, wantIssues: []string{"speed below 20 CPM"}},
		{name: "both short", res: model.RunResult{AccuracyPct: 10, CPM: 1}, wantIssues: []string{"accuracy below 96%", "speed below 20 CPM"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(tt.res, true, DefaultAccuracyThreshold)
			if out.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v", out.Passed, tt.wantPassed)
			}
			if len(out.Issues) != len(tt.wantIssues) {
				t.Fatalf("issues = %v, want %v", out.Issues, tt.wantIssues)
			}
			for i := range tt.wantIssues {
				if out.Issues[i] != tt.wantIssues[i] {
					t.Fatalf("issue %d = %q, want %q", i, out.Issues[i], tt.wantIssues[i])
				}
			}
			want := RecommendPracticeAgain
			if tt.wantPassed {
				want = RecommendNextLesson
			}
			if out.Recommendation != want {
				t.Fatalf("recommendation = %v, want %v", out.Recommendation, want)
			}
		})
	}
}

func TestPracticeIsNotGraded(t *testing.T) {
	out := Evaluate(model.RunResult{AccuracyPct: 0}, false, DefaultAccuracyThreshold)
	if out.Passed || out.Quiz || len(out.Issues) != 0 {
		t.Fatalf("unexpected practice outcome: %+v", out)
	}
	if out.Recommendation != RecommendTakeQuiz {
		t.Fatalf("expected take-quiz recommendation, got %v", out.Recommendation)
	}
	if got := out.Recommendation.String(); got != "Recommend: Take the Quiz" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestEffectiveThreshold(t *testing.T) {
	if got := EffectiveThreshold(model.Settings{}); got != 96 {
		t.Fatalf("default = %d", got)
	}
	if got := EffectiveThreshold(model.Settings{CustomAccuracyThreshold: intPtr(99)}); got != 99 {
		t.Fatalf("custom = %d", got)
	}
	if got := EffectiveThreshold(model.Settings{CustomAccuracyThreshold: intPtr(50)}); got != 96 {
		t.Fatalf("lowered threshold must clamp to 96, got %d", got)
	}
	if got := EffectiveThreshold(model.Settings{CustomAccuracyThreshold: intPtr(120)}); got != 100 {
		t.Fatalf("threshold above 100 must clamp, got %d", got)
	}
}

func TestMergeScoreTieBreak(t *testing.T) {
	first := MergeScore(nil, 3, model.RunResult{AccuracyPct: 90, WPM: 10}, false)
	second := MergeScore(&first, 3, model.RunResult{AccuracyPct: 90, WPM: 15}, false)
	if second.Best == nil || second.Best.WPM != 15 {
		t.Fatalf("expected best wpm 15, got %+v", second.Best)
	}
	if second.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", second.Attempts)
	}
	third := MergeScore(&second, 3, model.RunResult{AccuracyPct: 90, WPM: 15}, false)
	if third.Best.WPM != 15 || third.Attempts != 3 {
		t.Fatalf("equal result must not replace best: %+v", third)
	}
}

func TestMergeScoreBestAccuracyNeverDecreases(t *testing.T) {
	results := []model.RunResult{
		{AccuracyPct: 80, WPM: 50},
		{AccuracyPct: 97, WPM: 5},
		{AccuracyPct: 60, WPM: 90},
		{AccuracyPct: 97, WPM: 4},
		{AccuracyPct: 99, WPM: 1},
	}
	var prev *model.LessonScore
	bestAcc := -1
	for _, res := range results {
		next := MergeScore(prev, 1, res, false)
		if next.Best.Accuracy < bestAcc {
			t.Fatalf("best accuracy decreased from %d to %d", bestAcc, next.Best.Accuracy)
		}
		bestAcc = next.Best.Accuracy
		prev = &next
	}
	if prev.Best.Accuracy != 99 || prev.Accuracy != 99 {
		t.Fatalf("unexpected final score: %+v", prev)
	}
}

func TestMergeScorePassedIsSticky(t *testing.T) {
	first := MergeScore(nil, 1, model.RunResult{AccuracyPct: 100, CPM: 100}, true)
	second := MergeScore(&first, 1, model.RunResult{AccuracyPct: 10, CPM: 1}, false)
	if !second.Passed {
		t.Fatalf("a failed retake must not clear passed")
	}
}

func TestMachineQuizFlow(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	m := New(testLesson(), false, c.now)
	if m.Mode() != ModePractice {
		t.Fatalf("expected practice, got %s", m.Mode())
	}
	if err := m.RequestQuiz(); err != nil {
		t.Fatalf("RequestQuiz: %v", err)
	}
	if m.Mode() != ModePrepare {
		t.Fatalf("expected prepare, got %s", m.Mode())
	}
	if _, ok := m.Key("f"); ok {
		t.Fatalf("keys must be ignored while preparing")
	}
	gen, err := m.Ready()
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	for i := 0; i < CountdownSeconds-1; i++ {
		if m.Tick(gen) {
			t.Fatalf("quiz started early at tick %d", i)
		}
	}
	if !m.Tick(gen) {
		t.Fatalf("expected quiz to start on the last tick")
	}
	if m.Mode() != ModeQuiz {
		t.Fatalf("expected quiz, got %s", m.Mode())
	}
	m.Key("f")
	c.t = c.t.Add(600 * time.Millisecond)
	m.Key("j")
	done, err := m.Completion(DefaultAccuracyThreshold)
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if !done.Quiz || !done.Outcome.Passed || done.Result.CPM != 200 {
		t.Fatalf("unexpected completion: %+v", done)
	}
	if err := m.RequestQuiz(); err != nil {
		t.Fatalf("retake after completion: %v", err)
	}
}

func TestMachineStaleTickIgnored(t *testing.T) {
	m := New(testLesson(), false, nil)
	_ = m.RequestQuiz()
	gen, _ := m.Ready()
	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if m.Mode() != ModePractice {
		t.Fatalf("expected practice after cancel")
	}
	_ = m.RequestQuiz()
	fresh, _ := m.Ready()
	for i := 0; i < CountdownSeconds; i++ {
		if m.Tick(gen) {
			t.Fatalf("stale tick started the quiz")
		}
	}
	if left, _ := m.Countdown(); left != CountdownSeconds {
		t.Fatalf("stale ticks changed countdown to %d", left)
	}
	if fresh == gen {
		t.Fatalf("expected a new generation after cancel")
	}
}

func TestMachineInvalidTransitions(t *testing.T) {
	m := New(testLesson(), false, nil)
	if _, err := m.Ready(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from Ready, got %v", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from Cancel, got %v", err)
	}
	if _, err := m.Completion(96); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from Completion, got %v", err)
	}
	q := New(testLesson(), true, nil)
	if q.Mode() != ModeQuiz {
		t.Fatalf("direct start must open in quiz")
	}
	if err := q.RequestQuiz(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for an unfinished quiz, got %v", err)
	}
}

func TestMachineModules(t *testing.T) {
	m := New(testLesson(), false, nil)
	m.Key("a")
	if !m.NextModule() {
		t.Fatalf("expected to move to module 1")
	}
	if m.Run().Cursor() != 0 || string(m.Run().Target()) != "cd" {
		t.Fatalf("switching modules must discard the run")
	}
	if m.NextModule() {
		t.Fatalf("expected no module after the last one")
	}
	if !m.PrevModule() || m.Module() != 0 {
		t.Fatalf("expected to move back to module 0")
	}
	if m.PrevModule() {
		t.Fatalf("expected no module before the first one")
	}
}

func TestPracticeCompletion(t *testing.T) {
	m := New(testLesson(), false, nil)
	m.Key("a")
	m.Key("b")
	done, err := m.Completion(DefaultAccuracyThreshold)
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if done.Quiz || done.Outcome.Recommendation != RecommendTakeQuiz {
		t.Fatalf("unexpected practice completion: %+v", done)
	}
}
