package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
)

func TestProgressModelTabs(t *testing.T) {
	cur, err := curriculum.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	p := model.NewUserProgress()
	p.CompletedLevels[1] = struct{}{}
	p.LessonScores[1] = model.LessonScore{LessonID: 1, Accuracy: 98, WPM: 30, Attempts: 1, Passed: true, Best: &model.Score{Accuracy: 98, WPM: 30}}
	p.TotalAttempts["F"] = 4
	p.CorrectAttempts["F"] = 3
	p.Badges[progress.BadgeSteady] = struct{}{}

	m := NewProgressModel(cur, p, model.NewLearnProgress())
	if !containsAll(m.View(), []string{"Lessons", "1/", "Home Row I", "passed"}) {
		t.Fatalf("unexpected lessons view:\n%s", m.View())
	}

	m.Update(keyOf(tea.KeyRight))
	if m.activeTab != tabCharacters || !containsAll(m.View(), []string{"Weakest: F", "75.00%"}) {
		t.Fatalf("unexpected characters view:\n%s", m.View())
	}

	m.Update(keyOf(tea.KeyLeft))
	m.Update(keyOf(tea.KeyLeft))
	if m.activeTab != tabBadges || !containsAll(m.View(), []string{"Steady Hands", "1/5 badges"}) {
		t.Fatalf("unexpected badges view:\n%s", m.View())
	}

	if _, cmd := m.Update(runes("q")); cmd == nil {
		t.Fatalf("q should quit")
	}
}

func TestBuildTableShowsEveryRow(t *testing.T) {
	single := buildTable([]string{"Char", "Accuracy"}, [][]string{{"Q", "50.00%"}})
	if !containsAll(single.View(), []string{"Q", "50.00%"}) {
		t.Fatalf("single row hidden:\n%s", single.View())
	}

	rows := [][]string{{"A", "75.00%"}, {"B", "75.00%"}, {"C", "75.00%"}}
	tbl := buildTable([]string{"Char", "Accuracy"}, rows)
	if !containsAll(tbl.View(), []string{"A", "B", "C"}) {
		t.Fatalf("last row hidden:\n%s", tbl.View())
	}
}
