package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestDrillFeedbackAndFinish(t *testing.T) {
	sess := newTestSession(t)
	m, err := NewDrillModel(context.Background(), sess, 1, false)
	if err != nil {
		t.Fatalf("NewDrillModel: %v", err)
	}
	d := sess.Drill()
	_, total := d.Position()
	for i := 0; i < total; i++ {
		current, ok := d.Current()
		if !ok {
			t.Fatalf("prompt %d missing", i)
		}
		_, cmd := m.Update(runes(current))
		if cmd == nil || m.last == nil || !m.last.Correct {
			t.Fatalf("prompt %d: expected correct feedback", i)
		}
		if _, cmd := m.Update(runes(current)); cmd != nil {
			t.Fatalf("keys during feedback must be ignored")
		}
		m.Update(feedbackMsg{token: m.last.Token - 1})
		if m.last == nil {
			t.Fatalf("stale feedback token cleared the answer")
		}
		m.Update(feedbackMsg{token: m.last.Token})
	}
	if m.result == nil || m.result.AccuracyPct != 100 {
		t.Fatalf("expected a perfect result, got %+v", m.result)
	}
	if !containsAll(m.View(), []string{"Drill complete", "Accuracy 100%"}) {
		t.Fatalf("unexpected view:\n%s", m.View())
	}

	m.Update(keyOf(tea.KeyEnter))
	if m.result != nil || sess.Drill() == nil || sess.Drill().Done() {
		t.Fatalf("enter should start a fresh drill")
	}
}

func TestArenaClearsLevel(t *testing.T) {
	sess := newTestSession(t)
	m, err := NewDrillModel(context.Background(), sess, 1, true)
	if err != nil {
		t.Fatalf("NewDrillModel: %v", err)
	}
	m.Update(runes(string(sess.Arena().Run().Target())))
	if m.result == nil || !m.cleared {
		t.Fatalf("expected a cleared arena run, got %+v", m.result)
	}
	p := sess.Aggregator().Progress()
	if !p.ArenaLevels.Has(1) || p.CompletedLevels.Has(1) {
		t.Fatalf("arena must only mark arena levels: arena=%v completed=%v", p.ArenaLevels.Sorted(), p.CompletedLevels.Sorted())
	}
	if !containsAll(m.View(), []string{"Level 1 cleared"}) {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
}
