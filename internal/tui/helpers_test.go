package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/generator"
	"github.com/verte-zerg/frametype/internal/progress"
	"github.com/verte-zerg/frametype/internal/session"
	"github.com/verte-zerg/frametype/internal/store"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	cur, err := curriculum.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	st := store.NewMemory()
	agg, err := progress.Open(context.Background(), st, "u1", cur.LessonIDs(), progress.Options{FlushDelay: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	clock := time.Unix(0, 0)
	sess := session.New(agg, cur, session.Options{
		Recorder:  st,
		Generator: generator.NewSeeded(1),
		Now: func() time.Time {
			clock = clock.Add(100 * time.Millisecond)
			return clock
		},
	})
	t.Cleanup(func() { _ = sess.Close(context.Background()) })
	return sess
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyOf(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
