package store

import (
	"context"
	"sort"
	"sync"

	"github.com/verte-zerg/frametype/internal/model"
)

// Memory keeps aggregates and runs for the lifetime of the process.
// It backs anonymous sessions.
type Memory struct {
	mu       sync.Mutex
	progress map[string]model.UserProgress
	learn    map[string]model.LearnProgress
	runs     []model.RunRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		progress: map[string]model.UserProgress{},
		learn:    map[string]model.LearnProgress{},
	}
}

// Close implements the store contract; it has nothing to release.
func (m *Memory) Close() error {
	return nil
}

// LoadProgress returns the saved aggregate for userID or ErrNotFound.
func (m *Memory) LoadProgress(_ context.Context, userID string) (model.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[userID]
	if !ok {
		return model.UserProgress{}, ErrNotFound
	}
	return p.Clone(), nil
}

// SaveProgress replaces the saved aggregate for userID.
func (m *Memory) SaveProgress(_ context.Context, userID string, p model.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[userID] = p.Clone()
	return nil
}

// LoadChapterProgress returns saved chapter progress for userID or ErrNotFound.
func (m *Memory) LoadChapterProgress(_ context.Context, userID string) (model.LearnProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.learn[userID]
	if !ok {
		return model.LearnProgress{}, ErrNotFound
	}
	return l.Clone(), nil
}

// SaveChapterProgress replaces saved chapter progress for userID.
func (m *Memory) SaveChapterProgress(_ context.Context, userID string, l model.LearnProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learn[userID] = l.Clone()
	return nil
}

// DeleteUser removes everything stored for userID.
func (m *Memory) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, userID)
	delete(m.learn, userID)
	kept := m.runs[:0]
	for _, run := range m.runs {
		if run.UserID != userID {
			kept = append(kept, run)
		}
	}
	m.runs = kept
	return nil
}

// InsertRun stores a completed run.
func (m *Memory) InsertRun(_ context.Context, run model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Chars = append([]model.CharStats(nil), run.Chars...)
	m.runs = append(m.runs, run)
	return nil
}

// GetWeakChars aggregates character stats over the user's most recent runs.
func (m *Memory) GetWeakChars(_ context.Context, userID string, window int) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var recent []model.RunRecord
	for _, run := range m.sortedRunsLocked() {
		if run.UserID == userID {
			recent = append(recent, run)
		}
	}
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	return aggregateChars(recent), nil
}

// ListRuns returns run aggregates filtered by cfg, oldest first.
func (m *Memory) ListRuns(_ context.Context, cfg model.ReportConfig) ([]model.RunAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RunAggregate
	for _, run := range m.sortedRunsLocked() {
		if run.UserID != cfg.UserID {
			continue
		}
		if cfg.Kind != "" && run.Kind != cfg.Kind {
			continue
		}
		if cfg.LessonID > 0 && run.LessonID != cfg.LessonID {
			continue
		}
		out = append(out, model.RunAggregate{
			RunID:    run.ID,
			Kind:     run.Kind,
			LessonID: run.LessonID,
			EndedAt:  run.EndedAt,
			Result:   run.Result,
		})
	}
	return out, nil
}

// ListCharAggregatesForRuns aggregates per-character stats across runs.
func (m *Memory) ListCharAggregatesForRuns(_ context.Context, runIDs []string) ([]model.CharAggregate, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	wanted := model.NewStringSet(runIDs...)
	m.mu.Lock()
	defer m.mu.Unlock()
	var selected []model.RunRecord
	for _, run := range m.runs {
		if wanted.Has(run.ID) {
			selected = append(selected, run)
		}
	}
	return aggregateChars(selected), nil
}

func (m *Memory) sortedRunsLocked() []model.RunRecord {
	out := append([]model.RunRecord(nil), m.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out
}

func aggregateChars(runs []model.RunRecord) []model.CharAggregate {
	byChar := map[string]*model.CharAggregate{}
	for _, run := range runs {
		for _, cs := range run.Chars {
			agg, ok := byChar[cs.Char]
			if !ok {
				agg = &model.CharAggregate{Char: cs.Char}
				byChar[cs.Char] = agg
			}
			agg.Correct += cs.Correct
			agg.Incorrect += cs.Incorrect
			agg.LatencySumMs += cs.LatencySumMs
			agg.LatencyCount += cs.LatencyCount
		}
	}
	out := make([]model.CharAggregate, 0, len(byChar))
	for _, agg := range byChar {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}
