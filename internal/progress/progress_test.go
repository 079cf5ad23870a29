package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/store"
)

func intPtr(v int) *int { return &v }

type recordingStore struct {
	mu        sync.Mutex
	saves     []model.UserProgress
	learn     []model.LearnProgress
	failSaves int
	loadErr   error
}

func (s *recordingStore) LoadProgress(context.Context, string) (model.UserProgress, error) {
	if s.loadErr != nil {
		return model.UserProgress{}, s.loadErr
	}
	return model.UserProgress{}, store.ErrNotFound
}

func (s *recordingStore) SaveProgress(_ context.Context, _ string, p model.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("disk full")
	}
	s.saves = append(s.saves, p.Clone())
	return nil
}

func (s *recordingStore) LoadChapterProgress(context.Context, string) (model.LearnProgress, error) {
	return model.LearnProgress{}, store.ErrNotFound
}

func (s *recordingStore) SaveChapterProgress(_ context.Context, _ string, l model.LearnProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learn = append(s.learn, l.Clone())
	return nil
}

func (s *recordingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingStore) lastSave() model.UserProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

func passResult(wpm int) model.RunResult {
	return model.RunResult{AccuracyPct: 100, CPM: wpm * 5, WPM: wpm}
}

func TestRecordKeystrokeAccuracy(t *testing.T) {
	p := model.NewUserProgress()
	p = RecordKeystrokeAccuracy(p, "F", true)
	p = RecordKeystrokeAccuracy(p, "F", false)
	p = RecordKeystrokeAccuracy(p, "F", true)
	if p.TotalAttempts["F"] != 3 || p.CorrectAttempts["F"] != 2 {
		t.Fatalf("unexpected counts: %v %v", p.TotalAttempts, p.CorrectAttempts)
	}
	if p.Accuracy["F"] != 67 {
		t.Fatalf("expected accuracy 67, got %d", p.Accuracy["F"])
	}
}

func TestReducersDoNotMutateInput(t *testing.T) {
	p := model.NewUserProgress()
	_ = RecordKeystrokeAccuracy(p, "J", true)
	_, _ = CompleteLessonQuiz(p, []int{1}, 1, passResult(30))
	if len(p.TotalAttempts) != 0 || len(p.LessonScores) != 0 || len(p.CompletedLevels) != 0 {
		t.Fatalf("input aggregate was mutated: %+v", p)
	}
}

func TestCompleteLessonQuiz(t *testing.T) {
	lessons := []int{1, 2, 3}
	p := model.NewUserProgress()

	p, out := CompleteLessonQuiz(p, lessons, 1, model.RunResult{AccuracyPct: 95, CPM: 200, WPM: 40})
	if out.Passed || p.CompletedLevels.Has(1) {
		t.Fatalf("a failed quiz must not complete the lesson")
	}
	if p.LessonScores[1].Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", p.LessonScores[1].Attempts)
	}

	p, out = CompleteLessonQuiz(p, lessons, 1, model.RunResult{AccuracyPct: 96, CPM: 20, WPM: 4})
	if !out.Passed || !p.CompletedLevels.Has(1) {
		t.Fatalf("expected lesson 1 to be completed")
	}
	if p.CurrentLevel != 2 {
		t.Fatalf("expected current level 2, got %d", p.CurrentLevel)
	}
	for id := range p.CompletedLevels {
		if !p.LessonScores[id].Passed {
			t.Fatalf("completed lesson %d has no passing score", id)
		}
	}
}

func TestCustomThresholdApplies(t *testing.T) {
	p := model.NewUserProgress()
	p.Settings.CustomAccuracyThreshold = intPtr(99)
	_, out := CompleteLessonQuiz(p, []int{1}, 1, model.RunResult{AccuracyPct: 98, CPM: 300})
	if out.Passed {
		t.Fatalf("expected 98%% to fail a 99%% threshold")
	}
}

func TestBadgesRequireEveryLessonAtSpeed(t *testing.T) {
	lessons := []int{1, 2, 3}
	p := model.NewUserProgress()
	p, _ = CompleteLessonQuiz(p, lessons, 1, passResult(30))
	p, _ = CompleteLessonQuiz(p, lessons, 2, passResult(30))
	p, out := CompleteLessonQuiz(p, lessons, 3, passResult(9))

	if !p.Badges.Has(BadgeCompletionist) {
		t.Fatalf("expected completionist once every lesson is completed")
	}
	if p.Badges.Has(BadgeSteady) {
		t.Fatalf("steady must wait for every lesson to reach 10 wpm")
	}
	if len(out.NewBadges) != 1 || out.NewBadges[0].ID != BadgeCompletionist {
		t.Fatalf("unexpected new badges: %+v", out.NewBadges)
	}

	p, out = CompleteLessonQuiz(p, lessons, 3, passResult(10))
	if !p.Badges.Has(BadgeSteady) {
		t.Fatalf("expected steady after raising the slowest lesson to 10 wpm")
	}
	if p.Badges.Has(BadgeSwift) {
		t.Fatalf("swift needs 20 wpm everywhere")
	}
	if len(out.NewBadges) != 1 || out.NewBadges[0].ID != BadgeSteady {
		t.Fatalf("unexpected new badges: %+v", out.NewBadges)
	}
}

func TestBadgesAreMonotonic(t *testing.T) {
	lessons := []int{1}
	p := model.NewUserProgress()
	p, _ = CompleteLessonQuiz(p, lessons, 1, passResult(70))
	if len(p.Badges) != len(Badges) {
		t.Fatalf("expected every badge, got %v", p.Badges.Sorted())
	}
	p, out := CompleteLessonQuiz(p, lessons, 1, model.RunResult{AccuracyPct: 10, CPM: 1, WPM: 1})
	if len(p.Badges) != len(Badges) || len(out.NewBadges) != 0 {
		t.Fatalf("badges must never be revoked: %v", p.Badges.Sorted())
	}
}

func TestCompleteLevelKeepsLessonsClean(t *testing.T) {
	p := CompleteLevel(model.NewUserProgress(), 3)
	if !p.ArenaLevels.Has(3) {
		t.Fatalf("expected arena level 3")
	}
	if p.CompletedLevels.Has(3) {
		t.Fatalf("arena levels must not mark lessons completed")
	}
}

func TestUpdateSettings(t *testing.T) {
	p := model.NewUserProgress()
	if _, err := UpdateSettings(p, model.Settings{CustomAccuracyThreshold: intPtr(95)}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	if _, err := UpdateSettings(p, model.Settings{CustomAccuracyThreshold: intPtr(101)}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
	next, err := UpdateSettings(p, model.Settings{CustomAccuracyThreshold: intPtr(100)})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if *next.Settings.CustomAccuracyThreshold != 100 {
		t.Fatalf("threshold not applied")
	}
	kept, err := UpdateSettings(next, model.Settings{})
	if err != nil || *kept.Settings.CustomAccuracyThreshold != 100 {
		t.Fatalf("empty patch must keep the threshold")
	}
}

func TestOpenDefaultsOnNotFound(t *testing.T) {
	agg, err := Open(context.Background(), &recordingStore{}, "u1", []int{1}, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if agg.Progress().CurrentLevel != 1 {
		t.Fatalf("expected defaults")
	}
	if agg.Dirty() {
		t.Fatalf("a fresh aggregate must not be dirty")
	}
}

func TestOpenPropagatesLoadError(t *testing.T) {
	st := &recordingStore{loadErr: errors.New("connection refused")}
	if _, err := Open(context.Background(), st, "u1", nil, Options{}); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestDebouncedFlushWritesLatest(t *testing.T) {
	st := &recordingStore{}
	agg, err := Open(context.Background(), st, "u1", []int{1, 2}, Options{FlushDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 10; i++ {
		agg.RecordKeystrokeAccuracy("F", true)
	}
	if got := agg.Progress().TotalAttempts["F"]; got != 10 {
		t.Fatalf("in-memory state must update synchronously, got %d", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for agg.Dirty() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if agg.Dirty() {
		t.Fatalf("debounced flush never ran")
	}
	if n := st.saveCount(); n != 1 {
		t.Fatalf("expected one coalesced save, got %d", n)
	}
	if got := st.lastSave().TotalAttempts["F"]; got != 10 {
		t.Fatalf("expected the latest snapshot, got %d attempts", got)
	}
}

func TestFlushFailureIsRetried(t *testing.T) {
	st := &recordingStore{failSaves: 1}
	agg, err := Open(context.Background(), st, "u1", []int{1}, Options{FlushDelay: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	agg.SetCurrentLevel(4)
	if err := agg.Flush(context.Background()); err == nil {
		t.Fatalf("expected save error")
	}
	if !agg.Dirty() {
		t.Fatalf("failed save must leave the aggregate dirty")
	}
	if agg.Progress().CurrentLevel != 4 {
		t.Fatalf("in-memory state must not roll back on save failure")
	}
	if err := agg.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if agg.Dirty() || st.lastSave().CurrentLevel != 4 {
		t.Fatalf("retry did not persist the latest state")
	}
}

func TestUpdateLearnRejectsOnError(t *testing.T) {
	agg, err := Open(context.Background(), nil, "", nil, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	boom := errors.New("locked")
	_, err = agg.UpdateLearn(func(l model.LearnProgress) (model.LearnProgress, error) {
		l.LastAccessedChapter = 9
		return l, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
	if agg.Learn().LastAccessedChapter != 0 {
		t.Fatalf("failed update must not apply")
	}
}

func TestResetClearsEverything(t *testing.T) {
	st := &recordingStore{}
	agg, err := Open(context.Background(), st, "u1", []int{1}, Options{FlushDelay: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	agg.CompleteLessonQuiz(1, passResult(80))
	agg.Reset()
	p := agg.Progress()
	if len(p.CompletedLevels) != 0 || len(p.Badges) != 0 {
		t.Fatalf("reset left state behind: %+v", p)
	}
	if err := agg.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(st.lastSave().LessonScores) != 0 {
		t.Fatalf("reset was not persisted")
	}
}
