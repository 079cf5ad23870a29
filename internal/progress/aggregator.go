// Package progress folds exercise and quiz outcomes into the per-user aggregate
// and writes it through to storage with a debounce.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/store"
)

// DefaultFlushDelay batches rapid successive mutations into one write.
const DefaultFlushDelay = time.Second

// Store persists a user's aggregates. Loads return store.ErrNotFound for unknown users.
type Store interface {
	LoadProgress(ctx context.Context, userID string) (model.UserProgress, error)
	SaveProgress(ctx context.Context, userID string, p model.UserProgress) error
	LoadChapterProgress(ctx context.Context, userID string) (model.LearnProgress, error)
	SaveChapterProgress(ctx context.Context, userID string, l model.LearnProgress) error
}

// Options configures an Aggregator.
type Options struct {
	FlushDelay time.Duration
	Logger     *zap.Logger
	// SaveTimeout bounds each background write; zero means no deadline.
	SaveTimeout time.Duration
}

// Aggregator owns the in-memory aggregates of one user. Mutations apply
// synchronously; persistence happens after FlushDelay of quiet and always
// writes the latest snapshot.
type Aggregator struct {
	store     Store
	userID    string
	lessonIDs []int
	delay     time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	mu           sync.Mutex
	progress     model.UserProgress
	learn        model.LearnProgress
	version      uint64
	savedVersion uint64
	learnVersion uint64
	learnSaved   uint64
	timer        *time.Timer
	closed       bool

	// saveMu serializes writes so an older snapshot never lands after a newer one.
	saveMu sync.Mutex
}

// Open loads the user's aggregates, falling back to defaults when the store
// has none. A nil store keeps everything in memory.
func Open(ctx context.Context, st Store, userID string, lessonIDs []int, opts Options) (*Aggregator, error) {
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	a := &Aggregator{
		store:     st,
		userID:    userID,
		lessonIDs: append([]int(nil), lessonIDs...),
		delay:     opts.FlushDelay,
		timeout:   opts.SaveTimeout,
		logger:    opts.Logger,
		progress:  model.NewUserProgress(),
		learn:     model.NewLearnProgress(),
	}
	if st == nil {
		return a, nil
	}

	p, err := st.LoadProgress(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.logger.Debug("no saved progress, using defaults", zap.String("user_id", userID))
	case err != nil:
		return nil, fmt.Errorf("load progress: %w", err)
	default:
		a.progress = Normalize(p)
	}

	l, err := st.LoadChapterProgress(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load chapter progress: %w", err)
	default:
		a.learn = NormalizeLearn(l)
	}
	return a, nil
}

// UserID returns the owner of the aggregates.
func (a *Aggregator) UserID() string {
	return a.userID
}

// LessonIDs returns the lessons badges are evaluated against.
func (a *Aggregator) LessonIDs() []int {
	return append([]int(nil), a.lessonIDs...)
}

// Progress returns a snapshot of the user aggregate.
func (a *Aggregator) Progress() model.UserProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress.Clone()
}

// Learn returns a snapshot of the chapter aggregate.
func (a *Aggregator) Learn() model.LearnProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.learn.Clone()
}

// Threshold returns the effective quiz accuracy gate.
func (a *Aggregator) Threshold() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lesson.EffectiveThreshold(a.progress.Settings)
}

// RecordKeystrokeAccuracy counts a drill keystroke for char.
func (a *Aggregator) RecordKeystrokeAccuracy(char string, correct bool) model.UserProgress {
	p, _ := a.apply(func(p model.UserProgress) (model.UserProgress, error) {
		return RecordKeystrokeAccuracy(p, char, correct), nil
	})
	return p
}

// CompleteLessonQuiz folds a quiz result into the aggregate.
func (a *Aggregator) CompleteLessonQuiz(lessonID int, res model.RunResult) (model.UserProgress, QuizOutcome) {
	var outcome QuizOutcome
	p, _ := a.apply(func(p model.UserProgress) (model.UserProgress, error) {
		var next model.UserProgress
		next, outcome = CompleteLessonQuiz(p, a.lessonIDs, lessonID, res)
		return next, nil
	})
	for _, b := range outcome.NewBadges {
		a.logger.Info("badge earned", zap.String("user_id", a.userID), zap.String("badge", b.ID))
	}
	return p, outcome
}

// CompleteLevel marks a practice-arena level as cleared.
func (a *Aggregator) CompleteLevel(levelID int) model.UserProgress {
	p, _ := a.apply(func(p model.UserProgress) (model.UserProgress, error) {
		return CompleteLevel(p, levelID), nil
	})
	return p
}

// SetCurrentLevel selects the current lesson.
func (a *Aggregator) SetCurrentLevel(lessonID int) model.UserProgress {
	p, _ := a.apply(func(p model.UserProgress) (model.UserProgress, error) {
		return SetCurrentLevel(p, lessonID), nil
	})
	return p
}

// UpdateSettings merges patch into the settings.
func (a *Aggregator) UpdateSettings(patch model.Settings) (model.UserProgress, error) {
	return a.apply(func(p model.UserProgress) (model.UserProgress, error) {
		return UpdateSettings(p, patch)
	})
}

// Reset restores both aggregates to their defaults.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.progress = model.NewUserProgress()
	a.learn = model.NewLearnProgress()
	a.version++
	a.learnVersion++
	a.scheduleLocked()
	a.mu.Unlock()
}

// UpdateLearn applies fn to the chapter aggregate. An error leaves it unchanged.
func (a *Aggregator) UpdateLearn(fn func(model.LearnProgress) (model.LearnProgress, error)) (model.LearnProgress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := fn(a.learn.Clone())
	if err != nil {
		return a.learn.Clone(), err
	}
	a.learn = next
	a.learnVersion++
	a.scheduleLocked()
	return next.Clone(), nil
}

func (a *Aggregator) apply(fn func(model.UserProgress) (model.UserProgress, error)) (model.UserProgress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := fn(a.progress)
	if err != nil {
		return a.progress.Clone(), err
	}
	a.progress = next
	a.version++
	a.scheduleLocked()
	return next.Clone(), nil
}

func (a *Aggregator) scheduleLocked() {
	if a.store == nil || a.closed {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.flushInBackground)
}

func (a *Aggregator) flushInBackground() {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.Flush(ctx); err != nil {
		a.logger.Error("failed to persist progress", zap.String("user_id", a.userID), zap.Error(err))
	}
}

// Dirty reports whether there are mutations not yet written to the store.
func (a *Aggregator) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version != a.savedVersion || a.learnVersion != a.learnSaved
}

// Flush writes the latest snapshots now. A failed write stays pending and is
// retried by the next flush.
func (a *Aggregator) Flush(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	progress, version := a.progress.Clone(), a.version
	progressDirty := version != a.savedVersion
	learn, learnVersion := a.learn.Clone(), a.learnVersion
	learnDirty := learnVersion != a.learnSaved
	a.mu.Unlock()

	if progressDirty {
		if err := a.store.SaveProgress(ctx, a.userID, progress); err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
		a.mu.Lock()
		a.savedVersion = version
		a.mu.Unlock()
		a.logger.Debug("progress saved", zap.String("user_id", a.userID), zap.Uint64("version", version))
	}
	if learnDirty {
		if err := a.store.SaveChapterProgress(ctx, a.userID, learn); err != nil {
			return fmt.Errorf("save chapter progress: %w", err)
		}
		a.mu.Lock()
		a.learnSaved = learnVersion
		a.mu.Unlock()
	}
	return nil
}

// Close cancels the pending debounce and flushes synchronously.
func (a *Aggregator) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.Flush(ctx)
}
