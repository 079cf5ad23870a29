// Package session is the entry point the front ends drive. It routes input
// to the active lesson, drill, arena or chapter quiz, folds completed work
// into the progress aggregate, and records completed runs for analytics.
//
// Only completed runs reach the aggregate or the run log. Switching to other
// work discards whatever was in progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/frametype/internal/chapter"
	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/drill"
	"github.com/verte-zerg/frametype/internal/generator"
	"github.com/verte-zerg/frametype/internal/lesson"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/progress"
	"github.com/verte-zerg/frametype/internal/stats"
)

var (
	ErrNoLesson        = errors.New("no active lesson")
	ErrNoDrill         = errors.New("no active drill")
	ErrNoArena         = errors.New("no active arena run")
	ErrRunIncomplete   = errors.New("run is not complete")
	ErrAlreadyRecorded = errors.New("run already recorded")
)

// Recorder appends completed runs to the analytics log.
type Recorder interface {
	InsertRun(ctx context.Context, run model.RunRecord) error
}

// Options configures a Session.
type Options struct {
	Logger *zap.Logger
	// Recorder may be nil to skip run analytics.
	Recorder  Recorder
	Generator *generator.Generator
	Now       func() time.Time
	// FocusWeak biases drills and arena texts toward the weakest characters.
	FocusWeak  bool
	WeakTop    int
	WeakFactor float64
}

// Session is not safe for concurrent use; the front end drives it from one
// event loop.
type Session struct {
	agg    *progress.Aggregator
	cur    *curriculum.Curriculum
	rec    Recorder
	gen    *generator.Generator
	logger *zap.Logger
	now    func() time.Time

	focusWeak  bool
	weakTop    int
	weakFactor float64

	machine     *lesson.Machine
	recordedGen int

	drill         *drill.CharacterDrill
	drillRecorded bool

	arena         *drill.Arena
	arenaRecorded bool

	chapterID   int
	choiceQuiz  *chapter.ChoiceQuiz
	translation *chapter.TranslationQuiz
}

// New builds a Session over an opened aggregator.
func New(agg *progress.Aggregator, cur *curriculum.Curriculum, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Generator == nil {
		opts.Generator = generator.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WeakFactor <= 0 {
		opts.WeakFactor = 1
	}
	return &Session{
		agg:         agg,
		cur:         cur,
		rec:         opts.Recorder,
		gen:         opts.Generator,
		logger:      opts.Logger,
		now:         opts.Now,
		focusWeak:   opts.FocusWeak,
		weakTop:     opts.WeakTop,
		weakFactor:  opts.WeakFactor,
		recordedGen: -1,
	}
}

func (s *Session) Aggregator() *progress.Aggregator { return s.agg }
func (s *Session) Curriculum() *curriculum.Curriculum { return s.cur }
func (s *Session) Lesson() *lesson.Machine { return s.machine }
func (s *Session) Drill() *drill.CharacterDrill { return s.drill }
func (s *Session) Arena() *drill.Arena { return s.arena }
func (s *Session) ChoiceQuiz() *chapter.ChoiceQuiz { return s.choiceQuiz }
func (s *Session) Translation() *chapter.TranslationQuiz { return s.translation }

// discard drops every transient run and pending timer.
func (s *Session) discard() {
	s.machine = nil
	s.recordedGen = -1
	if s.drill != nil {
		s.drill.Cancel()
	}
	s.drill = nil
	s.arena = nil
	s.chapterID = 0
	s.discardQuiz()
}

func (s *Session) discardQuiz() {
	if s.choiceQuiz != nil {
		s.choiceQuiz.Cancel()
	}
	if s.translation != nil {
		s.translation.Cancel()
	}
	s.choiceQuiz = nil
	s.translation = nil
}

// StartLesson opens lessonID, discarding any run in progress.
func (s *Session) StartLesson(lessonID int, quiz bool) (*lesson.Machine, error) {
	l, err := s.cur.Lesson(lessonID)
	if err != nil {
		return nil, err
	}
	s.discard()
	s.machine = lesson.New(l, quiz, s.now)
	return s.machine, nil
}

// OnKeystroke feeds a key to the active lesson run. Keys are processed in
// arrival order; ignored input returns false.
func (s *Session) OnKeystroke(key string) (model.KeystrokeEvent, bool) {
	if s.machine == nil {
		return model.KeystrokeEvent{}, false
	}
	return s.machine.Key(key)
}

// RunReport is what a completed lesson run produced.
type RunReport struct {
	Completion lesson.Completion
	// Quiz is set for quiz runs.
	Quiz *progress.QuizOutcome
}

// OnRunComplete grades the finished lesson run, folds a quiz into the
// aggregate and records the run. Each run is handled once.
func (s *Session) OnRunComplete(ctx context.Context) (RunReport, error) {
	if s.machine == nil {
		return RunReport{}, ErrNoLesson
	}
	if !s.machine.Completed() {
		return RunReport{}, ErrRunIncomplete
	}
	if s.recordedGen == s.machine.Generation() {
		return RunReport{}, ErrAlreadyRecorded
	}
	c, err := s.machine.Completion(s.agg.Threshold())
	if err != nil {
		return RunReport{}, err
	}
	s.recordedGen = s.machine.Generation()

	report := RunReport{Completion: c}
	kind := model.RunPractice
	if c.Quiz {
		kind = model.RunQuiz
		out := s.OnQuizComplete(c.LessonID, c.Result)
		report.Quiz = &out
	}
	s.record(ctx, model.RunRecord{
		Kind:      kind,
		LessonID:  c.LessonID,
		StartedAt: c.Started,
		EndedAt:   c.Ended,
		Result:    c.Result,
		Chars:     c.Chars,
	})
	return report, nil
}

// OnQuizComplete folds a quiz result for lessonID into the aggregate.
func (s *Session) OnQuizComplete(lessonID int, res model.RunResult) progress.QuizOutcome {
	_, out := s.agg.CompleteLessonQuiz(lessonID, res)
	return out
}

// NextLesson opens the lesson after the active one.
func (s *Session) NextLesson() (*lesson.Machine, error) {
	if s.machine == nil {
		return nil, ErrNoLesson
	}
	next, ok := s.cur.NextLesson(s.machine.Lesson().ID)
	if !ok {
		return nil, fmt.Errorf("lesson %d is the last one: %w", s.machine.Lesson().ID, curriculum.ErrUnknownLesson)
	}
	return s.StartLesson(next.ID, false)
}

// SetThreshold changes the quiz accuracy gate.
func (s *Session) SetThreshold(v int) error {
	_, err := s.agg.UpdateSettings(model.Settings{CustomAccuracyThreshold: &v})
	return err
}

// Close discards transient state and flushes the aggregate.
func (s *Session) Close(ctx context.Context) error {
	s.discard()
	return s.agg.Close(ctx)
}

func (s *Session) record(ctx context.Context, run model.RunRecord) {
	if s.rec == nil {
		return
	}
	run.ID = uuid.NewString()
	run.UserID = s.agg.UserID()
	if err := s.rec.InsertRun(ctx, run); err != nil {
		s.logger.Error("failed to record run",
			zap.String("user_id", run.UserID),
			zap.String("kind", string(run.Kind)),
			zap.Error(err))
	}
}

func (s *Session) weakChars() map[string]struct{} {
	if !s.focusWeak {
		return nil
	}
	return stats.SelectWeakChars(stats.AggregatesFromProgress(s.agg.Progress()), s.weakTop)
}
