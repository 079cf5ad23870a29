package lesson

import (
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/frametype/internal/curriculum"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/scoring"
)

// CountdownSeconds is the length of the pre-quiz countdown.
const CountdownSeconds = 3

// ErrInvalidTransition is returned when an action does not apply to the current mode.
var ErrInvalidTransition = errors.New("invalid lesson transition")

// Mode is the lesson state.
type Mode int

const (
	ModePractice Mode = iota
	ModePrepare
	ModeQuiz
)

func (m Mode) String() string {
	switch m {
	case ModePractice:
		return "practice"
	case ModePrepare:
		return "prepare"
	case ModeQuiz:
		return "quiz"
	default:
		return "unknown"
	}
}

// Completion is emitted once a run reaches the end of its text.
type Completion struct {
	LessonID int
	Quiz     bool
	Result   model.RunResult
	Outcome  Outcome
	Chars    []model.CharStats
	Started  time.Time
	Ended    time.Time
}

// Machine drives one lesson through practice, prepare, and quiz.
// It is not safe for concurrent use.
type Machine struct {
	lesson curriculum.Lesson
	now    func() time.Time

	mode      Mode
	module    int
	run       *scoring.Run
	countdown int
	counting  bool
	// gen invalidates countdown ticks scheduled before the last transition.
	gen int
}

// New creates a machine for l. When startInQuiz is set the lesson opens
// directly in quiz mode, bypassing practice and the countdown.
func New(l curriculum.Lesson, startInQuiz bool, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	m := &Machine{lesson: l, now: now}
	if startInQuiz {
		m.enterQuiz()
	} else {
		m.enterPractice()
	}
	return m
}

// Lesson returns the lesson being driven.
func (m *Machine) Lesson() curriculum.Lesson {
	return m.lesson
}

// Mode returns the current state.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Module returns the index of the active practice module.
func (m *Machine) Module() int {
	return m.module
}

// Run returns the active run, or nil in prepare mode.
func (m *Machine) Run() *scoring.Run {
	return m.run
}

// Countdown returns the remaining countdown seconds and whether it is running.
func (m *Machine) Countdown() (int, bool) {
	return m.countdown, m.counting
}

// Generation identifies the current countdown; ticks carrying an older value are ignored.
func (m *Machine) Generation() int {
	return m.gen
}

// Key feeds a keystroke to the active run. Keys are ignored while preparing.
func (m *Machine) Key(key string) (model.KeystrokeEvent, bool) {
	if m.run == nil {
		return model.KeystrokeEvent{}, false
	}
	return m.run.Key(key)
}

// Completed reports whether the active run has reached the end of its text.
func (m *Machine) Completed() bool {
	return m.run != nil && m.run.Complete()
}

// Completion grades the finished run against accuracyThreshold.
func (m *Machine) Completion(accuracyThreshold int) (Completion, error) {
	if !m.Completed() {
		return Completion{}, fmt.Errorf("%w: run is not complete", ErrInvalidTransition)
	}
	quiz := m.mode == ModeQuiz
	res := m.run.Result()
	return Completion{
		LessonID: m.lesson.ID,
		Quiz:     quiz,
		Result:   res,
		Outcome:  Evaluate(res, quiz, accuracyThreshold),
		Chars:    m.run.CharStats(),
		Started:  m.run.StartedAt(),
		Ended:    m.run.EndedAt(),
	}, nil
}

// RequestQuiz moves to prepare from practice, or from a finished quiz to retake it.
func (m *Machine) RequestQuiz() error {
	switch {
	case m.mode == ModePractice:
	case m.mode == ModeQuiz && m.Completed():
	default:
		return fmt.Errorf("%w: cannot request quiz in %s", ErrInvalidTransition, m.mode)
	}
	m.mode = ModePrepare
	m.run = nil
	m.countdown = CountdownSeconds
	m.counting = false
	m.gen++
	return nil
}

// Ready starts the countdown and returns its generation.
func (m *Machine) Ready() (int, error) {
	if m.mode != ModePrepare {
		return 0, fmt.Errorf("%w: ready outside prepare", ErrInvalidTransition)
	}
	if m.counting {
		return m.gen, nil
	}
	m.counting = true
	m.countdown = CountdownSeconds
	m.gen++
	return m.gen, nil
}

// Tick advances the countdown by one second. It reports true when the quiz
// has just started. Ticks from an older generation are ignored.
func (m *Machine) Tick(gen int) bool {
	if m.mode != ModePrepare || !m.counting || gen != m.gen {
		return false
	}
	m.countdown--
	if m.countdown > 0 {
		return false
	}
	m.enterQuiz()
	return true
}

// Cancel leaves prepare and returns to practice.
func (m *Machine) Cancel() error {
	if m.mode != ModePrepare {
		return fmt.Errorf("%w: cancel outside prepare", ErrInvalidTransition)
	}
	m.enterPractice()
	return nil
}

// ReturnToPractice abandons the quiz, finished or not, and restarts practice.
func (m *Machine) ReturnToPractice() {
	m.enterPractice()
}

// RestartRun starts the current text over, discarding the run in progress.
func (m *Machine) RestartRun() {
	switch m.mode {
	case ModePractice:
		m.enterPractice()
	case ModeQuiz:
		m.enterQuiz()
	}
}

// NextModule switches to the following practice module, if any.
func (m *Machine) NextModule() bool {
	if m.mode != ModePractice || m.module+1 >= len(m.lesson.Practice) {
		return false
	}
	m.module++
	m.enterPractice()
	return true
}

// PrevModule switches to the preceding practice module, if any.
func (m *Machine) PrevModule() bool {
	if m.mode != ModePractice || m.module == 0 {
		return false
	}
	m.module--
	m.enterPractice()
	return true
}

func (m *Machine) enterPractice() {
	m.mode = ModePractice
	m.counting = false
	m.countdown = 0
	m.gen++
	text := ""
	if m.module < len(m.lesson.Practice) {
		text = m.lesson.Practice[m.module]
	}
	m.run = scoring.NewRun(text, m.lesson.ID, m.now)
}

func (m *Machine) enterQuiz() {
	m.mode = ModeQuiz
	m.counting = false
	m.countdown = 0
	m.gen++
	m.run = scoring.NewRun(m.lesson.Quiz, m.lesson.ID, m.now)
}
