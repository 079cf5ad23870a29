// Package model defines shared data structures.
package model

import "time"

// Config defines resolved application settings.
type Config struct {
	UserID         string
	Backend        string
	StorePath      string
	DSN            string
	MaxConns       int
	FlushDelay     time.Duration
	LogEnv         string
	LogPath        string
	CurriculumPath string
	// AccuracyThreshold is the configured quiz gate; zero leaves the stored setting alone.
	AccuracyThreshold int
	FocusWeak         bool
	WeakTop           int
	WeakFactor        float64
}

// ReportConfig defines filters for run history output.
type ReportConfig struct {
	UserID   string
	LessonID int
	Kind     RunKind
	Last     int
	Window   int
}

// KeystrokeEvent records one accepted key input during a run.
type KeystrokeEvent struct {
	TimestampMs int64
	Prompted    string
	Typed       string
	Correct     bool
	LatencyMs   int64
	LessonID    int
}

// RunResult is derived once from a completed run.
type RunResult struct {
	AccuracyPct int
	CPM         int
	WPM         int
	ErrorCount  int
	ElapsedMs   int64
}

// RunKind distinguishes the modes that produce runs.
type RunKind string

const (
	RunPractice RunKind = "practice"
	RunQuiz     RunKind = "quiz"
	RunArena    RunKind = "arena"
	RunDrill    RunKind = "drill"
)

// Valid reports whether k is a known run kind.
func (k RunKind) Valid() bool {
	switch k {
	case RunPractice, RunQuiz, RunArena, RunDrill:
		return true
	default:
		return false
	}
}

// RunRecord captures a completed run for analytics.
type RunRecord struct {
	ID        string
	UserID    string
	Kind      RunKind
	LessonID  int
	StartedAt time.Time
	EndedAt   time.Time
	Result    RunResult
	Chars     []CharStats
}

// CharStats stores per-character stats for a run.
type CharStats struct {
	Char         string
	Correct      int
	Incorrect    int
	LatencySumMs int64
	LatencyCount int64
}

// CharAggregate aggregates character stats across runs.
type CharAggregate struct {
	Char         string
	Correct      int
	Incorrect    int
	LatencySumMs int64
	LatencyCount int64
}

// RunAggregate summarizes a stored run for reporting.
type RunAggregate struct {
	RunID    string
	Kind     RunKind
	LessonID int
	EndedAt  time.Time
	Result   RunResult
}
