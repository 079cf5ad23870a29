// Package scoring turns keystrokes typed against a target text into run metrics.
package scoring

import (
	"math"
	"sort"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/frametype/internal/model"
)

// KeyBackspace is the key name that removes the last typed character.
const KeyBackspace = "Backspace"

type charStat struct {
	correct      int
	incorrect    int
	latencySumMs int64
	latencyCount int64
}

// Run scores one pass over a target text. It is not safe for concurrent use;
// keystrokes must be fed in arrival order.
type Run struct {
	target   []rune
	typed    []rune
	lessonID int
	now      func() time.Time

	errorCount    int
	events        []model.KeystrokeEvent
	started       bool
	startedAt     time.Time
	endedAt       time.Time
	complete      bool
	prevCorrectAt time.Time
	charStats     map[rune]*charStat
}

// NewRun starts a run over target. A nil clock uses time.Now.
func NewRun(target string, lessonID int, now func() time.Time) *Run {
	if now == nil {
		now = time.Now
	}
	return &Run{
		target:    []rune(target),
		lessonID:  lessonID,
		now:       now,
		charStats: map[rune]*charStat{},
	}
}

// Key feeds one key. It returns the logged event and true when the key was a
// printable character; Backspace and ignored input return false.
func (r *Run) Key(key string) (model.KeystrokeEvent, bool) {
	if r.complete || len(r.target) == 0 {
		return model.KeystrokeEvent{}, false
	}
	if key == KeyBackspace {
		if len(r.typed) > 0 {
			r.typed = r.typed[:len(r.typed)-1]
		}
		return model.KeystrokeEvent{}, false
	}
	if utf8.RuneCountInString(key) != 1 {
		return model.KeystrokeEvent{}, false
	}
	typed, _ := utf8.DecodeRuneInString(key)
	if !unicode.IsPrint(typed) {
		return model.KeystrokeEvent{}, false
	}

	now := r.now()
	if !r.started {
		r.started = true
		r.startedAt = now
	}
	expected := r.target[len(r.typed)]
	correct := Matches(expected, typed)
	if !correct {
		r.errorCount++
	}
	r.updateStats(expected, correct, now)

	ev := model.KeystrokeEvent{
		TimestampMs: now.UnixMilli(),
		Prompted:    string(expected),
		Typed:       key,
		Correct:     correct,
		LatencyMs:   now.Sub(r.startedAt).Milliseconds(),
		LessonID:    r.lessonID,
	}
	r.events = append(r.events, ev)
	r.typed = append(r.typed, typed)

	if len(r.typed) == len(r.target) {
		r.complete = true
		r.endedAt = now
	}
	return ev, true
}

// Matches compares a typed rune against the expected one. Letters fold case;
// everything else must match exactly.
func Matches(expected, typed rune) bool {
	return unicode.ToLower(expected) == unicode.ToLower(typed)
}

func (r *Run) updateStats(expected rune, correct bool, now time.Time) {
	if expected == ' ' {
		return
	}
	entry, ok := r.charStats[expected]
	if !ok {
		entry = &charStat{}
		r.charStats[expected] = entry
	}
	if !correct {
		entry.incorrect++
		return
	}
	entry.correct++
	if !r.prevCorrectAt.IsZero() {
		entry.latencySumMs += now.Sub(r.prevCorrectAt).Milliseconds()
		entry.latencyCount++
	}
	r.prevCorrectAt = now
}

// Complete reports whether the typed buffer has reached the target length.
func (r *Run) Complete() bool {
	return r.complete
}

// Started reports whether a printable key has been accepted.
func (r *Run) Started() bool {
	return r.started
}

// StartedAt returns the time of the first accepted keystroke.
func (r *Run) StartedAt() time.Time {
	return r.startedAt
}

// EndedAt returns the time of the completing keystroke.
func (r *Run) EndedAt() time.Time {
	return r.endedAt
}

// Target returns the text being typed.
func (r *Run) Target() []rune {
	return r.target
}

// Typed returns the current typed buffer.
func (r *Run) Typed() []rune {
	return r.typed
}

// Cursor is the index of the next expected character.
func (r *Run) Cursor() int {
	return len(r.typed)
}

// ErrorCount returns the number of incorrect keystrokes so far. Backspacing
// over a mistake does not remove it.
func (r *Run) ErrorCount() int {
	return r.errorCount
}

// Events returns a copy of the keystroke log.
func (r *Run) Events() []model.KeystrokeEvent {
	out := make([]model.KeystrokeEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Result computes metrics from the current buffer. Elapsed time runs from the
// first keystroke to the completing one, or to now while the run is open.
func (r *Run) Result() model.RunResult {
	var elapsedMs int64
	if r.started {
		end := r.endedAt
		if !r.complete {
			end = r.now()
		}
		elapsedMs = end.Sub(r.startedAt).Milliseconds()
	}
	return Compute(len(r.typed), r.errorCount, elapsedMs)
}

// CharStats returns per-character stats ordered by character.
func (r *Run) CharStats() []model.CharStats {
	out := make([]model.CharStats, 0, len(r.charStats))
	for ch, entry := range r.charStats {
		out = append(out, model.CharStats{
			Char:         string(ch),
			Correct:      entry.correct,
			Incorrect:    entry.incorrect,
			LatencySumMs: entry.latencySumMs,
			LatencyCount: entry.latencyCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

// Compute derives run metrics. An empty buffer reports 100% accuracy and zero
// elapsed time reports zero speed.
func Compute(totalTyped, errorCount int, elapsedMs int64) model.RunResult {
	res := model.RunResult{
		AccuracyPct: 100,
		ErrorCount:  errorCount,
		ElapsedMs:   elapsedMs,
	}
	if elapsedMs < 0 {
		res.ElapsedMs = 0
	}
	if totalTyped > 0 {
		acc := int(math.Round(float64(totalTyped-errorCount) / float64(totalTyped) * 100))
		res.AccuracyPct = clamp(acc, 0, 100)
	}
	if res.ElapsedMs > 0 {
		minutes := float64(res.ElapsedMs) / 60000.0
		res.CPM = int(math.Round(float64(totalTyped) / minutes))
		res.WPM = int(math.Round(float64(totalTyped) / 5.0 / minutes))
	}
	return res
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
