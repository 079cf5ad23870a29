// Package drill implements the free character drill and the practice arena,
// both organized by cumulative character levels.
package drill

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/scoring"
)

// FeedbackDelay is how long the verdict of a prompt stays on screen.
const FeedbackDelay = 800 * time.Millisecond

var ErrFeedback = errors.New("drill is showing feedback")

// Answer is the verdict of one prompt.
type Answer struct {
	Event   model.KeystrokeEvent
	Correct bool
	// Token must be passed to Next once FeedbackDelay has elapsed.
	Token int
}

// CharacterDrill shows one character at a time and compares the typed key
// case-insensitively. It is not safe for concurrent use.
type CharacterDrill struct {
	level int
	seq   []string
	now   func() time.Time

	index    int
	correct  int
	total    int
	feedback bool
	token    int
	promptAt time.Time
	started  time.Time
	ended    time.Time
	stats    map[string]*model.CharStats
}

// NewCharacterDrill starts a drill over seq, usually built with
// generator.DrillSequence. A nil clock uses time.Now.
func NewCharacterDrill(level int, seq []string, now func() time.Time) *CharacterDrill {
	if now == nil {
		now = time.Now
	}
	d := &CharacterDrill{
		level: level,
		seq:   seq,
		now:   now,
		stats: map[string]*model.CharStats{},
	}
	d.started = now()
	d.promptAt = d.started
	if len(seq) == 0 {
		d.ended = d.started
	}
	return d
}

func (d *CharacterDrill) Level() int { return d.level }

// Current returns the prompted character.
func (d *CharacterDrill) Current() (string, bool) {
	if d.Done() {
		return "", false
	}
	return d.seq[d.index], true
}

// Position returns the 1-based prompt number and the number of prompts.
func (d *CharacterDrill) Position() (int, int) {
	if d.Done() {
		return len(d.seq), len(d.seq)
	}
	return d.index + 1, len(d.seq)
}

func (d *CharacterDrill) Done() bool { return d.index >= len(d.seq) }
func (d *CharacterDrill) Feedback() bool { return d.feedback }

// Key answers the current prompt with a single printable key. Keys typed
// while feedback is showing are rejected with ErrFeedback; other ignored
// input returns false.
func (d *CharacterDrill) Key(key string) (Answer, bool, error) {
	if d.Done() {
		return Answer{}, false, nil
	}
	if d.feedback {
		return Answer{}, false, ErrFeedback
	}
	r, size := utf8.DecodeRuneInString(key)
	if size == 0 || size != len(key) || !unicode.IsPrint(r) {
		return Answer{}, false, nil
	}
	prompted := d.seq[d.index]
	typed := strings.ToUpper(key)
	correct := typed == strings.ToUpper(prompted)
	ts := d.now()

	stat := d.stats[prompted]
	if stat == nil {
		stat = &model.CharStats{Char: prompted}
		d.stats[prompted] = stat
	}
	latency := ts.Sub(d.promptAt).Milliseconds()
	if correct {
		stat.Correct++
		d.correct++
	} else {
		stat.Incorrect++
	}
	stat.LatencySumMs += latency
	stat.LatencyCount++
	d.total++

	d.feedback = true
	d.token++
	return Answer{
		Event: model.KeystrokeEvent{
			TimestampMs: ts.UnixMilli(),
			Prompted:    prompted,
			Typed:       typed,
			Correct:     correct,
			LatencyMs:   latency,
			LessonID:    d.level,
		},
		Correct: correct,
		Token:   d.token,
	}, true, nil
}

// Next moves to the following prompt once the feedback delay has elapsed.
// Stale tokens are ignored.
func (d *CharacterDrill) Next(token int) bool {
	if !d.feedback || token != d.token {
		return false
	}
	d.feedback = false
	d.index++
	d.promptAt = d.now()
	if d.Done() {
		d.ended = d.promptAt
	}
	return true
}

// Cancel drops a pending Next.
func (d *CharacterDrill) Cancel() { d.token++ }

// Accuracy is round(correct/answered*100), or 100 before the first answer.
func (d *CharacterDrill) Accuracy() int {
	if d.total == 0 {
		return 100
	}
	return int(math.Round(float64(d.correct) / float64(d.total) * 100))
}

// Result summarizes the drill in the same shape as a typing run.
func (d *CharacterDrill) Result() model.RunResult {
	end := d.ended
	if end.IsZero() {
		end = d.now()
	}
	res := scoring.Compute(d.total, d.total-d.correct, end.Sub(d.started).Milliseconds())
	res.AccuracyPct = d.Accuracy()
	return res
}

// CharStats returns per-character stats sorted by character.
func (d *CharacterDrill) CharStats() []model.CharStats {
	out := make([]model.CharStats, 0, len(d.stats))
	for _, s := range d.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

func (d *CharacterDrill) StartedAt() time.Time { return d.started }
func (d *CharacterDrill) EndedAt() time.Time { return d.ended }
