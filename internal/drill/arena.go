package drill

import (
	"strings"
	"time"

	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/scoring"
)

// ArenaPassAccuracy is the accuracy that clears an arena level.
const ArenaPassAccuracy = 95

// Arena is one timed pass over a level's practice text.
type Arena struct {
	level int
	run   *scoring.Run
}

// NewArena starts an arena run. The text is lower-cased.
func NewArena(level int, text string, now func() time.Time) *Arena {
	return &Arena{level: level, run: scoring.NewRun(strings.ToLower(text), level, now)}
}

func (a *Arena) Level() int { return a.level }
func (a *Arena) Run() *scoring.Run { return a.run }
func (a *Arena) Completed() bool { return a.run.Complete() }
func (a *Arena) Result() model.RunResult { return a.run.Result() }

// Key feeds one key into the run.
func (a *Arena) Key(key string) (model.KeystrokeEvent, bool) {
	return a.run.Key(key)
}

// Cleared reports whether res clears the level.
func Cleared(res model.RunResult) bool {
	return res.AccuracyPct >= ArenaPassAccuracy
}
