package session

import (
	"context"

	"github.com/verte-zerg/frametype/internal/drill"
	"github.com/verte-zerg/frametype/internal/model"
	"github.com/verte-zerg/frametype/internal/stats"
)

// StartDrill opens a character drill over the cumulative characters of level.
func (s *Session) StartDrill(level int) (*drill.CharacterDrill, error) {
	if _, err := s.cur.Level(level); err != nil {
		return nil, err
	}
	s.discard()
	seq := s.gen.DrillSequence(s.cur.LevelCharacters(level), s.weakChars(), s.weakFactor)
	s.drill = drill.NewCharacterDrill(level, seq, s.now)
	s.drillRecorded = false
	return s.drill, nil
}

// OnDrillKey answers the current drill prompt and counts the attempt toward
// the prompted character's accuracy.
func (s *Session) OnDrillKey(key string) (drill.Answer, bool, error) {
	if s.drill == nil {
		return drill.Answer{}, false, ErrNoDrill
	}
	ans, ok, err := s.drill.Key(key)
	if err != nil || !ok {
		return ans, ok, err
	}
	s.agg.RecordKeystrokeAccuracy(ans.Event.Prompted, ans.Correct)
	return ans, true, nil
}

// DrillNext moves past the feedback of the last answer. Stale tokens are ignored.
func (s *Session) DrillNext(token int) bool {
	if s.drill == nil {
		return false
	}
	return s.drill.Next(token)
}

// FinishDrill records a finished drill once and returns its result.
func (s *Session) FinishDrill(ctx context.Context) (model.RunResult, error) {
	if s.drill == nil {
		return model.RunResult{}, ErrNoDrill
	}
	if !s.drill.Done() {
		return model.RunResult{}, ErrRunIncomplete
	}
	res := s.drill.Result()
	if s.drillRecorded {
		return res, ErrAlreadyRecorded
	}
	s.drillRecorded = true
	s.record(ctx, model.RunRecord{
		Kind:      model.RunDrill,
		LessonID:  s.drill.Level(),
		StartedAt: s.drill.StartedAt(),
		EndedAt:   s.drill.EndedAt(),
		Result:    res,
		Chars:     s.drill.CharStats(),
	})
	return res, nil
}

// StartArena opens a practice arena run over one of level's practice texts.
func (s *Session) StartArena(level int) (*drill.Arena, error) {
	lv, err := s.cur.Level(level)
	if err != nil {
		return nil, err
	}
	s.discard()
	text := s.gen.PickWeighted(lv.Practice, stats.WeakRunes(s.weakChars()), s.weakFactor)
	s.arena = drill.NewArena(level, text, s.now)
	s.arenaRecorded = false
	return s.arena, nil
}

// OnArenaKey feeds a key to the arena run.
func (s *Session) OnArenaKey(key string) (model.KeystrokeEvent, bool) {
	if s.arena == nil {
		return model.KeystrokeEvent{}, false
	}
	return s.arena.Key(key)
}

// ArenaOutcome is the result of a finished arena run.
type ArenaOutcome struct {
	Result  model.RunResult
	Cleared bool
}

// FinishArena grades a completed arena run, clears the level when accuracy
// reaches drill.ArenaPassAccuracy, and records the run once.
func (s *Session) FinishArena(ctx context.Context) (ArenaOutcome, error) {
	if s.arena == nil {
		return ArenaOutcome{}, ErrNoArena
	}
	if !s.arena.Completed() {
		return ArenaOutcome{}, ErrRunIncomplete
	}
	out := ArenaOutcome{Result: s.arena.Result()}
	out.Cleared = drill.Cleared(out.Result)
	if s.arenaRecorded {
		return out, ErrAlreadyRecorded
	}
	s.arenaRecorded = true
	if out.Cleared {
		s.agg.CompleteLevel(s.arena.Level())
	}
	run := s.arena.Run()
	s.record(ctx, model.RunRecord{
		Kind:      model.RunArena,
		LessonID:  s.arena.Level(),
		StartedAt: run.StartedAt(),
		EndedAt:   run.EndedAt(),
		Result:    out.Result,
		Chars:     run.CharStats(),
	})
	return out, nil
}
