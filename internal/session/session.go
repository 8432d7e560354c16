package session

import (
	"log/slog"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/score"
	"github.com/google/uuid"
)

type Finish uint8

const (
	Running Finish = iota
	Cleared
	GameOver
)

func (f Finish) String() string {
	switch f {
	case Running:
		return "running"
	case Cleared:
		return "cleared"
	case GameOver:
		return "game-over"
	}
	return "unknown"
}

// Observer is told about every judgement and the end of a run.
type Observer interface {
	Observe(o score.Outcome)
	Finished(r *Result)
}

var nopLogger = slog.New(slog.DiscardHandler)

type nopObserver struct{}

func (nopObserver) Observe(score.Outcome) {}
func (nopObserver) Finished(*Result)      {}

// Session is the state of one play through a chart. It is not safe for
// concurrent use; every method takes the current playback time explicitly and
// the caller keeps those times non-decreasing between Seeks.
type Session struct {
	ID uuid.UUID

	cfg      *config.Config
	scorer   score.Scorer
	chart    *game.Chart
	tally    *score.Tally
	gate     *input.Gate
	base     *slog.Logger
	logger   *slog.Logger
	observer Observer

	paused    bool
	startMs   int64
	lastBonus int64
	nowMs     int64

	belowZero      bool
	belowZeroSince int64
	finish         Finish
	finishedAt     int64

	events  []score.Outcome
	spare   []score.Outcome
	holding []game.NoteID
	inputs  []game.Input
	logged  []bool // lane state the input log implies
}

func New(cfg *config.Config, chart *game.Chart, logger *slog.Logger) *Session {
	if nil == logger {
		logger = slog.Default()
	}
	s := &Session{
		cfg:      cfg,
		scorer:   score.NewDefaultScorer(cfg),
		gate:     input.NewGate(cfg.Lanes.Count()),
		logged:   make([]bool, cfg.Lanes.Count()),
		base:     logger,
		observer: nopObserver{},
	}
	s.load(chart)
	s.restart()
	s.Seek(0)
	return s
}

// SetObserver replaces the observer, nil removes it.
func (s *Session) SetObserver(o Observer) {
	if nil == o {
		o = nopObserver{}
	}
	s.observer = o
}

func (s *Session) load(chart *game.Chart) {
	s.chart = chart
	s.tally = score.NewTally(s.cfg, score.MaxScore(chart, s.cfg))
}

func (s *Session) restart() {
	s.ID = uuid.New()
	s.logger = s.base.With(slog.String("run", s.ID.String()))
}

func (s *Session) Chart() *game.Chart {
	return s.chart
}

func (s *Session) Tally() *score.Tally {
	return s.tally
}

func (s *Session) Paused() bool {
	return s.paused
}

func (s *Session) Finish() Finish {
	return s.finish
}

func (s *Session) active() bool {
	return !s.paused && s.finish == Running
}

func (s *Session) emit(o score.Outcome) {
	if o.Kind == score.None {
		return
	}
	s.events = append(s.events, o)
	s.observer.Observe(o)
	s.logger.Debug("judged",
		slog.String("kind", o.Kind.String()),
		slog.Any("note", o.Note),
		slog.Int("lane", o.Lane),
		slog.Int("tier", o.Tier),
		slog.Int64("offset", o.Offset),
		slog.Int64("at", o.AtMs))
}

func (s *Session) record(lane int, down bool, nowMs int64) {
	s.inputs = append(s.inputs, game.Input{Lane: lane, Down: down, Ms: nowMs})
	s.logged[lane] = down
}

// advance brings time based state up to nowMs: hold bonus ticks first, then
// the miss sweep. Running it before every input makes the result depend only
// on input times and not on how often the tickers fire.
func (s *Session) advance(nowMs int64) {
	if nowMs > s.nowMs {
		s.nowMs = nowMs
	}
	s.catchUpBonus(nowMs)
	before := len(s.events)
	s.events = s.scorer.Sweep(s.chart, s.tally, nowMs, s.events)
	for _, o := range s.events[before:] {
		s.observer.Observe(o)
	}
}

func (s *Session) catchUpBonus(nowMs int64) int64 {
	interval := s.cfg.Scoring.BonusIntervalMs
	var total int64
	for s.lastBonus+interval <= nowMs {
		s.lastBonus += interval
		total += s.scorer.Bonus(s.chart, s.tally)
	}
	return total
}

// LaneDown judges a lane press. Repeated presses of a lane that is already
// down are dropped. While paused the press is only remembered.
func (s *Session) LaneDown(lane int, nowMs int64) score.Outcome {
	if s.finish != Running || !s.gate.Down(lane) || s.paused {
		return score.Outcome{Kind: score.None, Lane: lane, Tier: game.NoTier, AtMs: nowMs}
	}
	return s.press(lane, nowMs)
}

// LaneUp ends a hold in lane. Releases of a lane that is not down are
// dropped. While paused the release is only remembered.
func (s *Session) LaneUp(lane int, nowMs int64) score.Outcome {
	if s.finish != Running || !s.gate.Up(lane) || s.paused {
		return score.Outcome{Kind: score.None, Lane: lane, Tier: game.NoTier, AtMs: nowMs}
	}
	return s.release(lane, nowMs)
}

func (s *Session) press(lane int, nowMs int64) score.Outcome {
	s.record(lane, true, nowMs)
	s.advance(nowMs)
	out := s.scorer.Press(s.chart, s.tally, lane, nowMs)
	s.emit(out)
	s.check(nowMs)
	return out
}

func (s *Session) release(lane int, nowMs int64) score.Outcome {
	s.record(lane, false, nowMs)
	s.advance(nowMs)
	out := s.scorer.Release(s.chart, s.tally, lane, nowMs)
	s.emit(out)
	s.check(nowMs)
	return out
}

// Sweep misses every overdue note. It is the only place misses without
// input are decided.
func (s *Session) Sweep(nowMs int64) {
	if !s.active() {
		return
	}
	s.advance(nowMs)
	s.check(nowMs)
}

// BonusTick pays the hold bonus for every interval elapsed since the last
// payment and returns the points awarded.
func (s *Session) BonusTick(nowMs int64) int64 {
	if !s.active() {
		return 0
	}
	if nowMs > s.nowMs {
		s.nowMs = nowMs
	}
	points := s.catchUpBonus(nowMs)
	s.check(nowMs)
	return points
}

func (s *Session) Pause() {
	if s.paused {
		return
	}
	s.paused = true
	s.logger.Info("paused", slog.Int64("at", s.nowMs))
}

// Resume continues the run at nowMs. Keys pressed or released while paused
// take effect then, so the input log stays a strict alternation of presses
// and releases per lane.
func (s *Session) Resume(nowMs int64) {
	if !s.paused {
		return
	}
	s.paused = false
	nowMs = max(nowMs, s.nowMs)
	s.logger.Info("resumed", slog.Int64("at", nowMs))
	for lane, down := range s.logged {
		if s.finish != Running {
			return
		}
		switch pressed := s.gate.Pressed(lane); {
		case pressed && !down:
			s.press(lane, nowMs)
		case !pressed && down:
			s.release(lane, nowMs)
		}
	}
}

// Seek moves playback to targetMs. Notes starting before the target are
// settled without scoring, every other note is pending again and the tally
// starts over.
func (s *Session) Seek(targetMs int64) {
	if targetMs < 0 {
		targetMs = 0
	}
	for _, n := range s.chart.Notes {
		n.Reset()
		if n.Ms >= targetMs {
			continue
		}
		if n.IsHold() {
			n.Status = game.Released
		} else {
			n.Status = game.Hit
		}
	}
	s.tally.Reset()
	s.gate.Reset()
	s.events = s.events[:0]
	s.inputs = s.inputs[:0]
	for i := range s.logged {
		s.logged[i] = false
	}
	s.startMs = targetMs
	s.nowMs = targetMs
	s.lastBonus = targetMs - targetMs%s.cfg.Scoring.BonusIntervalMs
	s.belowZero = false
	s.finish = Running
	s.finishedAt = 0
	s.logger.Debug("seek", slog.Int64("to", targetMs))
}

// Reset starts the chart over as a new run.
func (s *Session) Reset() {
	s.restart()
	s.paused = false
	s.Seek(0)
}

// Load swaps in a new chart, typically after the file changed on disk, and
// seeks to the current time.
func (s *Session) Load(chart *game.Chart) {
	s.load(chart)
	s.Seek(s.nowMs)
}

// EndOfTrack finishes the run when playback stops.
func (s *Session) EndOfTrack(nowMs int64) {
	if s.finish != Running {
		return
	}
	s.advance(nowMs)
	s.end(Cleared, nowMs)
}

func (s *Session) check(nowMs int64) {
	if s.finish != Running {
		return
	}
	sc := &s.cfg.Scoring
	if sc.SafeScore > 0 && s.tally.SafeReached && s.tally.Score < 0 {
		if !s.belowZero {
			s.belowZero = true
			s.belowZeroSince = nowMs
		} else if nowMs-s.belowZeroSince >= sc.GameOverAfterMs {
			s.end(GameOver, nowMs)
			return
		}
	} else {
		s.belowZero = false
	}
	if s.chart.Done() {
		s.end(Cleared, nowMs)
	}
}

func (s *Session) end(f Finish, nowMs int64) {
	s.finish = f
	s.finishedAt = nowMs
	r := s.Result()
	s.logger.Info("finished",
		slog.String("finish", f.String()),
		slog.Int64("score", r.Score),
		slog.Int64("max_score", r.MaxScore),
		slog.Int("max_combo", r.MaxCombo),
		slog.String("grade", r.Grade))
	s.observer.Finished(r)
}

// Drain returns the judgements since the previous Drain. The slice is only
// valid until the next Drain.
func (s *Session) Drain() []score.Outcome {
	out := s.events
	s.events, s.spare = s.spare[:0], out
	return out
}

// Holding lists the notes currently held. The slice is reused between calls.
func (s *Session) Holding() []game.NoteID {
	s.holding = s.holding[:0]
	for _, n := range s.chart.Notes {
		if n.Status == game.Holding {
			s.holding = append(s.holding, n.ID)
		}
	}
	return s.holding
}

// Inputs is the edge log since the last Seek.
func (s *Session) Inputs() []game.Input {
	return s.inputs
}
