package session

import (
	"sort"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/score"
	"github.com/google/uuid"
)

// Frame is what a renderer needs to draw one frame. Chart and Holding are
// shared with the session and must not be modified.
type Frame struct {
	RunID   uuid.UUID
	NowMs   int64
	Speed   float64
	Chart   *game.Chart
	Tally   score.Tally
	Holding []game.NoteID
	Paused  bool
	Finish  Finish
}

// Frame samples the session for drawing. It never judges anything.
func (s *Session) Frame(nowMs int64) Frame {
	return Frame{
		RunID:   s.ID,
		NowMs:   nowMs,
		Speed:   s.cfg.Speed,
		Chart:   s.chart,
		Tally:   *s.tally,
		Holding: s.Holding(),
		Paused:  s.paused,
		Finish:  s.finish,
	}
}

// Summary is the state published to spectators.
type Summary struct {
	RunID      string `json:"runId"`
	Score      int64  `json:"score"`
	Combo      int    `json:"combo"`
	MaxScore   int64  `json:"maxScore"`
	Difficulty string `json:"difficulty"`
	TimeMs     int64  `json:"time"`
	Finish     string `json:"finish,omitempty"`
}

func (s *Session) Summary(nowMs int64) Summary {
	sum := Summary{
		RunID:      s.ID.String(),
		Score:      s.tally.Score,
		Combo:      s.tally.Combo,
		MaxScore:   s.tally.MaxScore,
		Difficulty: s.chart.Difficulty.Name,
		TimeMs:     nowMs,
	}
	if s.finish != Running {
		sum.Finish = s.finish.String()
	}
	return sum
}

// Result is the final record of a run.
type Result struct {
	RunID      uuid.UUID
	Difficulty game.Difficulty
	Finish     Finish
	StartMs    int64
	EndMs      int64
	Score      int64
	MaxScore   int64
	MaxCombo   int
	Counts     []int
	Misses     int
	Accuracy   float64
	Grade      string
	Inputs     []game.Input
}

// Result is valid at any time, EndMs is zero while the run is going.
func (s *Session) Result() *Result {
	acc := s.tally.Accuracy()
	return &Result{
		RunID:      s.ID,
		Difficulty: s.chart.Difficulty,
		Finish:     s.finish,
		StartMs:    s.startMs,
		EndMs:      s.finishedAt,
		Score:      s.tally.Score,
		MaxScore:   s.tally.MaxScore,
		MaxCombo:   s.tally.MaxCombo,
		Counts:     append([]int(nil), s.tally.Counts...),
		Misses:     s.tally.Misses,
		Accuracy:   acc,
		Grade:      score.Grade(acc),
		Inputs:     append([]game.Input(nil), s.inputs...),
	}
}

// Replay plays a recorded input log against a fresh copy of chart and returns
// the result. Every input first brings the sweep and the hold bonus up to
// date, so the result follows from the input times alone and not from when
// the live tickers happened to fire.
func Replay(cfg *config.Config, chart *game.Chart, startMs int64, inputs []game.Input) *Result {
	s := New(cfg, chart.Clone(), nopLogger)
	s.Seek(startMs)

	sorted := append([]game.Input(nil), inputs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ms < sorted[j].Ms })

	step := cfg.Scoring.SweepIntervalMs
	next := startMs + step
	for _, in := range sorted {
		for ; next < in.Ms && s.finish == Running; next += step {
			s.Sweep(next)
		}
		if s.finish != Running {
			break
		}
		if in.Down {
			s.LaneDown(in.Lane, in.Ms)
		} else {
			s.LaneUp(in.Lane, in.Ms)
		}
	}

	end := chart.Last() + cfg.Judgement.MissWindowMs + 1
	for ; next <= end && s.finish == Running; next += step {
		s.Sweep(next)
	}
	s.EndOfTrack(end)
	return s.Result()
}
