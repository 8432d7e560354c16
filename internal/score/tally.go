package score

import (
	"sort"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
)

// Tally is the running score of one play.
type Tally struct {
	Score    int64
	Combo    int
	MaxCombo int
	MaxScore int64
	Counts   []int // per tier
	Misses   int

	// SafeReached is set once the score has reached the safe threshold.
	// From then on penalties are no longer floored at zero.
	SafeReached bool

	cfg *config.ScoringConfig
}

func NewTally(cfg *config.Config, maxScore int64) *Tally {
	return &Tally{
		MaxScore: maxScore,
		Counts:   make([]int, len(cfg.Judgement.Tiers)),
		cfg:      &cfg.Scoring,
	}
}

// Reset zeroes everything except MaxScore.
func (t *Tally) Reset() {
	t.Score = 0
	t.Combo = 0
	t.MaxCombo = 0
	t.Misses = 0
	t.SafeReached = false
	for i := range t.Counts {
		t.Counts[i] = 0
	}
}

// Multiplier is the combo multiplier at the current combo.
func (t *Tally) Multiplier() int64 {
	return t.cfg.Multiplier(t.Combo)
}

// Judged counts a successful judgement in tier, extending the combo when
// chain is true.
func (t *Tally) Judged(tier int, chain bool) {
	if tier >= 0 && tier < len(t.Counts) {
		t.Counts[tier]++
	}
	if chain {
		t.Combo++
		if t.Combo > t.MaxCombo {
			t.MaxCombo = t.Combo
		}
	}
}

// Award adds points and returns them.
func (t *Tally) Award(points int64) int64 {
	t.Score += points
	if t.cfg.SafeScore > 0 && t.Score >= t.cfg.SafeScore {
		t.SafeReached = true
	}
	return points
}

// Miss breaks the combo and applies the flat penalty, returning the score
// change.
func (t *Tally) Miss() int64 {
	t.Misses++
	t.Combo = 0
	before := t.Score
	t.Score -= t.cfg.MissPenalty
	if !t.SafeReached && t.Score < 0 {
		t.Score = 0
	}
	return t.Score - before
}

// Accuracy is Score over MaxScore, clamped to [0, 1].
func (t *Tally) Accuracy() float64 {
	return Accuracy(t.Score, t.MaxScore)
}

func Accuracy(score, maxScore int64) float64 {
	if maxScore <= 0 || score <= 0 {
		return 0
	}
	r := float64(score) / float64(maxScore)
	if r > 1 {
		return 1
	}
	return r
}

var grades = []struct {
	min   float64
	grade string
}{
	{0.95, "S"},
	{0.85, "A"},
	{0.70, "B"},
	{0.55, "C"},
	{0.40, "D"},
}

// Grade maps an accuracy ratio to a letter class.
func Grade(accuracy float64) string {
	for _, g := range grades {
		if accuracy >= g.min {
			return g.grade
		}
	}
	return "F"
}

// MaxScore is the score of a perfect run: the best tier on every press and
// release, the combo growing one per note, and the hold bonus paid on every
// bonus tick that falls inside a hold. Ticks are paid with the multiplier of
// the combo at that moment, and a tick at the same time as a press or a
// release is paid first, the way a session pays them.
func MaxScore(chart *game.Chart, cfg *config.Config) int64 {
	if len(cfg.Judgement.Tiers) == 0 {
		return 0
	}
	best := cfg.Judgement.Tiers[0].Value
	interval := cfg.Scoring.BonusIntervalMs

	type kind uint8
	const (
		tick kind = iota
		press
		release
	)
	type event struct {
		at   int64
		kind kind
		note *game.Note
	}
	events := make([]event, 0, len(chart.Notes)*2)
	for _, n := range chart.Notes {
		events = append(events, event{at: n.Ms, kind: press, note: n})
		if !n.IsHold() {
			continue
		}
		events = append(events, event{at: n.EndMs, kind: release, note: n})
		if interval <= 0 {
			continue
		}
		for at := firstTick(n.Ms, interval); at <= n.EndMs; at += interval {
			events = append(events, event{at: at, kind: tick, note: n})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].kind == tick && events[j].kind != tick
	})

	var total int64
	combo := 0
	for _, e := range events {
		switch {
		case e.kind == tick:
			total += cfg.Scoring.HoldBonus * cfg.Scoring.Multiplier(combo)
		case e.kind == release:
			total += best * cfg.Scoring.Multiplier(combo)
		case e.note.IsHold():
			combo++
		default:
			total += best * cfg.Scoring.Multiplier(combo)
			combo++
		}
	}
	return total
}

// firstTick is the first multiple of interval after ms.
func firstTick(ms, interval int64) int64 {
	k := ms / interval
	if ms < 0 && ms%interval != 0 {
		k--
	}
	return (k + 1) * interval
}
