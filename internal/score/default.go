package score

import (
	"math"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
)

type DefaultScorer struct {
	cfg *config.Config
}

func NewDefaultScorer(cfg *config.Config) *DefaultScorer {
	return &DefaultScorer{cfg: cfg}
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Distance is positive when ms is before the note.
func (s *DefaultScorer) Distance(n *game.Note, ms int64) int64 {
	return n.Ms - ms
}

// Judge classifies an absolute offset. Offsets past the last tier but still
// inside the miss window count as the last tier, so a note can be hit for as
// long as the sweeper leaves it alone.
func (s *DefaultScorer) Judge(d int64) (int, bool) {
	tiers := s.cfg.Judgement.Tiers
	for i := 0; i < len(tiers); i++ {
		if d <= tiers[i].Ms {
			return i, true
		}
	}
	if d <= s.cfg.Judgement.MissWindowMs {
		return len(tiers) - 1, true
	}
	return game.NoTier, false
}

// closest finds the pending note in lane nearest to ms. Notes are sorted by
// time, so once the distance starts growing the scan can stop. Equal
// distances keep the earlier note.
func (s *DefaultScorer) closest(chart *game.Chart, lane int, ms int64) (*game.Note, int64) {
	var closestNote *game.Note
	var distance int64
	absDistance := int64(math.MaxInt64)

	for _, note := range chart.Notes {
		if note.Lane != lane || note.Status != game.Pending {
			continue
		}
		dd := s.Distance(note, ms)
		d := abs(dd)
		if d < absDistance {
			distance = dd
			absDistance = d
			closestNote = note
		} else if nil != closestNote {
			// already found the closest, and this d is >= md
			break
		}
	}
	return closestNote, distance
}

func (s *DefaultScorer) Press(chart *game.Chart, tally *Tally, lane int, nowMs int64) Outcome {
	note, distance := s.closest(chart, lane, nowMs)
	if nil == note {
		return Outcome{Kind: None, Lane: lane, Tier: game.NoTier, AtMs: nowMs}
	}

	out := Outcome{Note: note.ID, Lane: lane, Offset: distance, AtMs: nowMs}
	tier, ok := s.Judge(abs(distance))
	if !ok {
		out.Kind = PressMissed
		out.Tier = game.NoTier
		out.Delta = tally.Miss()
		// An overdue note would be swept on the next tick anyway; resolving
		// it here keeps it from being penalised a second time.
		if nowMs > note.Ms+s.cfg.Judgement.MissWindowMs {
			note.Status = game.Missed
			note.HitMs = nowMs
		}
		out.Combo = tally.Combo
		return out
	}

	out.Tier = tier
	note.Tier = tier
	note.HitMs = nowMs
	if note.IsHold() {
		note.Status = game.Holding
		out.Kind = HoldStarted
		tally.Judged(tier, true)
	} else {
		note.Status = game.Hit
		out.Kind = Tapped
		points := s.cfg.Judgement.Tiers[tier].Value * tally.Multiplier()
		tally.Judged(tier, true)
		out.Delta = tally.Award(points)
	}
	out.Combo = tally.Combo
	return out
}

func (s *DefaultScorer) Release(chart *game.Chart, tally *Tally, lane int, nowMs int64) Outcome {
	var held *game.Note
	for _, note := range chart.Notes {
		if note.Lane == lane && note.Status == game.Holding {
			held = note
			break
		}
	}
	if nil == held {
		return Outcome{Kind: None, Lane: lane, Tier: game.NoTier, AtMs: nowMs}
	}

	distance := held.EndMs - nowMs
	out := Outcome{Note: held.ID, Lane: lane, Offset: distance, AtMs: nowMs}
	held.Status = game.Released
	held.ReleaseMs = nowMs

	tier, ok := s.Judge(abs(distance))
	if !ok {
		held.ReleaseTier = game.NoTier
		out.Kind = ReleaseMissed
		out.Tier = game.NoTier
		out.Delta = tally.Miss()
		out.Combo = tally.Combo
		return out
	}

	held.ReleaseTier = tier
	out.Kind = HoldReleased
	out.Tier = tier
	out.Delta = tally.Award(s.cfg.Judgement.Tiers[tier].Value * tally.Multiplier())
	tally.Judged(tier, false)
	out.Combo = tally.Combo
	return out
}

func (s *DefaultScorer) Bonus(chart *game.Chart, tally *Tally) int64 {
	var total int64
	for _, note := range chart.Notes {
		if note.Status == game.Holding {
			total += tally.Award(s.cfg.Scoring.HoldBonus * tally.Multiplier())
		}
	}
	return total
}
