package score

import "git.lost.host/meutraa/vbeat/internal/game"

// Sweep is the authoritative miss pass. It only acts on notes still Pending
// or Holding, so running it again at the same time changes nothing.
func (s *DefaultScorer) Sweep(chart *game.Chart, tally *Tally, nowMs int64, out []Outcome) []Outcome {
	window := s.cfg.Judgement.MissWindowMs
	for _, note := range chart.Notes {
		// Sorted by time: nothing from here on can be due yet
		if note.Ms+window >= nowMs {
			break
		}
		var deadline int64
		switch note.Status {
		case game.Pending:
			deadline = note.Ms + window
		case game.Holding:
			deadline = note.EndMs + window
		default:
			continue
		}
		if nowMs <= deadline {
			continue
		}
		note.Status = game.Missed
		delta := tally.Miss()
		out = append(out, Outcome{
			Kind:   Swept,
			Note:   note.ID,
			Lane:   note.Lane,
			Tier:   game.NoTier,
			Offset: deadline - window - nowMs,
			Delta:  delta,
			Combo:  tally.Combo,
			AtMs:   nowMs,
		})
	}
	return out
}
