package score

import (
	"git.lost.host/meutraa/vbeat/internal/game"
)

// Scorer resolves input and elapsed time against a chart, recording the
// result on the notes and in a Tally. Every method takes the current time
// explicitly.
type Scorer interface {
	// Press judges a lane press against the nearest pending note.
	Press(chart *game.Chart, tally *Tally, lane int, nowMs int64) Outcome

	// Release ends the hold currently held in lane, if any.
	Release(chart *game.Chart, tally *Tally, lane int, nowMs int64) Outcome

	// Sweep misses every note whose window has passed, appending to out.
	Sweep(chart *game.Chart, tally *Tally, nowMs int64, out []Outcome) []Outcome

	// Bonus pays the periodic hold bonus for every held note.
	Bonus(chart *game.Chart, tally *Tally) int64

	// Distance is the signed offset from ms to the note, positive when early.
	Distance(n *game.Note, ms int64) int64
}

type Kind uint8

const (
	None Kind = iota
	Tapped
	HoldStarted
	HoldReleased
	ReleaseMissed // the hold was let go outside every window
	PressMissed   // the nearest note was outside every window
	Swept         // the window passed without input
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Tapped:
		return "tapped"
	case HoldStarted:
		return "hold-started"
	case HoldReleased:
		return "hold-released"
	case ReleaseMissed:
		return "release-missed"
	case PressMissed:
		return "press-missed"
	case Swept:
		return "swept"
	}
	return "unknown"
}

// Miss reports whether the outcome broke the combo.
func (k Kind) Miss() bool {
	return k == ReleaseMissed || k == PressMissed || k == Swept
}

type Outcome struct {
	Kind   Kind
	Note   game.NoteID
	Lane   int
	Tier   int   // game.NoTier for misses
	Offset int64 // signed, positive when early
	Delta  int64 // score change
	Combo  int   // combo after the outcome
	AtMs   int64
}
