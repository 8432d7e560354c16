package game

import "fmt"

// NoteID identifies a note for its whole life. A chart never hands the same
// id out twice.
type NoteID uint32

type NoteType uint8

const (
	Tap NoteType = iota
	Hold
)

func (t NoteType) String() string {
	switch t {
	case Tap:
		return "tap"
	case Hold:
		return "long"
	}
	return fmt.Sprintf("NoteType(%d)", uint8(t))
}

// Status is the judgement state of a note. A tap moves Pending -> Hit or
// Pending -> Missed. A hold moves Pending -> Holding -> Released, or ends in
// Missed from either of the first two.
type Status uint8

const (
	Pending Status = iota
	Hit
	Holding
	Released
	Missed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Hit:
		return "hit"
	case Holding:
		return "holding"
	case Released:
		return "released"
	case Missed:
		return "missed"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Terminal reports whether no further judgement can change the status.
func (s Status) Terminal() bool {
	return s == Hit || s == Released || s == Missed
}

// NoTier marks a judgement slot that has not been filled.
const NoTier = -1

type Note struct {
	ID    NoteID
	Lane  int
	Type  NoteType
	Ms    int64 // The time the note should be hit
	EndMs int64 // The time a hold should be released, zero for taps

	// This is state
	Status      Status
	Tier        int   // Tier of the press, NoTier until judged
	ReleaseTier int   // Tier of a hold release, NoTier until judged
	HitMs       int64 // When the note was pressed
	ReleaseMs   int64 // When a hold was let go
}

// IsHold is shorthand for n.Type == Hold.
func (n *Note) IsHold() bool {
	return n.Type == Hold
}

// End is the last instant covered by the note.
func (n *Note) End() int64 {
	if n.IsHold() {
		return n.EndMs
	}
	return n.Ms
}

// Reset clears all judgement state.
func (n *Note) Reset() {
	n.Status = Pending
	n.Tier = NoTier
	n.ReleaseTier = NoTier
	n.HitMs = 0
	n.ReleaseMs = 0
}

// Distance is how far ms lies from the note's span. Taps measure to their
// timing, holds measure to the closed interval [Ms, EndMs].
func (n *Note) Distance(ms int64) int64 {
	switch {
	case ms < n.Ms:
		return n.Ms - ms
	case ms > n.End():
		return ms - n.End()
	}
	return 0
}

// Conflicts reports whether a and b may not coexist. Notes in different lanes
// never conflict. Two taps need at least dedupe milliseconds between them, a
// tap may not sit inside a hold, and holds may not overlap.
func Conflicts(a, b *Note, dedupe int64) bool {
	if a.Lane != b.Lane {
		return false
	}
	if !a.IsHold() && !b.IsHold() {
		d := a.Ms - b.Ms
		if d < 0 {
			d = -d
		}
		return d < dedupe
	}
	return a.Ms <= b.End() && b.Ms <= a.End()
}

func (n Note) String() string {
	if n.IsHold() {
		return fmt.Sprintf("#%d hold lane=%d %d-%dms %v", n.ID, n.Lane, n.Ms, n.EndMs, n.Status)
	}
	return fmt.Sprintf("#%d tap lane=%d %dms %v", n.ID, n.Lane, n.Ms, n.Status)
}
