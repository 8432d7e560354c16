package input

import (
	"context"
	"time"
)

type Command uint8

const (
	NoCommand Command = iota
	Quit
	TogglePause
	Restart
)

// LaneEvent is a press or release of a lane key, or a command when Command
// is set. At is when the source saw the key, which may be earlier than when
// the event is delivered.
type LaneEvent struct {
	Lane    int
	Down    bool
	Command Command
	At      time.Time
}

// Source produces lane events until ctx is done or the device fails.
type Source interface {
	Run(ctx context.Context, out chan<- LaneEvent) error
}

// KeyMap maps a key to its lane.
type KeyMap map[rune]int

// NewKeyMap assigns the runes of keys to lanes from left to right.
func NewKeyMap(keys string) KeyMap {
	m := KeyMap{}
	for i, r := range []rune(keys) {
		m[r] = i
	}
	return m
}

// Lane returns the lane of r, or -1.
func (m KeyMap) Lane(r rune) int {
	if l, ok := m[r]; ok {
		return l
	}
	return -1
}

// Gate turns key state into edges. A press of a lane that is already down
// and a release of a lane that is already up are both dropped, so key
// repeat and stray releases never reach judgement.
type Gate struct {
	down []bool
}

func NewGate(lanes int) *Gate {
	return &Gate{down: make([]bool, lanes)}
}

// Down records a press and reports whether it is a new one.
func (g *Gate) Down(lane int) bool {
	if lane < 0 || lane >= len(g.down) || g.down[lane] {
		return false
	}
	g.down[lane] = true
	return true
}

// Up records a release and reports whether the lane was down.
func (g *Gate) Up(lane int) bool {
	if lane < 0 || lane >= len(g.down) || !g.down[lane] {
		return false
	}
	g.down[lane] = false
	return true
}

func (g *Gate) Pressed(lane int) bool {
	return lane >= 0 && lane < len(g.down) && g.down[lane]
}

// Reset releases every lane without reporting edges.
func (g *Gate) Reset() {
	for i := range g.down {
		g.down[i] = false
	}
}
