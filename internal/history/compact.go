package history

import (
	"sort"

	"git.lost.host/meutraa/vbeat/internal/game"
)

// LaneInputs is the edge times of one lane. Edges alternate starting with a
// press, so even indices are presses and odd ones releases.
type LaneInputs struct {
	Lane  int     `json:"lane"`
	Times []int64 `json:"times"`
}

func compactInputs(inputs []game.Input) []LaneInputs {
	laneCount := 0
	for _, i := range inputs {
		if i.Lane >= laneCount {
			laneCount = i.Lane + 1
		}
	}
	ins := make([]LaneInputs, laneCount)
	for l := range ins {
		ins[l] = LaneInputs{Lane: l, Times: []int64{}}
	}
	for _, i := range inputs {
		ins[i.Lane].Times = append(ins[i.Lane].Times, i.Ms)
	}
	return ins
}

func uncompactInputs(inputs []LaneInputs) []game.Input {
	ins := []game.Input{}
	for _, l := range inputs {
		for j, t := range l.Times {
			ins = append(ins, game.Input{Lane: l.Lane, Down: j%2 == 0, Ms: t})
		}
	}
	sort.SliceStable(ins, func(i, j int) bool {
		if ins[i].Ms != ins[j].Ms {
			return ins[i].Ms < ins[j].Ms
		}
		return ins[i].Lane < ins[j].Lane
	})
	return ins
}
