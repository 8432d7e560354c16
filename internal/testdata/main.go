package testdata

import (
	"encoding/json"
	"math"

	"git.lost.host/meutraa/vbeat/internal/game"
)

// Seven lanes, ten seconds: a lane 3 warm up, paired holds, a sweep across
// every lane and a closing hold.
const ChartJSON = `[
	{"lane": 3, "type": "tap", "time": 0.5},
	{"lane": 3, "type": "tap", "time": 0.7},
	{"lane": 3, "type": "tap", "time": 0.9},
	{"lane": 3, "type": "tap", "time": 1.1},
	{"lane": 3, "type": "tap", "time": 1.3},
	{"lane": 3, "type": "tap", "time": 1.5},
	{"lane": 3, "type": "tap", "time": 1.7},
	{"lane": 1, "type": "long", "time": 2.0, "endTime": 3.0},
	{"lane": 5, "type": "long", "time": 2.0, "endTime": 3.0},
	{"lane": 3, "type": "tap", "time": 2.5},
	{"lane": 0, "type": "tap", "time": 3.2},
	{"lane": 6, "type": "tap", "time": 3.4},
	{"lane": 0, "type": "tap", "time": 4.0},
	{"lane": 1, "type": "tap", "time": 4.2},
	{"lane": 2, "type": "tap", "time": 4.4},
	{"lane": 3, "type": "tap", "time": 4.6},
	{"lane": 4, "type": "tap", "time": 4.8},
	{"lane": 5, "type": "tap", "time": 5.0},
	{"lane": 6, "type": "tap", "time": 5.2},
	{"lane": 3, "type": "tap", "time": 5.4},
	{"lane": 1, "type": "tap", "time": 5.6},
	{"lane": 5, "type": "tap", "time": 5.8},
	{"lane": 0, "type": "long", "time": 6.0, "endTime": 7.5},
	{"lane": 6, "type": "long", "time": 6.0, "endTime": 7.5},
	{"lane": 3, "type": "tap", "time": 6.5},
	{"lane": 3, "type": "tap", "time": 7.0},
	{"lane": 2, "type": "tap", "time": 8.0},
	{"lane": 4, "type": "tap", "time": 8.2},
	{"lane": 1, "type": "tap", "time": 8.4},
	{"lane": 5, "type": "tap", "time": 8.6},
	{"lane": 3, "type": "long", "time": 8.8, "endTime": 9.5},
	{"lane": 0, "type": "tap", "time": 9.6},
	{"lane": 6, "type": "tap", "time": 9.8},
	{"lane": 3, "type": "tap", "time": 10.0}
]`

type entry struct {
	Lane    int      `json:"lane"`
	Type    string   `json:"type"`
	Time    float64  `json:"time"`
	EndTime *float64 `json:"endTime"`
}

func GetChart() (*game.Chart, error) {
	var entries []entry
	if err := json.Unmarshal([]byte(ChartJSON), &entries); nil != err {
		return nil, err
	}
	notes := make([]game.Note, len(entries))
	for i, e := range entries {
		notes[i] = game.Note{Lane: e.Lane, Type: game.Tap, Ms: int64(math.Round(e.Time * 1000))}
		if e.Type == "long" && nil != e.EndTime {
			notes[i].Type = game.Hold
			notes[i].EndMs = int64(math.Round(*e.EndTime * 1000))
		}
	}
	return game.NewChart(game.Difficulty{Name: "fixture", Lanes: 7}, notes), nil
}
