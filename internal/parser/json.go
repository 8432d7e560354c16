package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
)

// Options are the limits a chart is coerced into.
type Options struct {
	Lanes         int
	DedupeMs      int64
	MinHoldMs     int64
	DefaultHoldMs int64 // length given to holds without an end
	Logger        *slog.Logger
}

func OptionsFrom(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Lanes:         cfg.Lanes.Count(),
		DedupeMs:      cfg.Editor.DedupeMs,
		MinHoldMs:     cfg.Editor.MinHoldMs,
		DefaultHoldMs: cfg.Editor.DefaultHoldMs,
		Logger:        logger,
	}
}

// JSONParser reads note lists of the form
//
//	[{"lane": 3, "type": "tap", "time": 1.5}, {"lane": 1, "type": "long", "time": 2, "endTime": 3}]
//
// or an object wrapping such a list under "notes" or "data" next to an
// optional "difficulty". Times are seconds.
type JSONParser struct {
	opts Options
}

func NewJSONParser(opts Options) *JSONParser {
	if opts.Lanes <= 0 {
		opts.Lanes = 7
	}
	if nil == opts.Logger {
		opts.Logger = slog.Default()
	}
	return &JSONParser{opts: opts}
}

func (p *JSONParser) Parse(file string) ([]*game.Chart, error) {
	data, err := os.ReadFile(file)
	if nil != err {
		return nil, fmt.Errorf("unable to read chart %s: %w", file, err)
	}
	chart, report, err := p.Decode(bytes.NewReader(data))
	if nil != err {
		return nil, fmt.Errorf("unable to parse chart %s: %w", file, err)
	}
	report.Log(p.opts.Logger, file)
	return []*game.Chart{chart}, nil
}

var (
	timeKeys = []string{"time", "noteTime", "note_time", "timing"}
	laneKeys = []string{"lane", "laneIndex", "key"}
	typeKeys = []string{"type", "noteType"}
	endKeys  = []string{"endTime", "end_time", "end"}
)

// Decode reads one chart. Malformed entries never fail the decode, they are
// coerced and listed in the report instead.
func (p *JSONParser) Decode(r io.Reader) (*game.Chart, *Report, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); nil != err {
		return nil, nil, err
	}

	report := &Report{}
	difficulty := game.Difficulty{Name: "custom", Lanes: p.opts.Lanes}
	var list []any
	switch v := root.(type) {
	case []any:
		list = v
	case map[string]any:
		p.difficulty(v["difficulty"], &difficulty, report)
		if l, ok := v["notes"].([]any); ok {
			list = l
		} else if l, ok := v["data"].([]any); ok {
			list = l
		}
	default:
		return nil, nil, fmt.Errorf("expected a list or an object, got %T", root)
	}

	notes := make([]game.Note, 0, len(list))
	for i, entry := range list {
		notes = append(notes, p.note(i, entry, difficulty.Lanes, report))
	}
	chart := game.NewChart(difficulty, notes)
	report.Collisions = chart.Collisions(p.opts.DedupeMs)
	return chart, report, nil
}

func (p *JSONParser) difficulty(v any, d *game.Difficulty, report *Report) {
	switch x := v.(type) {
	case string:
		if x != "" {
			d.Name = x
		}
	case map[string]any:
		if name, ok := x["name"].(string); ok && name != "" {
			d.Name = name
		}
		if level, ok := x["level"]; ok {
			d.Level = fmt.Sprint(level)
		}
		lanes, ok := number(x["lanes"])
		switch {
		case !ok:
		case lanes > float64(p.opts.Lanes):
			report.coerce(-1, "lanes", fmt.Sprintf("%v is more than the %d configured lanes, using %d", lanes, p.opts.Lanes, p.opts.Lanes))
		case lanes >= 1 && lanes == math.Trunc(lanes):
			d.Lanes = int(lanes)
		}
	}
}

func (p *JSONParser) note(i int, entry any, lanes int, report *Report) game.Note {
	n := game.Note{Type: game.Tap}
	fields, ok := entry.(map[string]any)
	if !ok {
		report.coerce(i, "entry", "is not an object, using a tap in lane 0 at 0s")
		return n
	}

	if v, key := pick(fields, laneKeys); key == "" {
		report.coerce(i, "lane", "missing, using 0")
	} else if lane, ok := number(v); !ok {
		report.coerce(i, key, "is not a number, using 0")
	} else if lane < 0 || lane >= float64(lanes) {
		report.coerce(i, key, fmt.Sprintf("%v outside 0..%d, using 0", lane, lanes-1))
	} else {
		if lane != math.Trunc(lane) {
			report.coerce(i, key, fmt.Sprintf("%v is fractional, truncated", lane))
		}
		n.Lane = int(lane)
	}

	if v, key := pick(fields, typeKeys); key != "" {
		switch t, _ := v.(string); strings.ToLower(t) {
		case "tap":
		case "long", "hold":
			n.Type = game.Hold
		default:
			report.coerce(i, key, fmt.Sprintf("unknown type %v, using tap", v))
		}
	}

	if v, key := pick(fields, timeKeys); key == "" {
		report.coerce(i, "time", "missing, using 0")
	} else if sec, ok := number(v); !ok {
		report.coerce(i, key, "is not a number, using 0")
	} else if sec < 0 {
		report.coerce(i, key, "is negative, using 0")
	} else if sec > maxSeconds {
		report.coerce(i, key, fmt.Sprintf("%v is past %vs, using 0", sec, maxSeconds))
	} else {
		n.Ms = toMs(sec)
	}

	if !n.IsHold() {
		return n
	}
	n.EndMs = n.Ms + p.opts.DefaultHoldMs
	if v, key := pick(fields, endKeys); key == "" || v == nil {
		report.coerce(i, "endTime", fmt.Sprintf("missing, using %dms after the start", p.opts.DefaultHoldMs))
	} else if sec, ok := number(v); !ok || sec > maxSeconds {
		report.coerce(i, key, fmt.Sprintf("is not a usable time, using %dms after the start", p.opts.DefaultHoldMs))
	} else {
		n.EndMs = toMs(sec)
	}
	if n.EndMs-n.Ms < p.opts.MinHoldMs {
		report.coerce(i, "endTime", fmt.Sprintf("hold shorter than %dms, extended", p.opts.MinHoldMs))
		n.EndMs = n.Ms + p.opts.MinHoldMs
	}
	return n
}

func pick(fields map[string]any, keys []string) (any, string) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, k
		}
	}
	return nil, ""
}

func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		n, err := x.Float64()
		if nil != err {
			return 0, false
		}
		f = n
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if nil != err {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxSeconds keeps millisecond times far from int64 overflow.
const maxSeconds = 1e9

func toMs(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

type entry struct {
	Lane    int      `json:"lane"`
	Type    string   `json:"type"`
	Time    float64  `json:"time"`
	EndTime *float64 `json:"endTime,omitempty"`
}

// Encode writes the chart as a JSON note list that Decode reads back to the
// same notes. Judgement state and ids are not written.
func Encode(w io.Writer, c *game.Chart) error {
	entries := make([]entry, len(c.Notes))
	for i, n := range c.Notes {
		entries[i] = entry{Lane: n.Lane, Type: n.Type.String(), Time: float64(n.Ms) / 1000}
		if n.IsHold() {
			end := float64(n.EndMs) / 1000
			entries[i].EndTime = &end
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); nil != err {
		return fmt.Errorf("unable to encode chart: %w", err)
	}
	return nil
}
