package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"git.lost.host/meutraa/vbeat/internal/game"
)

var (
	ErrNoCharts     = errors.New("file contains no playable charts")
	ErrNoDifficulty = errors.New("no chart with that difficulty")
	ErrTooManyLanes = errors.New("chart has more lanes than configured")
)

type Parser interface {
	Parse(file string) ([]*game.Chart, error)
}

// Coercion records one malformed field that was replaced by a default.
type Coercion struct {
	Index  int // position of the entry in the file, -1 for the chart itself
	Field  string
	Reason string
}

func (c Coercion) String() string {
	if c.Index < 0 {
		return fmt.Sprintf("chart: %s %s", c.Field, c.Reason)
	}
	return fmt.Sprintf("note %d: %s %s", c.Index, c.Field, c.Reason)
}

// Report collects everything a parser had to fix up while reading a chart.
type Report struct {
	Coercions  []Coercion
	Collisions [][2]game.NoteID
}

func (r *Report) coerce(index int, field, reason string) {
	r.Coercions = append(r.Coercions, Coercion{Index: index, Field: field, Reason: reason})
}

// Clean reports whether the chart was read without any fix ups.
func (r *Report) Clean() bool {
	return len(r.Coercions) == 0 && len(r.Collisions) == 0
}

// Log writes every entry of the report as a warning.
func (r *Report) Log(logger *slog.Logger, file string) {
	for _, c := range r.Coercions {
		logger.Warn("chart entry coerced",
			slog.String("file", file),
			slog.Int("index", c.Index),
			slog.String("field", c.Field),
			slog.String("reason", c.Reason))
	}
	for _, p := range r.Collisions {
		logger.Warn("chart notes collide",
			slog.String("file", file),
			slog.Any("a", p[0]),
			slog.Any("b", p[1]))
	}
}

// For picks a parser from the file extension. Anything that is not a
// StepMania file is read as JSON.
func For(file string, opts Options) Parser {
	if strings.EqualFold(filepath.Ext(file), ".sm") {
		return NewSMParser(opts)
	}
	return NewJSONParser(opts)
}

// Open parses file and returns the chart named difficulty, or the first chart
// when difficulty is empty. A chart that does not fit in opts.Lanes is an
// error, nothing downstream can place its notes.
func Open(file, difficulty string, opts Options) (*game.Chart, error) {
	charts, err := For(file, opts).Parse(file)
	if nil != err {
		return nil, err
	}
	if len(charts) == 0 {
		return nil, fmt.Errorf("%s: %w", file, ErrNoCharts)
	}
	for _, c := range charts {
		if difficulty != "" && !strings.EqualFold(c.Difficulty.Name, difficulty) {
			continue
		}
		if err := Fits(c, opts.Lanes); nil != err {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%s: %q: %w", file, difficulty, ErrNoDifficulty)
}

// Fits checks that every note of c lies in one of lanes lanes. A lanes of
// zero accepts anything.
func Fits(c *game.Chart, lanes int) error {
	if lanes <= 0 {
		return nil
	}
	if c.Difficulty.Lanes > lanes {
		return fmt.Errorf("%w: %d lanes, %d configured", ErrTooManyLanes, c.Difficulty.Lanes, lanes)
	}
	for _, n := range c.Notes {
		if n.Lane < 0 || n.Lane >= lanes {
			return fmt.Errorf("%w: note %d in lane %d, %d configured", ErrTooManyLanes, n.ID, n.Lane, lanes)
		}
	}
	return nil
}
