package editor

import (
	"bytes"
	"context"
	"testing"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/mapper"
	"git.lost.host/meutraa/vbeat/internal/parser"
	"git.lost.host/meutraa/vbeat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canvas hands out registered points by column and remembers what it drew.
type canvas struct {
	points []mapper.Point
	frames int
	marked []*game.Note
	status []string
}

func (c *canvas) cell(p mapper.Point) (int, int) {
	c.points = append(c.points, p)
	return len(c.points) - 1, 0
}

func (c *canvas) Point(col, row int) mapper.Point {
	return c.points[col]
}

func (c *canvas) RenderEdit(f session.Frame, marked []*game.Note, status []string) error {
	c.frames++
	c.marked = marked
	c.status = status
	return nil
}

func newDriver(cfg *config.Config, notes ...game.Note) (*Driver, *canvas, *mapper.Mapper, *bytes.Buffer) {
	e, m := newEditor(cfg, notes...)
	c := &canvas{}
	var saved bytes.Buffer
	save := func(e *Editor) error {
		saved.Reset()
		return e.Save(&saved)
	}
	return NewDriver(e, c, view.Speed, save, nil), c, m, &saved
}

func pointer(c *canvas, kind input.TermKind, p mapper.Point) input.TermEvent {
	col, row := c.cell(p)
	return input.TermEvent{Kind: kind, Col: col, Row: row}
}

func handle(t *testing.T, d *Driver, events ...input.TermEvent) {
	t.Helper()
	for _, ev := range events {
		quit, err := d.Handle(ev)
		require.NoError(t, err)
		require.False(t, quit)
	}
}

func key(r rune) input.TermEvent {
	return input.TermEvent{Kind: input.Key, Rune: r}
}

func TestDriverPlacesTap(t *testing.T) {
	d, c, m, _ := newDriver(config.Default())
	handle(t, d, pointer(c, input.PointerDown, at(m, 2, 700)))

	notes := d.editor.Chart().Notes
	require.Len(t, notes, 1)
	assert.Equal(t, 2, notes[0].Lane)
	assert.Equal(t, int64(700), notes[0].Ms)
	assert.Equal(t, "insert", d.Message())

	handle(t, d, pointer(c, input.PointerDown, at(m, 2, 710)))
	assert.Len(t, d.editor.Chart().Notes, 1)
	assert.Equal(t, ErrCollision.Error(), d.Message())
}

func TestDriverDrawsHold(t *testing.T) {
	d, c, m, _ := newDriver(config.Default())
	handle(t, d,
		key('h'),
		pointer(c, input.PointerDown, at(m, 4, 500)),
		pointer(c, input.PointerMove, at(m, 4, 1000)),
		pointer(c, input.PointerUp, at(m, 4, 1500)),
	)
	assert.Equal(t, ToolHold, d.editor.Tool())
	notes := d.editor.Chart().Notes
	require.Len(t, notes, 1)
	assert.True(t, notes[0].IsHold())
	assert.Equal(t, int64(500), notes[0].Ms)
	assert.Equal(t, int64(1500), notes[0].EndMs)
}

func TestDriverMarksDraggedNotes(t *testing.T) {
	d, c, m, _ := newDriver(config.Default(), game.Note{Lane: 1, Type: game.Tap, Ms: 600})
	handle(t, d,
		key('s'),
		pointer(c, input.PointerDown, at(m, 1, 600)),
		pointer(c, input.PointerMove, at(m, 3, 900)),
	)
	require.NoError(t, d.Draw())
	require.Len(t, c.marked, 1)
	assert.Equal(t, 3, c.marked[0].Lane)
	assert.Equal(t, int64(900), c.marked[0].Ms)
	// the chart only changes on release
	assert.Equal(t, 1, d.editor.Chart().Notes[0].Lane)

	handle(t, d, pointer(c, input.PointerUp, at(m, 3, 900)))
	assert.Equal(t, 3, d.editor.Chart().Notes[0].Lane)
	assert.Equal(t, int64(900), d.editor.Chart().Notes[0].Ms)
}

func TestDriverKeys(t *testing.T) {
	d, c, _, _ := newDriver(config.Default(),
		game.Note{Lane: 1, Type: game.Tap, Ms: 600},
		game.Note{Lane: 2, Type: game.Tap, Ms: 600},
	)
	handle(t, d, key('a'))
	require.NoError(t, d.Draw())
	assert.Len(t, c.marked, 2)

	handle(t, d, input.TermEvent{Kind: input.Escape})
	assert.Empty(t, d.editor.Selection())

	handle(t, d, key('a'), key('x'))
	assert.Empty(t, d.editor.Chart().Notes)
	handle(t, d, key('u'))
	assert.Len(t, d.editor.Chart().Notes, 2)

	for r, tool := range map[rune]Tool{'t': ToolTap, 'h': ToolHold, 's': ToolSelect, 'd': ToolDelete, 'm': ToolMarquee} {
		handle(t, d, key(r))
		assert.Equal(t, tool, d.editor.Tool(), string(r))
	}
}

func TestDriverScrolls(t *testing.T) {
	d, _, _, _ := newDriver(config.Default())
	handle(t, d, input.TermEvent{Kind: input.ArrowUp}, input.TermEvent{Kind: input.WheelUp}, key('k'))
	assert.Equal(t, int64(3*ScrollMs), d.View().NowMs)
	handle(t, d, key('j'))
	assert.Equal(t, int64(2*ScrollMs), d.View().NowMs)
	handle(t, d, input.TermEvent{Kind: input.ArrowDown}, input.TermEvent{Kind: input.WheelDown}, input.TermEvent{Kind: input.ArrowDown})
	assert.Equal(t, int64(0), d.View().NowMs)

	speed := d.View().Speed
	handle(t, d, key('+'))
	assert.Greater(t, d.View().Speed, speed)
	handle(t, d, key('-'))
	assert.InDelta(t, speed, d.View().Speed, 1e-9)
}

func TestDriverScrolledPlacement(t *testing.T) {
	d, c, m, _ := newDriver(config.Default())
	handle(t, d, key('k'), key('k'))
	p := m.Project(5, 1200, d.View().NowMs, d.View().Speed)
	handle(t, d, pointer(c, input.PointerDown, p))
	require.Len(t, d.editor.Chart().Notes, 1)
	assert.Equal(t, int64(1200), d.editor.Chart().Notes[0].Ms)
}

func TestDriverSavesAndQuits(t *testing.T) {
	cfg := config.Default()
	d, c, m, saved := newDriver(cfg)
	handle(t, d, pointer(c, input.PointerDown, at(m, 3, 800)))
	require.True(t, d.editor.Dirty())

	// unsaved work needs a second q
	quit, err := d.Handle(key('q'))
	require.NoError(t, err)
	assert.False(t, quit)
	handle(t, d, key('w'))
	assert.False(t, d.editor.Dirty())
	assert.Equal(t, "saved", d.Message())

	chart, report, err := parser.NewJSONParser(parser.OptionsFrom(cfg, nil)).Decode(bytes.NewReader(saved.Bytes()))
	require.NoError(t, err)
	assert.True(t, report.Clean())
	require.Len(t, chart.Notes, 1)
	assert.Equal(t, 3, chart.Notes[0].Lane)

	quit, err = d.Handle(key('q'))
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestDriverQuitTwiceDiscards(t *testing.T) {
	d, c, m, _ := newDriver(config.Default())
	handle(t, d, pointer(c, input.PointerDown, at(m, 3, 800)))
	handle(t, d, key('q'))
	quit, err := d.Handle(key('q'))
	require.NoError(t, err)
	assert.True(t, quit)
	assert.True(t, d.editor.Dirty())
}

func TestDriverRun(t *testing.T) {
	d, c, m, _ := newDriver(config.Default())
	events := make(chan input.TermEvent, 4)
	events <- pointer(c, input.PointerDown, at(m, 0, 500))
	events <- key('z')
	close(events)

	require.NoError(t, d.Run(context.Background(), events))
	assert.Equal(t, 3, c.frames)
	assert.Len(t, d.editor.Chart().Notes, 1)
	assert.Contains(t, c.status, "modified")

	events = make(chan input.TermEvent, 1)
	events <- key('q')
	d.editor.dirty = false
	require.NoError(t, d.Run(context.Background(), events))
}
