// Package editor implements chart authoring on top of the same coordinate
// mapping used for play. Every pointer event returns a Result. A rejected
// edit leaves the chart exactly as it was.
package editor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/mapper"
	"git.lost.host/meutraa/vbeat/internal/parser"
)

var (
	ErrCollision     = errors.New("note would overlap another note in its lane")
	ErrOutsideLanes  = errors.New("pointer is outside every lane")
	ErrNegativeTime  = errors.New("note would start before zero")
	ErrNothingHit    = errors.New("no note under the pointer")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNoGesture     = errors.New("no gesture in progress")
)

type Tool uint8

const (
	ToolTap Tool = iota
	ToolHold
	ToolSelect
	ToolDelete
	ToolMarquee
)

func (t Tool) String() string {
	switch t {
	case ToolTap:
		return "tap"
	case ToolHold:
		return "hold"
	case ToolSelect:
		return "select"
	case ToolDelete:
		return "delete"
	case ToolMarquee:
		return "marquee"
	}
	return "unknown"
}

type Op uint8

const (
	OpNone Op = iota
	OpBegin
	OpPreview
	OpInsert
	OpMove
	OpResize
	OpDelete
	OpSelect
	OpCancel
	OpUndo
)

func (o Op) String() string {
	return [...]string{"none", "begin", "preview", "insert", "move", "resize", "delete", "select", "cancel", "undo"}[o]
}

// Result reports what an event did. Changed is true only when the chart was
// modified, Err says why an edit was refused.
type Result struct {
	Op      Op
	Changed bool
	Err     error
}

func (r Result) String() string {
	if nil != r.Err {
		return fmt.Sprintf("%v: %v", r.Op, r.Err)
	}
	return fmt.Sprintf("%v changed=%v", r.Op, r.Changed)
}

// View is the playback position and scroll speed the pointer was seen at.
type View struct {
	NowMs int64
	Speed float64
}

// Placement is where a note sits.
type Placement struct {
	Lane  int
	Ms    int64
	EndMs int64
}

// Snapshot holds the placements of the selected notes as they were when a
// drag began. It is never modified during the drag.
type Snapshot map[game.NoteID]Placement

type gesture struct {
	tool  Tool
	view  View
	start mapper.Point
	last  mapper.Point
	moved bool

	lane int
	ms   int64

	resize   bool
	snapshot Snapshot
	preview  map[game.NoteID]Placement
}

type Editor struct {
	cfg    *config.Config
	mapper *mapper.Mapper
	chart  *game.Chart
	logger *slog.Logger

	tool     Tool
	selected map[game.NoteID]struct{}
	gesture  *gesture
	undo     [][]game.Note
	dirty    bool
}

func New(cfg *config.Config, m *mapper.Mapper, chart *game.Chart, logger *slog.Logger) *Editor {
	if nil == logger {
		logger = slog.Default()
	}
	return &Editor{
		cfg:      cfg,
		mapper:   m,
		chart:    chart,
		logger:   logger,
		selected: map[game.NoteID]struct{}{},
	}
}

func (e *Editor) Chart() *game.Chart {
	return e.chart
}

func (e *Editor) Tool() Tool {
	return e.tool
}

// SetTool switches tools, abandoning any gesture in progress.
func (e *Editor) SetTool(t Tool) {
	e.gesture = nil
	e.tool = t
}

// Dirty reports whether the chart changed since the last Save.
func (e *Editor) Dirty() bool {
	return e.dirty
}

func (e *Editor) Selected(id game.NoteID) bool {
	_, ok := e.selected[id]
	return ok
}

// Select replaces the selection. Unknown ids are ignored.
func (e *Editor) Select(ids ...game.NoteID) {
	e.selected = make(map[game.NoteID]struct{}, len(ids))
	for _, id := range ids {
		if nil != e.chart.Find(id) {
			e.selected[id] = struct{}{}
		}
	}
}

func (e *Editor) SelectAll() {
	e.selected = make(map[game.NoteID]struct{}, len(e.chart.Notes))
	for _, n := range e.chart.Notes {
		e.selected[n.ID] = struct{}{}
	}
}

// Selection lists the selected ids in chart order.
func (e *Editor) Selection() []game.NoteID {
	ids := []game.NoteID{}
	for _, n := range e.chart.Notes {
		if _, ok := e.selected[n.ID]; ok {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Preview returns the proposed placements of a drag in progress, or nil.
func (e *Editor) Preview() map[game.NoteID]Placement {
	if nil == e.gesture {
		return nil
	}
	return e.gesture.preview
}

// Rect returns the rectangle being dragged out by the delete or marquee
// tools.
func (e *Editor) Rect() (lo, hi mapper.Point, ok bool) {
	g := e.gesture
	if nil == g || (g.tool != ToolDelete && g.tool != ToolMarquee) || !g.moved {
		return
	}
	lo, hi = rect(g.start, g.last)
	return lo, hi, true
}

func (e *Editor) pushUndo() {
	e.undo = append(e.undo, e.chart.Snapshot())
	if over := len(e.undo) - e.cfg.Editor.UndoDepth; over > 0 {
		e.undo = append(e.undo[:0], e.undo[over:]...)
	}
}

func (e *Editor) reject(op Op, err error) Result {
	e.logger.Debug("edit rejected", slog.String("op", op.String()), slog.String("error", err.Error()))
	return Result{Op: op, Err: err}
}

func (e *Editor) changed(op Op) Result {
	e.dirty = true
	return Result{Op: op, Changed: true}
}

// collides reports whether candidate conflicts with any note except those in
// skip.
func (e *Editor) collides(candidate *game.Note, skip map[game.NoteID]struct{}) bool {
	for _, n := range e.chart.Notes {
		if _, ok := skip[n.ID]; ok {
			continue
		}
		if game.Conflicts(candidate, n, e.cfg.Editor.DedupeMs) {
			return true
		}
	}
	return false
}

func (e *Editor) PointerDown(p mapper.Point, v View) Result {
	e.gesture = nil
	switch e.tool {
	case ToolTap:
		return e.placeTap(p, v)
	case ToolHold:
		lane, ms, ok := e.mapper.Locate(p, v.NowMs, v.Speed)
		if !ok {
			return e.reject(OpBegin, ErrOutsideLanes)
		}
		e.gesture = &gesture{tool: ToolHold, view: v, start: p, last: p, lane: lane, ms: ms}
		return Result{Op: OpBegin}
	case ToolSelect:
		return e.beginDrag(p, v)
	}
	e.gesture = &gesture{tool: e.tool, view: v, start: p, last: p}
	return Result{Op: OpBegin}
}

func (e *Editor) PointerMove(p mapper.Point, v View) Result {
	g := e.gesture
	if nil == g {
		return Result{Op: OpNone}
	}
	g.last = p
	if math.Hypot(p.X-g.start.X, p.Y-g.start.Y) > e.cfg.Editor.ClickSlopPx {
		g.moved = true
	}
	if g.tool == ToolSelect {
		e.drag(p, v)
	}
	return Result{Op: OpPreview}
}

func (e *Editor) PointerUp(p mapper.Point, v View) Result {
	g := e.gesture
	if nil == g {
		return Result{Op: OpNone, Err: ErrNoGesture}
	}
	e.PointerMove(p, v)
	e.gesture = nil
	switch g.tool {
	case ToolHold:
		return e.placeHold(g, p, v)
	case ToolSelect:
		return e.commit(g)
	case ToolDelete:
		return e.deleteAt(g, v)
	case ToolMarquee:
		return e.marquee(g, v)
	}
	return Result{Op: OpNone}
}

// Cancel abandons the gesture in progress. Without one it clears the
// selection. The chart is never touched.
func (e *Editor) Cancel() Result {
	if nil == e.gesture {
		e.selected = map[game.NoteID]struct{}{}
		return Result{Op: OpCancel}
	}
	e.gesture = nil
	return Result{Op: OpCancel}
}

// Undo restores the chart as it was before the last edit.
func (e *Editor) Undo() Result {
	if len(e.undo) == 0 {
		return e.reject(OpUndo, ErrNothingToUndo)
	}
	last := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	e.gesture = nil
	e.chart.Restore(last)
	for id := range e.selected {
		if nil == e.chart.Find(id) {
			delete(e.selected, id)
		}
	}
	return e.changed(OpUndo)
}

// UndoDepth is the number of edits that can be undone.
func (e *Editor) UndoDepth() int {
	return len(e.undo)
}

// DeleteSelected removes every selected note.
func (e *Editor) DeleteSelected() Result {
	if len(e.selected) == 0 {
		return e.reject(OpDelete, ErrNothingHit)
	}
	ids := make([]game.NoteID, 0, len(e.selected))
	for id := range e.selected {
		ids = append(ids, id)
	}
	return e.remove(ids)
}

func (e *Editor) remove(ids []game.NoteID) Result {
	e.pushUndo()
	e.chart.Remove(ids...)
	for _, id := range ids {
		delete(e.selected, id)
	}
	return e.changed(OpDelete)
}

// Save writes the chart and clears the dirty flag.
func (e *Editor) Save(w io.Writer) error {
	if err := parser.Encode(w, e.chart); nil != err {
		return err
	}
	e.dirty = false
	return nil
}
