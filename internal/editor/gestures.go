package editor

import (
	"math"

	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/mapper"
)

func (e *Editor) placeTap(p mapper.Point, v View) Result {
	lane, ms, ok := e.mapper.Locate(p, v.NowMs, v.Speed)
	if !ok {
		return e.reject(OpInsert, ErrOutsideLanes)
	}
	if ms < 0 {
		return e.reject(OpInsert, ErrNegativeTime)
	}
	n := game.Note{Lane: lane, Type: game.Tap, Ms: ms}
	if e.collides(&n, nil) {
		return e.reject(OpInsert, ErrCollision)
	}
	e.pushUndo()
	e.chart.Add(n)
	return e.changed(OpInsert)
}

func (e *Editor) placeHold(g *gesture, p mapper.Point, v View) Result {
	cfg := &e.cfg.Editor
	start := g.ms
	end := start + cfg.DefaultHoldMs
	if g.moved {
		end = int64(math.Round(e.mapper.YToTime(p.Y, v.NowMs, v.Speed)))
	}
	if end < start {
		start, end = end, start
	}
	if floor := v.NowMs + cfg.MinPreviewMs; start < floor {
		start = floor
	}
	if end-start < cfg.MinHoldMs {
		end = start + cfg.MinHoldMs
	}
	if start < 0 {
		return e.reject(OpInsert, ErrNegativeTime)
	}

	n := game.Note{Lane: g.lane, Type: game.Hold, Ms: start, EndMs: end}
	if e.collides(&n, nil) {
		return e.reject(OpInsert, ErrCollision)
	}
	e.pushUndo()
	e.chart.Add(n)
	return e.changed(OpInsert)
}

// hit finds the note nearest to p in the lane under it, within the hit
// tolerance. Holds are measured to their whole span.
func (e *Editor) hit(p mapper.Point, v View) (*game.Note, int64) {
	lane, ms, ok := e.mapper.Locate(p, v.NowMs, v.Speed)
	if !ok {
		return nil, 0
	}
	var best *game.Note
	bestDist := e.cfg.Editor.HitToleranceMs + 1
	for _, n := range e.chart.Notes {
		if n.Lane != lane {
			continue
		}
		if d := n.Distance(ms); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, ms
}

func (e *Editor) beginDrag(p mapper.Point, v View) Result {
	n, ms := e.hit(p, v)
	if nil == n {
		e.selected = map[game.NoteID]struct{}{}
		return e.reject(OpSelect, ErrNothingHit)
	}
	if _, ok := e.selected[n.ID]; !ok {
		e.selected = map[game.NoteID]struct{}{n.ID: {}}
	}

	g := &gesture{tool: ToolSelect, view: v, start: p, last: p, lane: n.Lane, ms: ms}
	if n.IsHold() {
		toEnd := abs(ms - n.EndMs)
		if toEnd <= e.cfg.Editor.ResizeGrabMs && toEnd < abs(ms-n.Ms) {
			g.resize = true
			e.selected = map[game.NoteID]struct{}{n.ID: {}}
		}
	}
	g.snapshot = Snapshot{}
	for id := range e.selected {
		if s := e.chart.Find(id); nil != s {
			g.snapshot[id] = Placement{Lane: s.Lane, Ms: s.Ms, EndMs: s.EndMs}
		}
	}
	e.gesture = g
	return Result{Op: OpBegin}
}

// drag recomputes the preview from the snapshot and the live pointer. The
// lane and time deltas are clamped for the group as a whole so that every
// note keeps its relative position.
func (e *Editor) drag(p mapper.Point, v View) {
	g := e.gesture
	if !g.moved {
		return
	}
	dMs := int64(math.Round(e.mapper.YToTime(p.Y, v.NowMs, v.Speed) - e.mapper.YToTime(g.start.Y, g.view.NowMs, g.view.Speed)))

	if g.resize {
		g.preview = make(map[game.NoteID]Placement, 1)
		for id, s := range g.snapshot {
			s.EndMs += dMs
			if floor := s.Ms + e.cfg.Editor.MinHoldMs; s.EndMs < floor {
				s.EndMs = floor
			}
			g.preview[id] = s
		}
		return
	}

	dLane := 0
	if lane := e.mapper.LaneAt(e.mapper.UnprojectX(p.X, p.Y)); lane >= 0 {
		dLane = lane - g.lane
	}
	minLane, maxLane, minMs := e.mapper.Lanes(), -1, int64(math.MaxInt64)
	for _, s := range g.snapshot {
		minLane = min(minLane, s.Lane)
		maxLane = max(maxLane, s.Lane)
		minMs = min(minMs, s.Ms)
	}
	dLane = max(dLane, -minLane)
	dLane = min(dLane, e.mapper.Lanes()-1-maxLane)
	dMs = max(dMs, -minMs)

	g.preview = make(map[game.NoteID]Placement, len(g.snapshot))
	for id, s := range g.snapshot {
		s.Lane += dLane
		s.Ms += dMs
		if 0 != s.EndMs {
			s.EndMs += dMs
		}
		g.preview[id] = s
	}
}

// commit validates the whole preview and applies it in one step, or not at
// all.
func (e *Editor) commit(g *gesture) Result {
	if !g.moved || nil == g.preview {
		return Result{Op: OpSelect}
	}
	op := OpMove
	if g.resize {
		op = OpResize
	}
	same := true
	for id, pl := range g.preview {
		same = same && pl == g.snapshot[id]
	}
	if same {
		return Result{Op: op}
	}

	candidates := make([]game.Note, 0, len(g.preview))
	for id, pl := range g.preview {
		n := e.chart.Find(id)
		if nil == n {
			continue
		}
		c := *n
		c.Lane, c.Ms, c.EndMs = pl.Lane, pl.Ms, pl.EndMs
		candidates = append(candidates, c)
	}
	skip := make(map[game.NoteID]struct{}, len(g.preview))
	for id := range g.preview {
		skip[id] = struct{}{}
	}
	for i := range candidates {
		if candidates[i].Ms < 0 {
			return e.reject(op, ErrNegativeTime)
		}
		if e.collides(&candidates[i], skip) {
			return e.reject(op, ErrCollision)
		}
		for j := i + 1; j < len(candidates); j++ {
			if game.Conflicts(&candidates[i], &candidates[j], e.cfg.Editor.DedupeMs) {
				return e.reject(op, ErrCollision)
			}
		}
	}

	e.pushUndo()
	for _, c := range candidates {
		n := e.chart.Find(c.ID)
		n.Lane, n.Ms, n.EndMs = c.Lane, c.Ms, c.EndMs
	}
	e.chart.Sort()
	return e.changed(op)
}

func (e *Editor) deleteAt(g *gesture, v View) Result {
	if !g.moved {
		n, _ := e.hit(g.start, g.view)
		if nil == n {
			return e.reject(OpDelete, ErrNothingHit)
		}
		return e.remove([]game.NoteID{n.ID})
	}
	ids := e.within(g.start, g.last, v)
	if len(ids) == 0 {
		return e.reject(OpDelete, ErrNothingHit)
	}
	return e.remove(ids)
}

func (e *Editor) marquee(g *gesture, v View) Result {
	e.selected = map[game.NoteID]struct{}{}
	for _, id := range e.within(g.start, g.last, v) {
		e.selected[id] = struct{}{}
	}
	return Result{Op: OpSelect}
}

// within lists the notes touched by the rectangle spanned by a and b. Taps
// are tested by their projected centre, holds by the trapezoid they are
// drawn as between their projected start and end.
func (e *Editor) within(a, b mapper.Point, v View) []game.NoteID {
	lo, hi := rect(a, b)
	ids := []game.NoteID{}
	for _, n := range e.chart.Notes {
		if n.IsHold() {
			if e.holdTouches(n, lo, hi, v) {
				ids = append(ids, n.ID)
			}
			continue
		}
		p := e.mapper.Project(n.Lane, n.Ms, v.NowMs, v.Speed)
		if p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// holdTouches clips the hold's vertical extent to the rectangle. The lane
// edges are linear in y, so the horizontal extent over the clipped range is
// spanned by its two ends.
func (e *Editor) holdTouches(n *game.Note, lo, hi mapper.Point, v View) bool {
	top := e.mapper.TimeToY(n.EndMs, v.NowMs, v.Speed)
	bottom := e.mapper.TimeToY(n.Ms, v.NowMs, v.Speed)
	y0, y1 := max(top, lo.Y), min(bottom, hi.Y)
	if y0 > y1 {
		return false
	}
	left, right := e.mapper.LaneLeft(n.Lane), e.mapper.LaneRight(n.Lane)
	x0 := min(e.mapper.ProjectX(left, y0), e.mapper.ProjectX(left, y1))
	x1 := max(e.mapper.ProjectX(right, y0), e.mapper.ProjectX(right, y1))
	return x0 <= hi.X && x1 >= lo.X
}

func rect(a, b mapper.Point) (lo, hi mapper.Point) {
	lo = mapper.Point{X: min(a.X, b.X), Y: min(a.Y, b.Y)}
	hi = mapper.Point{X: max(a.X, b.X), Y: max(a.Y, b.Y)}
	return
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
