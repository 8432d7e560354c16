// Package mapper converts between (lane, time) and canvas coordinates.
//
// Lanes are laid out side by side in world space and shrink towards the top
// of the canvas by a linear perspective scale. Gameplay rendering and editor
// hit-testing share the same Mapper so a note is always found where it is
// drawn.
package mapper

import (
	"math"

	"git.lost.host/meutraa/vbeat/internal/config"
)

type Point struct {
	X, Y float64
}

type Mapper struct {
	width, height float64
	hitLineY      float64
	scaleMin      float64
	scaleMax      float64

	centerX float64
	bounds  []float64 // cumulative lane edges in world x, len(lanes)+1
}

func New(cfg *config.Config) *Mapper {
	m := &Mapper{
		width:    cfg.Canvas.Width,
		height:   cfg.Canvas.Height,
		hitLineY: cfg.Canvas.HitLineY,
		scaleMin: cfg.Perspective.ScaleMin,
		scaleMax: cfg.Perspective.ScaleMax,
		centerX:  cfg.Canvas.Width / 2,
	}

	total := 0.0
	for _, w := range cfg.Lanes.Widths {
		total += w
	}
	// Centre the lane block on the canvas
	left := (m.width - total) / 2
	m.bounds = make([]float64, 0, len(cfg.Lanes.Widths)+1)
	m.bounds = append(m.bounds, left)
	for _, w := range cfg.Lanes.Widths {
		left += w
		m.bounds = append(m.bounds, left)
	}
	return m
}

func (m *Mapper) Lanes() int {
	return len(m.bounds) - 1
}

func (m *Mapper) Width() float64 {
	return m.width
}

func (m *Mapper) Height() float64 {
	return m.height
}

func (m *Mapper) HitLineY() float64 {
	return m.hitLineY
}

// Scale is the perspective factor at screen height y.
func (m *Mapper) Scale(y float64) float64 {
	return m.scaleMin + (y/m.height)*(m.scaleMax-m.scaleMin)
}

// NoteHeightScale grows slower than Scale so notes near the hit line do not
// become too thick.
func (m *Mapper) NoteHeightScale(y float64) float64 {
	return math.Pow(m.Scale(y), 0.7)
}

func (m *Mapper) ProjectX(worldX, y float64) float64 {
	return m.centerX + (worldX-m.centerX)*m.Scale(y)
}

func (m *Mapper) UnprojectX(screenX, y float64) float64 {
	return m.centerX + (screenX-m.centerX)/m.Scale(y)
}

// TimeToY places a time on screen. speed is pixels per millisecond.
func (m *Mapper) TimeToY(ms, nowMs int64, speed float64) float64 {
	return m.hitLineY - float64(ms-nowMs)*speed
}

// YToTime is the exact inverse of TimeToY before rounding.
func (m *Mapper) YToTime(y float64, nowMs int64, speed float64) float64 {
	return float64(nowMs) + (m.hitLineY-y)/speed
}

func (m *Mapper) LaneLeft(lane int) float64 {
	return m.bounds[lane]
}

func (m *Mapper) LaneRight(lane int) float64 {
	return m.bounds[lane+1]
}

func (m *Mapper) LaneCenter(lane int) float64 {
	return (m.bounds[lane] + m.bounds[lane+1]) / 2
}

// LaneAt buckets a world x into a lane, or returns -1 outside every lane.
func (m *Mapper) LaneAt(worldX float64) int {
	if worldX < m.bounds[0] {
		return -1
	}
	for i := 1; i < len(m.bounds); i++ {
		if worldX < m.bounds[i] {
			return i - 1
		}
	}
	return -1
}

// Project gives the screen position of the centre of lane at ms.
func (m *Mapper) Project(lane int, ms, nowMs int64, speed float64) Point {
	y := m.TimeToY(ms, nowMs, speed)
	return Point{X: m.ProjectX(m.LaneCenter(lane), y), Y: y}
}

// Locate maps a screen point back to a lane and a rounded time. ok is false
// when the point lies outside every lane.
func (m *Mapper) Locate(p Point, nowMs int64, speed float64) (lane int, ms int64, ok bool) {
	lane = m.LaneAt(m.UnprojectX(p.X, p.Y))
	ms = int64(math.Round(m.YToTime(p.Y, nowMs, speed)))
	return lane, ms, lane >= 0
}

// Visible reports the time range currently on screen, top to bottom.
func (m *Mapper) Visible(nowMs int64, speed float64) (from, to int64) {
	from = int64(math.Floor(m.YToTime(m.height, nowMs, speed)))
	to = int64(math.Ceil(m.YToTime(0, nowMs, speed)))
	return
}
