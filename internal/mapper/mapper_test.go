package mapper

import (
	"math/rand"
	"testing"

	"git.lost.host/meutraa/vbeat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestScale(t *testing.T) {
	m := New(config.Default())
	assert.InDelta(t, 0.5, m.Scale(0), tolerance)
	assert.InDelta(t, 1.0, m.Scale(650), tolerance)
	assert.InDelta(t, 0.75, m.Scale(325), tolerance)
	assert.Less(t, m.NoteHeightScale(0), 1.0)
	assert.Greater(t, m.NoteHeightScale(0), m.Scale(0))
}

func TestProjectRoundTrip(t *testing.T) {
	m := New(config.Default())
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		worldX := r.Float64()*2000 - 660
		y := r.Float64() * 650
		sx := m.ProjectX(worldX, y)
		assert.InDelta(t, worldX, m.UnprojectX(sx, y), tolerance)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	m := New(config.Default())
	for _, speed := range []float64{0.25, 0.5, 1.3} {
		for ms := int64(-500); ms < 20000; ms += 37 {
			y := m.TimeToY(ms, 4000, speed)
			assert.InDelta(t, float64(ms), m.YToTime(y, 4000, speed), 1e-6)
		}
	}
}

func TestHitLine(t *testing.T) {
	m := New(config.Default())
	assert.Equal(t, 550.0, m.TimeToY(1000, 1000, 0.5))
	// notes in the future are above the hit line
	assert.Equal(t, 500.0, m.TimeToY(1100, 1000, 0.5))
}

func TestLaneBoundaries(t *testing.T) {
	m := New(config.Default())
	require.Equal(t, 7, m.Lanes())
	assert.Equal(t, 0.0, m.LaneLeft(0))
	assert.Equal(t, 680.0, m.LaneRight(6))
	assert.Equal(t, 270.0, m.LaneLeft(3))
	assert.Equal(t, 410.0, m.LaneRight(3))
	assert.Equal(t, 340.0, m.LaneCenter(3))

	laneTests := map[float64]int{
		-1:    -1,
		0:     0,
		89.9:  0,
		90:    1,
		269.9: 2,
		270:   3,
		409.9: 3,
		410:   4,
		679.9: 6,
		680:   -1,
	}
	for x, lane := range laneTests {
		assert.Equal(t, lane, m.LaneAt(x), "x=%v", x)
	}
}

func TestNarrowLanesAreCentred(t *testing.T) {
	cfg := config.Default()
	cfg.Lanes.Widths = []float64{100, 100}
	cfg.Lanes.Keys = "fj"
	m := New(cfg)
	assert.Equal(t, 240.0, m.LaneLeft(0))
	assert.Equal(t, 440.0, m.LaneRight(1))
	assert.Equal(t, 340.0, m.LaneRight(0))
}

func TestLocateInvertsProject(t *testing.T) {
	m := New(config.Default())
	for lane := 0; lane < m.Lanes(); lane++ {
		for ms := int64(2000); ms < 3200; ms += 50 {
			p := m.Project(lane, ms, 2000, 0.5)
			l, got, ok := m.Locate(p, 2000, 0.5)
			require.True(t, ok)
			assert.Equal(t, lane, l)
			assert.Equal(t, ms, got)
		}
	}
}

func TestLocateUsesPerspective(t *testing.T) {
	m := New(config.Default())
	// At the top of the canvas the lane block is half as wide, so a point
	// just inside the left edge of the shrunk block is still lane 0.
	edge := m.ProjectX(0, 0)
	assert.InDelta(t, 170, edge, tolerance)
	l, _, ok := m.Locate(Point{X: edge + 1, Y: 0}, 0, 0.5)
	assert.True(t, ok)
	assert.Equal(t, 0, l)
	_, _, ok = m.Locate(Point{X: edge - 1, Y: 0}, 0, 0.5)
	assert.False(t, ok)
}

func TestVisible(t *testing.T) {
	m := New(config.Default())
	from, to := m.Visible(1000, 0.5)
	assert.Equal(t, int64(800), from)
	assert.Equal(t, int64(2100), to)
}

func BenchmarkLocate(b *testing.B) {
	m := New(config.Default())
	p := Point{X: 333, Y: 421}
	for n := 0; n < b.N; n++ {
		m.Locate(p, 5000, 0.5)
	}
}
