package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Clock = (*Manual)(nil)
	_ Clock = (*Wall)(nil)
	_ Clock = (*Audio)(nil)
)

func closed(c Clock) bool {
	select {
	case <-c.Ended():
		return true
	default:
		return false
	}
}

func TestManual(t *testing.T) {
	c := NewManual(1000)
	assert.Equal(t, int64(0), c.Advance(100))

	c.Play()
	assert.True(t, c.Playing())
	assert.Equal(t, int64(100), c.Advance(100))
	require.NoError(t, c.Seek(-500))
	assert.Equal(t, int64(-500), c.NowMs())

	c.Pause()
	assert.Equal(t, int64(-500), c.Advance(2000))
	assert.False(t, closed(c))

	c.Play()
	c.Advance(1500)
	assert.True(t, closed(c))
	c.End()
}

func TestManualWithoutEnd(t *testing.T) {
	c := NewManual(0)
	c.Play()
	c.Advance(1 << 40)
	assert.False(t, closed(c))
	c.End()
	assert.True(t, closed(c))
}

type fakeTime struct {
	now time.Time
}

func (f *fakeTime) Now() time.Time { return f.now }

func (f *fakeTime) Add(ms int64) { f.now = f.now.Add(time.Duration(ms) * time.Millisecond) }

func TestWallPosition(t *testing.T) {
	tests := map[string]struct {
		rate    float64
		start   int64
		elapsed int64
		want    int64
	}{
		"real time":  {rate: 1, elapsed: 1500, want: 1500},
		"lead in":    {rate: 1, start: -2000, elapsed: 500, want: -1500},
		"fast":       {rate: 1.5, elapsed: 1000, want: 1500},
		"slow":       {rate: 0.5, start: 1000, elapsed: 1000, want: 1500},
		"rate fixed": {rate: 0, elapsed: 200, want: 200},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ft := &fakeTime{now: time.Unix(100, 0)}
			c := NewWall(test.start, 0, test.rate)
			c.nowFunc = ft.Now

			ft.Add(300)
			assert.Equal(t, test.start, c.NowMs(), "paused clock moved")
			c.Play()
			ft.Add(test.elapsed)
			assert.Equal(t, test.want, c.NowMs())
		})
	}
}

func TestWallPauseAndSeek(t *testing.T) {
	ft := &fakeTime{now: time.Unix(100, 0)}
	c := NewWall(0, 0, 1)
	c.nowFunc = ft.Now

	c.Play()
	ft.Add(400)
	c.Pause()
	assert.False(t, c.Playing())
	ft.Add(1000)
	assert.Equal(t, int64(400), c.NowMs())

	require.NoError(t, c.Seek(5000))
	assert.Equal(t, int64(5000), c.NowMs())
	c.Play()
	c.Play()
	ft.Add(250)
	assert.Equal(t, int64(5250), c.NowMs())

	require.NoError(t, c.Seek(100))
	ft.Add(50)
	assert.Equal(t, int64(150), c.NowMs())
}

func TestWallEnds(t *testing.T) {
	c := NewWall(0, 30, 1)
	c.Play()
	select {
	case <-c.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("clock did not end")
	}
	assert.GreaterOrEqual(t, c.NowMs(), int64(30))
}

func TestWallSeekPastEnd(t *testing.T) {
	c := NewWall(0, 1000, 1)
	assert.False(t, closed(c))
	require.NoError(t, c.Seek(1000))
	assert.True(t, closed(c))
	require.NoError(t, c.Seek(0))
	assert.True(t, closed(c))
}

func TestWallPausedDoesNotEnd(t *testing.T) {
	c := NewWall(0, 20, 1)
	c.Play()
	c.Pause()
	time.Sleep(60 * time.Millisecond)
	assert.False(t, closed(c))
}
