// Package transport provides the playback clocks a session is driven by.
package transport

import (
	"sync"
	"time"
)

// Clock is a playback position in chart milliseconds. Readings may be
// negative during a lead in. Ended is closed once the track has finished.
type Clock interface {
	NowMs() int64
	Seek(ms int64) error
	Play()
	Pause()
	Playing() bool
	Ended() <-chan struct{}
}

// Manual only moves when told to.
type Manual struct {
	mu      sync.Mutex
	ms      int64
	endMs   int64
	playing bool
	ended   chan struct{}
	closed  bool
}

// NewManual returns a clock at zero that ends once it reaches endMs. An endMs
// of zero never ends by itself.
func NewManual(endMs int64) *Manual {
	return &Manual{endMs: endMs, ended: make(chan struct{})}
}

func (c *Manual) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *Manual) Seek(ms int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms = ms
	c.check()
	return nil
}

func (c *Manual) Play() {
	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
}

func (c *Manual) Pause() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
}

func (c *Manual) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Advance moves the clock forward by d milliseconds if it is playing.
func (c *Manual) Advance(d int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.ms += d
		c.check()
	}
	return c.ms
}

// End closes Ended regardless of the position.
func (c *Manual) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish()
}

func (c *Manual) Ended() <-chan struct{} {
	return c.ended
}

func (c *Manual) check() {
	if c.endMs > 0 && c.ms >= c.endMs {
		c.finish()
	}
}

func (c *Manual) finish() {
	if !c.closed {
		c.closed = true
		close(c.ended)
	}
}

// Wall follows the system clock scaled by a playback rate. It is used when
// there is no audio to follow.
type Wall struct {
	mu      sync.Mutex
	rate    float64
	length  int64
	base    int64     // position when last started or seeked
	since   time.Time // wall time of base, zero while paused
	ended   chan struct{}
	closed  bool
	timer   *time.Timer
	nowFunc func() time.Time
}

// NewWall returns a paused clock at startMs. It ends once it reaches lengthMs,
// or never when lengthMs is zero. A rate of 1 plays in real time.
func NewWall(startMs, lengthMs int64, rate float64) *Wall {
	if rate <= 0 {
		rate = 1
	}
	return &Wall{
		rate:    rate,
		length:  lengthMs,
		base:    startMs,
		ended:   make(chan struct{}),
		nowFunc: time.Now,
	}
}

func (c *Wall) position(now time.Time) int64 {
	if c.since.IsZero() {
		return c.base
	}
	return c.base + int64(float64(now.Sub(c.since).Milliseconds())*c.rate)
}

func (c *Wall) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position(c.nowFunc())
}

func (c *Wall) Seek(ms int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = ms
	if !c.since.IsZero() {
		c.since = c.nowFunc()
	}
	c.schedule()
	return nil
}

func (c *Wall) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.since.IsZero() {
		return
	}
	c.since = c.nowFunc()
	c.schedule()
}

func (c *Wall) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.since.IsZero() {
		return
	}
	c.base = c.position(c.nowFunc())
	c.since = time.Time{}
	c.schedule()
}

func (c *Wall) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.since.IsZero()
}

func (c *Wall) Ended() <-chan struct{} {
	return c.ended
}

// schedule arms the end of track timer for the current position. The caller
// holds the lock.
func (c *Wall) schedule() {
	if nil != c.timer {
		c.timer.Stop()
		c.timer = nil
	}
	if c.length <= 0 || c.closed {
		return
	}
	left := c.length - c.position(c.nowFunc())
	if left <= 0 {
		c.closed = true
		close(c.ended)
		return
	}
	if c.since.IsZero() {
		return
	}
	d := time.Duration(float64(left)/c.rate) * time.Millisecond
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.schedule()
	})
}
