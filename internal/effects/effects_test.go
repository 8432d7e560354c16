package effects

import (
	"testing"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manager() *Manager {
	return NewManager(&config.Default().Effects)
}

func tapped(id game.NoteID, lane int) score.Outcome {
	return score.Outcome{Kind: score.Tapped, Note: id, Lane: lane, Tier: 0}
}

func TestTapSpawnsFlashAndJudge(t *testing.T) {
	m := manager()
	m.Consume([]score.Outcome{tapped(1, 3), {Kind: score.None}}, 1000)

	active := m.Active()
	require.Len(t, active, 2)
	flash, ok := m.Get(Key{Note: 1, Kind: KindTap})
	require.True(t, ok)
	assert.Equal(t, 3, flash.Lane)
	assert.Equal(t, 1.0, flash.Alpha)
	_, ok = m.Get(Key{Note: 1, Kind: KindJudge})
	assert.True(t, ok)

	m.Tick(1150)
	flash, _ = m.Get(Key{Note: 1, Kind: KindTap})
	assert.InDelta(t, 0.5, flash.Alpha, 1e-9)

	m.Tick(1300)
	_, ok = m.Get(Key{Note: 1, Kind: KindTap})
	assert.False(t, ok)
	assert.Len(t, m.Active(), 1)

	m.Tick(1500)
	assert.Empty(t, m.Active())
}

func TestSameKeyIsNotDuplicated(t *testing.T) {
	m := manager()
	m.Consume([]score.Outcome{{Kind: score.HoldStarted, Note: 7, Lane: 1}}, 2000)
	m.Consume([]score.Outcome{{Kind: score.HoldReleased, Note: 7, Lane: 1, Tier: 1}}, 2200)

	assert.Len(t, m.Active(), 1)
	judge, ok := m.Get(Key{Note: 7, Kind: KindJudge})
	require.True(t, ok)
	assert.Equal(t, score.HoldReleased, judge.Outcome)
	assert.Equal(t, int64(2200), judge.BornMs)
	assert.Equal(t, 1, judge.Tier)
}

func TestHoldFlareLifecycle(t *testing.T) {
	m := manager()
	chart := game.NewChart(game.Difficulty{Lanes: 7}, []game.Note{{Lane: 5, Type: game.Hold, Ms: 2000, EndMs: 3000}})
	id := chart.Notes[0].ID
	key := Key{Note: id, Kind: KindHold}

	for ms := int64(2000); ms <= 2300; ms += 16 {
		m.Drive([]game.NoteID{id}, chart, ms)
	}
	flare, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, 5, flare.Lane)
	assert.Equal(t, Live, flare.Phase)
	assert.Equal(t, int64(2), flare.Pulse)
	born := flare.BornMs

	// a frame without hold state is absorbed by the grace period
	m.Drive(nil, chart, 2340)
	flare, _ = m.Get(key)
	assert.Equal(t, Grace, flare.Phase)
	m.Drive([]game.NoteID{id}, chart, 2356)
	flare, _ = m.Get(key)
	assert.Equal(t, Live, flare.Phase)
	assert.Equal(t, born, flare.BornMs)

	// released: grace, fade, gone
	m.Drive(nil, chart, 2400)
	m.Drive(nil, chart, 2516)
	flare, _ = m.Get(key)
	assert.Equal(t, Fading, flare.Phase)
	assert.InDelta(t, 0.5, flare.Alpha, 1e-9)
	m.Drive(nil, chart, 2616)
	_, ok = m.Get(key)
	assert.False(t, ok)

	// fixed lifetime effects are left to Tick
	m.Consume([]score.Outcome{tapped(99, 0)}, 2616)
	m.Drive(nil, chart, 5000)
	assert.Len(t, m.Active(), 2)
}

func TestPoolReusesSlots(t *testing.T) {
	m := manager()
	start := m.Stats()
	assert.Equal(t, 1, start.Allocations)
	assert.Equal(t, 64, start.Free)

	now := int64(0)
	for i := 0; i < 10000; i++ {
		id := game.NoteID(i + 1)
		m.Consume([]score.Outcome{tapped(id, i%7)}, now)
		now += 50
		m.Tick(now)
	}
	stats := m.Stats()
	assert.Equal(t, 1, stats.Allocations)
	assert.LessOrEqual(t, stats.Live, 2*(500/50+1))
	assert.Equal(t, 64, stats.Live+stats.Free)
}

func TestPoolGrowsWhenFull(t *testing.T) {
	cfg := config.Default().Effects
	cfg.PoolSize = 2
	m := NewManager(&cfg)
	for i := 1; i <= 3; i++ {
		m.Consume([]score.Outcome{tapped(game.NoteID(i), 0)}, 0)
	}
	stats := m.Stats()
	assert.Equal(t, 6, stats.Live)
	assert.Equal(t, 3, stats.Allocations)

	m.Reset()
	stats = m.Stats()
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, 8, stats.Free)
	assert.Empty(t, m.Active())
}

func BenchmarkFrame(b *testing.B) {
	m := manager()
	chart := game.NewChart(game.Difficulty{Lanes: 7}, []game.Note{{Lane: 5, Type: game.Hold, Ms: 0, EndMs: 1 << 40}})
	holding := []game.NoteID{chart.Notes[0].ID}
	events := []score.Outcome{tapped(0, 0)}
	b.ResetTimer()

	for n := 0; n < b.N; n++ {
		now := int64(n * 16)
		events[0].Note = game.NoteID(n%32 + 2)
		m.Consume(events, now)
		m.Drive(holding, chart, now)
		m.Tick(now)
		_ = m.Active()
	}
}
