package effects

import (
	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/score"
)

type Kind uint8

const (
	KindTap   Kind = iota // flash where a tap was hit
	KindHold              // flare under a held note, driven by hold state
	KindJudge             // tier or miss label
)

func (k Kind) String() string {
	switch k {
	case KindTap:
		return "tap"
	case KindHold:
		return "hold"
	case KindJudge:
		return "judge"
	}
	return "unknown"
}

// Key identifies an effect. A note has at most one effect of each kind.
type Key struct {
	Note game.NoteID
	Kind Kind
}

type Phase uint8

const (
	Live Phase = iota
	Grace      // driver stopped reporting it, still drawn as live
	Fading
)

type Effect struct {
	Key     Key
	Lane    int
	Tier    int        // game.NoTier for misses
	Outcome score.Kind // what spawned it, None for hold flares
	BornMs  int64
	Phase   Phase
	Alpha   float64 // 1 when fresh, towards 0 when expiring
	Pulse   int64   // pulses since birth, hold flares only

	lifetime int64 // zero for driven effects
	seen     int64
}

// Manager owns every visual effect. Effects live in a slot array reused
// through a free list and are found by key, so spawning the same key twice
// restarts the existing effect instead of stacking a second one.
type Manager struct {
	cfg *config.EffectsConfig

	slots  []Effect
	used   []bool
	free   []int32
	index  map[Key]int32
	active []Effect
	allocs int
}

type Stats struct {
	Live        int
	Free        int
	Allocations int // slot array allocations so far
}

func NewManager(cfg *config.EffectsConfig) *Manager {
	m := &Manager{cfg: cfg, index: map[Key]int32{}}
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}
	m.grow(size)
	return m
}

func (m *Manager) grow(n int) {
	start := len(m.slots)
	slots := make([]Effect, start+n)
	copy(slots, m.slots)
	used := make([]bool, start+n)
	copy(used, m.used)
	m.slots, m.used = slots, used
	for i := start + n - 1; i >= start; i-- {
		m.free = append(m.free, int32(i))
	}
	m.allocs++
}

func (m *Manager) acquire(key Key) *Effect {
	if i, ok := m.index[key]; ok {
		return &m.slots[i]
	}
	if len(m.free) == 0 {
		m.grow(len(m.slots))
	}
	i := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]
	m.used[i] = true
	m.index[key] = i
	m.slots[i] = Effect{Key: key}
	return &m.slots[i]
}

func (m *Manager) release(i int32) {
	delete(m.index, m.slots[i].Key)
	m.used[i] = false
	m.slots[i] = Effect{}
	m.free = append(m.free, i)
}

func (m *Manager) spawn(key Key, o score.Outcome, lifetime, nowMs int64) {
	e := m.acquire(key)
	e.Lane = o.Lane
	e.Tier = o.Tier
	e.Outcome = o.Kind
	e.BornMs = nowMs
	e.Phase = Live
	e.Alpha = 1
	e.lifetime = lifetime
	e.seen = nowMs
}

// Consume turns judgements into effects.
func (m *Manager) Consume(events []score.Outcome, nowMs int64) {
	for _, o := range events {
		switch o.Kind {
		case score.None:
			continue
		case score.Tapped:
			m.spawn(Key{Note: o.Note, Kind: KindTap}, o, m.cfg.TapLifetimeMs, nowMs)
		}
		m.spawn(Key{Note: o.Note, Kind: KindJudge}, o, m.cfg.JudgeLifetimeMs, nowMs)
	}
}

// Drive keeps one flare alive for every held note. A flare whose note is no
// longer reported stays for the grace period, so a dropped frame of hold
// state does not restart it, then fades out and is freed.
func (m *Manager) Drive(holding []game.NoteID, chart *game.Chart, nowMs int64) {
	for _, id := range holding {
		key := Key{Note: id, Kind: KindHold}
		e, ok := m.lookup(key)
		if !ok {
			lane := -1
			if n := chart.Find(id); nil != n {
				lane = n.Lane
			}
			m.spawn(key, score.Outcome{Kind: score.None, Lane: lane, Tier: game.NoTier}, 0, nowMs)
			continue
		}
		e.seen = nowMs
	}

	grace, fade := m.cfg.GraceMs, m.cfg.FadeMs
	for i := range m.slots {
		e := &m.slots[i]
		if !m.used[i] || e.Key.Kind != KindHold {
			continue
		}
		if m.cfg.PulseMs > 0 {
			e.Pulse = (nowMs - e.BornMs) / m.cfg.PulseMs
		}
		age := nowMs - e.seen
		switch {
		case age <= 0:
			e.Phase, e.Alpha = Live, 1
		case age < grace:
			e.Phase, e.Alpha = Grace, 1
		case age < grace+fade:
			e.Phase = Fading
			e.Alpha = 1 - float64(age-grace)/float64(fade)
		default:
			m.release(int32(i))
		}
	}
}

func (m *Manager) lookup(key Key) (*Effect, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return &m.slots[i], true
}

// Tick expires fixed lifetime effects.
func (m *Manager) Tick(nowMs int64) {
	for i := range m.slots {
		e := &m.slots[i]
		if !m.used[i] || e.lifetime == 0 {
			continue
		}
		age := nowMs - e.BornMs
		if age >= e.lifetime {
			m.release(int32(i))
			continue
		}
		e.Alpha = 1 - float64(age)/float64(e.lifetime)
	}
}

// Active returns the live effects in slot order. The slice is reused by the
// next call.
func (m *Manager) Active() []Effect {
	m.active = m.active[:0]
	for i := range m.slots {
		if m.used[i] {
			m.active = append(m.active, m.slots[i])
		}
	}
	return m.active
}

// Get returns the effect for key.
func (m *Manager) Get(key Key) (Effect, bool) {
	e, ok := m.lookup(key)
	if !ok {
		return Effect{}, false
	}
	return *e, true
}

// Reset frees every effect, keeping the slots.
func (m *Manager) Reset() {
	for i := range m.slots {
		if m.used[i] {
			m.release(int32(i))
		}
	}
}

func (m *Manager) Stats() Stats {
	return Stats{
		Live:        len(m.index),
		Free:        len(m.free),
		Allocations: m.allocs,
	}
}
