package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"git.lost.host/meutraa/vbeat/internal/broadcast"
	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/effects"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/score"
	"git.lost.host/meutraa/vbeat/internal/session"
	"git.lost.host/meutraa/vbeat/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nopLogger = slog.New(slog.DiscardHandler)

type fakeRenderer struct {
	frames []session.Frame
	err    error
}

func (r *fakeRenderer) Init() error   { return nil }
func (r *fakeRenderer) Deinit() error { return nil }
func (r *fakeRenderer) Render(f session.Frame, _ []effects.Effect) error {
	r.frames = append(r.frames, f)
	return r.err
}

type fakeSaver struct {
	saved []*session.Result
	rate  float64
}

func (s *fakeSaver) Save(_ context.Context, _ *game.Chart, res *session.Result, rate float64) (int64, error) {
	s.saved = append(s.saved, res)
	s.rate = rate
	return int64(len(s.saved)), nil
}

type starts struct {
	count int
}

func (s *starts) Observe(score.Outcome)    {}
func (s *starts) Finished(*session.Result) {}
func (s *starts) Started()                 { s.count++ }

type fixture struct {
	engine   *Engine
	clock    *transport.Manual
	renderer *fakeRenderer
	saver    *fakeSaver
	out      *bytes.Buffer
	events   chan input.LaneEvent
	reload   chan *game.Chart
	observer *starts
}

func newFixture(notes ...game.Note) *fixture {
	cfg := config.Default()
	f := &fixture{
		clock:    transport.NewManual(0),
		renderer: &fakeRenderer{},
		saver:    &fakeSaver{},
		out:      &bytes.Buffer{},
		events:   make(chan input.LaneEvent),
		reload:   make(chan *game.Chart),
		observer: &starts{},
	}
	f.engine = New(cfg, game.NewChart(game.Difficulty{Name: "test", Lanes: 7}, notes), Options{
		Clock:     f.clock,
		Renderer:  f.renderer,
		Publisher: broadcast.NewPublisher(time.Hour, nopLogger, broadcast.NewJSONLines(f.out)),
		Saver:     f.saver,
		Observer:  f.observer,
		Rate:      1.5,
		Logger:    nopLogger,
	})
	return f
}

type outcome struct {
	res *session.Result
	err error
}

func (f *fixture) run(ctx context.Context) <-chan outcome {
	done := make(chan outcome, 1)
	go func() {
		res, err := f.engine.Run(ctx, f.events, f.reload)
		done <- outcome{res, err}
	}()
	return done
}

func wait(t *testing.T, done <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-done:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
	return outcome{}
}

func TestRunClears(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000})
	require.NoError(t, f.clock.Seek(1010))
	done := f.run(context.Background())

	f.events <- input.LaneEvent{Lane: 2, Down: true}
	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, session.Cleared, o.res.Finish)
	assert.Equal(t, int64(300), o.res.Score)
	assert.Equal(t, []game.Input{{Lane: 2, Down: true, Ms: 1010}}, o.res.Inputs)

	require.Len(t, f.saver.saved, 1)
	assert.Equal(t, 1.5, f.saver.rate)
	assert.Contains(t, f.out.String(), `"finish":"cleared"`)
	require.NotEmpty(t, f.renderer.frames)
	assert.Equal(t, session.Cleared, f.renderer.frames[len(f.renderer.frames)-1].Finish)
	assert.Equal(t, 1, f.observer.count)
	assert.False(t, f.clock.Playing())
}

func TestQuit(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000})
	done := f.run(context.Background())

	f.events <- input.LaneEvent{Command: input.Quit}
	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, session.Running, o.res.Finish)
	assert.Empty(t, f.saver.saved, "unfinished runs are not saved")
}

func TestCancel(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	done := f.run(ctx)
	cancel()
	o := wait(t, done)
	assert.NoError(t, o.err)
	assert.Equal(t, session.Running, o.res.Finish)
}

func TestPauseHoldsInput(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000})
	require.NoError(t, f.clock.Seek(1010))
	done := f.run(context.Background())

	f.events <- input.LaneEvent{Command: input.TogglePause}
	f.events <- input.LaneEvent{Lane: 2, Down: true}
	assert.False(t, f.clock.Playing())
	f.events <- input.LaneEvent{Command: input.TogglePause}

	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, session.Cleared, o.res.Finish)
	assert.Equal(t, []game.Input{{Lane: 2, Down: true, Ms: 1010}}, o.res.Inputs)
}

func TestRestart(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000}, game.Note{Lane: 3, Type: game.Tap, Ms: 1000})
	require.NoError(t, f.clock.Seek(1010))
	done := f.run(context.Background())

	f.events <- input.LaneEvent{Lane: 2, Down: true}
	f.events <- input.LaneEvent{Command: input.Restart}
	f.events <- input.LaneEvent{Lane: 3, Down: true}
	f.events <- input.LaneEvent{Command: input.Quit}

	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, []game.Input{{Lane: 3, Down: true, Ms: 1010}}, o.res.Inputs)
	assert.Equal(t, 2, f.observer.count)
	assert.Equal(t, int64(300), o.res.Score)
}

func TestEndOfTrack(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 5000})
	done := f.run(context.Background())
	f.clock.End()

	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, session.Cleared, o.res.Finish)
	assert.Len(t, f.saver.saved, 1)
}

func TestReload(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000})
	require.NoError(t, f.clock.Seek(900))
	done := f.run(context.Background())

	f.reload <- game.NewChart(game.Difficulty{Name: "test", Lanes: 7}, []game.Note{{Lane: 4, Type: game.Tap, Ms: 920}})
	f.events <- input.LaneEvent{Lane: 4, Down: true}

	o := wait(t, done)
	require.NoError(t, o.err)
	assert.Equal(t, session.Cleared, o.res.Finish)
	assert.Equal(t, int64(300), o.res.Score)
}

func TestRenderFailureStopsRun(t *testing.T) {
	f := newFixture(game.Note{Lane: 2, Type: game.Tap, Ms: 1000})
	f.renderer.err = errors.New("broken pipe")
	o := wait(t, f.run(context.Background()))
	assert.ErrorContains(t, o.err, "broken pipe")
}

func TestInputTime(t *testing.T) {
	tests := map[string]struct {
		waited time.Duration
		floor  int64
		min    int64
		max    int64
	}{
		"undated":       {waited: -1, min: 1100, max: 1100},
		"dated back":    {waited: 100 * time.Millisecond, min: 900, max: 1000},
		"after a sweep": {waited: 100 * time.Millisecond, floor: 1080, min: 1080, max: 1080},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.engine.rate = 1
			require.NoError(t, f.clock.Seek(1100))
			f.engine.floorMs = test.floor

			ev := input.LaneEvent{Lane: 1, Down: true}
			if test.waited >= 0 {
				ev.At = time.Now().Add(-test.waited)
			}
			ms := f.engine.at(ev)
			assert.GreaterOrEqual(t, ms, test.min)
			assert.LessOrEqual(t, ms, test.max)
			assert.Equal(t, ms, f.engine.floorMs)
		})
	}
}

func TestClockNeverGoesBack(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.clock.Seek(500))
	assert.Equal(t, int64(500), f.engine.now())
	require.NoError(t, f.clock.Seek(400))
	assert.Equal(t, int64(500), f.engine.now())
	require.NoError(t, f.engine.seek(400))
	assert.Equal(t, int64(400), f.engine.now())
}
