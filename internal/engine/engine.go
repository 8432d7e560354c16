// Package engine runs a session against a clock, input and a renderer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.lost.host/meutraa/vbeat/internal/broadcast"
	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/effects"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/input"
	"git.lost.host/meutraa/vbeat/internal/render"
	"git.lost.host/meutraa/vbeat/internal/session"
	"git.lost.host/meutraa/vbeat/internal/transport"
)

// Saver stores finished runs.
type Saver interface {
	Save(ctx context.Context, c *game.Chart, res *session.Result, rate float64) (int64, error)
}

// Starter is told when a new run begins. Observers that keep per run state
// implement it.
type Starter interface {
	Started()
}

type Options struct {
	Clock     transport.Clock
	Renderer  render.Renderer
	Publisher *broadcast.Publisher // optional
	Saver     Saver                // optional
	Observer  session.Observer     // optional
	Rate      float64
	Logger    *slog.Logger
}

type Engine struct {
	cfg       *config.Config
	session   *session.Session
	fx        *effects.Manager
	clock     transport.Clock
	renderer  render.Renderer
	publisher *broadcast.Publisher
	saver     Saver
	observer  session.Observer
	rate      float64
	logger    *slog.Logger

	startMs int64
	lastMs  int64
	floorMs int64
}

func New(cfg *config.Config, chart *game.Chart, opts Options) *Engine {
	if nil == opts.Logger {
		opts.Logger = slog.Default()
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	e := &Engine{
		cfg:       cfg,
		session:   session.New(cfg, chart, opts.Logger),
		fx:        effects.NewManager(&cfg.Effects),
		clock:     opts.Clock,
		renderer:  opts.Renderer,
		publisher: opts.Publisher,
		saver:     opts.Saver,
		observer:  opts.Observer,
		rate:      opts.Rate,
		logger:    opts.Logger,
	}
	e.session.SetObserver(opts.Observer)
	return e
}

func (e *Engine) Session() *session.Session {
	return e.session
}

// now reads the clock. Readings never go backwards between seeks, which the
// session relies on.
func (e *Engine) now() int64 {
	ms := e.clock.NowMs() + e.cfg.Runtime.OffsetMs
	if ms < e.lastMs {
		return e.lastMs
	}
	e.lastMs = ms
	return ms
}

// at is the chart time an input happened at. Events that waited in a
// channel are dated back by how long they waited, but never before a time
// the session has already been advanced to, so a replay of the input log
// judges the same way.
func (e *Engine) at(ev input.LaneEvent) int64 {
	now := e.now()
	ms := now
	if !ev.At.IsZero() {
		if waited := time.Since(ev.At); waited > 0 {
			ms -= int64(float64(waited.Milliseconds()) * e.rate)
		}
	}
	ms = max(ms, e.floorMs)
	e.floorMs = ms
	return ms
}

func (e *Engine) seek(ms int64) error {
	if err := e.clock.Seek(ms); nil != err {
		return fmt.Errorf("unable to seek clock: %w", err)
	}
	e.lastMs = ms + e.cfg.Runtime.OffsetMs
	e.floorMs = e.lastMs
	return nil
}

func (e *Engine) started() {
	if s, ok := e.observer.(Starter); ok {
		s.Started()
	}
}

func (e *Engine) draw(ctx context.Context, now int64) error {
	e.fx.Consume(e.session.Drain(), now)
	e.fx.Drive(e.session.Holding(), e.session.Chart(), now)
	e.fx.Tick(now)
	if err := e.renderer.Render(e.session.Frame(now), e.fx.Active()); nil != err {
		return err
	}
	if nil != e.publisher {
		e.publisher.Offer(ctx, e.session.Summary(now), time.Now())
	}
	return nil
}

// finish stores and publishes a finished run.
func (e *Engine) finish(ctx context.Context, now int64) *session.Result {
	res := e.session.Result()
	if nil != e.saver {
		if _, err := e.saver.Save(ctx, e.session.Chart(), res, e.rate); nil != err {
			e.logger.Error("unable to save run", slog.String("error", err.Error()))
		}
	}
	if nil != e.publisher {
		if err := e.publisher.Flush(ctx, e.session.Summary(now)); nil != err {
			e.logger.Warn("unable to publish result", slog.String("error", err.Error()))
		}
	}
	return res
}

func (e *Engine) togglePause() {
	if e.session.Paused() {
		now := e.now()
		e.floorMs = max(e.floorMs, now)
		e.session.Resume(now)
		e.clock.Play()
		return
	}
	e.session.Pause()
	e.clock.Pause()
}

func (e *Engine) restart() error {
	e.session.Reset()
	e.fx.Reset()
	e.started()
	if err := e.seek(e.startMs); nil != err {
		return err
	}
	e.clock.Play()
	return nil
}

// Run plays until the run finishes, a Quit command arrives or ctx is done.
// All session state is touched from this goroutine only. The result is the
// run as it stood when Run returned.
func (e *Engine) Run(ctx context.Context, events <-chan input.LaneEvent, reload <-chan *game.Chart) (*session.Result, error) {
	e.startMs = e.clock.NowMs()
	e.lastMs = e.startMs + e.cfg.Runtime.OffsetMs
	e.floorMs = e.lastMs
	e.started()

	ms := func(v int64) time.Duration { return time.Duration(float64(v)/e.rate) * time.Millisecond }
	frame := time.NewTicker(time.Duration(e.cfg.Runtime.FramePeriodMs) * time.Millisecond)
	defer frame.Stop()
	sweep := time.NewTicker(max(ms(e.cfg.Scoring.SweepIntervalMs), time.Millisecond))
	defer sweep.Stop()
	bonus := time.NewTicker(max(ms(e.cfg.Scoring.BonusIntervalMs), time.Millisecond))
	defer bonus.Stop()

	e.clock.Play()
	defer e.clock.Pause()
	e.logger.Info("run started",
		slog.String("run", e.session.ID.String()),
		slog.String("difficulty", e.session.Chart().Difficulty.Name),
		slog.Int("notes", len(e.session.Chart().Notes)),
		slog.Float64("rate", e.rate))

	for {
		select {
		case <-ctx.Done():
			return e.session.Result(), nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Command {
			case input.Quit:
				e.logger.Info("quit", slog.Int64("at", e.now()))
				return e.session.Result(), nil
			case input.TogglePause:
				e.togglePause()
			case input.Restart:
				if err := e.restart(); nil != err {
					return e.session.Result(), err
				}
			default:
				if ev.Down {
					e.session.LaneDown(ev.Lane, e.at(ev))
				} else {
					e.session.LaneUp(ev.Lane, e.at(ev))
				}
			}

		case <-sweep.C:
			e.floorMs = e.now()
			e.session.Sweep(e.floorMs)

		case <-bonus.C:
			e.floorMs = e.now()
			e.session.BonusTick(e.floorMs)

		case <-frame.C:
			if err := e.draw(ctx, e.now()); nil != err {
				return e.session.Result(), fmt.Errorf("unable to render: %w", err)
			}

		case <-e.clock.Ended():
			e.session.EndOfTrack(e.now())

		case chart, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			e.session.Load(chart)
			e.fx.Reset()
			e.floorMs = e.lastMs
			e.logger.Info("chart reloaded", slog.Int("notes", len(chart.Notes)))
		}

		if e.session.Finish() != session.Running {
			now := e.now()
			if err := e.draw(ctx, now); nil != err {
				e.logger.Warn("unable to render", slog.String("error", err.Error()))
			}
			return e.finish(ctx, now), nil
		}
	}
}
