// Package metrics exports gameplay counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"git.lost.host/meutraa/vbeat/internal/config"
	"git.lost.host/meutraa/vbeat/internal/game"
	"git.lost.host/meutraa/vbeat/internal/score"
	"git.lost.host/meutraa/vbeat/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector observes sessions. It keeps its own registry so that tests and
// several engines in one process do not collide.
type Collector struct {
	registry *prometheus.Registry
	tiers    []string

	judgements *prometheus.CounterVec
	offset     prometheus.Histogram
	score      prometheus.Gauge
	combo      prometheus.Gauge
	runs       *prometheus.CounterVec
	accuracy   prometheus.Histogram
}

var _ session.Observer = (*Collector)(nil)

func New(cfg *config.Config) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		judgements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vbeat_judgements_total",
			Help: "Judged inputs and sweeps by outcome and tier",
		}, []string{"kind", "tier"}),
		offset: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vbeat_hit_offset_ms",
			Help:    "Signed distance of judged presses from their note, positive when early",
			Buckets: prometheus.LinearBuckets(-150, 25, 13),
		}),
		score: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vbeat_score",
			Help: "Score of the current run",
		}),
		combo: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vbeat_combo",
			Help: "Combo of the current run",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vbeat_runs_total",
			Help: "Finished runs by how they finished",
		}, []string{"finish"}),
		accuracy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vbeat_run_accuracy",
			Help:    "Accuracy of finished runs",
			Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}),
	}
	for _, t := range cfg.Judgement.Tiers {
		c.tiers = append(c.tiers, t.Name)
	}
	c.registry.MustRegister(c.judgements, c.offset, c.score, c.combo, c.runs, c.accuracy)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) tier(t int) string {
	if t == game.NoTier || t < 0 || t >= len(c.tiers) {
		return "none"
	}
	return c.tiers[t]
}

func (c *Collector) Observe(o score.Outcome) {
	if o.Kind == score.None {
		return
	}
	c.judgements.WithLabelValues(o.Kind.String(), c.tier(o.Tier)).Inc()
	if o.Kind == score.Tapped || o.Kind == score.HoldStarted {
		c.offset.Observe(float64(o.Offset))
	}
	c.score.Add(float64(o.Delta))
	c.combo.Set(float64(o.Combo))
}

func (c *Collector) Finished(r *session.Result) {
	c.runs.WithLabelValues(r.Finish.String()).Inc()
	c.accuracy.Observe(r.Accuracy)
	c.score.Set(float64(r.Score))
}

// Started resets the per run gauges.
func (c *Collector) Started() {
	c.score.Set(0)
	c.combo.Set(0)
}

// Router serves /metrics and a liveness check.
func (c *Collector) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return r
}

// Serve listens on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if nil == logger {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); nil != err {
			logger.Warn("metrics: shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("metrics: listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); nil != err && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("unable to serve metrics on %s: %w", addr, err)
	}
	<-done
	return nil
}
