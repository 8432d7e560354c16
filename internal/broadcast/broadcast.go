// Package broadcast publishes throttled run summaries for spectators.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"git.lost.host/meutraa/vbeat/internal/session"
	"golang.org/x/time/rate"
)

// Sink receives published summaries.
type Sink interface {
	Publish(ctx context.Context, s session.Summary) error
}

// JSONLines writes one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (j *JSONLines) Publish(ctx context.Context, s session.Summary) error {
	if err := ctx.Err(); nil != err {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(s); nil != err {
		return fmt.Errorf("unable to write summary: %w", err)
	}
	return nil
}

// Publisher limits how often summaries reach the sinks. Summaries offered
// while the limiter is closed are dropped except for the latest, which is
// kept pending until it can be sent. A summary that failed to reach a sink
// stays pending too.
type Publisher struct {
	limiter *rate.Limiter
	sinks   []Sink
	logger  *slog.Logger

	pending  *session.Summary
	last     session.Summary
	sent     bool
	failures int
}

func NewPublisher(every time.Duration, logger *slog.Logger, sinks ...Sink) *Publisher {
	if nil == logger {
		logger = slog.Default()
	}
	return &Publisher{
		limiter: rate.NewLimiter(rate.Every(every), 1),
		sinks:   sinks,
		logger:  logger,
	}
}

// Offer publishes s if the limiter allows it at now, otherwise keeps it
// pending. Unchanged summaries are not sent twice. It reports whether
// anything was published.
func (p *Publisher) Offer(ctx context.Context, s session.Summary, now time.Time) bool {
	if p.sent && same(p.last, s) && nil == p.pending {
		return false
	}
	p.pending = &s
	if !p.limiter.AllowN(now, 1) {
		return false
	}
	return p.send(ctx)
}

// Flush publishes s at once, ignoring the limiter. Used for final results.
func (p *Publisher) Flush(ctx context.Context, s session.Summary) error {
	p.pending = &s
	if !p.send(ctx) {
		return errors.New("unable to publish final summary")
	}
	return nil
}

func (p *Publisher) send(ctx context.Context) bool {
	s := *p.pending
	ok := true
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, s); nil != err {
			ok = false
			p.failures++
			p.logger.Warn("unable to publish summary", slog.String("error", err.Error()))
		}
	}
	if !ok {
		return false
	}
	p.pending = nil
	p.last, p.sent = s, true
	return true
}

// Failures counts failed sink writes.
func (p *Publisher) Failures() int {
	return p.failures
}

// same ignores the clock reading, a summary only counts as new when the
// run changed.
func same(a, b session.Summary) bool {
	a.TimeMs, b.TimeMs = 0, 0
	return a == b
}
