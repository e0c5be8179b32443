package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"flightsurety/pkg/platform/circuit"
)

// ErrSinkUnavailable is returned while a guarded sink's breaker is open and
// the retry interval has not elapsed.
var ErrSinkUnavailable = errors.New("journal sink unavailable")

// GuardedSink stops calling a failing remote sink for a while. Once its
// breaker opens, one append per retry interval is let through.
type GuardedSink struct {
	sink    Sink
	breaker *circuit.Breaker
	retry   time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastTrial time.Time
}

// NewGuardedSink wraps sink with breaker. retry <= 0 means 5s.
func NewGuardedSink(sink Sink, breaker *circuit.Breaker, retry time.Duration, logger *slog.Logger) *GuardedSink {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedSink{sink: sink, breaker: breaker, retry: retry, logger: logger, now: time.Now}
}

func (g *GuardedSink) Append(ctx context.Context, event Event) error {
	if g.breaker.IsOpen() && !g.tryTrial() {
		return ErrSinkUnavailable
	}

	if err := g.sink.Append(ctx, event); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "journal sink circuit opened",
				"sink", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "journal sink circuit closed", "sink", g.breaker.Name())
	}
	return nil
}

func (g *GuardedSink) tryTrial() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastTrial) < g.retry {
		return false
	}
	g.lastTrial = now
	return true
}

func (g *GuardedSink) Close() error {
	return g.sink.Close()
}
