package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBufferFull is returned by an async Publisher whose buffer is full.
var ErrBufferFull = errors.New("journal buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("journal publisher closed")

// Publisher stamps events (ID, sequence, time) and hands them to a Sink,
// either synchronously or through a bounded buffer drained by one goroutine.
type Publisher struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	sequence uint64
	closed   bool

	buffer chan Event
	done   chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit stamps and publishes event. In async mode the sink error is logged by
// the drain goroutine instead of being returned.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.buffer != nil && len(p.buffer) == cap(p.buffer) {
		p.mu.Unlock()
		return ErrBufferFull
	}
	p.sequence++
	event.Sequence = p.sequence
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if p.buffer != nil {
		// The length check above runs under mu, and only Emit sends, so
		// this send cannot block.
		p.buffer <- event
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return p.sink.Append(ctx, event)
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buffer {
		if err := p.sink.Append(context.Background(), event); err != nil {
			p.logger.Error("journal append failed",
				"event_id", event.ID.String(),
				"sequence", event.Sequence,
				"kind", string(event.Kind),
				"error", err,
			)
		}
	}
}

// Sequence is the last assigned sequence number.
func (p *Publisher) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequence
}

// Close drains buffered events, then closes the sink.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.buffer != nil {
		close(p.buffer)
		<-p.done
	}
	return p.sink.Close()
}
