// Package redissink appends journal events to a Redis stream so other
// processes can tail applied operations with XREAD.
package redissink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"flightsurety/internal/journal"
)

const DefaultStream = "flightsurety:journal"

// Sink writes to a stream on a client it does not own.
type Sink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

type Option func(*Sink)

func WithStream(name string) Option {
	return func(s *Sink) {
		if name != "" {
			s.stream = name
		}
	}
}

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) Option {
	return func(s *Sink) {
		s.maxLen = n
	}
}

func New(client redis.Cmdable, opts ...Option) *Sink {
	s := &Sink{client: client, stream: DefaultStream}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Append(ctx context.Context, event journal.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal journal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"sequence": strconv.FormatUint(event.Sequence, 10),
			"kind":     string(event.Kind),
			"event":    payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Read returns up to count events from the start of the stream.
func (s *Sink) Read(ctx context.Context, count int64) ([]journal.Event, error) {
	msgs, err := s.client.XRangeN(ctx, s.stream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", s.stream, err)
	}
	events := make([]journal.Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s has no event payload", msg.ID)
		}
		var event journal.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Close is a no-op; the client belongs to the caller.
func (s *Sink) Close() error { return nil }
