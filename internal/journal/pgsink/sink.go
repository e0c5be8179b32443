// Package pgsink persists journal events to a postgres table through pgx.
package pgsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flightsurety/internal/journal"
	"flightsurety/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal_events (
	sequence    BIGINT PRIMARY KEY,
	id          UUID NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	principal   TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	amount      NUMERIC(20, 0) NOT NULL DEFAULT 0,
	request_id  TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`

const uniqueViolation = "23505"

// Sink writes through a pool it does not own.
type Sink struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

// Migrate creates the journal table if it is missing.
func (s *Sink) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create journal_events: %w", err)
	}
	return nil
}

// Append inserts one event. Re-appending the same event is ignored; a
// different event with an already stored sequence is sentinel.ErrAlreadyUsed.
func (s *Sink) Append(ctx context.Context, event journal.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal journal event: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO journal_events (sequence, id, kind, principal, subject, amount, request_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		int64(event.Sequence),
		event.ID,
		string(event.Kind),
		event.Principal.String(),
		event.Subject,
		event.Amount.String(),
		event.RequestID,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("journal sequence %d: %w", event.Sequence, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert journal event: %w", err)
	}
	return nil
}

// List returns events with sequence >= from in sequence order.
func (s *Sink) List(ctx context.Context, from uint64, limit int) ([]journal.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM journal_events
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2`, int64(from), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Event, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return journal.Event{}, err
		}
		var event journal.Event
		err := json.Unmarshal(raw, &event)
		return event, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal events: %w", err)
	}
	return events, nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *Sink) Close() error { return nil }
