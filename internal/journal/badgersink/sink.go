// Package badgersink stores journal events in an embedded badger database,
// keyed by big-endian sequence number so iteration order is append order.
package badgersink

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"flightsurety/internal/journal"
)

var keyPrefix = []byte("journal/")

type Sink struct {
	db *badger.DB
}

// Open opens (or creates) the database under dir. An empty dir runs badger
// fully in memory.
func Open(dir string) (*Sink, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger journal: %w", err)
	}
	return &Sink{db: db}, nil
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], seq)
	return key
}

func (s *Sink) Append(_ context.Context, event journal.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal journal event: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(event.Sequence), value)
	})
	if err != nil {
		return fmt.Errorf("write journal event %d: %w", event.Sequence, err)
	}
	return nil
}

// List returns every stored event with sequence >= from, in sequence order.
func (s *Sink) List(from uint64) ([]journal.Event, error) {
	var events []journal.Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(from)); it.ValidForPrefix(keyPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var event journal.Event
				if err := json.Unmarshal(val, &event); err != nil {
					return err
				}
				events = append(events, event)
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode journal event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}
