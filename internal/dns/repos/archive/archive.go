// Package archive keeps every telemetry event in a local bbolt database so
// recent activity can be inspected without the indexing cluster.
package archive

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/decoy-dns/internal/dns/domain"
)

const name = "archive"

var bucketEvents = []byte("events")

// Store is an append-only event archive. Keys are the big-endian event
// timestamp in milliseconds followed by a big-endian sequence number, so a
// cursor walks events in time order.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the archive at path for writing.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing archive without taking the writer lock.
// It fails after a second if a running server holds the database.
func OpenReadOnly(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Name() string { return name }

func (s *Store) Close() error { return s.db.Close() }

// Write appends ev to the archive.
func (s *Store) Write(_ context.Context, ev domain.TelemetryEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(eventKey(ev.TimestampMs, seq), value)
	})
}

func eventKey(tsMs int64, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(max(tsMs, 0)))
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

// Recent returns up to n of the newest events, oldest first.
func (s *Store) Recent(n int) ([]domain.TelemetryEvent, error) {
	if n <= 0 {
		return []domain.TelemetryEvent{}, nil
	}
	events := make([]domain.TelemetryEvent, 0, n)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(events) < n; k, v = c.Prev() {
			var ev domain.TelemetryEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode event %x: %w", k, err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

// Count returns the number of archived events.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketEvents); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}
