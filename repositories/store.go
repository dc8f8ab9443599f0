package repositories

import (
	"chat-presence/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how many times a read-modify-write transaction
// is replayed after badger.ErrConflict.
const maxConflictRetries = 8

// BadgerStore implements contract.Store on top of BadgerDB.
// Values are JSON documents, secondary lookups are plain key -> id entries.
type BadgerStore struct {
	db            *badger.DB
	log           *slog.Logger
	clock         *MonotonicClock
	limitMessages *int
}

func NewBadgerStore(db *badger.DB, log *slog.Logger, limitMessages *int) *BadgerStore {
	return &BadgerStore{
		db:            db,
		log:           log,
		clock:         NewMonotonicClock(),
		limitMessages: limitMessages,
	}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction and replays it on conflict.
// fn must be safe to run several times.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
		s.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
}

func (s *BadgerStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func get(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, errors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	bytes, err := get(txn, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, v)
}

func setJSON(txn *badger.Txn, key string, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set([]byte(key), bytes)
}

// MonotonicClock hands out strictly increasing timestamps, even when the wall
// clock stalls or two calls land on the same nanosecond.
type MonotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.now().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return time.Unix(0, n).UTC()
}
