// Copyright 2025 The Mealdex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/mealdex/mealdex/metrics"
)

const (
	eventPrefix       = "ev:"
	sequenceName      = "metrics-events"
	sequenceBandwidth = 100
)

// Log is an append-only metrics event log backed by BadgerDB. Keys embed
// the event timestamp in BigEndian so lexicographic iteration is time
// order.
type Log struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

var _ metrics.EventLog = (*Log)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens the event log at path, creating the directory when missing.
// Pass inMemory for tests.
func Open(path string, inMemory bool) (*Log, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(path, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(path)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", path)
		}
		opts = badger.DefaultOptions(path)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	seq, err := db.GetSequence([]byte(sequenceName), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Log{
		db:     db,
		seq:    seq,
		logger: slog.Default().With("component", "metrics-log"),
	}, nil
}

// Close releases the sequence and closes the database.
func (l *Log) Close() error {
	if l.seq != nil {
		if err := l.seq.Release(); err != nil {
			l.logger.Warn("failed to release sequence", "error", err)
		}
	}
	return l.db.Close()
}

// Append durably records one event. A zero timestamp is stamped now.
func (l *Log) Append(ctx context.Context, event *metrics.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	// The sequence suffix keeps events in the same microsecond from
	// overwriting each other.
	suffix, err := l.seq.Next()
	if err != nil {
		return fmt.Errorf("next event sequence: %w", err)
	}
	key := makeEventKey(event.Timestamp, suffix)

	err = l.db.Update(func(tx *badger.Txn) error {
		return tx.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	l.logger.Debug("event recorded",
		"scope", event.Scope,
		"mode", event.Mode,
		"outcome", event.Outcome)
	return nil
}

// Scan visits events in [from, to) in ascending time order.
func (l *Log) Scan(ctx context.Context, from, to time.Time, fn func(*metrics.Event) bool) error {
	if to.IsZero() {
		to = time.Now()
	}
	lower := makePartialEventKey(from)
	upper := makePartialEventKey(to)

	return l.db.View(func(tx *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(eventPrefix)
		it := tx.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(lower); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if keyCompare(item.Key(), upper) >= 0 {
				break
			}
			var event metrics.Event
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				return fmt.Errorf("decode event %x: %w", item.Key(), err)
			}
			if !fn(&event) {
				break
			}
		}
		return nil
	})
}

// Recent visits up to n most recent events in descending time order.
func (l *Log) Recent(ctx context.Context, n int, fn func(*metrics.Event) bool) error {
	if n <= 0 {
		return nil
	}
	return l.db.View(func(tx *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte(eventPrefix)
		iterOpts.Reverse = true
		it := tx.NewIterator(iterOpts)
		defer it.Close()

		// Seek past the prefix range and walk backwards.
		seen := 0
		for it.Seek(makePartialEventKey(maxEventTime)); it.Valid() && seen < n; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var event metrics.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				return fmt.Errorf("decode event %x: %w", it.Item().Key(), err)
			}
			seen++
			if !fn(&event) {
				break
			}
		}
		return nil
	})
}
