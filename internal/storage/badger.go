// ABOUTME: BadgerDB-backed Store for embedded key-value persistence.
// ABOUTME: Orders readings by key layout so prefix iteration yields time order.
package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/vitalsync/internal/models"
)

// Key layout:
//
//	b/<metric>                       -> float64 bits (baseline)
//	l/<metric>                       -> JSON(badgerReading) (latest per metric)
//	r/<metric>\x00<timestamp>\x00<seq> -> JSON(badgerReading)
//
// Timestamps use models.TimestampLayout, which sorts lexically. The sequence
// number keeps duplicate timestamps in insertion order.
var (
	prefixBaseline = []byte("b/")
	prefixLatest   = []byte("l/")
	prefixReading  = []byte("r/")
	sequenceKey    = []byte("seq/readings")
)

// BadgerStore provides persistent storage using BadgerDB.
type BadgerStore struct {
	db      *badger.DB
	seq     *badger.Sequence
	writeMu sync.Mutex
	closed  bool
}

// Compile-time check that BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// DataDir is the directory for storing data files.
	DataDir string

	// InMemory runs BadgerDB without touching disk. Used by tests.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool
}

type badgerReading struct {
	Timestamp string  `json:"ts"`
	Value     float64 `json:"v"`
	Context   string  `json:"c"`
}

// OpenBadger opens or creates a BadgerDB store in dataDir.
func OpenBadger(dataDir string) (*BadgerStore, error) {
	return OpenBadgerWithOptions(BadgerOptions{DataDir: dataDir, SyncWrites: true})
}

// OpenBadgerWithOptions opens a BadgerDB store with explicit options.
func OpenBadgerWithOptions(opts BadgerOptions) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.DataDir, 0750); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %w", ErrStoreUnavailable, err)
		}
		bopts = badger.DefaultOptions(opts.DataDir)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", ErrStoreUnavailable, err)
	}

	seq, err := db.GetSequence(sequenceKey, 256)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: reading sequence: %w", ErrStoreUnavailable, err)
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database. Calling Close
// more than once is a no-op.
func (s *BadgerStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.seq != nil {
		errs = append(errs, s.seq.Release())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// UpsertBaseline stores the resting value for a metric, replacing any prior one.
func (s *BadgerStore) UpsertBaseline(ctx context.Context, metric string, value float64) error {
	if err := validateBaseline(metric, value); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", ErrStoreUnavailable)
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(value))

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(baselineKey(metric), buf)
	})
	if err != nil {
		return fmt.Errorf("%w: upsert baseline %s: %w", ErrStoreUnavailable, metric, err)
	}
	return nil
}

// ListBaselineMetrics returns the names of all calibrated metrics, sorted.
func (s *BadgerStore) ListBaselineMetrics(ctx context.Context) ([]string, error) {
	baselines, err := s.Baselines(ctx)
	if err != nil {
		return nil, err
	}
	metrics := make([]string, 0, len(baselines))
	for m := range baselines {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	return metrics, nil
}

// Baselines returns the full baseline table.
func (s *BadgerStore) Baselines(ctx context.Context) (map[string]float64, error) {
	baselines := make(map[string]float64)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefixBaseline, PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			metric := string(item.Key()[len(prefixBaseline):])
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt baseline for %s", metric)
				}
				baselines[metric] = math.Float64frombits(binary.BigEndian.Uint64(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list baselines: %w", ErrStoreUnavailable, err)
	}
	return baselines, nil
}

// AppendReading inserts one reading and advances the metric's latest pointer
// when the reading is at least as new as the current one.
func (s *BadgerStore) AppendReading(ctx context.Context, r models.Reading) error {
	if err := validateReading(r); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", ErrStoreUnavailable)
	}

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("%w: next sequence: %w", ErrStoreUnavailable, err)
	}

	ts := models.FormatTimestamp(r.Timestamp)
	val, err := json.Marshal(badgerReading{Timestamp: ts, Value: r.Value, Context: string(r.Context)})
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(readingKey(r.Metric, ts, n), val); err != nil {
			return err
		}

		latestKey := append(append([]byte{}, prefixLatest...), r.Metric...)
		item, err := txn.Get(latestKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return txn.Set(latestKey, val)
		case err != nil:
			return err
		}

		var current badgerReading
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &current) }); err != nil {
			return err
		}
		if ts >= current.Timestamp {
			return txn.Set(latestKey, val)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: append reading %s: %w", ErrStoreUnavailable, r.Metric, err)
	}
	return nil
}

// LatestPerMetric returns the most recent reading of each metric, resolved
// independently per metric.
func (s *BadgerStore) LatestPerMetric(ctx context.Context) (map[string]models.Latest, error) {
	latest := make(map[string]models.Latest)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefixLatest, PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			metric := string(item.Key()[len(prefixLatest):])
			r, err := decodeReading(item, metric)
			if err != nil {
				return err
			}
			latest[metric] = models.Latest{Value: r.Value, Context: r.Context, Timestamp: r.Timestamp}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: latest per metric: %w", ErrStoreUnavailable, err)
	}
	return latest, nil
}

// RangeQuery returns readings of metric at or after since, oldest first.
func (s *BadgerStore) RangeQuery(ctx context.Context, metric string, since time.Time) ([]models.Reading, error) {
	prefix := metricPrefix(metric)
	start := append(append([]byte{}, prefix...), rangeStart(since)...)

	var readings []models.Reading
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			r, err := decodeReading(it.Item(), metric)
			if err != nil {
				return err
			}
			readings = append(readings, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: range query %s: %w", ErrStoreUnavailable, metric, err)
	}
	return readings, nil
}

// RecentQuery returns the limit most recent readings of metric, oldest first.
func (s *BadgerStore) RecentQuery(ctx context.Context, metric string, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}

	prefix := metricPrefix(metric)
	// Seeking past every key under prefix positions a reverse iterator on the newest.
	end := append(append([]byte{}, prefix...), 0xFF)

	var readings []models.Reading
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, Reverse: true, PrefetchValues: true})
		defer it.Close()

		for it.Seek(end); it.ValidForPrefix(prefix) && len(readings) < limit; it.Next() {
			r, err := decodeReading(it.Item(), metric)
			if err != nil {
				return err
			}
			readings = append(readings, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recent query %s: %w", ErrStoreUnavailable, metric, err)
	}
	reverse(readings)
	return readings, nil
}

// AllReadings returns every stored reading grouped by metric, oldest first.
func (s *BadgerStore) AllReadings(ctx context.Context) ([]models.Reading, error) {
	var readings []models.Reading

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefixReading, PrefetchValues: true})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			rest := item.Key()[len(prefixReading):]
			i := bytes.IndexByte(rest, 0)
			if i < 0 {
				return fmt.Errorf("corrupt reading key %q", item.Key())
			}
			r, err := decodeReading(item, string(rest[:i]))
			if err != nil {
				return err
			}
			readings = append(readings, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list readings: %w", ErrStoreUnavailable, err)
	}
	return readings, nil
}

func baselineKey(metric string) []byte {
	return append(append([]byte{}, prefixBaseline...), metric...)
}

func metricPrefix(metric string) []byte {
	k := append(append([]byte{}, prefixReading...), metric...)
	return append(k, 0)
}

func readingKey(metric, ts string, seq uint64) []byte {
	k := append(metricPrefix(metric), ts...)
	k = append(k, 0)
	return binary.BigEndian.AppendUint64(k, seq)
}

func decodeReading(item *badger.Item, metric string) (models.Reading, error) {
	var br badgerReading
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &br) }); err != nil {
		return models.Reading{}, fmt.Errorf("decode reading %s: %w", metric, err)
	}
	ts, err := models.ParseTimestamp(br.Timestamp)
	if err != nil {
		return models.Reading{}, fmt.Errorf("decode reading %s: %w", metric, err)
	}
	return models.Reading{
		Timestamp: ts,
		Metric:    metric,
		Value:     br.Value,
		Context:   models.Context(br.Context),
	}, nil
}
