package sink

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/park285/chess-game-metrics/pkg/metricsdto"
)

const badgerKeyPrefix = "metrics:"

// Badger stores the latest record per game in an embedded key-value store.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store in dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return OpenBadgerWithOptions(opts)
}

func OpenBadgerWithOptions(opts badger.Options) (*Badger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func badgerKey(id string) []byte { return []byte(badgerKeyPrefix + strings.TrimSpace(id)) }

func (b *Badger) Write(ctx context.Context, m *metricsdto.GameMetrics) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(m.GameID), data)
	})
}

// Load returns the record for id, or nil if none is stored.
func (b *Badger) Load(id string) (*metricsdto.GameMetrics, error) {
	var out *metricsdto.GameMetrics
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var m metricsdto.GameMetrics
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			out = &m
			return nil
		})
	})
	return out, err
}

// Count walks the key space and returns how many records are stored.
func (b *Badger) Count() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (b *Badger) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
