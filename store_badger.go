package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const dictKeyPrefix = "dict/len/"

// BadgerConfig configures the on-disk corpus store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// BadgerStore persists dictionaries as JSON snapshots in BadgerDB, one key
// per length.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database described by cfg.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent corpus store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create corpus directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func dictKey(length int) []byte {
	return []byte(fmt.Sprintf("%s%04d", dictKeyPrefix, length))
}

// Save writes the snapshot for d.Length, replacing any previous one.
func (s *BadgerStore) Save(ctx context.Context, d *LengthDictionary) error {
	if d == nil || d.Length < 1 {
		return fmt.Errorf("save dictionary: %w", ErrInvalidLength)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dictionary %d: %w", d.Length, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dictKey(d.Length), data)
	})
}

// Load reads the snapshot for length. A missing key is not an error.
func (s *BadgerStore) Load(ctx context.Context, length int) (*LengthDictionary, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var d LengthDictionary
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dictKey(length))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load dictionary %d: %w", length, err)
	}
	return &d, true, nil
}

// Lengths lists stored lengths in ascending order.
func (s *BadgerStore) Lengths(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(dictKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), dictKeyPrefix)
			n, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("corrupt key %q: %w", it.Item().Key(), err)
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list lengths: %w", err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
