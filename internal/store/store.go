// Package store is the local key-value store for per-user study data.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("store: not found")

const sep = ":"

// Key joins parts with the key separator.
func Key(parts ...string) string { return strings.Join(parts, sep) }

// UserPrefix is the prefix shared by every key that belongs to userID. The id
// is escaped so that no user's prefix is a prefix of another user's keys.
func UserPrefix(userID string) string { return Key("user", url.QueryEscape(userID)) + sep }

// UserKey builds a key scoped to userID.
func UserKey(userID string, parts ...string) string {
	return UserPrefix(userID) + Key(parts...)
}

type Options struct {
	// Dir holds the data files. Required unless InMemory is set.
	Dir      string
	InMemory bool
	Logger   badger.Logger
}

// Store wraps a BadgerDB instance.
type Store struct {
	db *badger.DB
}

func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(logger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store with no disk persistence.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// GetJSON decodes the value at key into v.
func (s *Store) GetJSON(ctx context.Context, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Keys lists keys starting with prefix in lexical order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	p := []byte(prefix)
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// DeletePrefix removes every key starting with prefix and reports how many
// were removed.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("store: refusing to delete with empty prefix")
	}
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete([]byte(k)); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// logger routes badger warnings and errors to the standard logger.
type logger struct{}

func (logger) Errorf(f string, v ...interface{})   { log.Printf("[badger] ERROR: "+f, v...) }
func (logger) Warningf(f string, v ...interface{}) { log.Printf("[badger] WARN: "+f, v...) }
func (logger) Infof(string, ...interface{})        {}
func (logger) Debugf(string, ...interface{})       {}
