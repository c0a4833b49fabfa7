// Package kvstore is the badger backed cache layer.
package kvstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"github.com/intrntsrfr/cosmos/config"
	"github.com/intrntsrfr/cosmos/logger"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("key not found")

type Store struct {
	db   *badger.DB
	log  *zap.Logger
	ttl  time.Duration
	done chan struct{}
	once sync.Once
}

func NewStore(c config.Cache, log *zap.Logger) (*Store, error) {
	if log == nil {
		return nil, errors.New("kvstore: logger is required")
	}
	log = log.Named("kvstore")
	s := &Store{
		log:  log,
		ttl:  c.TTL,
		done: make(chan struct{}),
	}

	opts := badger.DefaultOptions(c.Dir)
	opts.Truncate = true
	opts.ValueLogLoadingMode = options.FileIO
	opts.NumVersionsToKeep = 1
	opts.Logger = logger.NewBadger(log)

	db, err := badger.Open(opts)
	if err != nil {
		s.log.Error("failed to open badger", zap.String("dir", c.Dir), zap.Error(err))
		return nil, err
	}
	s.db = db

	interval := c.GCInterval
	if interval <= 0 {
		interval = time.Hour
	}
	go s.runGC(interval)

	return s, nil
}

func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.db.Close()
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Set stores v under key with the store's default TTL.
func (s *Store) Set(key string, v interface{}) error {
	return s.SetWithTTL(key, v, s.ttl)
}

// SetWithTTL stores v under key. A zero ttl never expires.
func (s *Store) SetWithTTL(key string, v interface{}, ttl time.Duration) error {
	enc, err := encodeGob(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), enc)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get decodes the value at key into v. Missing keys return ErrNotFound.
func (s *Store) Get(key string, v interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return decodeGob(value, v)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		s.log.Error("failed to read value", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) runGC(interval time.Duration) {
	gcTicker := time.NewTicker(interval)
	defer gcTicker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-gcTicker.C:
			for {
				err := s.db.RunValueLogGC(0.7)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.log.Error("failed to run gc", zap.Error(err))
					}
					break
				}
			}
		}
	}
}
