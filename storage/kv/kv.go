// Package kv is the durable key-value half of Serma's storage layer:
// one bbolt database, info-hash keys, JSON-encoded model.Record values.
// It never re-encodes a stored info dict and never
// performs text search — that half lives in storage/fulltext.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
)

var logger = log.NewLogger("storage/kv")

var recordsBucket = []byte("records")

// ErrNotFound is returned by Get when no record exists for the info-hash.
var ErrNotFound = errors.New("kv: record not found")

// Store wraps a single bbolt database file.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the database file at path, creating the records
// bucket if this is a fresh database.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored record for ih, or ErrNotFound.
func (s *Store) Get(ih model.InfoHash) (*model.Record, error) {
	var rec model.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get(ih.Bytes())
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put inserts or overwrites the record keyed by its own info-hash.
func (s *Store) Put(rec *model.Record) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kv: encode record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Put(rec.InfoHash.Bytes(), v)
	})
}

// Delete removes the record for ih. Deleting a key that does not exist
// is not an error (bbolt semantics).
func (s *Store) Delete(ih model.InfoHash) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete(ih.Bytes())
	})
}

// Range calls fn for every stored record in key order; fn returning
// false stops iteration early. A corrupt value (should not happen under
// normal operation) is logged and skipped rather than aborting the scan.
func (s *Store) Range(fn func(*model.Record) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec model.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				logger.Warn().Err(err).Str("info_hash", fmt.Sprintf("%x", k)).Msg("skipping corrupt record")
				continue
			}
			if !fn(&rec) {
				return nil
			}
		}
		return nil
	})
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return n, err
}
