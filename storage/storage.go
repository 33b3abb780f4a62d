// Package storage implements the column-family key/value layer: one
// bbolt bucket per column, opened once at startup, with every
// multi-column write composed into a single atomic bbolt transaction.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// The column families backing the chain.
var (
	Global       = []byte("GLOBAL")
	Header       = []byte("HEADER")
	MetaTxs      = []byte("META_TXS")
	PayloadTxs   = []byte("PAYLOAD_TXS")
	Transaction  = []byte("TRANSACTION")
	BlockHash    = []byte("BLOCK_HASH")
	Executed     = []byte("EXECUTED")
	MetaState    = []byte("META_STATE")
	PayloadState = []byte("PAYLOAD_STATE")
)

var allColumns = [][]byte{
	Global, Header, MetaTxs, PayloadTxs, Transaction, BlockHash, Executed, MetaState, PayloadState,
}

// Global singleton keys.
var (
	KeyBestNumber = []byte("best_number")
	KeySpec       = []byte("spec")
)

// DB is the node's single bbolt handle, with one bucket per column.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if necessary) the column-family store rooted at
// path, ensuring every required bucket exists.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db := &DB{bolt: bdb}
	if err := db.bolt.Update(func(tx *bolt.Tx) error {
		for _, col := range allColumns {
			if _, err := tx.CreateBucketIfNotExists(col); err != nil {
				return fmt.Errorf("storage: create bucket %s: %w", col, err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	if db == nil || db.bolt == nil {
		return nil
	}
	return db.bolt.Close()
}

// Put is one key/value write within a Column.
type Put struct {
	Column []byte
	Key    []byte
	Value  []byte
}

// Delete is one key removal within a Column.
type Delete struct {
	Column []byte
	Key    []byte
}

// Batch composes a set of puts/deletes across any number of columns. A
// Batch is written atomically: Write(batch) applies every entry or
// none.
type Batch struct {
	Puts    []Put
	Deletes []Delete
}

// Put appends a single-column write to the batch and returns it, to allow
// chained construction the way the chain/executor assemble one big batch
// out of several sub-batches.
func (b *Batch) Put(column, key, value []byte) *Batch {
	b.Puts = append(b.Puts, Put{Column: column, Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
	return b
}

func (b *Batch) Delete(column, key []byte) *Batch {
	b.Deletes = append(b.Deletes, Delete{Column: column, Key: append([]byte(nil), key...)})
	return b
}

// Merge appends other's puts/deletes onto b, for composing several
// sub-batches (e.g. the meta and payload state batches) into one atomic
// write at block-commit time.
func (b *Batch) Merge(other *Batch) *Batch {
	if other == nil {
		return b
	}
	b.Puts = append(b.Puts, other.Puts...)
	b.Deletes = append(b.Deletes, other.Deletes...)
	return b
}

// Write applies batch as a single bbolt transaction: every put/delete
// lands, or (on any error) none do, since bbolt rolls back the whole
// transaction on a returned error.
func (db *DB) Write(batch *Batch) error {
	if batch == nil {
		return nil
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, p := range batch.Puts {
			b := tx.Bucket(p.Column)
			if b == nil {
				return fmt.Errorf("storage: unknown column %s", p.Column)
			}
			if err := b.Put(p.Key, p.Value); err != nil {
				return err
			}
		}
		for _, d := range batch.Deletes {
			b := tx.Bucket(d.Column)
			if b == nil {
				return fmt.Errorf("storage: unknown column %s", d.Column)
			}
			if err := b.Delete(d.Key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get reads a single key from column. ok is false if the key is absent.
func (db *DB) Get(column, key []byte) (value []byte, ok bool, err error) {
	err = db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(column)
		if b == nil {
			return fmt.Errorf("storage: unknown column %s", column)
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return value, ok, err
}

// View runs fn against a consistent read-only snapshot, for callers that
// need to issue several reads against the same point in time within one
// function (statedb.Stmt holds a Snapshot instead, see BeginSnapshot).
func (db *DB) View(fn func(r Reader) error) error {
	return db.bolt.View(func(tx *bolt.Tx) error {
		return fn(boltReader{tx: tx})
	})
}

// Snapshot is a long-lived read-only view over the column store, backed by
// one bbolt read transaction. Callers that need to borrow from an open
// snapshot across several operations (statedb.Stmt) hold a Snapshot and
// must Close it once done, before any write that would otherwise race
// with the underlying mmap.
type Snapshot struct {
	tx *bolt.Tx
}

// BeginSnapshot opens a new read-only transaction.
func (db *DB) BeginSnapshot() (*Snapshot, error) {
	tx, err := db.bolt.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("storage: begin snapshot: %w", err)
	}
	return &Snapshot{tx: tx}, nil
}

func (s *Snapshot) Get(column, key []byte) ([]byte, bool, error) {
	b := s.tx.Bucket(column)
	if b == nil {
		return nil, false, fmt.Errorf("storage: unknown column %s", column)
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Close releases the underlying read transaction. Closing twice is a
// no-op, so callers may close explicitly before a write and still keep a
// deferred Close for the error paths.
func (s *Snapshot) Close() error {
	if s == nil || s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}

// Reader is a read-only view over the column store, bound to one
// consistent snapshot.
type Reader interface {
	Get(column, key []byte) (value []byte, ok bool, err error)
}

type boltReader struct {
	tx *bolt.Tx
}

func (r boltReader) Get(column, key []byte) ([]byte, bool, error) {
	b := r.tx.Bucket(column)
	if b == nil {
		return nil, false, fmt.Errorf("storage: unknown column %s", column)
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}
