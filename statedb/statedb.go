// Package statedb implements the Merkle-Patricia trie overlay: one
// StateDB per state column (meta or payload), computing roots over the
// shared trie package and handing back pure, side-effect-free update
// batches for the caller to persist.
package statedb

import (
	"fmt"
	"sync"

	"wingchain.dev/node/storage"
	"wingchain.dev/node/trie"
)

// StateDB owns one storage column and computes Merkle roots over it.
type StateDB struct {
	db     *storage.DB
	column []byte
	hashFn trie.HashFunc
}

// New binds a StateDB to one column of db. hashFn must match the chain's
// configured hash algorithm; a StateDB has no opinion on which algorithm
// that is.
func New(db *storage.DB, column []byte, hashFn trie.HashFunc) *StateDB {
	return &StateDB{db: db, column: column, hashFn: hashFn}
}

// DefaultRoot returns the root of the empty state.
func (s *StateDB) DefaultRoot() [32]byte {
	return trie.EmptyRoot(s.hashFn)
}

// nodeSnapshot adapts a storage.Snapshot restricted to this StateDB's
// column into a trie.NodeGetter.
type nodeSnapshot struct {
	snap   *storage.Snapshot
	column []byte
}

func (n nodeSnapshot) GetNode(hash [32]byte) ([]byte, bool, error) {
	return n.snap.Get(n.column, hash[:])
}

// Stmt is a read snapshot of the trie rooted at a given hash, borrowed
// from one open DB transaction. It is dropped (Close) before any DB write
// that would invalidate the underlying snapshot.
type Stmt struct {
	mu     sync.Mutex
	snap   *storage.Snapshot
	getter nodeSnapshot
	root   [32]byte
	hashFn trie.HashFunc
}

// PrepareStmt opens a read snapshot rooted at root. It fails if root is
// non-empty and its node is not present in storage.
func (s *StateDB) PrepareStmt(root [32]byte) (*Stmt, error) {
	snap, err := s.db.BeginSnapshot()
	if err != nil {
		return nil, err
	}
	getter := nodeSnapshot{snap: snap, column: s.column}
	if root != trie.EmptyRoot(s.hashFn) {
		if _, ok, err := getter.GetNode(root); err != nil {
			_ = snap.Close()
			return nil, err
		} else if !ok {
			_ = snap.Close()
			return nil, fmt.Errorf("statedb: root node %x not found in column %s", root, s.column)
		}
	}
	return &Stmt{snap: snap, getter: getter, root: root, hashFn: s.hashFn}, nil
}

// Root returns the trie root this statement was prepared against.
func (st *Stmt) Root() [32]byte {
	return st.root
}

// Close releases the statement's underlying DB snapshot.
func (st *Stmt) Close() error {
	if st == nil {
		return nil
	}
	return st.snap.Close()
}

// Getter is a short-lived reader bound to a Stmt; it may be used
// concurrently with other Getters over the same Stmt.
type Getter struct {
	st *Stmt
}

// PrepareGet binds a Getter to st.
func (s *StateDB) PrepareGet(st *Stmt) *Getter {
	return &Getter{st: st}
}

// Get looks up key in the trie snapshot.
func (g *Getter) Get(key []byte) ([]byte, bool, error) {
	g.st.mu.Lock()
	defer g.st.mu.Unlock()
	return trie.Get(g.st.root, key, g.st.getter, g.st.hashFn)
}

// PrepareUpdate computes the root that results from applying writes (key
// -> value, or key -> nil for delete) to parentRoot, and returns a
// storage.Batch that, once written to s's column, makes newRoot readable.
// It is pure with respect to the DB: no side effects occur until the
// caller writes the returned batch.
func (s *StateDB) PrepareUpdate(parentRoot [32]byte, writes map[string][]byte) (newRoot [32]byte, batch *storage.Batch, err error) {
	snap, err := s.db.BeginSnapshot()
	if err != nil {
		return [32]byte{}, nil, err
	}
	defer func() { _ = snap.Close() }()

	getter := nodeSnapshot{snap: snap, column: s.column}
	newRoot, pending, err := trie.Update(parentRoot, writes, getter, s.hashFn)
	if err != nil {
		return [32]byte{}, nil, err
	}

	batch = &storage.Batch{}
	for hash, enc := range pending {
		batch.Put(s.column, hash[:], enc)
	}
	return newRoot, batch, nil
}
