// Package execution implements the per-block write buffer: a Context
// pairs one read snapshot (statedb.Stmt) with an in-memory overlay for
// each of the meta and payload state trees, so that module code sees
// its own uncommitted writes without ever touching the database until
// the block is ready to commit.
package execution

import (
	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/statedb"
	"wingchain.dev/node/storage"
)

// overlay is one state tree's uncommitted write buffer: present keys not
// yet in deleted map shadow the underlying Getter; deleted keys shadow it
// with absence regardless of what the Getter holds.
type overlay struct {
	getter  *statedb.Getter
	writes  map[string][]byte
	deleted map[string]bool
}

func newOverlay(getter *statedb.Getter) *overlay {
	return &overlay{getter: getter, writes: make(map[string][]byte), deleted: make(map[string]bool)}
}

func (o *overlay) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if v, ok := o.writes[k]; ok {
		return v, true, nil
	}
	if o.deleted[k] {
		return nil, false, nil
	}
	if o.getter == nil {
		return nil, false, nil
	}
	return o.getter.Get(key)
}

func (o *overlay) set(key, value []byte) {
	k := string(key)
	delete(o.deleted, k)
	o.writes[k] = append([]byte(nil), value...)
}

func (o *overlay) delete(key []byte) {
	k := string(key)
	delete(o.writes, k)
	o.deleted[k] = true
}

// asWrites flattens the overlay into the writes map expected by
// StateDB.PrepareUpdate: present keys map to their value, deleted keys map
// to nil.
func (o *overlay) asWrites() map[string][]byte {
	out := make(map[string][]byte, len(o.writes)+len(o.deleted))
	for k, v := range o.writes {
		out[k] = v
	}
	for k := range o.deleted {
		out[k] = nil
	}
	return out
}

// Phase tags whether a call runs before or after the payload execution gap
// closes.
type Phase int

const (
	PhaseMeta Phase = iota
	PhasePayload
)

// Context is the per-block execution environment handed to module calls.
// It exposes Number/Timestamp for the block under construction, read/write
// access scoped to the call's Phase, and tracks whether any payload call
// has run yet: once a block enters the payload phase, no further meta
// call is permitted.
type Context struct {
	number    uint64
	timestamp uint64

	metaStmt    *statedb.Stmt
	payloadStmt *statedb.Stmt

	meta    *overlay
	payload *overlay

	metaTxs    []*chaintypes.Transaction
	payloadTxs []*chaintypes.Transaction

	payloadPhase bool
}

// New builds a Context for building or validating the block at number with
// the given timestamp, reading meta/payload state from the given snapshots
// (either Stmt may be nil, e.g. at genesis where the payload tree starts
// empty and unread).
func New(number, timestamp uint64, metaStmt, payloadStmt *statedb.Stmt, metaGetter, payloadGetter *statedb.Getter) *Context {
	return &Context{
		number:      number,
		timestamp:   timestamp,
		metaStmt:    metaStmt,
		payloadStmt: payloadStmt,
		meta:        newOverlay(metaGetter),
		payload:     newOverlay(payloadGetter),
	}
}

func (c *Context) Number() uint64    { return c.number }
func (c *Context) Timestamp() uint64 { return c.timestamp }

// PayloadPhase reports whether the context has already accepted a payload
// call; once true, EnterPayloadPhase is idempotent and further meta
// batches are rejected by the dispatcher (not by Context itself, since
// Context has no notion of which phase a call "should" run in).
func (c *Context) PayloadPhase() bool { return c.payloadPhase }

// EnterPayloadPhase latches the context into the payload phase. Calling it
// more than once is a no-op.
func (c *Context) EnterPayloadPhase() { c.payloadPhase = true }

// AppendTxs records a successfully executed batch under its phase. The
// dispatcher calls it once per ExecuteTxs batch; the accumulated lists
// feed the block's transaction roots and body.
func (c *Context) AppendTxs(phase Phase, txs []*chaintypes.Transaction) {
	if phase == PhasePayload {
		c.payloadTxs = append(c.payloadTxs, txs...)
		return
	}
	c.metaTxs = append(c.metaTxs, txs...)
}

// MetaTxs returns the meta transactions executed in this context, in
// execution order.
func (c *Context) MetaTxs() []*chaintypes.Transaction { return c.metaTxs }

// PayloadTxs returns the payload transactions executed in this context,
// in execution order.
func (c *Context) PayloadTxs() []*chaintypes.Transaction { return c.payloadTxs }

// GetMetaTxs returns the ordered root over the accumulated meta
// transactions together with the transactions themselves.
func (c *Context) GetMetaTxs(hashFn func([]byte) [32]byte) ([32]byte, []*chaintypes.Transaction, error) {
	root, err := TxsRoot(hashFn, c.metaTxs)
	return root, c.metaTxs, err
}

// GetPayloadTxs returns the ordered root over the accumulated payload
// transactions together with the transactions themselves.
func (c *Context) GetPayloadTxs(hashFn func([]byte) [32]byte) ([32]byte, []*chaintypes.Transaction, error) {
	root, err := TxsRoot(hashFn, c.payloadTxs)
	return root, c.payloadTxs, err
}

// Get reads key from the given phase's overlay, falling through to the
// underlying snapshot if the overlay has no opinion on key.
func (c *Context) Get(phase Phase, key []byte) ([]byte, bool, error) {
	return c.overlayFor(phase).get(key)
}

// Set writes key=value into the given phase's overlay. The write is not
// visible outside this Context until the block containing it is committed.
func (c *Context) Set(phase Phase, key, value []byte) {
	c.overlayFor(phase).set(key, value)
}

// Delete removes key from the given phase's overlay.
func (c *Context) Delete(phase Phase, key []byte) {
	c.overlayFor(phase).delete(key)
}

func (c *Context) overlayFor(phase Phase) *overlay {
	if phase == PhasePayload {
		return c.payload
	}
	return c.meta
}

// MetaRoot returns the stmt root the meta overlay reads from, or the empty
// default root if the context has no meta snapshot (genesis).
func (c *Context) MetaRoot(sdb *statedb.StateDB) [32]byte {
	if c.metaStmt == nil {
		return sdb.DefaultRoot()
	}
	return c.metaStmt.Root()
}

// PayloadRoot returns the stmt root the payload overlay reads from, or the
// empty default root if the context has no payload snapshot.
func (c *Context) PayloadRoot(sdb *statedb.StateDB) [32]byte {
	if c.payloadStmt == nil {
		return sdb.DefaultRoot()
	}
	return c.payloadStmt.Root()
}

// CommitMeta computes the new meta-state root and write batch from the
// context's accumulated meta writes, without touching the database:
// nothing persists until the caller writes the returned batch.
func (c *Context) CommitMeta(sdb *statedb.StateDB) ([32]byte, *storage.Batch, error) {
	parent := c.MetaRoot(sdb)
	if len(c.meta.writes) == 0 && len(c.meta.deleted) == 0 {
		return parent, nil, nil
	}
	root, batch, err := sdb.PrepareUpdate(parent, c.meta.asWrites())
	if err != nil {
		return [32]byte{}, nil, errs.Wrap(errs.DBIntegrity, "prepare meta state update", err)
	}
	return root, batch, nil
}

// CommitPayload computes the new payload-state root and write batch from
// the context's accumulated payload writes. It returns the parent root
// unchanged (and a nil batch) if no payload writes occurred, which is the
// common case for blocks inside the payload execution gap.
func (c *Context) CommitPayload(sdb *statedb.StateDB) ([32]byte, *storage.Batch, error) {
	parent := c.PayloadRoot(sdb)
	if len(c.payload.writes) == 0 && len(c.payload.deleted) == 0 {
		return parent, nil, nil
	}
	root, batch, err := sdb.PrepareUpdate(parent, c.payload.asWrites())
	if err != nil {
		return [32]byte{}, nil, errs.Wrap(errs.DBIntegrity, "prepare payload state update", err)
	}
	return root, batch, nil
}
