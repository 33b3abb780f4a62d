// Package dispatch implements the executor: a closed (module, method)
// -> handler table, phase enforcement (meta calls are rejected once a
// block has seen a payload call), and the three entry points
// BuildTx/ValidateTx/ExecuteTxs.
package dispatch

import (
	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

// Phase tags which half of block execution a module method runs in.
type Phase = execution.Phase

const (
	Meta    = execution.PhaseMeta
	Payload = execution.PhasePayload
)

// Handler is one module method's implementation. It reads/writes state
// through ctx at the phase it was registered under; sender is the
// address derived from the tx's witness public key, or nil for a
// witness-less (meta/genesis) transaction; txHash is the executing
// transaction's stable hash, which the contract host surfaces to guests
// via env_tx_hash_read. params is the call's raw, module-defined
// argument encoding.
type Handler func(ctx *execution.Context, sender []byte, txHash chaintypes.Hash, params []byte) error

// ParamsValidator reports whether raw params decode under a method's
// declared parameter schema, without executing anything. Used by BuildTx
// and ValidateTx.
type ParamsValidator func(params []byte) error

// methodKey identifies one (module, method) pair in the dispatch table.
type methodKey struct {
	module string
	method string
}

// methodEntry pairs a Handler with its declared phase, write flag, and
// whether it may run outside genesis.
type methodEntry struct {
	phase       Phase
	write       bool
	genesisOnly bool
	validate    ParamsValidator
	handler     Handler
}

// Dispatcher is the closed (module, method) -> handler registry. Built
// once at startup from the set of compiled-in modules; never mutated
// afterward.
type Dispatcher struct {
	table  map[methodKey]methodEntry
	algos  *crypto.Algorithms
	hashFn func([]byte) [32]byte
}

// New builds an empty Dispatcher bound to algos, the chain's resolved
// crypto algorithm set (used by ValidateTx to verify witness signatures
// and to derive a sender address for ExecuteTxs), and hashFn, the
// chain's configured hash (used for transaction hashes).
func New(algos *crypto.Algorithms, hashFn func([]byte) [32]byte) *Dispatcher {
	return &Dispatcher{table: make(map[methodKey]methodEntry), algos: algos, hashFn: hashFn}
}

// Register adds one module method to the table. Registering the same
// (module, method) pair twice is a programmer error and panics, the same
// way net/http.ServeMux panics on a duplicate pattern: module wiring
// happens once at process startup, not from untrusted input.
func (d *Dispatcher) Register(module, method string, phase Phase, write, genesisOnly bool, validate ParamsValidator, h Handler) {
	key := methodKey{module, method}
	if _, exists := d.table[key]; exists {
		panic("dispatch: duplicate registration for " + module + "." + method)
	}
	d.table[key] = methodEntry{phase: phase, write: write, genesisOnly: genesisOnly, validate: validate, handler: h}
}

func (d *Dispatcher) lookup(module, method string) (methodEntry, error) {
	e, ok := d.table[methodKey{module, method}]
	if !ok {
		return methodEntry{}, errs.Newf(errs.InvalidTxCall, "unknown module call %s.%s", module, method)
	}
	return e, nil
}

// IsMeta reports whether (module, method) is a meta-phase call.
func (d *Dispatcher) IsMeta(module, method string) bool {
	e, err := d.lookup(module, method)
	return err == nil && e.phase == Meta
}

// IsValidCall reports whether (module, method) names a registered call.
func (d *Dispatcher) IsValidCall(module, method string) bool {
	_, err := d.lookup(module, method)
	return err == nil
}

// IsWriteCall reports whether (module, method) is declared write=true.
func (d *Dispatcher) IsWriteCall(module, method string) bool {
	e, err := d.lookup(module, method)
	return err == nil && e.write
}

// BuildTx assembles a witness-less transaction for (module, method,
// params) after verifying the call is dispatchable: known and, when the
// method declares a ParamsValidator, params-decodable.
func (d *Dispatcher) BuildTx(module, method string, params []byte) (*chaintypes.Transaction, error) {
	entry, err := d.lookup(module, method)
	if err != nil {
		return nil, err
	}
	if entry.validate != nil {
		if err := entry.validate(params); err != nil {
			return nil, errs.Wrap(errs.InvalidParams, "build_tx: params do not decode", err)
		}
	}
	return &chaintypes.Transaction{Call: chaintypes.Call{Module: module, Method: method, Params: params}}, nil
}

// ValidateTx checks (a) the call is known, (b) the method is declared
// write=true, and (c) when witnessed, the signature verifies the tx hash
// under the configured DSA. It does not run the handler.
func (d *Dispatcher) ValidateTx(tx *chaintypes.Transaction) error {
	entry, err := d.lookup(tx.Call.Module, tx.Call.Method)
	if err != nil {
		return err
	}
	if !entry.write {
		return errs.Newf(errs.InvalidTxCall, "%s.%s is not a write call", tx.Call.Module, tx.Call.Method)
	}
	if entry.validate != nil {
		if err := entry.validate(tx.Call.Params); err != nil {
			return errs.Wrap(errs.InvalidParams, "validate_tx: params do not decode", err)
		}
	}
	if entry.genesisOnly && tx.Witness != nil {
		return errs.Newf(errs.InvalidTxCall, "%s.%s is genesis-only and cannot be witnessed", tx.Call.Module, tx.Call.Method)
	}
	if tx.Witness == nil {
		return nil
	}
	digest := chaintypes.TransactionHash(d.hashFn, tx)
	ok, err := d.algos.Verify(tx.Witness.PublicKey, tx.Witness.Signature, digest.Bytes())
	if err != nil {
		return errs.Wrap(errs.Crypto, "verify witness signature", err)
	}
	if !ok {
		return errs.Newf(errs.InvalidTxs, "invalid witness signature for %s.%s", tx.Call.Module, tx.Call.Method)
	}
	return nil
}

// senderOf derives the address a witnessed tx's public key maps to, or
// nil for a witness-less tx.
func (d *Dispatcher) senderOf(tx *chaintypes.Transaction) ([]byte, error) {
	if tx.Witness == nil {
		return nil, nil
	}
	return d.algos.DeriveAddress(tx.Witness.PublicKey)
}

// ExecuteTxs runs txs against ctx. Within one call every tx must be the
// same phase (mixed meta+payload fails as InvalidTxs("mixed meta and
// payload")), and a meta call is rejected once the context has already
// entered the payload phase (InvalidTxs("meta after payload not
// allowed")). Both checks run as a pre-pass over the whole batch before
// any handler executes, so a rejected batch never mutates ctx's
// overlay.
func (d *Dispatcher) ExecuteTxs(ctx *execution.Context, txs []*chaintypes.Transaction, genesis bool) error {
	entries := make([]methodEntry, len(txs))
	var batchPhase Phase
	for i, tx := range txs {
		entry, err := d.lookup(tx.Call.Module, tx.Call.Method)
		if err != nil {
			return err
		}
		if entry.genesisOnly && !genesis {
			return errs.Newf(errs.InvalidTxs, "tx %d calls genesis-only method %s.%s outside genesis", i, tx.Call.Module, tx.Call.Method)
		}
		if i == 0 {
			batchPhase = entry.phase
		} else if entry.phase != batchPhase {
			return errs.New(errs.InvalidTxs, "mixed meta and payload")
		}
		entries[i] = entry
	}
	if len(txs) > 0 && batchPhase == Meta && ctx.PayloadPhase() {
		return errs.New(errs.InvalidTxs, "meta after payload not allowed")
	}
	for i, tx := range txs {
		entry := entries[i]
		sender, err := d.senderOf(tx)
		if err != nil {
			return errs.Wrap(errs.Crypto, "derive sender address", err)
		}
		if entry.phase == Payload {
			ctx.EnterPayloadPhase()
		}
		if err := entry.handler(ctx, sender, chaintypes.TransactionHash(d.hashFn, tx), tx.Call.Params); err != nil {
			return errs.Wrap(errs.InvalidTxs, "execute tx", err)
		}
	}
	if len(txs) > 0 {
		ctx.AppendTxs(batchPhase, txs)
	}
	return nil
}
