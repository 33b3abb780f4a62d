// Package contract implements the host side of the WASM contract ABI:
// a fixed, numerically-addressed function table backed by a "share"
// buffer that moves variable-length data between host and guest. The
// interpreter that would execute guest WASM bytecode is out of scope;
// this package instead exposes a deterministic in-process reference
// Host that any Go-implemented "contract" (and, in a full build, a WASM
// engine's import object) can be wired against to exercise the same ABI
// surface.
package contract

import (
	"math/big"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

// storagePrefix scopes a contract's storage key under the payload state,
// so two contracts never collide.
func storagePrefix(addr chaintypes.Address) []byte {
	return append([]byte("contract_storage_"), addr.Bytes()...)
}

func balanceKey(addr chaintypes.Address) []byte {
	return append([]byte("balance_balance_"), addr.Bytes()...)
}

// AbortError is returned by Call when the guest invoked error_return;
// len/ptr payload is carried as Payload.
type AbortError struct {
	Payload []byte
}

func (e *AbortError) Error() string { return "contract: aborted: " + string(e.Payload) }

// ErrNotReleasedProperly is the NotReleasedProperly error for a Host
// used outside an active call. No Host method returns it: ErrorReturn
// and a failed BalanceTransfer mark the Host inactive, but no method
// checks that mark.
var ErrNotReleasedProperly = errs.New(errs.NotReleasedProperly, "contract host used outside an active call")

// Host is the per-call state backing the guest import table. One Host
// is constructed per contract invocation and discarded afterward; it is
// not safe for concurrent use.
type Host struct {
	ctx    *execution.Context
	algos  *crypto.Algorithms
	hashFn func([]byte) [32]byte

	address  chaintypes.Address
	sender   chaintypes.Address
	txHash   chaintypes.Hash
	method   string
	input    []byte
	payValue uint64

	shares map[uint64][]byte
	output []byte
	events [][]byte
	active bool
}

// New builds a Host for one contract invocation.
func New(ctx *execution.Context, algos *crypto.Algorithms, hashFn func([]byte) [32]byte, address, sender chaintypes.Address, txHash chaintypes.Hash, method string, input []byte, payValue uint64) *Host {
	return &Host{
		ctx: ctx, algos: algos, hashFn: hashFn,
		address: address, sender: sender, txHash: txHash,
		method: method, input: input, payValue: payValue,
		shares: make(map[uint64][]byte),
		active: true,
	}
}

// Output returns the call's recorded output and accumulated events once
// the guest has returned normally.
func (h *Host) Output() []byte   { return h.output }
func (h *Host) Events() [][]byte { return h.events }

// --- share slots ---

// ShareLen implements share_len.
func (h *Host) ShareLen(id uint64) uint64 { return uint64(len(h.shares[id])) }

// ShareRead implements share_read: returns the bytes a guest would copy
// into its own memory at ptr.
func (h *Host) ShareRead(id uint64) []byte { return h.shares[id] }

// ShareWrite implements share_write: stores len bytes (supplied directly,
// since this reference host has no guest memory to copy from) into slot
// id.
func (h *Host) ShareWrite(data []byte, id uint64) {
	h.shares[id] = append([]byte(nil), data...)
}

// --- call metadata ---

// MethodRead implements method_read.
func (h *Host) MethodRead() string { return h.method }

// InputRead implements input_read.
func (h *Host) InputRead() []byte { return h.input }

// OutputWrite implements output_write.
func (h *Host) OutputWrite(data []byte) { h.output = append([]byte(nil), data...) }

// ErrorReturn implements error_return: aborts the call.
func (h *Host) ErrorReturn(payload []byte) error {
	h.active = false
	return &AbortError{Payload: append([]byte(nil), payload...)}
}

// --- environment ---

func (h *Host) EnvBlockNumber() uint64 { return h.ctx.Number() }
func (h *Host) EnvTimestamp() uint64   { return h.ctx.Timestamp() }
func (h *Host) EnvPayValue() uint64    { return h.payValue }

// EnvTxHashRead implements env_tx_hash_read: places the tx hash in share
// slot id.
func (h *Host) EnvTxHashRead(id uint64) { h.shares[id] = append([]byte(nil), h.txHash.Bytes()...) }

// EnvContractAddressRead implements env_contract_address_read.
func (h *Host) EnvContractAddressRead(id uint64) {
	h.shares[id] = append([]byte(nil), h.address.Bytes()...)
}

// EnvSenderAddressRead implements env_sender_address_read.
func (h *Host) EnvSenderAddressRead(id uint64) {
	h.shares[id] = append([]byte(nil), h.sender.Bytes()...)
}

// --- storage ---

// StorageRead implements storage_read: 1/true and the value placed in
// share id if present, 0/false otherwise.
func (h *Host) StorageRead(key []byte, id uint64) (bool, error) {
	v, ok, err := h.ctx.Get(execution.PhasePayload, append(storagePrefix(h.address), key...))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	h.shares[id] = append([]byte(nil), v...)
	return true, nil
}

// StorageWrite implements storage_write: sets key to value, or deletes it
// when valueExists is false.
func (h *Host) StorageWrite(key []byte, valueExists bool, value []byte) {
	full := append(storagePrefix(h.address), key...)
	if !valueExists {
		h.ctx.Delete(execution.PhasePayload, full)
		return
	}
	h.ctx.Set(execution.PhasePayload, full, value)
}

// --- events ---

// EventWrite implements event_write.
func (h *Host) EventWrite(data []byte) { h.events = append(h.events, append([]byte(nil), data...)) }

// --- util ---

// UtilHash implements util_hash: hashes data under the chain's configured
// hash algorithm and places the digest in share id.
func (h *Host) UtilHash(data []byte, id uint64) {
	digest := h.hashFn(data)
	h.shares[id] = append([]byte(nil), digest[:]...)
}

// UtilAddress implements util_address: derives an address from data under
// the chain's configured address algorithm and places it in share id.
func (h *Host) UtilAddress(data []byte, id uint64) error {
	addr, err := h.algos.DeriveAddress(data)
	if err != nil {
		return err
	}
	h.shares[id] = addr
	return nil
}

// --- balance ---

// BalanceRead implements balance_read.
func (h *Host) BalanceRead(addr chaintypes.Address) (uint64, error) {
	v, ok, err := h.ctx.Get(execution.PhasePayload, balanceKey(addr))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	c := codec.NewCursor(v)
	v128, err := c.ReadU128LE()
	if err != nil {
		return 0, err
	}
	return v128.Uint64(), nil
}

// BalanceTransfer implements balance_transfer: aborts the contract on
// insufficient balance.
func (h *Host) BalanceTransfer(to chaintypes.Address, value uint64) error {
	from, err := h.BalanceRead(h.address)
	if err != nil {
		return err
	}
	if from < value {
		h.active = false
		return &AbortError{Payload: []byte("balance_transfer: insufficient balance")}
	}
	toBal, err := h.BalanceRead(to)
	if err != nil {
		return err
	}
	if err := h.setBalance(h.address, from-value); err != nil {
		return err
	}
	return h.setBalance(to, toBal+value)
}

// Pay implements pay: credits the value attached to the inbound call to
// the contract's own account.
func (h *Host) Pay() error {
	bal, err := h.BalanceRead(h.address)
	if err != nil {
		return err
	}
	return h.setBalance(h.address, bal+h.payValue)
}

func (h *Host) setBalance(addr chaintypes.Address, value uint64) error {
	b := new(big.Int).SetUint64(value)
	enc, err := codec.AppendU128LE(nil, b)
	if err != nil {
		return err
	}
	h.ctx.Set(execution.PhasePayload, balanceKey(addr), enc)
	return nil
}
