package modules

import (
	"errors"
	"math/big"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/contract"
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/dispatch"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

// ContractCallParams is contract.call's declared parameter type: route a
// call to a deployed contract address through the host ABI.
type ContractCallParams struct {
	Address  chaintypes.Address
	Method   string
	Input    []byte
	PayValue uint64
}

func encodeContractCallParams(p ContractCallParams) []byte {
	out := append([]byte(nil), p.Address.Bytes()...)
	out = codec.AppendString(out, p.Method)
	out = codec.AppendBytes(out, p.Input)
	out = codec.AppendU64LE(out, p.PayValue)
	return out
}

// EncodeContractCallParams produces the canonical binary params for
// contract.call.
func EncodeContractCallParams(p ContractCallParams) []byte { return encodeContractCallParams(p) }

func decodeContractCallParams(raw []byte) (ContractCallParams, error) {
	c := codec.NewCursor(raw)
	rawAddr, err := c.ReadBytesExact(20)
	if err != nil {
		return ContractCallParams{}, err
	}
	var addr chaintypes.Address
	copy(addr[:], rawAddr)
	method, err := c.ReadString()
	if err != nil {
		return ContractCallParams{}, err
	}
	input, err := c.ReadBytes()
	if err != nil {
		return ContractCallParams{}, err
	}
	payValue, err := c.ReadU64LE()
	if err != nil {
		return ContractCallParams{}, err
	}
	if !c.Done() {
		return ContractCallParams{}, errs.New(errs.InvalidParams, "trailing bytes after contract.call params")
	}
	return ContractCallParams{Address: addr, Method: method, Input: input, PayValue: payValue}, nil
}

// contractRegistry is the process-wide table of deployed reference
// contracts, shared by every dispatcher RegisterContract wires.
var contractRegistry = contract.NewRegistry()

// DeployContract registers code at address in the shared contract
// registry used by the "contract" module's call handler.
func DeployContract(address chaintypes.Address, code contract.Contract) {
	contractRegistry.Deploy(address, code)
}

// contractHandler closes over algos and hashFn, which RegisterContract
// passes in: the Handler signature carries only ctx/sender/txHash/params,
// so the crypto capabilities a Host needs are bound at registration
// time instead.
func contractHandler(algos *crypto.Algorithms, hashFn func([]byte) [32]byte) dispatch.Handler {
	return func(ctx *execution.Context, sender []byte, txHash chaintypes.Hash, params []byte) error {
		p, err := decodeContractCallParams(params)
		if err != nil {
			return errs.Wrap(errs.InvalidParams, "contract.call", err)
		}
		code, ok := contractRegistry.Lookup(p.Address)
		if !ok {
			return errs.Newf(errs.InvalidTxCall, "contract.call: no contract deployed at %x", p.Address.Bytes())
		}
		var senderAddr chaintypes.Address
		copy(senderAddr[:], sender)
		if p.PayValue > 0 {
			if len(sender) != 20 {
				return errs.New(errs.InvalidTxCall, "contract.call: pay_value requires a witnessed sender")
			}
			if err := debitSender(ctx, senderAddr, p.PayValue); err != nil {
				return err
			}
		}
		h := contract.New(ctx, algos, hashFn, p.Address, senderAddr, txHash, p.Method, p.Input, p.PayValue)
		if err := code.Call(h); err != nil {
			var abort *contract.AbortError
			if errors.As(err, &abort) {
				return errs.Wrap(errs.InvalidTxs, "contract.call: aborted", err)
			}
			return err
		}
		return nil
	}
}

func debitSender(ctx *execution.Context, sender chaintypes.Address, value uint64) error {
	bal, err := GetBalance(ctx, sender)
	if err != nil {
		return err
	}
	v := new(big.Int).SetUint64(value)
	if bal.Cmp(v) < 0 {
		return errs.New(errs.InvalidTxs, "contract.call: insufficient balance for pay_value")
	}
	return setBalance(ctx, sender, new(big.Int).Sub(bal, v))
}

// RegisterContract wires the contract module into d, bound to the
// chain's resolved algorithms and hash function. The call is payload,
// write: contract storage lives in the payload state.
func RegisterContract(d *dispatch.Dispatcher, algos *crypto.Algorithms, hashFn func([]byte) [32]byte) {
	d.Register("contract", "call", dispatch.Payload, true, false,
		func(params []byte) error { _, err := decodeContractCallParams(params); return err },
		contractHandler(algos, hashFn))
}
