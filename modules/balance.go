package modules

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/dispatch"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

// Endow is one (address, value) pair in balance.init's endowment list.
type Endow struct {
	Address chaintypes.Address
	Value   *big.Int
}

// BalanceInitParams is balance.init's declared parameter type.
type BalanceInitParams struct {
	Endow []Endow
}

// TransferParams is balance.transfer's declared parameter type.
type TransferParams struct {
	Recipient chaintypes.Address
	Value     *big.Int
}

// balanceKey forms the balance_balance_<address> payload-state key.
func balanceKey(addr chaintypes.Address) []byte {
	return append([]byte("balance_balance_"), addr.Bytes()...)
}

func encodeBalanceInitParams(p BalanceInitParams) ([]byte, error) {
	out := codec.AppendCompactSize(nil, uint64(len(p.Endow)))
	for _, e := range p.Endow {
		out = append(out, e.Address.Bytes()...)
		enc, err := codec.AppendU128LE(out, e.Value)
		if err != nil {
			return nil, err
		}
		out = enc
	}
	return out, nil
}

func decodeBalanceInitParams(raw []byte) (BalanceInitParams, error) {
	c := codec.NewCursor(raw)
	n, err := c.ReadCompactSize()
	if err != nil {
		return BalanceInitParams{}, err
	}
	out := BalanceInitParams{Endow: make([]Endow, 0, n)}
	for i := uint64(0); i < n; i++ {
		raw, err := c.ReadBytesExact(20)
		if err != nil {
			return BalanceInitParams{}, err
		}
		var addr chaintypes.Address
		copy(addr[:], raw)
		value, err := c.ReadU128LE()
		if err != nil {
			return BalanceInitParams{}, err
		}
		out.Endow = append(out.Endow, Endow{Address: addr, Value: value})
	}
	if !c.Done() {
		return BalanceInitParams{}, errs.New(errs.InvalidParams, "trailing bytes after balance.init params")
	}
	return out, nil
}

func encodeTransferParams(p TransferParams) ([]byte, error) {
	out := append([]byte(nil), p.Recipient.Bytes()...)
	return codec.AppendU128LE(out, p.Value)
}

func decodeTransferParams(raw []byte) (TransferParams, error) {
	c := codec.NewCursor(raw)
	rawAddr, err := c.ReadBytesExact(20)
	if err != nil {
		return TransferParams{}, err
	}
	var addr chaintypes.Address
	copy(addr[:], rawAddr)
	value, err := c.ReadU128LE()
	if err != nil {
		return TransferParams{}, err
	}
	if !c.Done() {
		return TransferParams{}, errs.New(errs.InvalidParams, "trailing bytes after balance.transfer params")
	}
	return TransferParams{Recipient: addr, Value: value}, nil
}

// balanceInitJSON mirrors the spec.toml genesis params shape: a list of
// [address_hex, amount_decimal_string] pairs.
type balanceInitJSON struct {
	Endow [][2]string `json:"endow"`
}

// DecodeBalanceInitJSON parses balance.init's JSON genesis params.
func DecodeBalanceInitJSON(raw []byte) (BalanceInitParams, error) {
	var j balanceInitJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return BalanceInitParams{}, errs.Wrap(errs.InvalidSpec, "balance.init params", err)
	}
	out := BalanceInitParams{Endow: make([]Endow, 0, len(j.Endow))}
	for _, pair := range j.Endow {
		raw, err := hex.DecodeString(pair[0])
		if err != nil || len(raw) != 20 {
			return BalanceInitParams{}, errs.Newf(errs.InvalidSpec, "balance.init: invalid address %q", pair[0])
		}
		var addr chaintypes.Address
		copy(addr[:], raw)
		value, ok := new(big.Int).SetString(pair[1], 10)
		if !ok {
			return BalanceInitParams{}, errs.Newf(errs.InvalidSpec, "balance.init: invalid amount %q", pair[1])
		}
		out.Endow = append(out.Endow, Endow{Address: addr, Value: value})
	}
	return out, nil
}

// EncodeBalanceInitParams produces the canonical binary params for
// balance.init.
func EncodeBalanceInitParams(p BalanceInitParams) ([]byte, error) { return encodeBalanceInitParams(p) }

// EncodeTransferParams produces the canonical binary params for
// balance.transfer.
func EncodeTransferParams(p TransferParams) ([]byte, error) { return encodeTransferParams(p) }

// GetBalance reads an address's payload-state balance, defaulting to
// zero when unset.
func GetBalance(ctx *execution.Context, addr chaintypes.Address) (*big.Int, error) {
	v, ok, err := ctx.Get(dispatch.Payload, balanceKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	c := codec.NewCursor(v)
	return c.ReadU128LE()
}

func setBalance(ctx *execution.Context, addr chaintypes.Address, value *big.Int) error {
	enc, err := codec.AppendU128LE(nil, value)
	if err != nil {
		return err
	}
	ctx.Set(dispatch.Payload, balanceKey(addr), enc)
	return nil
}

// RegisterBalance wires the balance module into d. Both methods are
// payload, write.
func RegisterBalance(d *dispatch.Dispatcher) {
	d.Register("balance", "init", dispatch.Payload, true, false,
		func(params []byte) error { _, err := decodeBalanceInitParams(params); return err },
		func(ctx *execution.Context, _ []byte, _ chaintypes.Hash, params []byte) error {
			p, err := decodeBalanceInitParams(params)
			if err != nil {
				return errs.Wrap(errs.InvalidParams, "balance.init", err)
			}
			for _, e := range p.Endow {
				if err := setBalance(ctx, e.Address, e.Value); err != nil {
					return errs.Wrap(errs.InvalidParams, "balance.init: encode balance", err)
				}
			}
			return nil
		})

	d.Register("balance", "transfer", dispatch.Payload, true, false,
		func(params []byte) error { _, err := decodeTransferParams(params); return err },
		func(ctx *execution.Context, sender []byte, _ chaintypes.Hash, params []byte) error {
			if len(sender) != 20 {
				return errs.New(errs.InvalidTxCall, "balance.transfer requires a witnessed sender")
			}
			p, err := decodeTransferParams(params)
			if err != nil {
				return errs.Wrap(errs.InvalidParams, "balance.transfer", err)
			}
			var from chaintypes.Address
			copy(from[:], sender)

			fromBalance, err := GetBalance(ctx, from)
			if err != nil {
				return err
			}
			if fromBalance.Cmp(p.Value) < 0 {
				return errs.Newf(errs.InvalidTxs, "balance.transfer: insufficient balance")
			}
			toBalance, err := GetBalance(ctx, p.Recipient)
			if err != nil {
				return err
			}
			newFrom := new(big.Int).Sub(fromBalance, p.Value)
			newTo := new(big.Int).Add(toBalance, p.Value)
			if err := setBalance(ctx, from, newFrom); err != nil {
				return err
			}
			return setBalance(ctx, p.Recipient, newTo)
		})
}
