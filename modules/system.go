// Package modules implements the built-in module set: system, balance,
// solo, and contract. Each module registers its methods with a
// dispatch.Dispatcher; handlers read/write state only through the
// execution.Context capability they are handed, never by reaching into
// storage directly. Each method declares a typed params struct, decoded
// inside the handler, with state keys formed by concatenating a fixed
// module prefix with the typed argument.
package modules

import (
	"encoding/json"
	"time"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/dispatch"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

// SystemInitParams is system.init's declared parameter type. ChainID
// must be 14 characters.
type SystemInitParams struct {
	ChainID         string
	Timestamp       uint64
	MaxUntilGap     uint32
	MaxExecutionGap uint8
}

// systemInitJSON is the compatibility alias accepted from spec.toml's
// genesis params, where the normative schema (chain_id, timestamp,
// max_until_gap, max_execution_gap) may instead be supplied as
// {chain_id, time}: "time" is an RFC 3339
// string converted to milliseconds, and the two gap fields default to 0
// when absent.
type systemInitJSON struct {
	ChainID         string `json:"chain_id"`
	Time            string `json:"time"`
	Timestamp       uint64 `json:"timestamp"`
	MaxUntilGap     uint32 `json:"max_until_gap"`
	MaxExecutionGap uint8  `json:"max_execution_gap"`
}

// DecodeSystemInitJSON parses the JSON genesis params for system.init,
// accepting both the normative {chain_id, timestamp, max_until_gap,
// max_execution_gap} shape and the {chain_id, time} compatibility
// alias.
func DecodeSystemInitJSON(raw []byte) (SystemInitParams, error) {
	var j systemInitJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return SystemInitParams{}, errs.Wrap(errs.InvalidSpec, "system.init params", err)
	}
	if len(j.ChainID) != 14 {
		return SystemInitParams{}, errs.Newf(errs.InvalidSpec, "system.init chain_id must be 14 characters, got %d", len(j.ChainID))
	}
	p := SystemInitParams{ChainID: j.ChainID, MaxUntilGap: j.MaxUntilGap, MaxExecutionGap: j.MaxExecutionGap}
	switch {
	case j.Timestamp != 0:
		p.Timestamp = j.Timestamp
	case j.Time != "":
		t, err := time.Parse(time.RFC3339, j.Time)
		if err != nil {
			return SystemInitParams{}, errs.Wrap(errs.InvalidSpec, "system.init time is not RFC3339", err)
		}
		p.Timestamp = uint64(t.UnixMilli())
	default:
		return SystemInitParams{}, errs.New(errs.InvalidSpec, "system.init requires time or timestamp")
	}
	return p, nil
}

// EncodeSystemInitParams produces the canonical binary params a
// dispatch.Dispatcher.BuildTx call carries for system.init.
func EncodeSystemInitParams(p SystemInitParams) []byte {
	out := codec.AppendString(nil, p.ChainID)
	out = codec.AppendU64LE(out, p.Timestamp)
	out = codec.AppendU32LE(out, p.MaxUntilGap)
	out = codec.AppendU8(out, p.MaxExecutionGap)
	return out
}

func decodeSystemInitParams(raw []byte) (SystemInitParams, error) {
	c := codec.NewCursor(raw)
	chainID, err := c.ReadString()
	if err != nil {
		return SystemInitParams{}, err
	}
	ts, err := c.ReadU64LE()
	if err != nil {
		return SystemInitParams{}, err
	}
	maxUntil, err := c.ReadU32LE()
	if err != nil {
		return SystemInitParams{}, err
	}
	maxExec, err := c.ReadU8()
	if err != nil {
		return SystemInitParams{}, err
	}
	if !c.Done() {
		return SystemInitParams{}, errs.New(errs.InvalidParams, "trailing bytes after system.init params")
	}
	return SystemInitParams{ChainID: chainID, Timestamp: ts, MaxUntilGap: maxUntil, MaxExecutionGap: maxExec}, nil
}

// Meta-state keys system.init writes.
var (
	KeySystemChainID         = []byte("system_chain_id")
	KeySystemTimestamp       = []byte("system_timestamp")
	KeySystemMaxUntilGap     = []byte("system_max_until_gap")
	KeySystemMaxExecutionGap = []byte("system_max_execution_gap")
)

// RegisterSystem wires the system module into d. system.init is meta,
// write, and genesis-only; the handler additionally fails outside block
// 0 even if some future caller manages to route it through a
// non-genesis path.
func RegisterSystem(d *dispatch.Dispatcher) {
	d.Register("system", "init", dispatch.Meta, true, true,
		func(params []byte) error { _, err := decodeSystemInitParams(params); return err },
		func(ctx *execution.Context, _ []byte, _ chaintypes.Hash, params []byte) error {
			if ctx.Number() != 0 {
				return errs.New(errs.InvalidTxCall, "system.init is only valid at genesis")
			}
			p, err := decodeSystemInitParams(params)
			if err != nil {
				return errs.Wrap(errs.InvalidParams, "system.init", err)
			}
			ctx.Set(dispatch.Meta, KeySystemChainID, []byte(p.ChainID))
			ctx.Set(dispatch.Meta, KeySystemTimestamp, codec.AppendU64LE(nil, p.Timestamp))
			ctx.Set(dispatch.Meta, KeySystemMaxUntilGap, codec.AppendU32LE(nil, p.MaxUntilGap))
			ctx.Set(dispatch.Meta, KeySystemMaxExecutionGap, []byte{p.MaxExecutionGap})
			return nil
		})
}

// ReadSystemChainID reads the chain_id a committed system.init wrote.
func ReadSystemChainID(ctx *execution.Context) (string, bool, error) {
	v, ok, err := ctx.Get(dispatch.Meta, KeySystemChainID)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(v), true, nil
}
