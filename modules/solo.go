package modules

import (
	"encoding/json"

	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/codec"
	"wingchain.dev/node/dispatch"
	"wingchain.dev/node/errs"
	"wingchain.dev/node/execution"
)

// SoloInitParams is solo.init's declared parameter type: the PoA block
// interval in milliseconds. solo is the single-author
// consensus module this core hands authoring decisions to; it has no
// say over block content, only over the author's cadence.
type SoloInitParams struct {
	BlockInterval uint64
}

// KeySoloBlockInterval is the meta-state key solo.init writes.
var KeySoloBlockInterval = []byte("solo_block_interval")

func encodeSoloInitParams(p SoloInitParams) []byte {
	return codec.AppendU64LE(nil, p.BlockInterval)
}

func decodeSoloInitParams(raw []byte) (SoloInitParams, error) {
	c := codec.NewCursor(raw)
	interval, err := c.ReadU64LE()
	if err != nil {
		return SoloInitParams{}, err
	}
	if !c.Done() {
		return SoloInitParams{}, errs.New(errs.InvalidParams, "trailing bytes after solo.init params")
	}
	return SoloInitParams{BlockInterval: interval}, nil
}

type soloInitJSON struct {
	BlockInterval uint64 `json:"block_interval"`
}

// DecodeSoloInitJSON parses solo.init's JSON genesis params.
func DecodeSoloInitJSON(raw []byte) (SoloInitParams, error) {
	var j soloInitJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return SoloInitParams{}, errs.Wrap(errs.InvalidSpec, "solo.init params", err)
	}
	return SoloInitParams{BlockInterval: j.BlockInterval}, nil
}

// EncodeSoloInitParams produces the canonical binary params for
// solo.init.
func EncodeSoloInitParams(p SoloInitParams) []byte { return encodeSoloInitParams(p) }

// RegisterSolo wires the solo module into d. solo.init is meta, write,
// genesis-only.
func RegisterSolo(d *dispatch.Dispatcher) {
	d.Register("solo", "init", dispatch.Meta, true, true,
		func(params []byte) error { _, err := decodeSoloInitParams(params); return err },
		func(ctx *execution.Context, _ []byte, _ chaintypes.Hash, params []byte) error {
			if ctx.Number() != 0 {
				return errs.New(errs.InvalidTxCall, "solo.init is only valid at genesis")
			}
			p, err := decodeSoloInitParams(params)
			if err != nil {
				return errs.Wrap(errs.InvalidParams, "solo.init", err)
			}
			ctx.Set(dispatch.Meta, KeySoloBlockInterval, codec.AppendU64LE(nil, p.BlockInterval))
			return nil
		})
}
