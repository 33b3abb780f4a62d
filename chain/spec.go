// Package chain implements genesis construction and block commit:
// parse the spec, build the genesis transactions, execute them, then
// compose and write one atomic database batch. TOML parsing uses
// github.com/pelletier/go-toml/v2.
package chain

import (
	"github.com/pelletier/go-toml/v2"

	"wingchain.dev/node/errs"
)

// Spec mirrors home/config/spec.toml's shape exactly.
type Spec struct {
	Basic   BasicSpec   `toml:"basic"`
	Genesis GenesisSpec `toml:"genesis"`
}

// BasicSpec names the chain's algorithm selection.
type BasicSpec struct {
	Hash    string `toml:"hash"`
	DSA     string `toml:"dsa"`
	Address string `toml:"address"`
}

// GenesisSpec holds the ordered list of genesis transactions.
type GenesisSpec struct {
	Txs []GenesisTx `toml:"txs"`
}

// GenesisTx is one [[genesis.txs]] entry: a call whose params are a JSON
// string in the file, decoded by the named module's JSON alias before
// being re-encoded to the call's canonical binary params.
type GenesisTx struct {
	Module string `toml:"module"`
	Method string `toml:"method"`
	Params string `toml:"params"`
}

// ParseSpec parses raw TOML bytes into a Spec and checks its structural
// requirements: a [basic] table and a non-empty genesis tx list whose
// first entry is system.init.
func ParseSpec(raw []byte) (*Spec, error) {
	var s Spec
	if err := toml.Unmarshal(raw, &s); err != nil {
		return nil, errs.Wrap(errs.InvalidSpec, "parse spec.toml", err)
	}
	if s.Basic.Hash == "" || s.Basic.DSA == "" || s.Basic.Address == "" {
		return nil, errs.New(errs.InvalidSpec, "spec.toml: [basic] must set hash, dsa, address")
	}
	if len(s.Genesis.Txs) == 0 {
		return nil, errs.New(errs.InvalidSpec, "spec.toml: genesis.txs must not be empty")
	}
	if s.Genesis.Txs[0].Module != "system" || s.Genesis.Txs[0].Method != "init" {
		return nil, errs.New(errs.InvalidSpec, "spec.toml: genesis.txs[0] must be system.init")
	}
	return &s, nil
}

// Encode serializes s to TOML, used by the init CLI to write a fresh
// spec.toml.
func Encode(s *Spec) ([]byte, error) {
	out, err := toml.Marshal(s)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidSpec, "encode spec.toml", err)
	}
	return out, nil
}
