package contract

import "wingchain.dev/node/chaintypes"

// Contract is a deterministic in-process stand-in for a deployed WASM
// guest: it receives the same Host the real ABI table would hand a
// guest, and must only observe effects through Host's methods. A full
// build wires a WASM engine's import object to the same Host type
// instead of this interface.
type Contract interface {
	Call(h *Host) error
}

// Registry maps a contract's address to its code. Wingchain's host ABI
// does not specify how code is loaded (that is the WASM engine's job);
// Registry stands in for that loader so the module-dispatch path has
// something deterministic to route "contract.call" to.
type Registry struct {
	contracts map[chaintypes.Address]Contract
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry { return &Registry{contracts: make(map[chaintypes.Address]Contract)} }

// Deploy registers code at address. Deploying twice at the same address
// replaces the prior code, matching how a real chain would treat a
// redeploy as the module's concern, not the registry's.
func (r *Registry) Deploy(address chaintypes.Address, code Contract) {
	r.contracts[address] = code
}

// Lookup returns the code deployed at address, if any.
func (r *Registry) Lookup(address chaintypes.Address) (Contract, bool) {
	c, ok := r.contracts[address]
	return c, ok
}
