package modules

import (
	"wingchain.dev/node/crypto"
	"wingchain.dev/node/dispatch"
)

// RegisterAll wires every built-in module into d. The dispatcher is a
// closed set of modules chosen at build time, not an open plugin
// registry.
func RegisterAll(d *dispatch.Dispatcher, algos *crypto.Algorithms, hashFn func([]byte) [32]byte) {
	RegisterSystem(d)
	RegisterSolo(d)
	RegisterBalance(d)
	RegisterContract(d, algos, hashFn)
}
