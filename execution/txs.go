package execution

import (
	"wingchain.dev/node/chaintypes"
	"wingchain.dev/node/trie"
)

// TxsRoot computes the ordered transactions root over txs, keyed by
// position: leaf i is the full wire encoding of txs[i], so the root is
// sensitive to transaction order, not just membership.
func TxsRoot(hashFn trie.HashFunc, txs []*chaintypes.Transaction) ([32]byte, error) {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = chaintypes.EncodeTx(tx)
	}
	return trie.TrieRoot(leaves, hashFn)
}

// BuildTx assembles an unsigned transaction from a module call. The caller
// (a witness-holding client) signs the digest chaintypes.TransactionHash(tx)
// and attaches the signature before submission; BuildTx itself never
// touches key material.
func BuildTx(module, method string, params []byte, nonce uint32, until uint64, publicKey []byte) *chaintypes.Transaction {
	tx := &chaintypes.Transaction{Call: chaintypes.Call{Module: module, Method: method, Params: params}}
	if publicKey != nil {
		tx.Witness = &chaintypes.Witness{PublicKey: publicKey, Nonce: nonce, Until: until}
	}
	return tx
}
