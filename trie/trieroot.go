package trie

import "wingchain.dev/node/codec"

// emptyNodeGetter never has anything stored; TrieRoot always builds a
// fresh trie from scratch, so there is never a pre-existing node to
// resolve.
type emptyNodeGetter struct{}

func (emptyNodeGetter) GetNode(hash [32]byte) ([]byte, bool, error) { return nil, false, nil }

// TrieRoot computes the ordered-trie root of leaves in input order.
// Leaves are keyed by the canonical (CompactSize) encoding of their
// 0-based index, so permuting the leaf sequence changes the root while
// the same sequence always yields a byte-identical root for a given
// hash algorithm.
func TrieRoot(leaves [][]byte, hashFn HashFunc) ([32]byte, error) {
	if len(leaves) == 0 {
		return EmptyRoot(hashFn), nil
	}
	writes := make(map[string][]byte, len(leaves))
	for i, leaf := range leaves {
		key := codec.EncodeCompactSize(uint64(i))
		writes[string(key)] = leaf
	}
	root, _, err := Update(EmptyRoot(hashFn), writes, emptyNodeGetter{}, hashFn)
	if err != nil {
		return [32]byte{}, err
	}
	return root, nil
}
