package trie

import (
	"bytes"
	"fmt"
	"sort"
)

// HashFunc digests a node's canonical encoding into its address.
type HashFunc func([]byte) [32]byte

// NodeGetter resolves a persisted node by its hash. Implementations must
// be safe for concurrent use: many Stmt/Getter pairs may read the same
// underlying column concurrently.
type NodeGetter interface {
	GetNode(hash [32]byte) ([]byte, bool, error)
}

// EmptyRoot returns the root hash of the empty trie under hashFn. It never
// touches a NodeGetter: Get/Update special-case it so default_root never
// requires a storage round trip.
func EmptyRoot(hashFn HashFunc) [32]byte {
	return hashFn(encodeNode(&node{tag: tagEmpty}))
}

func resolve(ref *[32]byte, g NodeGetter) (*node, error) {
	if ref == nil {
		return nil, nil
	}
	raw, ok, err := g.GetNode(*ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trie: missing node %x", *ref)
	}
	return decodeNode(raw)
}

// Get looks up key in the trie rooted at root.
func Get(root [32]byte, key []byte, g NodeGetter, hashFn HashFunc) ([]byte, bool, error) {
	if root == EmptyRoot(hashFn) {
		return nil, false, nil
	}
	ref := root
	return getAt(&ref, keyToNibbles(key), g)
}

func getAt(ref *[32]byte, key []byte, g NodeGetter) ([]byte, bool, error) {
	n, err := resolve(ref, g)
	if err != nil {
		return nil, false, err
	}
	if n == nil {
		return nil, false, nil
	}
	switch n.tag {
	case tagEmpty:
		return nil, false, nil
	case tagLeaf:
		if bytes.Equal(n.keyPart, key) {
			return n.value, true, nil
		}
		return nil, false, nil
	case tagExtension:
		cp := commonPrefixLen(n.keyPart, key)
		if cp < len(n.keyPart) {
			return nil, false, nil
		}
		return getAt(&n.child, key[cp:], g)
	case tagBranch:
		if len(key) == 0 {
			if n.branchValue != nil {
				return n.branchValue, true, nil
			}
			return nil, false, nil
		}
		child := n.children[key[0]]
		if child == nil {
			return nil, false, nil
		}
		return getAt(child, key[1:], g)
	default:
		return nil, false, fmt.Errorf("trie: unknown node tag %d", n.tag)
	}
}

// writer accumulates newly created nodes (the pending batch) during an
// Update call without mutating the underlying NodeGetter.
type writer struct {
	hashFn  HashFunc
	pending map[[32]byte][]byte
}

// pendingGetter layers an Update call's not-yet-persisted nodes over the
// backing store, so a later write in the same batch can traverse nodes an
// earlier write just created.
type pendingGetter struct {
	w *writer
	g NodeGetter
}

func (p pendingGetter) GetNode(hash [32]byte) ([]byte, bool, error) {
	if enc, ok := p.w.pending[hash]; ok {
		return enc, true, nil
	}
	if p.g == nil {
		return nil, false, nil
	}
	return p.g.GetNode(hash)
}

func (w *writer) store(n *node) [32]byte {
	enc := encodeNode(n)
	h := w.hashFn(enc)
	w.pending[h] = enc
	return h
}

func (w *writer) storeLeaf(keyPart, value []byte) [32]byte {
	return w.store(&node{tag: tagLeaf, keyPart: append([]byte(nil), keyPart...), value: append([]byte(nil), value...)})
}

func (w *writer) storeExtension(keyPart []byte, child [32]byte) [32]byte {
	if len(keyPart) == 0 {
		return child
	}
	return w.store(&node{tag: tagExtension, keyPart: append([]byte(nil), keyPart...), child: child, hasChild: true})
}

func copyBranch(n *node) *node {
	nb := &node{tag: tagBranch, branchValue: n.branchValue}
	nb.children = n.children
	return nb
}

// Update applies writes (key -> value, or key -> nil for delete) to the
// trie rooted at root and returns the new root plus the set of newly
// created nodes (the pending DB batch). It never mutates g and never
// writes to any store; the caller decides whether/when to persist
// pending. Because the final trie shape is a pure function of the
// resulting (key, value) set, two calls with the same parent root and the
// same write set produce byte-identical roots and pending batches
// regardless of the order writes are supplied in.
func Update(root [32]byte, writes map[string][]byte, g NodeGetter, hashFn HashFunc) ([32]byte, map[[32]byte][]byte, error) {
	w := &writer{hashFn: hashFn, pending: make(map[[32]byte][]byte)}
	layered := pendingGetter{w: w, g: g}
	empty := EmptyRoot(hashFn)

	keys := make([]string, 0, len(writes))
	for k := range writes {
		keys = append(keys, k)
	}
	sortStrings(keys)

	var cur *[32]byte
	if root != empty {
		r := root
		cur = &r
	}

	for _, k := range keys {
		v := writes[k]
		nibbles := keyToNibbles([]byte(k))
		var err error
		if v == nil {
			cur, err = deleteAt(cur, nibbles, w, layered)
		} else {
			var h [32]byte
			h, err = insertAt(cur, nibbles, v, w, layered)
			cur = &h
		}
		if err != nil {
			return [32]byte{}, nil, err
		}
	}

	if cur == nil {
		return empty, w.pending, nil
	}
	return *cur, w.pending, nil
}

func sortStrings(s []string) {
	// simple insertion sort for the handful of keys typical blocks
	// write; falls back to stdlib sort.Strings for larger sets.
	if len(s) > 32 {
		sort.Strings(s)
		return
	}
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func insertAt(ref *[32]byte, key, value []byte, w *writer, g NodeGetter) ([32]byte, error) {
	n, err := resolve(ref, g)
	if err != nil {
		return [32]byte{}, err
	}
	if n == nil {
		return w.storeLeaf(key, value), nil
	}
	switch n.tag {
	case tagEmpty:
		return w.storeLeaf(key, value), nil
	case tagLeaf:
		if bytes.Equal(n.keyPart, key) {
			return w.storeLeaf(key, value), nil
		}
		cp := commonPrefixLen(n.keyPart, key)
		branch := &node{tag: tagBranch}
		if cp == len(n.keyPart) {
			branch.branchValue = n.value
		} else {
			idx := n.keyPart[cp]
			h := w.storeLeaf(n.keyPart[cp+1:], n.value)
			branch.children[idx] = &h
		}
		if cp == len(key) {
			branch.branchValue = value
		} else {
			idx := key[cp]
			h := w.storeLeaf(key[cp+1:], value)
			branch.children[idx] = &h
		}
		bh := w.store(branch)
		return w.storeExtension(key[:cp], bh), nil
	case tagExtension:
		cp := commonPrefixLen(n.keyPart, key)
		if cp == len(n.keyPart) {
			childHash, err := insertAt(&n.child, key[cp:], value, w, g)
			if err != nil {
				return [32]byte{}, err
			}
			return w.storeExtension(n.keyPart, childHash), nil
		}
		branch := &node{tag: tagBranch}
		idxE := n.keyPart[cp]
		restE := n.keyPart[cp+1:]
		childForBranch := w.storeExtension(restE, n.child)
		branch.children[idxE] = &childForBranch
		if cp == len(key) {
			branch.branchValue = value
		} else {
			idxN := key[cp]
			h := w.storeLeaf(key[cp+1:], value)
			branch.children[idxN] = &h
		}
		bh := w.store(branch)
		return w.storeExtension(key[:cp], bh), nil
	case tagBranch:
		if len(key) == 0 {
			nb := copyBranch(n)
			nb.branchValue = value
			return w.store(nb), nil
		}
		idx := key[0]
		childHash, err := insertAt(n.children[idx], key[1:], value, w, g)
		if err != nil {
			return [32]byte{}, err
		}
		nb := copyBranch(n)
		nb.children[idx] = &childHash
		return w.store(nb), nil
	default:
		return [32]byte{}, fmt.Errorf("trie: unknown node tag %d", n.tag)
	}
}

func deleteAt(ref *[32]byte, key []byte, w *writer, g NodeGetter) (*[32]byte, error) {
	if ref == nil {
		return nil, nil
	}
	n, err := resolve(ref, g)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	switch n.tag {
	case tagEmpty:
		return nil, nil
	case tagLeaf:
		if bytes.Equal(n.keyPart, key) {
			return nil, nil
		}
		return ref, nil
	case tagExtension:
		cp := commonPrefixLen(n.keyPart, key)
		if cp < len(n.keyPart) {
			return ref, nil
		}
		childRef := n.child
		newChild, err := deleteAt(&childRef, key[cp:], w, g)
		if err != nil {
			return nil, err
		}
		if newChild == nil {
			return nil, nil
		}
		child, err := resolve(newChild, g)
		if err != nil {
			return nil, err
		}
		merged, err := mergeIntoExtension(n.keyPart, *newChild, child, w)
		if err != nil {
			return nil, err
		}
		return &merged, nil
	case tagBranch:
		nb := copyBranch(n)
		if len(key) == 0 {
			if nb.branchValue == nil {
				return ref, nil
			}
			nb.branchValue = nil
		} else {
			idx := key[0]
			newChild, err := deleteAt(nb.children[idx], key[1:], w, g)
			if err != nil {
				return nil, err
			}
			nb.children[idx] = newChild
		}
		h, err := collapseBranch(nb, w, g)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("trie: unknown node tag %d", n.tag)
	}
}

// mergeIntoExtension folds an extension's prefix with its (possibly just
// rewritten) child so the trie never carries a redundant extension->leaf
// or extension->extension chain.
func mergeIntoExtension(prefix []byte, childHash [32]byte, child *node, w *writer) ([32]byte, error) {
	switch child.tag {
	case tagLeaf:
		return w.storeLeaf(append(append([]byte(nil), prefix...), child.keyPart...), child.value), nil
	case tagExtension:
		return w.storeExtension(append(append([]byte(nil), prefix...), child.keyPart...), child.child), nil
	case tagBranch:
		return w.storeExtension(prefix, childHash), nil
	default:
		return [32]byte{}, fmt.Errorf("trie: unexpected child tag %d", child.tag)
	}
}

// collapseBranch rewrites a branch with zero or one remaining entries into
// the canonical smaller node shape a fresh insert sequence would have
// produced, which is what makes the root independent of write order/history.
func collapseBranch(nb *node, w *writer, g NodeGetter) (*[32]byte, error) {
	count := 0
	var onlyIdx int
	for i, c := range nb.children {
		if c != nil {
			count++
			onlyIdx = i
		}
	}
	if count == 0 && nb.branchValue == nil {
		return nil, nil
	}
	if count == 0 && nb.branchValue != nil {
		h := w.storeLeaf(nil, nb.branchValue)
		return &h, nil
	}
	if count == 1 && nb.branchValue == nil {
		childRef := nb.children[onlyIdx]
		child, err := resolve(childRef, g)
		if err != nil {
			return nil, err
		}
		prefix := []byte{byte(onlyIdx)}
		h, err := mergeIntoExtension(prefix, *childRef, child, w)
		if err != nil {
			return nil, err
		}
		return &h, nil
	}
	h := w.store(nb)
	return &h, nil
}
