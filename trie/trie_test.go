package trie

import (
	"testing"

	"golang.org/x/crypto/blake2b"
)

func hashFn(b []byte) [32]byte {
	return blake2b.Sum256(b)
}

type memStore struct {
	nodes map[[32]byte][]byte
}

func newMemStore() *memStore { return &memStore{nodes: make(map[[32]byte][]byte)} }

func (m *memStore) GetNode(hash [32]byte) ([]byte, bool, error) {
	b, ok := m.nodes[hash]
	return b, ok, nil
}

func (m *memStore) apply(pending map[[32]byte][]byte) {
	for h, v := range pending {
		m.nodes[h] = v
	}
}

func TestDefaultRootIsEmptyAndUnreadable(t *testing.T) {
	store := newMemStore()
	root := EmptyRoot(hashFn)
	_, ok, err := Get(root, []byte("missing"), store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss on empty trie")
	}
}

func TestUpdateGetRoundTrip(t *testing.T) {
	store := newMemStore()
	root := EmptyRoot(hashFn)
	writes := map[string][]byte{
		"alice": []byte("10"),
		"bob":   []byte("20"),
		"al":    []byte("5"),
	}
	newRoot, pending, err := Update(root, writes, store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store.apply(pending)

	for k, v := range writes {
		got, ok, err := Get(newRoot, []byte(k), store, hashFn)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(got) != string(v) {
			t.Fatalf("Get(%q) = %q, %v; want %q, true", k, got, ok, v)
		}
	}
	if _, ok, _ := Get(newRoot, []byte("carol"), store, hashFn); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestUpdateOrderIndependence(t *testing.T) {
	writes := map[string][]byte{
		"a":     []byte("1"),
		"ab":    []byte("2"),
		"abc":   []byte("3"),
		"b":     []byte("4"),
		"balance_0000000000000000000000000000000000000001": []byte("100"),
	}
	store1 := newMemStore()
	root1, pending1, err := Update(EmptyRoot(hashFn), writes, store1, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store1.apply(pending1)

	// Apply the same writes one at a time, in a different order, to a
	// second empty trie, and confirm the final root matches.
	store2 := newMemStore()
	root2 := EmptyRoot(hashFn)
	order := []string{"balance_0000000000000000000000000000000000000001", "b", "a", "abc", "ab"}
	for _, k := range order {
		var pending map[[32]byte][]byte
		root2, pending, err = Update(root2, map[string][]byte{k: writes[k]}, store2, hashFn)
		if err != nil {
			t.Fatal(err)
		}
		store2.apply(pending)
	}
	if root1 != root2 {
		t.Fatalf("root mismatch across insertion orders: %x vs %x", root1, root2)
	}
}

func TestDeleteRestoresEmptyRoot(t *testing.T) {
	store := newMemStore()
	root, pending, err := Update(EmptyRoot(hashFn), map[string][]byte{"k": []byte("v")}, store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store.apply(pending)

	root2, pending2, err := Update(root, map[string][]byte{"k": nil}, store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store.apply(pending2)
	if root2 != EmptyRoot(hashFn) {
		t.Fatalf("expected empty root after deleting only key, got %x", root2)
	}
}

func TestDeleteThenReinsertMatchesDirectInsert(t *testing.T) {
	store := newMemStore()
	root, pending, err := Update(EmptyRoot(hashFn), map[string][]byte{"x": []byte("1"), "y": []byte("2")}, store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store.apply(pending)

	root, pending, err = Update(root, map[string][]byte{"x": nil}, store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store.apply(pending)

	rootAfterDelete, pending, err := Update(root, map[string][]byte{"x": []byte("1")}, store, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store.apply(pending)

	store2 := newMemStore()
	rootDirect, pending2, err := Update(EmptyRoot(hashFn), map[string][]byte{"x": []byte("1"), "y": []byte("2")}, store2, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	store2.apply(pending2)

	if rootAfterDelete != rootDirect {
		t.Fatalf("delete+reinsert root %x != direct-insert root %x", rootAfterDelete, rootDirect)
	}
}

func TestTrieRootOrderingMatters(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	r1, err := TrieRoot(leaves, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	reordered := [][]byte{[]byte("b"), []byte("a"), []byte("c")}
	r2, err := TrieRoot(reordered, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	if r1 == r2 {
		t.Fatal("expected reordered leaves to change the root")
	}

	r1Again, err := TrieRoot(leaves, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r1Again {
		t.Fatal("expected identical leaf sequence to reproduce the same root")
	}
}

func TestTrieRootEmpty(t *testing.T) {
	r, err := TrieRoot(nil, hashFn)
	if err != nil {
		t.Fatal(err)
	}
	if r != EmptyRoot(hashFn) {
		t.Fatal("expected empty leaf sequence to produce the empty root")
	}
}
