package trie

import (
	"fmt"

	"wingchain.dev/node/codec"
)

type nodeTag byte

const (
	tagEmpty     nodeTag = 0x00
	tagLeaf      nodeTag = 0x01
	tagExtension nodeTag = 0x02
	tagBranch    nodeTag = 0x03
)

// node is the in-memory representation of one trie node. Exactly one of
// the leaf/extension/branch shapes is populated per node; nodes are
// immutable once built and are always addressed by the hash of their
// canonical encoding.
type node struct {
	tag nodeTag

	// leaf / extension
	keyPart  []byte // nibbles, terminated for leaf, unterminated for extension
	value    []byte // leaf value
	child    [32]byte
	hasChild bool

	// branch
	children    [16]*[32]byte
	branchValue []byte
}

func encodeNode(n *node) []byte {
	switch n.tag {
	case tagLeaf:
		out := []byte{byte(tagLeaf)}
		out = codec.AppendBytes(out, compactEncode(n.keyPart))
		out = codec.AppendBytes(out, n.value)
		return out
	case tagExtension:
		out := []byte{byte(tagExtension)}
		out = codec.AppendBytes(out, compactEncode(n.keyPart))
		out = append(out, n.child[:]...)
		return out
	case tagBranch:
		out := []byte{byte(tagBranch)}
		for _, c := range n.children {
			if c == nil {
				out = append(out, 0)
			} else {
				out = append(out, 1)
				out = append(out, c[:]...)
			}
		}
		if n.branchValue == nil {
			out = append(out, 0)
		} else {
			out = append(out, 1)
			out = codec.AppendBytes(out, n.branchValue)
		}
		return out
	default:
		return []byte{byte(tagEmpty)}
	}
}

func decodeNode(b []byte) (*node, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("trie: empty node encoding")
	}
	c := codec.NewCursor(b[1:])
	switch nodeTag(b[0]) {
	case tagEmpty:
		return &node{tag: tagEmpty}, nil
	case tagLeaf:
		kp, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		val, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		return &node{tag: tagLeaf, keyPart: compactDecode(kp), value: val}, nil
	case tagExtension:
		kp, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		childBytes, err := c.ReadBytesExact(32)
		if err != nil {
			return nil, err
		}
		var child [32]byte
		copy(child[:], childBytes)
		return &node{tag: tagExtension, keyPart: compactDecode(kp), child: child, hasChild: true}, nil
	case tagBranch:
		n := &node{tag: tagBranch}
		for i := 0; i < 16; i++ {
			present, err := c.ReadU8()
			if err != nil {
				return nil, err
			}
			if present == 1 {
				hb, err := c.ReadBytesExact(32)
				if err != nil {
					return nil, err
				}
				var h [32]byte
				copy(h[:], hb)
				n.children[i] = &h
			}
		}
		present, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		if present == 1 {
			v, err := c.ReadBytes()
			if err != nil {
				return nil, err
			}
			n.branchValue = v
		}
		return n, nil
	default:
		return nil, fmt.Errorf("trie: unknown node tag %d", b[0])
	}
}
