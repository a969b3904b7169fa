/*
Package attestation implements attestation trees: deterministic binary Merkle
trees over storage leaves and paired inclusion proofs for them.

Leaves are sorted by their storage keys, level 0 of the tree is the sequence
of leaf hashes. Every next level is made by hashing adjacent pairs of nodes,
the last node of an odd-sized level is promoted to the next level as is. The
only node of the last level is the root.
*/
package attestation

import (
	"bytes"
	"slices"

	"github.com/nspcc-dev/attestree/pkg/core/foliation"
	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/util"
)

type (
	// Tree is an attestation tree. It's immutable once built.
	Tree struct {
		leaves []leaf.Leaf
		levels [][]util.Uint256
	}

	// Prefix is a single attested storage map, its foliation and raw
	// storage items.
	Prefix struct {
		Foliation foliation.Foliation
		Entries   foliation.Entries
	}
)

// New builds a tree from the given leaves. Leaves can be passed in any order,
// but their keys must be unique.
func New(leaves []leaf.Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	sorted := slices.Clone(leaves)
	slices.SortStableFunc(sorted, leaf.Compare)
	for i := 1; i < len(sorted); i++ {
		if bytes.Equal(sorted[i-1].Key, sorted[i].Key) {
			return nil, &DuplicateKeyError{Key: bytes.Clone(sorted[i].Key)}
		}
	}

	level := make([]util.Uint256, len(sorted))
	for i := range sorted {
		level[i] = sorted[i].Hash
	}
	levels := [][]util.Uint256{level}
	for len(level) > 1 {
		next := make([]util.Uint256, (len(level)+1)/2)
		for i := range next {
			if 2*i+1 < len(level) {
				next[i] = hash.Node(level[2*i], level[2*i+1])
			} else {
				next[i] = level[2*i]
			}
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{leaves: sorted, levels: levels}, nil
}

// FromPrefixes foliates items of all the given storage maps and builds a
// tree of the resulting leaves. All items of the same map are checked
// before returning *FoliationError. Maps must not overlap.
func FromPrefixes(prefixes []Prefix) (*Tree, error) {
	var leaves []leaf.Leaf
	for _, p := range prefixes {
		ls, err := foliation.Foliate(p.Foliation, p.Entries)
		if err != nil {
			return nil, &FoliationError{Kind: p.Foliation.Kind(), Err: err}
		}
		leaves = append(leaves, ls...)
	}
	return New(leaves)
}

// Root returns the root hash of the tree.
func (t *Tree) Root() util.Uint256 {
	if t.isEmpty() {
		return util.Uint256{}
	}
	return t.levels[len(t.levels)-1][0]
}

// LeafCount returns the number of leaves in the tree.
func (t *Tree) LeafCount() int {
	if t == nil {
		return 0
	}
	return len(t.leaves)
}

// Leaves returns tree leaves sorted by key. The result must not be modified.
func (t *Tree) Leaves() []leaf.Leaf {
	if t == nil {
		return nil
	}
	return t.leaves
}

// Levels returns all tree levels starting with leaf hashes and ending with
// the root. The result must not be modified.
func (t *Tree) Levels() [][]util.Uint256 {
	if t == nil {
		return nil
	}
	return t.levels
}

// Index returns the position of the leaf with the given key.
func (t *Tree) Index(key []byte) (int, bool) {
	if t == nil {
		return 0, false
	}
	return slices.BinarySearchFunc(t.leaves, key, func(l leaf.Leaf, k []byte) int {
		return bytes.Compare(l.Key, k)
	})
}

func (t *Tree) isEmpty() bool {
	return t == nil || len(t.leaves) == 0 || len(t.levels) == 0
}

// sibling returns the sibling of the node at the given position of the level
// or false if the node is promoted.
func sibling(level []util.Uint256, index uint32) (util.Uint256, bool) {
	s := index ^ 1
	if int(s) >= len(level) {
		return util.Uint256{}, false
	}
	return level[s], true
}

// parent returns the hash of the parent of the node at the given position.
// Siblings are consumed from the path unless the node is promoted, false
// is returned if the path is too short.
func parent(h util.Uint256, index, width uint32, path []util.Uint256) (util.Uint256, []util.Uint256, bool) {
	if index^1 >= width {
		return h, path, true
	}
	if len(path) == 0 {
		return h, path, false
	}
	if index%2 == 0 {
		return hash.Node(h, path[0]), path[1:], true
	}
	return hash.Node(path[0], h), path[1:], true
}
