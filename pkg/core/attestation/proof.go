package attestation

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/nspcc-dev/attestree/pkg/util"
)

// MaxPathLength is the maximum number of siblings in the proof, it's the
// height of the tree with math.MaxUint32 leaves.
const MaxPathLength = 32

type (
	// Proof is an inclusion proof for a pair of leaves. Siblings below the
	// level where leaf paths meet are kept per-leaf, the rest of them are
	// shared. Proof of a single leaf has equal First and Second with all the
	// siblings being shared.
	Proof struct {
		LeafCount uint32
		First     ProofLeaf
		Second    ProofLeaf
		Shared    []util.Uint256
	}

	// ProofLeaf is a proved leaf along with its position and siblings up to
	// the level where its path meets the other leaf path.
	ProofLeaf struct {
		Key   []byte
		Hash  util.Uint256
		Index uint32
		Path  []util.Uint256
	}

	proofAux struct {
		LeafCount uint32         `json:"leaves"`
		First     ProofLeaf      `json:"first"`
		Second    ProofLeaf      `json:"second"`
		Shared    []util.Uint256 `json:"shared"`
	}

	proofLeafAux struct {
		Key   string         `json:"key"`
		Hash  util.Uint256   `json:"hash"`
		Index uint32         `json:"index"`
		Path  []util.Uint256 `json:"path"`
	}
)

// ProveLeaf returns a proof for the leaf with the given key.
func (t *Tree) ProveLeaf(key []byte) (*Proof, error) {
	return t.ProveLeafPair(key, key)
}

// ProveLeafPair returns a proof for both leaves with the given keys. Keys
// can be equal or passed in any order.
func (t *Tree) ProveLeafPair(key1, key2 []byte) (*Proof, error) {
	if t.isEmpty() {
		return nil, ErrEmptyTree
	}
	i1, ok := t.Index(key1)
	if !ok {
		return nil, &LeafNotFoundError{Key: bytes.Clone(key1)}
	}
	i2, ok := t.Index(key2)
	if !ok {
		return nil, &LeafNotFoundError{Key: bytes.Clone(key2)}
	}

	var (
		a, b   = uint32(i1), uint32(i2)
		pa, pb []util.Uint256
		shared []util.Uint256
	)
	for _, level := range t.levels[:len(t.levels)-1] {
		if a == b {
			if s, ok := sibling(level, a); ok {
				shared = append(shared, s)
			}
		} else {
			if s, ok := sibling(level, a); ok {
				pa = append(pa, s)
			}
			if s, ok := sibling(level, b); ok {
				pb = append(pb, s)
			}
		}
		a, b = a/2, b/2
	}
	return &Proof{
		LeafCount: uint32(len(t.leaves)),
		First: ProofLeaf{
			Key:   bytes.Clone(t.leaves[i1].Key),
			Hash:  t.leaves[i1].Hash,
			Index: uint32(i1),
			Path:  pa,
		},
		Second: ProofLeaf{
			Key:   bytes.Clone(t.leaves[i2].Key),
			Hash:  t.leaves[i2].Hash,
			Index: uint32(i2),
			Path:  pb,
		},
		Shared: shared,
	}, nil
}

// Verify checks the proof against the given root. It returns nil for valid
// proofs and an error wrapping ErrInvalidProof otherwise.
func Verify(p *Proof, root util.Uint256) error {
	if p == nil {
		return fmt.Errorf("%w: nil proof", ErrInvalidProof)
	}
	if p.First.Index >= p.LeafCount || p.Second.Index >= p.LeafCount {
		return fmt.Errorf("%w: leaf index out of range", ErrInvalidProof)
	}
	cmp := bytes.Compare(p.First.Key, p.Second.Key)
	switch {
	case p.First.Index == p.Second.Index:
		if cmp != 0 || p.First.Hash != p.Second.Hash || len(p.First.Path) != 0 || len(p.Second.Path) != 0 {
			return fmt.Errorf("%w: inconsistent LCA", ErrInvalidProof)
		}
	case cmp == 0 || (p.First.Index < p.Second.Index) != (cmp < 0):
		return fmt.Errorf("%w: inconsistent LCA, key order doesn't match positions", ErrInvalidProof)
	}

	var (
		width  = p.LeafCount
		a, b   = p.First.Index, p.Second.Index
		ha, hb = p.First.Hash, p.Second.Hash
		pa, pb = p.First.Path, p.Second.Path
		shared = p.Shared
		okA    bool
		okB    bool
	)
	for width > 1 {
		if a == b {
			rest := shared
			ha, shared, okA = parent(ha, a, width, rest)
			hb, _, okB = parent(hb, b, width, rest)
		} else {
			ha, pa, okA = parent(ha, a, width, pa)
			hb, pb, okB = parent(hb, b, width, pb)
		}
		if !okA || !okB {
			return fmt.Errorf("%w: sibling count is too small for position", ErrInvalidProof)
		}
		a, b = a/2, b/2
		width = width/2 + width%2
	}
	if len(pa) != 0 || len(pb) != 0 || len(shared) != 0 {
		return fmt.Errorf("%w: sibling count is too big for position", ErrInvalidProof)
	}
	if ha != hb {
		return fmt.Errorf("%w: pair roots disagree", ErrInvalidProof)
	}
	if ha != root {
		return fmt.Errorf("%w: root mismatch", ErrInvalidProof)
	}
	return nil
}

// Verify is a boolean form of Verify.
func (p *Proof) Verify(root util.Uint256) bool {
	return Verify(p, root) == nil
}

// Matches checks that the leaf hash is made of its key and the given value.
func (l *ProofLeaf) Matches(value []byte) bool {
	return hash.Leaf(l.Key, value) == l.Hash
}

// EncodeBinary implements io.Serializable interface.
func (p *Proof) EncodeBinary(w *io.BinWriter) {
	w.WriteU32LE(p.LeafCount)
	p.First.EncodeBinary(w)
	p.Second.EncodeBinary(w)
	writeHashes(w, p.Shared)
}

// DecodeBinary implements io.Serializable interface.
func (p *Proof) DecodeBinary(r *io.BinReader) {
	p.LeafCount = r.ReadU32LE()
	p.First.DecodeBinary(r)
	p.Second.DecodeBinary(r)
	p.Shared = readHashes(r)
}

// EncodeBinary implements io.Serializable interface.
func (l *ProofLeaf) EncodeBinary(w *io.BinWriter) {
	w.WriteVarBytes(l.Key)
	l.Hash.EncodeBinary(w)
	w.WriteU32LE(l.Index)
	writeHashes(w, l.Path)
}

// DecodeBinary implements io.Serializable interface.
func (l *ProofLeaf) DecodeBinary(r *io.BinReader) {
	l.Key = r.ReadVarBytes(math.MaxUint16)
	l.Hash.DecodeBinary(r)
	l.Index = r.ReadU32LE()
	l.Path = readHashes(r)
}

func writeHashes(w *io.BinWriter, hs []util.Uint256) {
	w.WriteVarUint(uint64(len(hs)))
	for i := range hs {
		hs[i].EncodeBinary(w)
	}
}

func readHashes(r *io.BinReader) []util.Uint256 {
	n := r.ReadVarUint()
	if r.Err != nil {
		return nil
	}
	if n > MaxPathLength {
		r.Err = fmt.Errorf("%w: %d hashes in path", io.ErrTooBig, n)
		return nil
	}
	if n == 0 {
		return nil
	}
	hs := make([]util.Uint256, n)
	for i := range hs {
		hs[i].DecodeBinary(r)
	}
	return hs
}

// MarshalJSON implements the json.Marshaler interface.
func (p Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofAux{
		LeafCount: p.LeafCount,
		First:     p.First,
		Second:    p.Second,
		Shared:    nonNil(p.Shared),
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var aux proofAux
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Shared) > MaxPathLength {
		return errors.New("shared path is too long")
	}
	p.LeafCount = aux.LeafCount
	p.First = aux.First
	p.Second = aux.Second
	p.Shared = nilIfEmpty(aux.Shared)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (l ProofLeaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofLeafAux{
		Key:   hex.EncodeToString(l.Key),
		Hash:  l.Hash,
		Index: l.Index,
		Path:  nonNil(l.Path),
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (l *ProofLeaf) UnmarshalJSON(data []byte) error {
	var aux proofLeafAux
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	key, err := hex.DecodeString(aux.Key)
	if err != nil {
		return fmt.Errorf("bad key: %w", err)
	}
	if len(aux.Path) > MaxPathLength {
		return errors.New("path is too long")
	}
	l.Key = key
	l.Hash = aux.Hash
	l.Index = aux.Index
	l.Path = nilIfEmpty(aux.Path)
	return nil
}

func nonNil(hs []util.Uint256) []util.Uint256 {
	if hs == nil {
		return []util.Uint256{}
	}
	return hs
}

func nilIfEmpty(hs []util.Uint256) []util.Uint256 {
	if len(hs) == 0 {
		return nil
	}
	return hs
}
