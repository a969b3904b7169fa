package foliation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/nspcc-dev/attestree/pkg/io"
)

const (
	// MaxIdentifierSize is the maximum size of table name and namespace.
	MaxIdentifierSize = 64
	// MaxCommitmentSize is the maximum size of serialized table commitment.
	MaxCommitmentSize = 45328
)

// CommitmentScheme is a proof-of-sql commitment scheme used for a table
// commitment.
type CommitmentScheme byte

// Supported commitment schemes.
const (
	HyperKZG CommitmentScheme = iota
	DynamicDory
)

// ErrUnknownScheme is returned for commitment schemes not listed above.
var ErrUnknownScheme = errors.New("unknown commitment scheme")

type (
	// TableIdentifier identifies a table by its namespace and name.
	TableIdentifier struct {
		Name      []byte `json:"name"`
		Namespace []byte `json:"namespace"`
	}

	// TableCommitmentBytes is an opaque serialized table commitment.
	TableCommitmentBytes struct {
		Data []byte
	}

	// TableCommitments is a foliation of the commitments storage map, every
	// table commitment becomes a leaf.
	TableCommitments struct {
		ns leaf.Namespace
	}
)

// String implements fmt.Stringer interface.
func (s CommitmentScheme) String() string {
	switch s {
	case HyperKZG:
		return "hyperkzg"
	case DynamicDory:
		return "dynamicdory"
	default:
		return fmt.Sprintf("CommitmentScheme(%d)", byte(s))
	}
}

// ParseCommitmentScheme returns the scheme by its name.
func ParseCommitmentScheme(s string) (CommitmentScheme, error) {
	switch strings.ToLower(s) {
	case "hyperkzg":
		return HyperKZG, nil
	case "dynamicdory":
		return DynamicDory, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// EncodeBinary implements io.Serializable interface.
func (s *CommitmentScheme) EncodeBinary(w *io.BinWriter) {
	w.WriteB(byte(*s))
}

// DecodeBinary implements io.Serializable interface.
func (s *CommitmentScheme) DecodeBinary(r *io.BinReader) {
	b := r.ReadB()
	if r.Err != nil {
		return
	}
	if b > byte(DynamicDory) {
		r.Err = fmt.Errorf("%w: %d", ErrUnknownScheme, b)
		return
	}
	*s = CommitmentScheme(b)
}

// String implements fmt.Stringer interface.
func (id TableIdentifier) String() string {
	return string(id.Namespace) + "." + string(id.Name)
}

// EncodeBinary implements io.Serializable interface.
func (id *TableIdentifier) EncodeBinary(w *io.BinWriter) {
	if len(id.Name) > MaxIdentifierSize || len(id.Namespace) > MaxIdentifierSize {
		w.Err = fmt.Errorf("%w: table identifier", io.ErrTooBig)
		return
	}
	w.WriteVarBytes(id.Name)
	w.WriteVarBytes(id.Namespace)
}

// DecodeBinary implements io.Serializable interface.
func (id *TableIdentifier) DecodeBinary(r *io.BinReader) {
	id.Name = r.ReadVarBytes(MaxIdentifierSize)
	id.Namespace = r.ReadVarBytes(MaxIdentifierSize)
}

// EncodeBinary implements io.Serializable interface.
func (c *TableCommitmentBytes) EncodeBinary(w *io.BinWriter) {
	if len(c.Data) > MaxCommitmentSize {
		w.Err = fmt.Errorf("%w: %d bytes of commitment", io.ErrTooBig, len(c.Data))
		return
	}
	w.WriteVarBytes(c.Data)
}

// DecodeBinary implements io.Serializable interface.
func (c *TableCommitmentBytes) DecodeBinary(r *io.BinReader) {
	c.Data = r.ReadVarBytes(MaxCommitmentSize)
}

// CommitmentsNamespace returns the default table commitments storage map
// namespace.
func CommitmentsNamespace() leaf.Namespace {
	return leaf.NewNamespace("Commitments", "CommitmentStorageMap", leaf.Blake2_128Concat, leaf.Blake2_128Concat)
}

// NewTableCommitments creates table commitments foliation over the default
// namespace.
func NewTableCommitments() *TableCommitments {
	return NewTableCommitmentsAt(CommitmentsNamespace())
}

// NewTableCommitmentsAt creates table commitments foliation over the given
// namespace.
func NewTableCommitmentsAt(ns leaf.Namespace) *TableCommitments {
	return &TableCommitments{ns: ns}
}

// Kind implements Foliation interface.
func (t *TableCommitments) Kind() Kind { return TableCommitmentsKind }

// Namespace implements Foliation interface.
func (t *TableCommitments) Namespace() leaf.Namespace { return t.ns }

// StorageKey returns the storage key of the given table commitment.
func (t *TableCommitments) StorageKey(id TableIdentifier, scheme CommitmentScheme) ([]byte, error) {
	return leaf.StorageKeyForPrefixKeyTuple(t.ns, &id, &scheme)
}

// Decode decodes a raw storage item of the commitments map.
func (t *TableCommitments) Decode(key, value []byte) (TableIdentifier, CommitmentScheme, TableCommitmentBytes, error) {
	var (
		id     TableIdentifier
		scheme CommitmentScheme
		c      TableCommitmentBytes
	)
	err := leaf.DecodeStorageKeyAndValue(t.ns, key, value, &c, &id, &scheme)
	return id, scheme, c, err
}

// Leaf implements Foliation interface. The leaf value is the commitment
// itself, items are never skipped.
func (t *TableCommitments) Leaf(key, value []byte) (leaf.Leaf, bool, error) {
	_, _, c, err := t.Decode(key, value)
	if err != nil {
		return leaf.Leaf{}, false, err
	}
	return leaf.New(key, c.Data), true, nil
}
