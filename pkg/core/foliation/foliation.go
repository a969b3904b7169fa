/*
Package foliation turns raw storage items of attested storage maps into
attestation tree leaves.
*/
package foliation

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"go.uber.org/multierr"
)

// Kind is a foliation type, there is one per supported storage map.
type Kind byte

// Supported foliation kinds.
const (
	TableCommitmentsKind Kind = iota
	StakingLocksKind
)

type (
	// Foliation converts items of a single storage map into leaves. It must
	// not reorder or deduplicate items, that's up to the tree builder.
	Foliation interface {
		Kind() Kind
		Namespace() leaf.Namespace
		// Leaf converts the given storage item into a leaf. The item can be
		// skipped (with false returned) if it has nothing to attest.
		Leaf(key, value []byte) (leaf.Leaf, bool, error)
	}

	// Entries is a restartable source of raw storage items, the same as
	// storage Seek. Key and value are valid until the next call to f.
	Entries func(f func(k, v []byte) bool)

	// Item is a raw storage item.
	Item struct {
		Key   []byte
		Value []byte
	}
)

// String implements fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case TableCommitmentsKind:
		return "table-commitments"
	case StakingLocksKind:
		return "staking-locks"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// ParseKind returns the foliation kind by its name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "table-commitments", "commitments":
		return TableCommitmentsKind, nil
	case "staking-locks", "locks":
		return StakingLocksKind, nil
	default:
		return 0, fmt.Errorf("unknown foliation kind: %q", s)
	}
}

// New creates a foliation of the given kind over the default namespace of
// this kind. Contract is only used by staking locks.
func New(k Kind, contract ContractInfo) (Foliation, error) {
	switch k {
	case TableCommitmentsKind:
		return NewTableCommitments(), nil
	case StakingLocksKind:
		return NewStakingLocks(contract), nil
	default:
		return nil, fmt.Errorf("unknown foliation kind: %s", k)
	}
}

// Items returns Entries iterating over the given items in order.
func Items(items ...Item) Entries {
	return func(f func(k, v []byte) bool) {
		for _, it := range items {
			if !f(it.Key, it.Value) {
				return
			}
		}
	}
}

// Foliate runs f over all the entries and returns the leaves in the entries
// order. Every item is checked, all decoding errors are combined into the
// returned one and no leaves are returned in this case.
func Foliate(f Foliation, entries Entries) ([]leaf.Leaf, error) {
	var (
		leaves []leaf.Leaf
		err    error
	)
	entries(func(k, v []byte) bool {
		l, ok, lErr := f.Leaf(k, v)
		if lErr != nil {
			err = multierr.Append(err, lErr)
			return true
		}
		if ok {
			leaves = append(leaves, l)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return leaves, nil
}
