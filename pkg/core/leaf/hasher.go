package leaf

import (
	"fmt"

	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
)

// Hasher is a reversible substrate storage map key hasher.
type Hasher byte

// Supported hashers. Non-concat hashers (Blake2_128, Twox128) can't be
// reversed and thus can't be used for attested maps.
const (
	Identity Hasher = iota
	Blake2_128Concat
	Twox64Concat
)

// String implements fmt.Stringer interface.
func (h Hasher) String() string {
	switch h {
	case Identity:
		return "Identity"
	case Blake2_128Concat:
		return "Blake2_128Concat"
	case Twox64Concat:
		return "Twox64Concat"
	default:
		return fmt.Sprintf("Hasher(%d)", byte(h))
	}
}

// Size returns the length of digest prepended to the encoded key component.
func (h Hasher) Size() int {
	switch h {
	case Blake2_128Concat:
		return 16
	case Twox64Concat:
		return 8
	default:
		return 0
	}
}

// Hash returns the storage key part for the given encoded key component.
func (h Hasher) Hash(enc []byte) []byte {
	var digest []byte
	switch h {
	case Blake2_128Concat:
		digest = hash.Blake2b128(enc)
	case Twox64Concat:
		digest = hash.Twox64(enc)
	}
	res := make([]byte, 0, len(digest)+len(enc))
	res = append(res, digest...)
	return append(res, enc...)
}

// IsValid checks whether h is a known hasher.
func (h Hasher) IsValid() bool {
	return h <= Twox64Concat
}
