/*
Package address implements SS58 account address encoding.
*/
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
)

const (
	// DefaultPrefix is the generic substrate SS58 network prefix.
	DefaultPrefix uint16 = 42
	// AccountIDSize is the size of the account public key.
	AccountIDSize = 32

	maxPrefix    = 16383
	checksumSize = 2
)

// Prefix is the network prefix used to encode addresses. It defaults to
// the generic substrate one, but can be overridden.
var Prefix = DefaultPrefix

var (
	ssPrefix = []byte("SS58PRE")

	// ErrInvalidAddress is returned for malformed address strings.
	ErrInvalidAddress = errors.New("invalid SS58 address")
	// ErrChecksum is returned for addresses with wrong checksum.
	ErrChecksum = errors.New("SS58 checksum mismatch")
)

// AccountIDToString returns the address of the given account ID with the
// current Prefix.
func AccountIDToString(id [AccountIDSize]byte) string {
	return EncodeWithPrefix(id, Prefix)
}

// EncodeWithPrefix returns the address of the given account ID with the
// given network prefix (0..16383).
func EncodeWithPrefix(id [AccountIDSize]byte, prefix uint16) string {
	var b []byte
	prefix &= maxPrefix
	if prefix < 64 {
		b = []byte{byte(prefix)}
	} else {
		b = []byte{
			byte((prefix&0b1111_1100)>>2) | 0b0100_0000,
			byte(prefix>>8) | byte(prefix&0b11)<<6,
		}
	}
	b = append(b, id[:]...)
	b = append(b, checksum(b)...)
	return base58.Encode(b)
}

// StringToAccountID decodes the given address with the current Prefix.
func StringToAccountID(s string) (id [AccountIDSize]byte, err error) {
	id, prefix, err := Decode(s)
	if err != nil {
		return id, err
	}
	if prefix != Prefix {
		return id, fmt.Errorf("%w: network prefix %d, expected %d", ErrInvalidAddress, prefix, Prefix)
	}
	return id, nil
}

// Decode decodes the given address and returns the account ID along with
// the network prefix.
func Decode(s string) (id [AccountIDSize]byte, prefix uint16, err error) {
	b, err := base58.Decode(s)
	if err != nil {
		return id, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) == 0 {
		return id, 0, ErrInvalidAddress
	}
	var prefixLen int
	switch {
	case b[0] < 64:
		prefixLen = 1
		prefix = uint16(b[0])
	case b[0] < 128 && len(b) > 1:
		prefixLen = 2
		lower := b[0]<<2 | b[1]>>6
		upper := b[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
	default:
		return id, 0, fmt.Errorf("%w: bad prefix byte %d", ErrInvalidAddress, b[0])
	}
	if len(b) != prefixLen+AccountIDSize+checksumSize {
		return id, 0, fmt.Errorf("%w: bad length %d", ErrInvalidAddress, len(b))
	}
	payload := b[:prefixLen+AccountIDSize]
	if !bytes.Equal(checksum(payload), b[len(payload):]) {
		return id, 0, ErrChecksum
	}
	copy(id[:], payload[prefixLen:])
	return id, prefix, nil
}

func checksum(payload []byte) []byte {
	data := make([]byte, 0, len(ssPrefix)+len(payload))
	data = append(data, ssPrefix...)
	data = append(data, payload...)
	return hash.Blake2b512(data)[:checksumSize]
}
