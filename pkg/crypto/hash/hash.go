/*
Package hash contains the hash functions used by attestation trees and
substrate storage keys.
*/
package hash

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/nspcc-dev/attestree/pkg/util"
	"golang.org/x/crypto/blake2b"
)

// Domain separation tags for tree hashing. Changing any of them invalidates
// all previously issued proofs.
var (
	LeafTag = []byte("leaf")
	NodeTag = []byte("node")
)

// Keccak256 hashes the incoming byte slices using the legacy (Ethereum)
// Keccak-256 algorithm.
func Keccak256(data ...[]byte) util.Uint256 {
	var h util.Uint256
	copy(h[:], crypto.Keccak256(data...))
	return h
}

// Blake2b128 returns 16-byte BLAKE2b digest of data.
func Blake2b128(data []byte) []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		panic(err) // Only possible for invalid size/key.
	}
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Blake2b512 returns 64-byte BLAKE2b digest of data.
func Blake2b512(data []byte) []byte {
	h := blake2b.Sum512(data)
	return h[:]
}

// Twox64 returns 8-byte xxHash64 digest of data with substrate byte order.
func Twox64(data []byte) []byte {
	h := xxhash.New64(nil)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Twox128 returns 16-byte digest made of two xxHash64 runs with seeds 0 and 1,
// the way substrate hashes pallet and storage item names.
func Twox128(data []byte) []byte {
	h := xxhash.New128(nil)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Leaf returns the hash of a tree leaf made of the given storage key and
// value. The key is length-prefixed so that key/value boundary can't be
// shifted.
func Leaf(key, value []byte) util.Uint256 {
	return Keccak256(LeafTag, io.PutVarUint(uint64(len(key))), key, value)
}

// Node returns the hash of an inner tree node with the given children.
func Node(left, right util.Uint256) util.Uint256 {
	return Keccak256(NodeTag, left[:], right[:])
}
