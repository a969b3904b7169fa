package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidHeight is returned when the stored height record is malformed.
var ErrInvalidHeight = errors.New("invalid height record")

// Version attempts to get the current version stored in the
// underlying store.
func Version(r Reader) (string, error) {
	version, err := r.Get(SYSVersion.Bytes())
	return string(version), err
}

// PutVersion stores the given version in the underlying store.
func PutVersion(s Store, v string) error {
	return s.PutChangeSet(map[string][]byte{
		string(SYSVersion.Bytes()): []byte(v),
	})
}

// CurrentHeight returns the height of the chain state snapshot kept in the
// store.
func CurrentHeight(r Reader) (uint32, error) {
	b, err := r.Get(SYSCurrentBlock.Bytes())
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidHeight, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ChainStateKey returns the store key for the given substrate storage key.
func ChainStateKey(key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = byte(STStorage)
	copy(k[1:], key)
	return k
}

// AttestationKey returns the store key for the attestation made at the
// given height.
func AttestationKey(height uint32) []byte {
	k := make([]byte, 5)
	k[0] = byte(DataAttestation)
	binary.BigEndian.PutUint32(k[1:], height)
	return k
}

// PutCurrentHeight stores the height of the chain state snapshot.
func PutCurrentHeight(s Store, height uint32) error {
	return s.PutChangeSet(map[string][]byte{
		string(SYSCurrentBlock.Bytes()): heightBytes(height),
	})
}

func heightBytes(height uint32) []byte {
	h := make([]byte, 4)
	binary.LittleEndian.PutUint32(h, height)
	return h
}

// PutChainState atomically stores the given substrate storage items (nil
// values delete items) and updates the current height.
func PutChainState(s Store, items map[string][]byte, height uint32) error {
	puts := make(map[string][]byte, len(items)+1)
	for k, v := range items {
		puts[string(ChainStateKey([]byte(k)))] = v
	}
	puts[string(SYSCurrentBlock.Bytes())] = heightBytes(height)
	return s.PutChangeSet(puts)
}

// SeekChainState iterates over substrate storage items with the given key
// prefix. Keys passed to f are substrate storage keys (without STStorage
// prefix), they're only valid until the next call to f.
func SeekChainState(r Reader, prefix []byte, f func(k, v []byte) bool) {
	r.Seek(SeekRange{Prefix: ChainStateKey(prefix)}, func(k, v []byte) bool {
		return f(k[1:], v)
	})
}
