/*
Package leaf implements canonical conversion between typed substrate storage
map items and raw storage keys and values, as well as attestation tree leaf
construction.
*/
package leaf

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	goio "io"

	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/io"
)

// PrefixSize is the size of storage map prefix.
const PrefixSize = 32

// Prefix is a storage map prefix, twox128(pallet) ++ twox128(storage).
type Prefix []byte

// Namespace describes the layout of a storage map: its prefix and hashers
// used for every key tuple component.
type Namespace struct {
	Pallet  string
	Storage string
	Prefix  Prefix
	Hashers []Hasher
}

// NewPrefix returns storage prefix of the given pallet storage item.
func NewPrefix(pallet, storage string) Prefix {
	p := make([]byte, 0, PrefixSize)
	p = append(p, hash.Twox128([]byte(pallet))...)
	return append(p, hash.Twox128([]byte(storage))...)
}

// String returns hex representation of the prefix.
func (p Prefix) String() string {
	return hex.EncodeToString(p)
}

// NewNamespace creates a namespace for the given storage map.
func NewNamespace(pallet, storage string, hashers ...Hasher) Namespace {
	return Namespace{
		Pallet:  pallet,
		Storage: storage,
		Prefix:  NewPrefix(pallet, storage),
		Hashers: hashers,
	}
}

// String implements fmt.Stringer interface.
func (ns Namespace) String() string {
	return ns.Pallet + "." + ns.Storage
}

// StorageKeyForPrefixKeyTuple returns the full storage key for the given
// strongly-typed key tuple. Every component is SCALE-encoded and hashed with
// the corresponding namespace hasher.
func StorageKeyForPrefixKeyTuple(ns Namespace, key ...io.Serializable) ([]byte, error) {
	if len(key) != len(ns.Hashers) {
		return nil, fmt.Errorf("%w: %d components for %d hashers", ErrKeyArity, len(key), len(ns.Hashers))
	}
	res := bytes.Clone(ns.Prefix)
	for i, k := range key {
		enc, err := io.ToByteArray(k)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key component %d: %w", i, err)
		}
		res = append(res, ns.Hashers[i].Hash(enc)...)
	}
	return res, nil
}

// DecodeStorageKeyAndValue is the inverse of StorageKeyForPrefixKeyTuple.
// It decodes rawKey into the given key tuple components and rawValue into
// value. Both must be consumed completely. Errors are *DecodeError wrapping
// one of ErrPrefixMismatch, ErrKeyTooShort, ErrMalformedKey,
// ErrMalformedValue or ErrKeyArity.
func DecodeStorageKeyAndValue(ns Namespace, rawKey, rawValue []byte, value io.Serializable, key ...io.Serializable) error {
	err := decodeStorageKeyAndValue(ns, rawKey, rawValue, value, key)
	if err != nil {
		return &DecodeError{Key: rawKey, Err: err}
	}
	return nil
}

func decodeStorageKeyAndValue(ns Namespace, rawKey, rawValue []byte, value io.Serializable, key []io.Serializable) error {
	if len(key) != len(ns.Hashers) {
		return fmt.Errorf("%w: %d components for %d hashers", ErrKeyArity, len(key), len(ns.Hashers))
	}
	suffix, ok := bytes.CutPrefix(rawKey, ns.Prefix)
	if !ok {
		return ErrPrefixMismatch
	}
	for i := range key {
		var err error
		suffix, err = decodeKeyComponent(ns.Hashers[i], suffix, key[i])
		if err != nil {
			return fmt.Errorf("component %d: %w", i, err)
		}
	}
	if len(suffix) != 0 {
		return fmt.Errorf("%w: %d unexpected bytes", ErrMalformedKey, len(suffix))
	}
	if value == nil {
		return nil
	}
	err := io.FromByteArray(value, rawValue)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	return nil
}

// decodeKeyComponent decodes a single key tuple component from the data and
// returns the rest of it.
func decodeKeyComponent(h Hasher, data []byte, component io.Serializable) ([]byte, error) {
	if !h.IsValid() {
		return nil, fmt.Errorf("%w: unknown hasher %s", ErrMalformedKey, h)
	}
	hl := h.Size()
	if len(data) < hl {
		return nil, ErrKeyTooShort
	}
	r := io.NewBinReaderFromBuf(data[hl:])
	component.DecodeBinary(r)
	if r.Err != nil {
		if errors.Is(r.Err, goio.EOF) || errors.Is(r.Err, goio.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrKeyTooShort, r.Err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, r.Err)
	}
	end := len(data) - r.Len()
	enc, err := io.ToByteArray(component)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if !bytes.Equal(h.Hash(enc), data[:end]) {
		return nil, fmt.Errorf("%w: non-canonical component or hash mismatch", ErrMalformedKey)
	}
	return data[end:], nil
}
