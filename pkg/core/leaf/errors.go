package leaf

import (
	"errors"
	"fmt"
)

// Storage item decoding errors.
var (
	// ErrPrefixMismatch is returned when the key doesn't begin with the
	// namespace prefix.
	ErrPrefixMismatch = errors.New("unexpected storage prefix")
	// ErrKeyTooShort is returned when the key suffix is truncated.
	ErrKeyTooShort = errors.New("storage key is too short")
	// ErrMalformedKey is returned when the key suffix can't be decoded into
	// the namespace key tuple (including unexpected trailing bytes).
	ErrMalformedKey = errors.New("malformed storage key")
	// ErrMalformedValue is returned when the value can't be decoded into
	// the namespace value (including unexpected trailing bytes).
	ErrMalformedValue = errors.New("malformed storage value")
	// ErrKeyArity is returned when the number of key components doesn't
	// match the number of namespace hashers.
	ErrKeyArity = errors.New("key tuple arity mismatch")
)

// DecodeError describes a storage item that can't be decoded.
type DecodeError struct {
	Key []byte
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode storage item %x: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
