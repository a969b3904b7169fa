package attestation

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/attestree/pkg/core/foliation"
)

var (
	// ErrNoLeaves is returned when there is nothing to build a tree from.
	ErrNoLeaves = errors.New("no leaves to attest")
	// ErrEmptyTree is returned when a proof is requested from an empty tree.
	ErrEmptyTree = errors.New("empty tree")
	// ErrLeafNotFound is returned when a proof is requested for the key that
	// is not in the tree.
	ErrLeafNotFound = errors.New("leaf not found")
	// ErrDuplicateKey is returned when two leaves have the same key.
	ErrDuplicateKey = errors.New("duplicate leaf key")
	// ErrInvalidProof is returned by Verify for proofs not matching the root.
	ErrInvalidProof = errors.New("invalid proof")
)

// DuplicateKeyError is returned when two leaves have the same key.
type DuplicateKeyError struct {
	Key []byte
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%v: %x", ErrDuplicateKey, e.Key)
}

// Unwrap returns ErrDuplicateKey.
func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// LeafNotFoundError is returned when a proof is requested for the key that
// is not in the tree.
type LeafNotFoundError struct {
	Key []byte
}

// Error implements the error interface.
func (e *LeafNotFoundError) Error() string {
	return fmt.Sprintf("%v: %x", ErrLeafNotFound, e.Key)
}

// Unwrap returns ErrLeafNotFound.
func (e *LeafNotFoundError) Unwrap() error {
	return ErrLeafNotFound
}

// FoliationError wraps all storage items decoding errors of a single
// foliation.
type FoliationError struct {
	Kind foliation.Kind
	Err  error
}

// Error implements the error interface.
func (e *FoliationError) Error() string {
	return fmt.Sprintf("%s foliation failed: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *FoliationError) Unwrap() error {
	return e.Err
}
