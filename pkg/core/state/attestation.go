package state

import (
	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/nspcc-dev/attestree/pkg/util"
)

// AttestationVersion is the current attestation record format version.
const AttestationVersion byte = 0

// Attestation is an attestation tree root made over the chain state at
// some height.
type Attestation struct {
	Version   byte         `json:"version"`
	Height    uint32       `json:"height"`
	Root      util.Uint256 `json:"root"`
	LeafCount uint32       `json:"leaves"`
	// Timestamp is the creation time in milliseconds, it's not a part of
	// the signed data.
	Timestamp uint64 `json:"timestamp"`
}

// GetSignedPart returns the part of Attestation which can be signed by
// an attestor.
func (a *Attestation) GetSignedPart() []byte {
	buf := io.NewBufBinWriter()
	a.EncodeBinaryUnsigned(buf.BinWriter)
	return buf.Bytes()
}

// Hash returns Keccak256 hash of the signed part of a.
func (a *Attestation) Hash() util.Uint256 {
	return hash.Keccak256(a.GetSignedPart())
}

// DecodeBinaryUnsigned decodes hashable part of the attestation.
func (a *Attestation) DecodeBinaryUnsigned(r *io.BinReader) {
	a.Version = r.ReadB()
	a.Height = r.ReadU32LE()
	a.Root.DecodeBinary(r)
	a.LeafCount = r.ReadU32LE()
}

// EncodeBinaryUnsigned encodes hashable part of the attestation.
func (a *Attestation) EncodeBinaryUnsigned(w *io.BinWriter) {
	w.WriteB(a.Version)
	w.WriteU32LE(a.Height)
	a.Root.EncodeBinary(w)
	w.WriteU32LE(a.LeafCount)
}

// DecodeBinary implements io.Serializable.
func (a *Attestation) DecodeBinary(r *io.BinReader) {
	a.DecodeBinaryUnsigned(r)
	a.Timestamp = r.ReadU64LE()
}

// EncodeBinary implements io.Serializable.
func (a *Attestation) EncodeBinary(w *io.BinWriter) {
	a.EncodeBinaryUnsigned(w)
	w.WriteU64LE(a.Timestamp)
}
