package state

import (
	"math/rand"
	"testing"

	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/internal/random"
	"github.com/nspcc-dev/attestree/pkg/internal/testserdes"
	"github.com/stretchr/testify/require"
)

func testAttestation() *Attestation {
	return &Attestation{
		Version:   AttestationVersion,
		Height:    rand.Uint32(),
		Root:      random.Uint256(),
		LeafCount: rand.Uint32(),
		Timestamp: rand.Uint64(),
	}
}

func TestAttestation_Serializable(t *testing.T) {
	a := testAttestation()
	testserdes.EncodeDecodeBinary(t, a, new(Attestation))
	testserdes.MarshalUnmarshalJSON(t, a, new(Attestation))
}

func TestAttestation_SignedPart(t *testing.T) {
	a := testAttestation()
	part := a.GetSignedPart()
	require.Len(t, part, 1+4+32+4)
	require.Equal(t, hash.Keccak256(part), a.Hash())

	b := *a
	b.Timestamp++
	require.Equal(t, a.Hash(), b.Hash())

	b.LeafCount++
	require.NotEqual(t, a.Hash(), b.Hash())
}
