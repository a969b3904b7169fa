package address

import (
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/attestree/pkg/internal/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceHex  = "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

func alice(t *testing.T) [AccountIDSize]byte {
	var id [AccountIDSize]byte
	b, err := hex.DecodeString(aliceHex)
	require.NoError(t, err)
	copy(id[:], b)
	return id
}

func TestAccountIDToString(t *testing.T) {
	id := alice(t)
	assert.Equal(t, aliceSS58, AccountIDToString(id))

	actual, err := StringToAccountID(aliceSS58)
	require.NoError(t, err)
	assert.Equal(t, id, actual)
}

func TestEncodeDecodePrefixes(t *testing.T) {
	for _, prefix := range []uint16{0, 2, 42, 63, 64, 255, 1028, 16383} {
		var id [AccountIDSize]byte
		random.Fill(id[:])

		s := EncodeWithPrefix(id, prefix)
		actual, p, err := Decode(s)
		require.NoError(t, err, prefix)
		assert.Equal(t, id, actual)
		assert.Equal(t, prefix, p)
	}
}

func TestDecodeErrors(t *testing.T) {
	id := alice(t)

	t.Run("bad base58", func(t *testing.T) {
		_, _, err := Decode("0OIl")
		require.ErrorIs(t, err, ErrInvalidAddress)
	})
	t.Run("empty", func(t *testing.T) {
		_, _, err := Decode("")
		require.ErrorIs(t, err, ErrInvalidAddress)
	})
	t.Run("bad length", func(t *testing.T) {
		_, _, err := Decode(base58.Encode(append([]byte{42}, id[:10]...)))
		require.ErrorIs(t, err, ErrInvalidAddress)
	})
	t.Run("bad prefix byte", func(t *testing.T) {
		_, _, err := Decode(base58.Encode(append([]byte{200}, id[:]...)))
		require.ErrorIs(t, err, ErrInvalidAddress)
	})
	t.Run("bad checksum", func(t *testing.T) {
		b, err := base58.Decode(aliceSS58)
		require.NoError(t, err)
		b[len(b)-1] ^= 0xff
		_, _, err = Decode(base58.Encode(b))
		require.ErrorIs(t, err, ErrChecksum)
	})
	t.Run("other network", func(t *testing.T) {
		_, err := StringToAccountID(EncodeWithPrefix(id, 0))
		require.ErrorIs(t, err, ErrInvalidAddress)
	})
}
