package testserdes

import (
	"encoding/json"
	"testing"

	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/stretchr/testify/require"
)

// MarshalUnmarshalJSON checks if the expected stays the same after
// marshal/unmarshal via JSON.
func MarshalUnmarshalJSON(t *testing.T, expected, actual any) {
	data, err := json.Marshal(expected)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, expected, actual)
}

// EncodeDecodeBinary checks if the expected stays the same after
// serializing/deserializing via io.Serializable methods.
func EncodeDecodeBinary(t *testing.T, expected, actual io.Serializable) {
	data, err := io.ToByteArray(expected)
	require.NoError(t, err)
	require.NoError(t, io.FromByteArray(actual, data))
	require.Equal(t, expected, actual)
}
