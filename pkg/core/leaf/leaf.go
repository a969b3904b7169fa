package leaf

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/nspcc-dev/attestree/pkg/crypto/hash"
	"github.com/nspcc-dev/attestree/pkg/util"
)

// Leaf is an attestation tree leaf, a storage key paired with the hash of
// the key and its leaf-encoded value. Leaves are never modified after
// creation.
type Leaf struct {
	Key  []byte
	Hash util.Uint256
}

// leafAux is used for JSON marshaling.
type leafAux struct {
	Key  string       `json:"key"`
	Hash util.Uint256 `json:"hash"`
}

// New creates a leaf for the given full storage key and leaf value.
func New(key, value []byte) Leaf {
	return Leaf{
		Key:  bytes.Clone(key),
		Hash: hash.Leaf(key, value),
	}
}

// Compare compares leaves by their storage keys.
func Compare(a, b Leaf) int {
	return bytes.Compare(a.Key, b.Key)
}

// MarshalJSON implements the json.Marshaler interface.
func (l Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(leafAux{Key: hex.EncodeToString(l.Key), Hash: l.Hash})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (l *Leaf) UnmarshalJSON(data []byte) error {
	var aux leafAux
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	key, err := hex.DecodeString(aux.Key)
	if err != nil {
		return err
	}
	l.Key = key
	l.Hash = aux.Hash
	return nil
}
