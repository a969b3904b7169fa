package flags

import (
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli"
)

// Bytes is a wrapper for a hex-encoded byte slice with flag.Value methods.
type Bytes struct {
	IsSet bool
	Value []byte
}

var (
	_ flag.Value  = (*Bytes)(nil)
	_ cli.Generic = (*Bytes)(nil)
)

// String implements the fmt.Stringer interface.
func (b Bytes) String() string {
	if !b.IsSet {
		return ""
	}
	return hexutil.Encode(b.Value)
}

// Set implements the flag.Value interface.
func (b *Bytes) Set(s string) error {
	v, err := ParseHex(s)
	if err != nil {
		return err
	}
	b.IsSet = true
	b.Value = v
	return nil
}

// Bytes returns the flag value.
func (b *Bytes) Bytes() []byte {
	if !b.IsSet {
		// It is a programmer error to call this method without
		// checking if the value was provided.
		panic("bytes were not set")
	}
	return b.Value
}

// ParseHex decodes a hex string with or without 0x prefix.
func ParseHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex string: %w", err)
	}
	return b, nil
}
