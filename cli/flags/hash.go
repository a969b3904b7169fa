package flags

import (
	"flag"

	"github.com/nspcc-dev/attestree/pkg/util"
	"github.com/urfave/cli"
)

// Hash is a wrapper for a Uint256 with flag.Value methods.
type Hash struct {
	IsSet bool
	Value util.Uint256
}

var (
	_ flag.Value  = (*Hash)(nil)
	_ cli.Generic = (*Hash)(nil)
)

// String implements the fmt.Stringer interface.
func (h Hash) String() string {
	if !h.IsSet {
		return ""
	}
	return "0x" + h.Value.StringBE()
}

// Set implements the flag.Value interface.
func (h *Hash) Set(s string) error {
	u, err := util.Uint256DecodeStringBE(s)
	if err != nil {
		return err
	}
	h.IsSet = true
	h.Value = u
	return nil
}
