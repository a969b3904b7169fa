package flags

import (
	"flag"

	"github.com/nspcc-dev/attestree/pkg/core/foliation"
	"github.com/urfave/cli"
)

// Account is a wrapper for an AccountID with flag.Value methods. It accepts
// both SS58 addresses and hex-encoded account IDs.
type Account struct {
	IsSet bool
	Value foliation.AccountID
}

var (
	_ flag.Value  = (*Account)(nil)
	_ cli.Generic = (*Account)(nil)
)

// String implements the fmt.Stringer interface.
func (a Account) String() string {
	if !a.IsSet {
		return ""
	}
	return a.Value.String()
}

// Set implements the flag.Value interface.
func (a *Account) Set(s string) error {
	id, err := foliation.DecodeAccountID(s)
	if err != nil {
		return err
	}
	a.IsSet = true
	a.Value = id
	return nil
}
