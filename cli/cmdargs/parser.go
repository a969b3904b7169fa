/*
Package cmdargs contains helpers to check positional command arguments.
*/
package cmdargs

import (
	"fmt"

	"github.com/urfave/cli"
)

// EnsureNone returns an error if there are any positional arguments present.
// It can be used to check for them in commands that don't accept arguments.
func EnsureNone(ctx *cli.Context) *cli.ExitError {
	if ctx.Args().Present() {
		return cli.NewExitError("additional arguments given while this command expects none", 1)
	}
	return nil
}

// EnsureAtMost returns an error if there are more than n positional
// arguments present.
func EnsureAtMost(ctx *cli.Context, n int) *cli.ExitError {
	if l := len(ctx.Args()); l > n {
		return cli.NewExitError(fmt.Sprintf("%d arguments given while this command expects at most %d", l, n), 1)
	}
	return nil
}
