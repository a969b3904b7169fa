/*
Package key contains commands computing storage keys of the attested maps.
*/
package key

import (
	"encoding/hex"
	"fmt"

	"github.com/nspcc-dev/attestree/cli/cmdargs"
	"github.com/nspcc-dev/attestree/cli/flags"
	"github.com/nspcc-dev/attestree/pkg/core/foliation"
	"github.com/nspcc-dev/attestree/pkg/core/leaf"
	"github.com/urfave/cli"
)

// NewCommands returns 'key' command.
func NewCommands() []cli.Command {
	namespaceFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "pallet",
			Usage: "pallet name of the storage map (the default one is used if not specified)",
		},
		cli.StringFlag{
			Name:  "storage",
			Usage: "storage name of the storage map (the default one is used if not specified)",
		},
	}
	commitmentFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "name, n",
			Usage: "table name",
		},
		cli.StringFlag{
			Name:  "namespace, s",
			Usage: "table namespace",
		},
		cli.StringFlag{
			Name:  "scheme",
			Value: foliation.DynamicDory.String(),
			Usage: "commitment scheme, either 'hyperkzg' or 'dynamicdory'",
		},
	}, namespaceFlags...)
	locksFlags := append([]cli.Flag{
		cli.GenericFlag{
			Name:  "account, a",
			Usage: "account SS58 address or hex-encoded public key",
			Value: new(flags.Account),
		},
	}, namespaceFlags...)
	return []cli.Command{{
		Name:  "key",
		Usage: "compute storage keys of attested leaves",
		Subcommands: []cli.Command{
			{
				Name:      "commitment",
				Usage:     "storage key of the table commitment",
				UsageText: "attestree key commitment --name <name> --namespace <namespace> [--scheme <scheme>]",
				Action:    commitmentKey,
				Flags:     flags.MarkRequired(commitmentFlags, "name", "namespace"),
			},
			{
				Name:      "locks",
				Usage:     "storage key of the account balance locks",
				UsageText: "attestree key locks --account <account>",
				Action:    locksKey,
				Flags:     flags.MarkRequired(locksFlags, "account"),
			},
		},
	}}
}

// getNamespace returns the custom namespace if it's given or def otherwise.
func getNamespace(ctx *cli.Context, def leaf.Namespace) (leaf.Namespace, *cli.ExitError) {
	pallet, storage := ctx.String("pallet"), ctx.String("storage")
	if pallet == "" && storage == "" {
		return def, nil
	}
	if pallet == "" || storage == "" {
		return leaf.Namespace{}, cli.NewExitError("both pallet and storage must be specified", 1)
	}
	return leaf.NewNamespace(pallet, storage, def.Hashers...), nil
}

func commitmentKey(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	scheme, err := foliation.ParseCommitmentScheme(ctx.String("scheme"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	ns, exitErr := getNamespace(ctx, foliation.CommitmentsNamespace())
	if exitErr != nil {
		return exitErr
	}
	id := foliation.TableIdentifier{
		Name:      []byte(ctx.String("name")),
		Namespace: []byte(ctx.String("namespace")),
	}
	k, err := foliation.NewTableCommitmentsAt(ns).StorageKey(id, scheme)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to make key for %s: %w", id, err), 1)
	}
	fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(k))
	return nil
}

func locksKey(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	acc := ctx.Generic("account").(*flags.Account)
	if !acc.IsSet {
		return cli.NewExitError("account is required", 1)
	}
	ns, exitErr := getNamespace(ctx, foliation.LocksNamespace())
	if exitErr != nil {
		return exitErr
	}
	k, err := foliation.NewStakingLocksAt(ns, foliation.ContractInfo{}).StorageKey(acc.Value)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(k))
	return nil
}
