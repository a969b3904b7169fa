package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/attestree/cli/attest"
	"github.com/nspcc-dev/attestree/cli/db"
	"github.com/nspcc-dev/attestree/cli/key"
	"github.com/nspcc-dev/attestree/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "Attestree\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an attestree instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "attestree"
	ctl.Version = config.Version
	ctl.Usage = "Chain state attestation tree builder and prover"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, attest.NewCommands()...)
	ctl.Commands = append(ctl.Commands, key.NewCommands()...)
	ctl.Commands = append(ctl.Commands, db.NewCommands()...)
	return ctl
}
