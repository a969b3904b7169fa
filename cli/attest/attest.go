/*
Package attest contains commands to attest the chain state, to produce and
to verify proofs of the attested leaves.
*/
package attest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/attestree/cli/cmdargs"
	"github.com/nspcc-dev/attestree/cli/flags"
	"github.com/nspcc-dev/attestree/cli/options"
	"github.com/nspcc-dev/attestree/pkg/core/attestation"
	"github.com/nspcc-dev/attestree/pkg/core/state"
	"github.com/nspcc-dev/attestree/pkg/services/attestor"
	"github.com/nspcc-dev/attestree/pkg/services/metrics"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// NewCommands returns 'attest' command.
func NewCommands() []cli.Command {
	heightFlag := cli.UintFlag{
		Name:  "height",
		Usage: "attestation height (the latest attestation is used if not specified)",
	}
	proveFlags := append([]cli.Flag{
		cli.GenericFlag{
			Name:  "key, k",
			Usage: "hex-encoded storage key of the leaf to prove",
			Value: new(flags.Bytes),
		},
		cli.GenericFlag{
			Name:  "pair",
			Usage: "hex-encoded storage key of the second leaf to prove (the first one is proven twice if not specified)",
			Value: new(flags.Bytes),
		},
		heightFlag,
		cli.StringFlag{
			Name:  "out, o",
			Usage: "file to write the proof to (standard output if not specified)",
		},
	}, options.Common...)
	verifyFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "proof, p",
			Usage: "JSON proof file (standard input if not specified)",
		},
		cli.GenericFlag{
			Name:  "root, r",
			Usage: "attested root to verify the proof against",
			Value: new(flags.Hash),
		},
	}
	showFlags := append([]cli.Flag{heightFlag}, options.Common...)
	return []cli.Command{{
		Name:  "attest",
		Usage: "attest chain state, prove and verify leaves",
		Subcommands: []cli.Command{
			{
				Name:   "build",
				Usage:  "attest the current chain state snapshot",
				Action: build,
				Flags:  options.Common,
			},
			{
				Name:      "prove",
				Usage:     "prove one or two leaves of an attestation",
				UsageText: "attestree attest prove --key <key> [--pair <key>] [--height <height>] [--out <file>]",
				Action:    prove,
				Flags:     flags.MarkRequired(proveFlags, "key"),
			},
			{
				Name:      "verify",
				Usage:     "verify proof against attested root",
				UsageText: "attestree attest verify --root <root> [--proof <file>]",
				Description: `Verifies the proof against the given root. Prints OK if
   the proof is valid and fails otherwise. No configuration or database is
   needed for it.`,
				Action: verify,
				Flags:  flags.MarkRequired(verifyFlags, "root"),
			},
			{
				Name:   "run",
				Usage:  "run attestation service attesting the state periodically",
				Action: run,
				Flags:  options.Common,
			},
			{
				Name:      "show",
				Usage:     "print attestation record",
				UsageText: "attestree attest show [--height <height>]",
				Action:    show,
				Flags:     showFlags,
			},
		},
	}}
}

func newService(env *options.Env) (*attestor.Service, cli.ExitCoder) {
	srv, err := attestor.New(env.Config.Attestation, env.Store, env.Log)
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("could not create attestor: %w", err), 1)
	}
	return srv, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func build(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	env, exitErr := options.NewEnv(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer env.Close()

	srv, exitErr := newService(env)
	if exitErr != nil {
		return exitErr
	}
	a, err := srv.Attest()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("attestation failed: %w", err), 1)
	}
	if err := writeJSON(ctx.App.Writer, a); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func prove(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	key := ctx.Generic("key").(*flags.Bytes).Bytes()
	pair := key
	if p := ctx.Generic("pair").(*flags.Bytes); p.IsSet {
		pair = p.Value
	}

	env, exitErr := options.NewEnv(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer env.Close()

	srv, exitErr := newService(env)
	if exitErr != nil {
		return exitErr
	}
	height := uint32(ctx.Uint("height"))
	if !ctx.IsSet("height") {
		last, err := srv.LastAttestation()
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		height = last.Height
	}
	p, err := srv.Prove(height, key, pair)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to prove: %w", err), 1)
	}

	out := ctx.App.Writer
	if path := ctx.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer f.Close()
		out = f
	}
	if err := writeJSON(out, p); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func verify(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	root := ctx.Generic("root").(*flags.Hash)
	if !root.IsSet {
		return cli.NewExitError("root is required", 1)
	}

	var in io.Reader = os.Stdin
	if path := ctx.String("proof"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer f.Close()
		in = f
	}
	p := new(attestation.Proof)
	if err := json.NewDecoder(in).Decode(p); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to decode proof: %w", err), 1)
	}
	if err := attestation.Verify(p, root.Value); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, "OK")
	return nil
}

func show(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	env, exitErr := options.NewEnv(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer env.Close()

	srv, exitErr := newService(env)
	if exitErr != nil {
		return exitErr
	}
	var (
		a   *state.Attestation
		err error
	)
	if ctx.IsSet("height") {
		a, err = srv.GetAttestation(uint32(ctx.Uint("height")))
	} else {
		a, err = srv.LastAttestation()
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := writeJSON(ctx.App.Writer, a); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func run(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	env, exitErr := options.NewEnv(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer env.Close()

	srv, exitErr := newService(env)
	if exitErr != nil {
		return exitErr
	}
	app := env.Config.ApplicationConfiguration
	prometheus := metrics.NewPrometheus(app.Prometheus, env.Log)
	pprof := metrics.NewPprof(app.Pprof, env.Log)
	if err := prometheus.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Prometheus service: %w", err), 1)
	}
	defer prometheus.ShutDown()
	if err := pprof.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Pprof service: %w", err), 1)
	}
	defer pprof.ShutDown()

	srv.Start()
	<-grace.Done()
	env.Log.Info("shutting down", zap.Error(context.Cause(grace)))
	srv.Shutdown()
	return nil
}

var errInterrupted = errors.New("interrupted")

// newGraceContext returns a context cancelled on SIGINT or SIGTERM.
func newGraceContext() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		signal.Stop(stop)
		cancel(errInterrupted)
	}()
	return ctx
}
