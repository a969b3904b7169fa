/*
Package db contains commands to import chain state into the database and to
export it from there.
*/
package db

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nspcc-dev/attestree/cli/cmdargs"
	"github.com/nspcc-dev/attestree/cli/flags"
	"github.com/nspcc-dev/attestree/cli/options"
	"github.com/nspcc-dev/attestree/pkg/core/storage"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// Item is a single chain state storage item of the dump. Null value in the
// imported stream deletes the item.
type Item struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// NewCommands returns 'db' command.
func NewCommands() []cli.Command {
	importFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "in, i",
			Usage: "input file (standard input if not specified)",
		},
		cli.UintFlag{
			Name:  "height",
			Usage: "chain state height the imported items belong to",
		},
	}, options.Common...)
	dumpFlags := append([]cli.Flag{
		cli.GenericFlag{
			Name:  "prefix, p",
			Usage: "hex-encoded storage key prefix of the dumped items",
			Value: new(flags.Bytes),
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "output file (standard output if not specified)",
		},
	}, options.Common...)
	return []cli.Command{{
		Name:  "db",
		Usage: "database manipulations",
		Subcommands: []cli.Command{
			{
				Name:      "import",
				Usage:     "import chain state storage items",
				UsageText: "attestree db import --height <height> [--in <file>]",
				Description: `Imports a stream of JSON objects like {"key": "<hex>", "value": "<hex>"}
   into the chain state and sets its height. Items with null values are
   deleted.`,
				Action: importDB,
				Flags:  flags.MarkRequired(importFlags, "height"),
			},
			{
				Name:      "dump",
				Usage:     "dump chain state storage items",
				UsageText: "attestree db dump [--prefix <prefix>] [--out <file>]",
				Action:    dumpDB,
				Flags:     dumpFlags,
			},
		},
	}}
}

// ReadItems reads a stream of JSON items.
func ReadItems(r io.Reader) (map[string][]byte, error) {
	var (
		dec   = json.NewDecoder(r)
		items = make(map[string][]byte)
	)
	for i := 0; ; i++ {
		var it Item
		err := dec.Decode(&it)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("item #%d: %w", i, err)
		}
		k, err := flags.ParseHex(it.Key)
		if err != nil {
			return nil, fmt.Errorf("item #%d: key: %w", i, err)
		}
		if len(k) == 0 {
			return nil, fmt.Errorf("item #%d: empty key", i)
		}
		var v []byte
		if it.Value != nil {
			v, err = flags.ParseHex(*it.Value)
			if err != nil {
				return nil, fmt.Errorf("item #%d: value: %w", i, err)
			}
			if v == nil {
				v = []byte{}
			}
		}
		items[string(k)] = v
	}
}

// WriteItems writes chain state items with the given prefix as a stream of
// JSON items and returns the number of items written.
func WriteItems(w io.Writer, r storage.Reader, prefix []byte) (int, error) {
	var (
		enc = json.NewEncoder(w)
		n   int
		err error
	)
	storage.SeekChainState(r, prefix, func(k, v []byte) bool {
		value := hex.EncodeToString(v)
		err = enc.Encode(Item{Key: hex.EncodeToString(k), Value: &value})
		if err != nil {
			return false
		}
		n++
		return true
	})
	return n, err
}

func importDB(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	var in io.Reader = os.Stdin
	if path := ctx.String("in"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer f.Close()
		in = f
	}
	items, err := ReadItems(in)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to read items: %w", err), 1)
	}

	env, exitErr := options.NewEnv(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer env.Close()

	height := uint32(ctx.Uint("height"))
	if err := storage.PutChainState(env.Store, items, height); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to store items: %w", err), 1)
	}
	env.Log.Info("chain state imported", zap.Int("items", len(items)), zap.Uint32("height", height))
	return nil
}

func dumpDB(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	var prefix []byte
	if p := ctx.Generic("prefix").(*flags.Bytes); p.IsSet {
		prefix = p.Value
	}

	env, exitErr := options.NewEnv(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer env.Close()

	out := ctx.App.Writer
	if path := ctx.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer f.Close()
		out = f
	}
	snap, err := env.Store.Snapshot()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer snap.Release()
	n, err := WriteItems(out, snap, prefix)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to dump items: %w", err), 1)
	}
	env.Log.Info("chain state dumped", zap.Int("items", n))
	return nil
}
