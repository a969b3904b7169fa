package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/attestree/cli/app"
	"github.com/nspcc-dev/attestree/pkg/config"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const (
	testContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testConfigTemplate  = `ApplicationConfiguration:
  LogLevel: %s
  LogPath: %s
  DBConfiguration:
    Type: leveldb
    LevelDBOptions:
      DataDirectoryPath: %s
Attestation:
  Interval: 50ms
  StakingContract:
    ChainID: "1"
    Address: "` + testContractAddress + `"
`
)

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// Dir is a directory with the configuration and the database.
	Dir string
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
}

func newExecutor(t *testing.T) *executor {
	return newExecutorWithLevel(t, "error")
}

func newExecutorWithLevel(t *testing.T, level string) *executor {
	e := &executor{
		Dir: t.TempDir(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
	}
	cfg := fmt.Sprintf(testConfigTemplate, level, e.LogPath(), filepath.Join(e.Dir, "chain"))
	require.NoError(t, os.WriteFile(filepath.Join(e.Dir, config.DefaultConfigFile), []byte(cfg), 0644))
	cli.OsExiter = func(int) {}
	t.Cleanup(func() {
		cli.OsExiter = os.Exit
		cli.ErrWriter = os.Stderr
	})
	return e
}

// LogPath returns path to the log file of commands.
func (e *executor) LogPath() string {
	return filepath.Join(e.Dir, "attestree.log")
}

// Path returns path to the file with the given name in the executor
// directory.
func (e *executor) Path(name string) string {
	return filepath.Join(e.Dir, name)
}

// run runs the command with the executor configuration.
func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	ctl := app.New()
	ctl.Writer = e.Out
	ctl.ErrWriter = e.Err
	cli.ErrWriter = e.Err
	return ctl.Run(append([]string{"attestree"}, args...))
}

// runConfigured runs the command adding the executor configuration path.
func (e *executor) runConfigured(args ...string) error {
	return e.run(append(args, "--config-path", e.Dir)...)
}

// Run runs the command and checks it succeeds.
func (e *executor) Run(t *testing.T, args ...string) {
	require.NoError(t, e.runConfigured(args...), "stderr: %s", e.Err.String())
}

// RunWithError runs the command and checks it fails.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	require.Error(t, e.runConfigured(args...))
}

// RunWithErrorCheck runs the command and checks it fails with the given
// message.
func (e *executor) RunWithErrorCheck(t *testing.T, msg string, args ...string) {
	err := e.runConfigured(args...)
	require.Error(t, err)
	require.Contains(t, err.Error(), msg)
}

// RunNoConfig runs the command that doesn't use configuration and checks it
// succeeds.
func (e *executor) RunNoConfig(t *testing.T, args ...string) {
	require.NoError(t, e.run(args...), "stderr: %s", e.Err.String())
}

// RunNoConfigWithErrorCheck runs the command that doesn't use configuration
// and checks it fails with the given message.
func (e *executor) RunNoConfigWithErrorCheck(t *testing.T, msg string, args ...string) {
	err := e.run(args...)
	require.Error(t, err)
	require.Contains(t, err.Error(), msg)
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	require.Regexp(t, expected, line)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}
