/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"

	"github.com/nspcc-dev/attestree/pkg/config"
	"github.com/nspcc-dev/attestree/pkg/core/storage"
	"github.com/nspcc-dev/attestree/pkg/io"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultConfigPath is the directory configuration file is looked up in if
// neither --config-path nor --config-file is given.
const DefaultConfigPath = "./config"

// Config is a flag for commands that use node configuration.
var Config = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with the configuration file (may be overridden by --config-file option for the configuration file)",
}

// ConfigFile is a flag for commands that use node configuration and provide
// path to the specific config file instead of config path.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the node configuration file (overrides --config-path option)",
}

// RelativePath is a flag for commands that use node configuration and provide
// a prefix to all relative paths in config files.
var RelativePath = cli.StringFlag{
	Name:  "relative-path",
	Usage: "a prefix to all relative paths in the node configuration file",
}

// Debug is a flag for commands that allow node in debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Common is the set of flags every command working with the node
// configuration has.
var Common = []cli.Flag{Config, ConfigFile, RelativePath, Debug}

var errConflictingConfigFlags = errors.New("--config-path conflicts with --config-file, please, provide one of them")

// GetConfigFromContext looks at the path flags in the given context and
// returns an appropriate config.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		configFile   = ctx.String("config-file")
		configPath   = ctx.String("config-path")
		relativePath = ctx.String("relative-path")
	)
	if len(configFile) != 0 {
		if len(configPath) != 0 {
			return config.Config{}, errConflictingConfigFlags
		}
		return config.LoadFile(configFile, relativePath)
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return config.Load(configPath, relativePath)
}

var (
	// _winfileSinkRegistered denotes whether zap has registered
	// user-supplied factory for all sinks with `winfile`-prefixed scheme.
	_winfileSinkRegistered bool
	_winfileSinkCloser     func() error
)

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
// If logPath is configured on Windows -- function returns closer to be
// able to close sink for the opened log output file.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := io.MakeDirForFile(logPath, "logger"); err != nil {
			return nil, nil, nil, err
		}

		if runtime.GOOS == "windows" {
			if !_winfileSinkRegistered {
				// See https://github.com/uber-go/zap/issues/621.
				err := zap.RegisterSink("winfile", func(u *url.URL) (zap.Sink, error) {
					if u.User != nil {
						return nil, fmt.Errorf("user and password not allowed with file URLs: got %v", u)
					}
					if u.Fragment != "" {
						return nil, fmt.Errorf("fragments not allowed with file URLs: got %v", u)
					}
					if u.RawQuery != "" {
						return nil, fmt.Errorf("query parameters not allowed with file URLs: got %v", u)
					}
					if u.Port() != "" {
						return nil, fmt.Errorf("ports not allowed with file URLs: got %v", u)
					}
					if hn := u.Hostname(); hn != "" && hn != "localhost" {
						return nil, fmt.Errorf("file URLs must leave host empty or use localhost: got %v", u)
					}
					switch u.Path {
					case "stdout":
						return os.Stdout, nil
					case "stderr":
						return os.Stderr, nil
					}
					f, err := os.OpenFile(u.Path[1:], // Remove leading slash left after url.Parse.
						os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
					_winfileSinkCloser = func() error {
						_winfileSinkCloser = nil
						return f.Close()
					}
					return f, err
				})
				if err != nil {
					return nil, nil, nil, fmt.Errorf("failed to register windows-specific sink: %w", err)
				}
				_winfileSinkRegistered = true
			}
			logPath = "winfile:///" + logPath
		}

		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, _winfileSinkCloser, err
}

// Env is the environment of a command working with the node configuration:
// the configuration itself, a logger and an opened store.
type Env struct {
	Config config.Config
	Log    *zap.Logger
	Store  storage.Store

	logCloser func() error
}

// NewEnv loads the configuration, sets up logging and opens the configured
// store. Returned errors are ready to be returned from a command action.
func NewEnv(ctx *cli.Context) (*Env, cli.ExitCoder) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log, _, logCloser, err := HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		if logCloser != nil {
			_ = logCloser()
		}
		return nil, cli.NewExitError(fmt.Errorf("could not initialize storage: %w", err), 1)
	}
	return &Env{
		Config:    cfg,
		Log:       log,
		Store:     store,
		logCloser: logCloser,
	}, nil
}

// Close releases the store and the logger.
func (e *Env) Close() {
	if err := e.Store.Close(); err != nil {
		e.Log.Warn("failed to close the store", zap.Error(err))
	}
	_ = e.Log.Sync()
	if e.logCloser != nil {
		_ = e.logCloser()
	}
}
