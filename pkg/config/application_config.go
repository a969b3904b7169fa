package config

import (
	"fmt"

	"github.com/nspcc-dev/attestree/pkg/core/storage/dbconfig"
	"go.uber.org/zap/zapcore"
)

// ApplicationConfiguration config specific to the node.
type ApplicationConfiguration struct {
	LogLevel        string                   `yaml:"LogLevel"`
	LogPath         string                   `yaml:"LogPath"`
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`
	Prometheus      BasicService             `yaml:"Prometheus"`
	Pprof           BasicService             `yaml:"Pprof"`
}

// Validate checks ApplicationConfiguration for internal consistency.
func (a ApplicationConfiguration) Validate() error {
	if a.LogLevel != "" {
		if _, err := zapcore.ParseLevel(a.LogLevel); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}
	switch a.DBConfiguration.Type {
	case dbconfig.LevelDB:
		if a.DBConfiguration.LevelDBOptions.DataDirectoryPath == "" {
			return fmt.Errorf("empty %s data directory path", dbconfig.LevelDB)
		}
	case dbconfig.BoltDB:
		if a.DBConfiguration.BoltDBOptions.FilePath == "" {
			return fmt.Errorf("empty %s file path", dbconfig.BoltDB)
		}
	case dbconfig.InMemoryDB:
	default:
		return fmt.Errorf("unknown DB type %q", a.DBConfiguration.Type)
	}
	if err := a.Prometheus.Validate(); err != nil {
		return fmt.Errorf("prometheus: %w", err)
	}
	if err := a.Pprof.Validate(); err != nil {
		return fmt.Errorf("pprof: %w", err)
	}
	return nil
}
