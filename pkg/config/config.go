package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nspcc-dev/attestree/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the name of the configuration file looked up by
	// Load.
	DefaultConfigFile = "attestree.yml"
	// DefaultInterval is the default attestation interval.
	DefaultInterval = 6 * time.Second
	// DefaultTreeCacheSize is the default number of attestation trees kept
	// in memory.
	DefaultTreeCacheSize = 16
)

// Version is the version of the node, set at build time.
var Version string

// Config top level struct representing the config for the attestation
// node.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
	Attestation              Attestation              `yaml:"Attestation"`
}

// Default returns the configuration used for all the options missing in
// the configuration file.
func Default() Config {
	return Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: "info",
			DBConfiguration: dbconfig.DBConfiguration{
				Type: dbconfig.LevelDB,
				LevelDBOptions: dbconfig.LevelDBOptions{
					DataDirectoryPath: "./chains/attestree",
				},
			},
		},
		Attestation: Attestation{
			Interval:      DefaultInterval,
			TreeCacheSize: DefaultTreeCacheSize,
			Prefixes: []AttestedPrefix{
				{Kind: "table-commitments"},
				{Kind: "staking-locks"},
			},
		},
	}
}

// Load attempts to load the config from the given directory. Relative paths
// of the config are prefixed with relativePath if it's not empty.
func Load(path string, relativePath ...string) (Config, error) {
	return LoadFile(filepath.Join(path, DefaultConfigFile), relativePath...)
}

// LoadFile loads config from the provided path. Relative paths of the config
// are prefixed with relativePath if it's not empty.
func LoadFile(configPath string, relativePath ...string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err = decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if len(relativePath) == 1 && relativePath[0] != "" {
		updateRelativePaths(relativePath[0], &config)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// updateRelativePaths updates relative paths in the config structure based
// on the provided relative path.
func updateRelativePaths(relativePath string, config *Config) {
	updatePath := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(relativePath, *path)
		}
	}

	updatePath(&config.ApplicationConfiguration.LogPath)
	updatePath(&config.ApplicationConfiguration.DBConfiguration.LevelDBOptions.DataDirectoryPath)
	updatePath(&config.ApplicationConfiguration.DBConfiguration.BoltDBOptions.FilePath)
}

// Validate checks Config for internal consistency.
func (c Config) Validate() error {
	if err := c.ApplicationConfiguration.Validate(); err != nil {
		return fmt.Errorf("invalid ApplicationConfiguration: %w", err)
	}
	if err := c.Attestation.Validate(); err != nil {
		return fmt.Errorf("invalid Attestation configuration: %w", err)
	}
	return nil
}
