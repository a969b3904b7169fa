package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/attestree/pkg/core/foliation"
	"github.com/nspcc-dev/attestree/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config"))
	require.NoError(t, err)
	require.Equal(t, dbconfig.LevelDB, cfg.ApplicationConfiguration.DBConfiguration.Type)
	require.Equal(t, DefaultInterval, cfg.Attestation.Interval)
	require.Len(t, cfg.Attestation.Prefixes, 2)

	ci, err := cfg.Attestation.StakingContract.ContractInfo()
	require.NoError(t, err)
	require.Equal(t, uint64(11155111), ci.ChainID.Uint64())
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("testdata", "attestree.yml"), "/data")
	require.NoError(t, err)

	app := cfg.ApplicationConfiguration
	require.Equal(t, "debug", app.LogLevel)
	require.Equal(t, filepath.Join("/data", "log/attestree.log"), app.LogPath)
	require.Equal(t, dbconfig.BoltDB, app.DBConfiguration.Type)
	require.Equal(t, filepath.Join("/data", "chains/test.bolt"), app.DBConfiguration.BoltDBOptions.FilePath)
	require.Equal(t, []string{"localhost:2112", ":2113"}, app.Prometheus.GetAddresses())
	require.False(t, app.Pprof.Enabled)

	att := cfg.Attestation
	require.Equal(t, time.Minute, att.Interval)
	require.Equal(t, DefaultTreeCacheSize, att.TreeCacheSize)
	require.Equal(t, []AttestedPrefix{{Kind: "staking-locks", Pallet: "Balances", Storage: "Locks"}}, att.Prefixes)
	k, err := att.Prefixes[0].GetKind()
	require.NoError(t, err)
	require.Equal(t, foliation.StakingLocksKind, k)

	ci, err := att.StakingContract.ContractInfo()
	require.NoError(t, err)
	require.Equal(t, uint64(11155111), ci.ChainID.Uint64())
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", ci.Address.Hex())

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "missing.yml"))
		require.Error(t, err)
	})
	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "unknown_field.yml"))
		require.Error(t, err)
	})
	t.Run("empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		require.NoError(t, os.WriteFile(path, nil, 0644))
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})
}

func TestValidate(t *testing.T) {
	var testCases = []struct {
		name   string
		modify func(c *Config)
	}{
		{"log level", func(c *Config) { c.ApplicationConfiguration.LogLevel = "loud" }},
		{"db type", func(c *Config) { c.ApplicationConfiguration.DBConfiguration.Type = "badger" }},
		{"leveldb path", func(c *Config) { c.ApplicationConfiguration.DBConfiguration.LevelDBOptions.DataDirectoryPath = "" }},
		{"boltdb path", func(c *Config) { c.ApplicationConfiguration.DBConfiguration.Type = dbconfig.BoltDB }},
		{"prometheus addresses", func(c *Config) { c.ApplicationConfiguration.Prometheus.Enabled = true }},
		{"pprof address", func(c *Config) {
			c.ApplicationConfiguration.Pprof = BasicService{Enabled: true, Addresses: []string{"localhost"}}
		}},
		{"interval", func(c *Config) { c.Attestation.Interval = 0 }},
		{"cache size", func(c *Config) { c.Attestation.TreeCacheSize = -1 }},
		{"chain ID", func(c *Config) { c.Attestation.StakingContract.ChainID = "sepolia" }},
		{"contract address", func(c *Config) { c.Attestation.StakingContract.Address = "0x1234" }},
		{"no prefixes", func(c *Config) { c.Attestation.Prefixes = nil }},
		{"prefix kind", func(c *Config) { c.Attestation.Prefixes[0].Kind = "accounts" }},
		{"half namespace", func(c *Config) { c.Attestation.Prefixes[0].Pallet = "Commitments" }},
		{"duplicate prefix", func(c *Config) {
			c.Attestation.Prefixes = append(c.Attestation.Prefixes, AttestedPrefix{Kind: "locks"})
		}},
	}
	require.NoError(t, Default().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestBasicService(t *testing.T) {
	s := BasicService{Addresses: []string{":2112"}}
	addrs := s.GetAddresses()
	addrs[0] = ":0"
	require.Equal(t, ":2112", s.Addresses[0])
	require.NoError(t, s.Validate())
	s.Enabled = true
	require.NoError(t, s.Validate())
}
