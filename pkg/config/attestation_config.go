package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/attestree/pkg/core/foliation"
)

type (
	// Attestation is the attestor service configuration.
	Attestation struct {
		// Interval is the period of state height checks, the state is
		// attested every time the height changes.
		Interval time.Duration `yaml:"Interval"`
		// TreeCacheSize is the number of the latest attestation trees kept
		// in memory to build proofs.
		TreeCacheSize   int              `yaml:"TreeCacheSize"`
		StakingContract StakingContract  `yaml:"StakingContract"`
		Prefixes        []AttestedPrefix `yaml:"Prefixes"`
	}

	// StakingContract is the EVM contract staking locks are bound to.
	StakingContract struct {
		// ChainID is either decimal or 0x-prefixed hex number.
		ChainID string `yaml:"ChainID"`
		Address string `yaml:"Address"`
	}

	// AttestedPrefix is an attested storage map. Pallet and Storage can be
	// omitted for the default map of the given foliation kind.
	AttestedPrefix struct {
		Kind    string `yaml:"Kind"`
		Pallet  string `yaml:"Pallet"`
		Storage string `yaml:"Storage"`
	}
)

// Validate checks Attestation for internal consistency.
func (a Attestation) Validate() error {
	if a.Interval <= 0 {
		return fmt.Errorf("non-positive interval %s", a.Interval)
	}
	if a.TreeCacheSize <= 0 {
		return fmt.Errorf("non-positive tree cache size %d", a.TreeCacheSize)
	}
	if _, err := a.StakingContract.ContractInfo(); err != nil {
		return fmt.Errorf("staking contract: %w", err)
	}
	if len(a.Prefixes) == 0 {
		return errors.New("no attested prefixes")
	}
	seen := make(map[string]bool, len(a.Prefixes))
	for i, p := range a.Prefixes {
		k, err := p.GetKind()
		if err != nil {
			return fmt.Errorf("prefix #%d: %w", i, err)
		}
		if (p.Pallet == "") != (p.Storage == "") {
			return fmt.Errorf("prefix #%d: both pallet and storage must be specified", i)
		}
		id := p.Pallet + "." + p.Storage
		if p.Pallet == "" {
			id = k.String()
		}
		if seen[id] {
			return fmt.Errorf("prefix #%d: duplicate %s", i, id)
		}
		seen[id] = true
	}
	return nil
}

// GetKind returns the foliation kind of the prefix.
func (p AttestedPrefix) GetKind() (foliation.Kind, error) {
	return foliation.ParseKind(p.Kind)
}

// ContractInfo returns the parsed contract data. Empty values are allowed,
// they're zero.
func (c StakingContract) ContractInfo() (foliation.ContractInfo, error) {
	var (
		res = foliation.ContractInfo{ChainID: new(uint256.Int)}
		err error
	)
	if c.ChainID != "" {
		if strings.HasPrefix(c.ChainID, "0x") {
			res.ChainID, err = uint256.FromHex(c.ChainID)
		} else {
			res.ChainID, err = uint256.FromDecimal(c.ChainID)
		}
		if err != nil {
			return res, fmt.Errorf("bad chain ID %q: %w", c.ChainID, err)
		}
	}
	if c.Address != "" {
		if !common.IsHexAddress(c.Address) {
			return res, fmt.Errorf("bad address %q", c.Address)
		}
		res.Address = common.HexToAddress(c.Address)
	}
	return res, nil
}
