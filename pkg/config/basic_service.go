package config

import (
	"errors"
	"fmt"
	"net"
)

// BasicService is used as a simple base for node services like Pprof or
// Prometheus monitoring.
type BasicService struct {
	Enabled bool `yaml:"Enabled"`
	// Addresses holds the list of bind addresses in the form of "address:port".
	Addresses []string `yaml:"Addresses"`
}

// GetAddresses returns a copy of the service bind addresses.
func (s BasicService) GetAddresses() []string {
	addrs := make([]string, len(s.Addresses))
	copy(addrs, s.Addresses)
	return addrs
}

// Validate checks that enabled service has valid bind addresses.
func (s BasicService) Validate() error {
	if !s.Enabled {
		return nil
	}
	if len(s.Addresses) == 0 {
		return errors.New("no bind addresses")
	}
	for _, addr := range s.Addresses {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("bad address %q: %w", addr, err)
		}
	}
	return nil
}
