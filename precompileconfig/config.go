// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig holds the config contract shared by all precompiles.
package precompileconfig

import "math/big"

// Config is the JSON-decoded configuration of one precompile
type Config interface {
	// Key returns the key used in json config files
	Key() string
	// Timestamp returns the activation timestamp, nil if never activated
	Timestamp() *uint64
	IsDisabled() bool
	Equal(Config) bool
	Verify(ChainConfig) error
}

// ChainConfig is the chain-level view a precompile config is verified against
type ChainConfig interface {
	ChainID() *big.Int
}

// Upgrade is embedded in every precompile config to schedule activation
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the activation timestamp
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal returns true iff [other] schedules the same upgrade
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	if u.BlockTimestamp == nil || other.BlockTimestamp == nil {
		return u.BlockTimestamp == nil && other.BlockTimestamp == nil
	}
	return *u.BlockTimestamp == *other.BlockTimestamp
}
