// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package staker

import (
	"fmt"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/staker/contract"
	"github.com/luxfi/staker/modules"
	"github.com/luxfi/staker/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "stakerConfig"

// ContractStakerAddress is the LP-9015 liquidity mining staker
var ContractStakerAddress = common.HexToAddress("0x0000000000000000000000000000000000009015")

// maxWindowLimit bounds the configurable incentive limits (about 34,000 years)
const maxWindowLimit = uint64(1) << 40

// StakerPrecompile is the singleton instance
var StakerPrecompile = NewStakerContract(ContractStakerAddress, log.NewTestLogger(log.InfoLevel))

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractStakerAddress,
	Contract:     StakerPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if err := config.Verify(chainConfig); err != nil {
		return err
	}

	if !state.Exist(ContractStakerAddress) {
		state.CreateAccount(ContractStakerAddress)
	}
	StakerPrecompile.SetLimits(config.MaxIncentiveStartLeadTime, config.MaxIncentiveDuration)
	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade                   precompileconfig.Upgrade `json:"upgrade,omitempty"`
	MaxIncentiveStartLeadTime uint64                   `json:"maxIncentiveStartLeadTime,omitempty"`
	MaxIncentiveDuration      uint64                   `json:"maxIncentiveDuration,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.MaxIncentiveStartLeadTime == other.MaxIncentiveStartLeadTime &&
		c.MaxIncentiveDuration == other.MaxIncentiveDuration
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	if c.MaxIncentiveStartLeadTime > maxWindowLimit {
		return fmt.Errorf("maxIncentiveStartLeadTime %d exceeds %d", c.MaxIncentiveStartLeadTime, maxWindowLimit)
	}
	if c.MaxIncentiveDuration > maxWindowLimit {
		return fmt.Errorf("maxIncentiveDuration %d exceeds %d", c.MaxIncentiveDuration, maxWindowLimit)
	}
	return nil
}
