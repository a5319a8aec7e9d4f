package config

import (
	"fmt"
	"math/big"

	"github.com/BurntSushi/toml"

	"stablehub/native/hub"
	"stablehub/native/reserve"
)

// Config carries the runtime parameters for the hub and the reserve pool.
// Currency amounts are decimal strings in the smallest unit so integrators
// never round through floats.
type Config struct {
	Hub     HubConfig     `toml:"hub"`
	Reserve ReserveConfig `toml:"reserve"`
}

type HubConfig struct {
	OpeningFee             string `toml:"OpeningFee"`
	MinimumCollateralValue string `toml:"MinimumCollateralValue"`
	ChallengerRewardPPM    uint32 `toml:"ChallengerRewardPPM"`
	MaxCollateralDecimals  uint8  `toml:"MaxCollateralDecimals"`
}

type ReserveConfig struct {
	QuorumBps         uint32 `toml:"QuorumBps"`
	MaxDelegationHops int    `toml:"MaxDelegationHops"`
}

// Default returns the production defaults, mirroring hub.DefaultParams and
// reserve.DefaultParams.
func Default() *Config {
	hubDefaults := hub.DefaultParams()
	poolDefaults := reserve.DefaultParams()
	return &Config{
		Hub: HubConfig{
			OpeningFee:             hubDefaults.OpeningFee.String(),
			MinimumCollateralValue: hubDefaults.MinimumCollateralValue.String(),
			ChallengerRewardPPM:    hubDefaults.ChallengerRewardPPM,
			MaxCollateralDecimals:  hubDefaults.MaxCollateralDecimals,
		},
		Reserve: ReserveConfig{
			QuorumBps:         poolDefaults.QuorumBps,
			MaxDelegationHops: poolDefaults.MaxDelegationHops,
		},
	}
}

// Load reads the configuration from the given path, applying defaults for
// any omitted field, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameter values outside their documented bounds.
func (c *Config) Validate() error {
	if _, err := parseAmount(c.Hub.OpeningFee); err != nil {
		return fmt.Errorf("hub.OpeningFee: %w", err)
	}
	if _, err := parseAmount(c.Hub.MinimumCollateralValue); err != nil {
		return fmt.Errorf("hub.MinimumCollateralValue: %w", err)
	}
	if c.Hub.ChallengerRewardPPM > 1_000_000 {
		return fmt.Errorf("hub.ChallengerRewardPPM: %d exceeds 1000000", c.Hub.ChallengerRewardPPM)
	}
	if c.Reserve.QuorumBps > 10_000 {
		return fmt.Errorf("reserve.QuorumBps: %d exceeds 10000", c.Reserve.QuorumBps)
	}
	if c.Reserve.MaxDelegationHops <= 0 {
		return fmt.Errorf("reserve.MaxDelegationHops: must be positive")
	}
	return nil
}

// HubParams converts the config into the hub engine's parameter set.
func (c *Config) HubParams() (hub.Params, error) {
	fee, err := parseAmount(c.Hub.OpeningFee)
	if err != nil {
		return hub.Params{}, fmt.Errorf("hub.OpeningFee: %w", err)
	}
	minValue, err := parseAmount(c.Hub.MinimumCollateralValue)
	if err != nil {
		return hub.Params{}, fmt.Errorf("hub.MinimumCollateralValue: %w", err)
	}
	return hub.Params{
		OpeningFee:             fee,
		MinimumCollateralValue: minValue,
		ChallengerRewardPPM:    c.Hub.ChallengerRewardPPM,
		MaxCollateralDecimals:  c.Hub.MaxCollateralDecimals,
	}, nil
}

// ReserveParams converts the config into the pool's parameter set.
func (c *Config) ReserveParams() reserve.Params {
	return reserve.Params{
		QuorumBps:         c.Reserve.QuorumBps,
		MaxDelegationHops: c.Reserve.MaxDelegationHops,
	}
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must be non-negative", s)
	}
	return amount, nil
}
