package config

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network.Params() == nil {
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Regtest)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}
	if cfg.Paycode.CoinType >= bip32.FirstHardenedChild {
		return fmt.Errorf("paycode.cointype %d does not fit a hardened index", cfg.Paycode.CoinType)
	}
	if cfg.Paycode.Lookahead == 0 || cfg.Paycode.Lookahead > MaxLookahead {
		return fmt.Errorf("paycode.lookahead must be in range [1, %d]", MaxLookahead)
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}
