// Package config handles paycode wallet configuration.
//
// Values come from defaults, then a key = value file in the data directory,
// then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/btcsuite/btcd/chaincfg"
)

// NetworkType identifies the network addresses are encoded for.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Regtest NetworkType = "regtest"
)

// Params returns the chain parameters of the network, or nil if unknown.
func (n NetworkType) Params() *chaincfg.Params {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return nil
	}
}

// Config holds the wallet runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Payment codes
	Paycode PaycodeConfig

	// Logging
	Log LogConfig
}

// PaycodeConfig holds payment code derivation settings.
type PaycodeConfig struct {
	CoinType  uint32 `conf:"paycode.cointype"`  // Hardened coin type in m/47'/coin'
	Lookahead uint32 `conf:"paycode.lookahead"` // Watched addresses per channel
	Label     string `conf:"paycode.label"`     // Label of the first receiving account
}

// MaxLookahead caps the per-channel window. Every watched address costs
// two EC multiplications per scan.
const MaxLookahead = 1000

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.paycode
//	macOS:   ~/Library/Application Support/Paycode
//	Windows: %APPDATA%\Paycode
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".paycode"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Paycode")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Paycode")
		}
		return filepath.Join(home, "AppData", "Roaming", "Paycode")
	default:
		return filepath.Join(home, ".paycode")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// WalletDir returns the badger directory holding accounts and channels.
func (c *Config) WalletDir() string {
	return filepath.Join(c.NetworkDataDir(), "wallet")
}

// VaultFile returns the path of the encrypted seed.
func (c *Config) VaultFile() string {
	return filepath.Join(c.NetworkDataDir(), "seed.vault")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "paycode.conf")
}
