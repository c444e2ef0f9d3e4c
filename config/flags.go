package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Payment codes
	CoinType  uint
	Lookahead uint
	Label     string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args (the command and its operands)
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetCoinType bool
	SetLogJSON  bool
}

// ParseFlags parses command-line arguments, excluding the program name.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("paycode-cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet, testnet or regtest)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	regtest := fs.Bool("regtest", false, "Use regtest (shorthand for --network=regtest)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Payment codes
	fs.UintVar(&f.CoinType, "coin-type", 0, "Coin type of the derivation paths")
	fs.UintVar(&f.Lookahead, "lookahead", 0, "Unused addresses watched per channel")
	fs.StringVar(&f.Label, "label", "", "Label of the first receiving account")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case *testnet && *regtest:
		return nil, fmt.Errorf("--testnet and --regtest are mutually exclusive")
	case *testnet:
		f.Network = string(Testnet)
	case *regtest:
		f.Network = string(Regtest)
	}
	f.SetCoinType = isFlagSet(fs, "coin-type")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	if f.CoinType > 1<<31-1 {
		return nil, fmt.Errorf("--coin-type %d does not fit a hardened index", f.CoinType)
	}

	f.Args = fs.Args()

	// Flags after the command are not parsed; reject them rather than
	// silently treating them as operands.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (flags must precede the command)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Payment codes
	if f.SetCoinType {
		cfg.Paycode.CoinType = uint32(f.CoinType)
	}
	if f.Lookahead != 0 {
		cfg.Paycode.Lookahead = uint32(f.Lookahead)
	}
	if f.Label != "" {
		cfg.Paycode.Label = f.Label
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	usage := `Paycode wallet - BIP-47 reusable payment codes

Usage:
  paycode-cli [options] <command> [arguments]

Commands:
  new-mnemonic          Print a fresh 24-word mnemonic
  init                  Encrypt the wallet seed into <datadir>/<network>/seed.vault
  receive               Show the receiving account's payment code and
                        notification address, and its watched addresses
  send <payment-code>   Show the notification address and the outgoing
                        addresses for a counterparty
  accept <naddr> <txid:index> <input-pubkey> <payload>
                        Process a notification transaction payload
  mark-used <address>   Advance the account watching address

Core Options:
  --network       Network type: mainnet (default), testnet or regtest
  --testnet       Shorthand for --network=testnet
  --regtest       Shorthand for --network=regtest
  --datadir       Data directory (default: ~/.paycode)
  --config, -c    Config file path (default: <datadir>/paycode.conf)

Payment Code Options:
  --coin-type     Coin type in m/47'/<coin>' (default: network's BIP-44 type)
  --lookahead     Unused addresses watched per channel (default: 20)
  --label         Label of the first receiving account

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stderr)
  --log-json      Output logs as JSON

Once init has run, commands unlock the seed vault with PAYCODE_PASSWORD or a
terminal prompt. Without a vault the mnemonic is read from PAYCODE_MNEMONIC
(and PAYCODE_PASSPHRASE) or prompted for.
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if flags.Network != "" {
		network = NetworkType(strings.ToLower(flags.Network))
	}

	// Start with defaults
	cfg := Default(network)

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Validate the network before anything is written under it.
	if network.Params() == nil {
		return nil, nil, fmt.Errorf("invalid config: unknown network %q", network)
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	// Determine config file path
	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	// Load config file
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}

	// Apply file config
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.WalletDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
