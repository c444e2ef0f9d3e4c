package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestNetworkParams(t *testing.T) {
	tests := []struct {
		network NetworkType
		want    *chaincfg.Params
	}{
		{Mainnet, &chaincfg.MainNetParams},
		{Testnet, &chaincfg.TestNet3Params},
		{Regtest, &chaincfg.RegressionNetParams},
		{"bogus", nil},
	}
	for _, tt := range tests {
		if got := tt.network.Params(); got != tt.want {
			t.Errorf("%s.Params() = %v, want %v", tt.network, got, tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	if cfg := Default(Mainnet); cfg.Paycode.CoinType != 0 || cfg.Paycode.Lookahead != 20 {
		t.Errorf("mainnet paycode defaults = %+v", cfg.Paycode)
	}
	if cfg := Default(Testnet); cfg.Paycode.CoinType != 1 || cfg.Network != Testnet {
		t.Errorf("testnet defaults = %s %+v", cfg.Network, cfg.Paycode)
	}
	for _, n := range []NetworkType{Mainnet, Testnet, Regtest} {
		if err := Validate(Default(n)); err != nil {
			t.Errorf("Validate(Default(%s)) error: %v", n, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad network", func(c *Config) { c.Network = "litecoin" }},
		{"empty datadir", func(c *Config) { c.DataDir = "" }},
		{"hardened coin type", func(c *Config) { c.Paycode.CoinType = 1 << 31 }},
		{"zero lookahead", func(c *Config) { c.Paycode.Lookahead = 0 }},
		{"huge lookahead", func(c *Config) { c.Paycode.Lookahead = MaxLookahead + 1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paycode.conf")
	content := `# comment
network = testnet
paycode.cointype = 136
paycode.lookahead = '50'
paycode.label = "shop front"
log.json = yes
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}
	if cfg.Network != Testnet || cfg.Paycode.CoinType != 136 || cfg.Paycode.Lookahead != 50 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Paycode.Label != "shop front" || !cfg.Log.JSON {
		t.Errorf("config = %+v", cfg)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil || len(values) != 0 {
		t.Errorf("LoadFile() = %v, %v", values, err)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	if err := os.WriteFile(path, []byte("no equals sign\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed line")
	}

	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, map[string]string{"paycode.cointype": "-1"}); err == nil {
		t.Error("expected error for negative coin type")
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--testnet", "--coin-type=0", "--lookahead", "7", "--log-json", "send", "PM8T"})
	if err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}
	if f.Network != "testnet" || !f.SetCoinType || f.Lookahead != 7 || !f.SetLogJSON {
		t.Errorf("flags = %+v", f)
	}
	if len(f.Args) != 2 || f.Args[0] != "send" {
		t.Errorf("Args = %v", f.Args)
	}

	cfg := DefaultTestnet()
	ApplyFlags(cfg, f)
	if cfg.Paycode.CoinType != 0 || cfg.Paycode.Lookahead != 7 || !cfg.Log.JSON {
		t.Errorf("config after flags = %+v", cfg)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	if f, err := ParseFlags([]string{"-h"}); err != nil || !f.Help {
		t.Errorf("-h = %+v, %v", f, err)
	}
	if _, err := ParseFlags([]string{"--testnet", "--regtest"}); err == nil {
		t.Error("expected error for two networks")
	}
	if _, err := ParseFlags([]string{"receive", "--lookahead=5"}); err == nil {
		t.Error("expected error for flag after command")
	}
	if _, err := ParseFlags([]string{"--no-such-flag"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, flags, err := Load([]string{"--datadir", dir, "--regtest", "receive"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Network != Regtest || cfg.DataDir != dir {
		t.Errorf("config = %+v", cfg)
	}
	if len(flags.Args) != 1 || flags.Args[0] != "receive" {
		t.Errorf("Args = %v", flags.Args)
	}
	for _, p := range []string{cfg.WalletDir(), cfg.LogsDir(), cfg.ConfigFile()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}

	// The written default config loads back without changing anything.
	again, _, err := Load([]string{"--datadir", dir, "--regtest"})
	if err != nil {
		t.Fatalf("second Load() error: %v", err)
	}
	if again.Paycode != cfg.Paycode {
		t.Errorf("reloaded paycode config = %+v, want %+v", again.Paycode, cfg.Paycode)
	}
}

func TestLoad_UnknownNetwork(t *testing.T) {
	if _, _, err := Load([]string{"--datadir", t.TempDir(), "--network", "dogecoin"}); err == nil {
		t.Error("expected error for unknown network")
	}
}
