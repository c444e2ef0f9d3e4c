// paycode-cli manages BIP-47 payment code accounts for a wallet seed.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/Klingon-tech/klingnet-paycode/config"
	"github.com/Klingon-tech/klingnet-paycode/internal/log"
	"github.com/Klingon-tech/klingnet-paycode/internal/paycode"
	"github.com/Klingon-tech/klingnet-paycode/internal/storage"
	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"golang.org/x/term"
)

const version = "0.1.0"

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fatal("%v", err)
	}
	if flags.Help {
		config.PrintUsage(os.Stdout)
		return
	}
	if flags.Version {
		fmt.Println("paycode-cli version " + version)
		return
	}
	if len(flags.Args) == 0 {
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	cmd := flags.Args[0]
	cmdArgs := flags.Args[1:]

	switch cmd {
	case "new-mnemonic":
		cmdNewMnemonic()
	case "init":
		cmdInit(cfg)
	case "receive":
		withWallet(cfg, func(w *paycode.Wallet) error { return cmdReceive(cfg, w) })
	case "send":
		if len(cmdArgs) != 1 {
			fatal("usage: paycode-cli send <payment-code>")
		}
		withWallet(cfg, func(w *paycode.Wallet) error { return cmdSend(w, cmdArgs[0]) })
	case "accept":
		if len(cmdArgs) != 4 {
			fatal("usage: paycode-cli accept <notification-address> <txid:index> <input-pubkey-hex> <payload-hex>")
		}
		withWallet(cfg, func(w *paycode.Wallet) error { return cmdAccept(w, cmdArgs) })
	case "mark-used":
		if len(cmdArgs) != 1 {
			fatal("usage: paycode-cli mark-used <address>")
		}
		withWallet(cfg, func(w *paycode.Wallet) error { return cmdMarkUsed(w, cmdArgs[0]) })
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		config.PrintUsage(os.Stderr)
		os.Exit(1)
	}
}

// withWallet opens the store, loads the wallet, runs fn and saves the
// result.
func withWallet(cfg *config.Config, fn func(*paycode.Wallet) error) {
	if err := runWithWallet(cfg, fn); err != nil {
		fatal("%v", err)
	}
}

func runWithWallet(cfg *config.Config, fn func(*paycode.Wallet) error) error {
	seed, err := unlockSeed(cfg)
	if err != nil {
		return err
	}

	w, err := paycode.NewWallet(seed, paycode.Config{
		Params:    cfg.Network.Params(),
		CoinType:  cfg.Paycode.CoinType,
		Lookahead: cfg.Paycode.Lookahead,
		Observer:  paycode.NewLogObserver(),
	})
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}

	db, err := storage.NewBadger(cfg.WalletDir())
	if err != nil {
		return fmt.Errorf("open wallet store: %w", err)
	}
	defer db.Close()

	store := paycode.NewStore(db)
	if err := store.Load(w); err != nil {
		if errors.Is(err, paycode.ErrRecordMismatch) {
			return fmt.Errorf("wallet data in %s belongs to a different seed or coin type", cfg.WalletDir())
		}
		return fmt.Errorf("load wallet: %w", err)
	}

	if err := fn(w); err != nil {
		return err
	}
	if err := store.Save(w); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

// unlockSeed opens the seed vault when one exists, and otherwise derives
// the seed from a mnemonic.
func unlockSeed(cfg *config.Config) ([]byte, error) {
	vault := wallet.NewVault(cfg.VaultFile())
	if !vault.Exists() {
		return readSeed()
	}
	password, err := readPassword()
	if err != nil {
		return nil, err
	}
	seed, err := vault.Open(password)
	if err != nil {
		return nil, fmt.Errorf("unlock seed vault: %w", err)
	}
	return seed, nil
}

func readPassword() ([]byte, error) {
	if p, ok := os.LookupEnv("PAYCODE_PASSWORD"); ok {
		return []byte(p), nil
	}
	p, err := readSecret("Vault password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return p, nil
}

// readSeed builds the BIP-39 seed from PAYCODE_MNEMONIC and
// PAYCODE_PASSPHRASE, prompting on the terminal for whichever is unset.
func readSeed() ([]byte, error) {
	mnemonic, ok := os.LookupEnv("PAYCODE_MNEMONIC")
	if !ok {
		b, err := readSecret("Mnemonic: ")
		if err != nil {
			return nil, fmt.Errorf("read mnemonic: %w", err)
		}
		mnemonic = string(b)
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !wallet.ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	passphrase, ok := os.LookupEnv("PAYCODE_PASSPHRASE")
	if !ok && term.IsTerminal(int(syscall.Stdin)) {
		b, err := readSecret("Passphrase (empty for none): ")
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		passphrase = string(b)
	}
	return wallet.SeedFromMnemonic(mnemonic, passphrase)
}

func readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return secret, nil
}

func cmdNewMnemonic() {
	m, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}
	fmt.Println(m)
}

func cmdInit(cfg *config.Config) {
	vault := wallet.NewVault(cfg.VaultFile())
	if vault.Exists() {
		fatal("seed vault already exists at %s", cfg.VaultFile())
	}
	seed, err := readSeed()
	if err != nil {
		fatal("%v", err)
	}

	password, err := readPassword()
	if err != nil {
		fatal("%v", err)
	}
	if _, ok := os.LookupEnv("PAYCODE_PASSWORD"); !ok {
		confirm, err := readSecret("Confirm password: ")
		if err != nil {
			fatal("read password: %v", err)
		}
		if string(confirm) != string(password) {
			fatal("passwords do not match")
		}
	}
	if len(password) == 0 {
		fatal("password must not be empty")
	}

	if err := vault.Create(seed, password, wallet.DefaultKDFParams()); err != nil {
		fatal("%v", err)
	}
	fp, err := vault.Fingerprint()
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Seed vault created: %s (fingerprint %s)\n", cfg.VaultFile(), fp)
}

func cmdReceive(cfg *config.Config, w *paycode.Wallet) error {
	if len(w.ReceivingAccounts()) == 0 {
		if _, err := w.CreateReceivingAccount(cfg.Paycode.Label); err != nil {
			return err
		}
	}

	for _, acc := range w.ReceivingAccounts() {
		naddr, err := acc.NotificationAddress()
		if err != nil {
			return err
		}
		fmt.Printf("Account %d (%s)\n", acc.AccountIndex(), acc.Label())
		fmt.Printf("  Payment code:         %s\n", acc.MyPaymentCode())
		fmt.Printf("  Notification address: %s\n", naddr)
		for _, ch := range acc.Channels() {
			fmt.Printf("  From %s (received %d)\n", ch.TheirPaymentCode(), ch.CurrentIncomingIndex())
			next, err := ch.NextAddresses()
			if err != nil {
				return err
			}
			for _, ak := range next {
				fmt.Printf("    %4d  %s\n", ak.Index, ak.Address)
			}
		}
	}
	return nil
}

func cmdSend(w *paycode.Wallet, code string) error {
	theirCode, err := paycode.Parse(code)
	if err != nil {
		return err
	}
	acc, err := w.ProvideSendingAccount(theirCode)
	if err != nil {
		return err
	}
	ch := acc.Channel()

	fmt.Printf("Sending account %d\n", acc.AccountIndex())
	fmt.Printf("  Your payment code:    %s\n", acc.MyPaymentCode())
	fmt.Printf("  Notification address: %s\n", acc.NotificationAddress())
	if ch.IsNotificationSent() {
		fmt.Printf("  Notification tx:      %s\n", ch.NotificationTxHash())
	} else {
		fmt.Println("  Notification tx:      not sent")
	}
	next, err := ch.NextOutgoingAddress()
	if err != nil {
		return err
	}
	fmt.Printf("  Next payment address: %s (index %d)\n", next, ch.CurrentOutgoingIndex())
	return nil
}

func cmdAccept(w *paycode.Wallet, args []string) error {
	naddr, err := types.ParseAddress(args[0])
	if err != nil {
		return err
	}
	outpoint, err := parseOutpoint(args[1])
	if err != nil {
		return err
	}
	pub, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("input pubkey: %w", err)
	}
	payload, err := hex.DecodeString(args[3])
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}

	// Only the account owning the paid notification address may decode.
	for _, acc := range w.ReceivingAccounts() {
		own, err := acc.NotificationAddress()
		if err != nil {
			return err
		}
		if own != naddr {
			continue
		}
		before := len(acc.Channels())
		ok, err := acc.AcceptMaskedPayload(payload, outpoint, pub)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			fmt.Printf("Account %d: payload rejected\n", acc.AccountIndex())
		case len(acc.Channels()) > before:
			ch := acc.Channels()[before]
			fmt.Printf("Account %d: new channel %s from %s\n", acc.AccountIndex(), ch.ID(), ch.TheirPaymentCode())
		default:
			fmt.Printf("Account %d: notification from a known payment code\n", acc.AccountIndex())
		}
		return nil
	}
	return fmt.Errorf("%s is not the notification address of any receiving account", naddr)
}

func cmdMarkUsed(w *paycode.Wallet, s string) error {
	addr, err := types.ParseAddress(s)
	if err != nil {
		return err
	}
	for _, acc := range w.Accounts() {
		ok, err := acc.MarkAddressUsed(addr)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("Marked %s used\n", addr)
			return nil
		}
	}
	fmt.Printf("%s is not watched by any account\n", addr)
	return nil
}

// parseOutpoint parses "txid:index" with the txid in display order.
func parseOutpoint(s string) (types.Outpoint, error) {
	txid, idx, ok := strings.Cut(s, ":")
	if !ok {
		return types.Outpoint{}, fmt.Errorf("outpoint must be txid:index")
	}
	h, err := types.HexToHash(txid)
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("outpoint txid: %w", err)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("outpoint index: %w", err)
	}
	return types.Outpoint{TxID: h, Index: uint32(n)}, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
