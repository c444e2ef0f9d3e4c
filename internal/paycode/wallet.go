package paycode

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
)

// Config holds the wallet parameters.
type Config struct {
	// Params selects the address version byte.
	Params *chaincfg.Params
	// CoinType is the hardened coin type level of the derivation paths.
	CoinType uint32
	// Lookahead is the per-channel watch window size.
	Lookahead uint32
	// Observer receives account and channel events. Nil disables events.
	Observer Observer
}

// DefaultConfig returns a mainnet config with coin type 0 that logs events.
func DefaultConfig() Config {
	return Config{
		Params:    &chaincfg.MainNetParams,
		CoinType:  0,
		Lookahead: DefaultLookahead,
		Observer:  NewLogObserver(),
	}
}

// Wallet owns the send and receive roots and every account derived from
// them. Account indices are dense per role and assigned in creation order.
type Wallet struct {
	cfg         Config
	sendRoot    *wallet.HDKey
	receiveRoot *wallet.HDKey

	receivers    []*AccountReceiver
	senders      []*AccountSender
	senderByCode map[PaymentCode]uint32
}

// NewWallet derives the roots m/47'/coin'/0 and m/47'/coin'/1 from seed.
func NewWallet(seed []byte, cfg Config) (*Wallet, error) {
	if cfg.Params == nil {
		cfg.Params = &chaincfg.MainNetParams
	}
	if cfg.Lookahead == 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	sendRoot, err := master.DeriveRoot(cfg.CoinType, wallet.RootSend)
	if err != nil {
		return nil, fmt.Errorf("derive send root: %w", err)
	}
	receiveRoot, err := master.DeriveRoot(cfg.CoinType, wallet.RootReceive)
	if err != nil {
		return nil, fmt.Errorf("derive receive root: %w", err)
	}
	return &Wallet{
		cfg:          cfg,
		sendRoot:     sendRoot,
		receiveRoot:  receiveRoot,
		senderByCode: make(map[PaymentCode]uint32),
	}, nil
}

// NewWalletFromHash builds a wallet from a 32-byte seed value.
func NewWalletFromHash(seed types.Hash, cfg Config) (*Wallet, error) {
	return NewWallet(seed[:], cfg)
}

// Params returns the network parameters addresses are encoded for.
func (w *Wallet) Params() *chaincfg.Params { return w.cfg.Params }

// SendRoot returns the root key of the sending accounts.
func (w *Wallet) SendRoot() *wallet.HDKey { return w.sendRoot }

// ReceiveRoot returns the root key of the receiving accounts.
func (w *Wallet) ReceiveRoot() *wallet.HDKey { return w.receiveRoot }

// CreateReceivingAccount derives the next receiving account.
func (w *Wallet) CreateReceivingAccount(label string) (*AccountReceiver, error) {
	return w.addReceivingAccount(label, true)
}

func (w *Wallet) addReceivingAccount(label string, notify bool) (*AccountReceiver, error) {
	index := uint32(len(w.receivers))
	acc, err := newAccountReceiver(w.receiveRoot, index, label, w.cfg.Params, w.cfg.Lookahead, w.cfg.Observer)
	if err != nil {
		return nil, err
	}
	naddr, err := acc.NotificationAddress()
	if err != nil {
		return nil, err
	}
	w.receivers = append(w.receivers, acc)
	if notify {
		w.cfg.Observer.AccountCreated(AccountEvent{
			Side:                SideReceiver,
			Index:               index,
			MyCode:              acc.MyPaymentCode(),
			NotificationAddress: naddr,
			Label:               label,
		})
	}
	return acc, nil
}

// ProvideSendingAccount returns the sending account for theirCode, creating
// it on first use.
func (w *Wallet) ProvideSendingAccount(theirCode PaymentCode) (*AccountSender, error) {
	return w.provideSendingAccount(theirCode, true)
}

func (w *Wallet) provideSendingAccount(theirCode PaymentCode, notify bool) (*AccountSender, error) {
	if acc := w.FindSendingAccount(theirCode); acc != nil {
		return acc, nil
	}
	if theirCode.IsZero() {
		return nil, fmt.Errorf("%w: empty payment code", ErrInvalidPaymentCode)
	}
	index := uint32(len(w.senders))
	acc, err := newAccountSender(w.sendRoot, index, theirCode, w.cfg.Params, w.cfg.Lookahead)
	if err != nil {
		return nil, err
	}
	w.senders = append(w.senders, acc)
	w.senderByCode[theirCode] = index
	if notify {
		w.cfg.Observer.AccountCreated(AccountEvent{
			Side:                SideSender,
			Index:               index,
			MyCode:              acc.MyPaymentCode(),
			TheirCode:           theirCode,
			NotificationAddress: acc.NotificationAddress(),
		})
	}
	return acc, nil
}

// FindSendingAccount returns the sending account for theirCode, or nil.
func (w *Wallet) FindSendingAccount(theirCode PaymentCode) *AccountSender {
	idx, ok := w.senderByCode[theirCode]
	if !ok {
		return nil
	}
	return w.senders[idx]
}

// ReceivingAccount returns the receiving account at index, or nil.
func (w *Wallet) ReceivingAccount(index uint32) *AccountReceiver {
	if int(index) >= len(w.receivers) {
		return nil
	}
	return w.receivers[index]
}

// SendingAccount returns the sending account at index, or nil.
func (w *Wallet) SendingAccount(index uint32) *AccountSender {
	if int(index) >= len(w.senders) {
		return nil
	}
	return w.senders[index]
}

// ReceivingAccounts returns the receiving accounts in index order.
func (w *Wallet) ReceivingAccounts() []*AccountReceiver {
	return append([]*AccountReceiver(nil), w.receivers...)
}

// SendingAccounts returns the sending accounts in index order.
func (w *Wallet) SendingAccounts() []*AccountSender {
	return append([]*AccountSender(nil), w.senders...)
}

// Accounts returns every account, receivers first.
func (w *Wallet) Accounts() []Account {
	out := make([]Account, 0, len(w.receivers)+len(w.senders))
	for _, a := range w.receivers {
		out = append(out, a)
	}
	for _, a := range w.senders {
		out = append(out, a)
	}
	return out
}
