package paycode

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/crypto"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DefaultLookahead is the number of not-yet-used addresses a channel keeps
// in its watch window.
const DefaultLookahead = 20

// Side selects which party's keys are local inside a channel.
type Side int

const (
	// SideSender derives addresses the local party pays to.
	SideSender Side = iota
	// SideReceiver derives addresses the local party receives on.
	SideReceiver
)

func (s Side) String() string {
	switch s {
	case SideSender:
		return "sender"
	case SideReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ChannelStatus tracks whether the notification transaction went out.
type ChannelStatus int32

const (
	StatusNotSent       ChannelStatus = 0
	StatusSentConfirmed ChannelStatus = 1
)

// ErrRecordMismatch is returned when a persisted record does not belong to
// the channel or wallet it is restored into.
var ErrRecordMismatch = errors.New("record does not match wallet")

// AddressKey is one derived address of a channel or account. PrivKey is set
// only for addresses the local party can spend from.
type AddressKey struct {
	Address types.Address
	Index   uint32
	PrivKey *secp256k1.PrivateKey
}

// PaymentChannel ties one local account key to one counterparty payment code.
type PaymentChannel struct {
	side      Side
	params    *chaincfg.Params
	lookahead uint32

	accountKey *wallet.HDKey
	notifKey   *secp256k1.PrivateKey
	myCode     PaymentCode
	theirCode  PaymentCode

	label          string
	status         ChannelStatus
	incomingIndex  uint32
	outgoingIndex  uint32
	notificationTx types.Hash
	transactions   []types.Hash
}

// NewPaymentChannel creates a channel for accountKey (a private account-level
// key) talking to theirCode.
func NewPaymentChannel(theirCode PaymentCode, accountKey *wallet.HDKey, side Side, params *chaincfg.Params, lookahead uint32) (*PaymentChannel, error) {
	if !accountKey.IsPrivate() {
		return nil, fmt.Errorf("payment channel needs a private account key")
	}
	myCode, err := FromKey(accountKey)
	if err != nil {
		return nil, err
	}
	notif, err := accountKey.DeriveNotification()
	if err != nil {
		return nil, fmt.Errorf("derive notification key: %w", err)
	}
	notifKey, err := notif.PrivKey()
	if err != nil {
		return nil, err
	}
	if lookahead == 0 {
		lookahead = DefaultLookahead
	}
	return &PaymentChannel{
		side:       side,
		params:     params,
		lookahead:  lookahead,
		accountKey: accountKey,
		notifKey:   notifKey,
		myCode:     myCode,
		theirCode:  theirCode,
	}, nil
}

// Side returns which side of the relationship the channel is on.
func (c *PaymentChannel) Side() Side { return c.side }

// MyPaymentCode returns the local payment code.
func (c *PaymentChannel) MyPaymentCode() PaymentCode { return c.myCode }

// TheirPaymentCode returns the counterparty payment code.
func (c *PaymentChannel) TheirPaymentCode() PaymentCode { return c.theirCode }

// ID returns a local identifier for the channel, stable across restarts.
func (c *PaymentChannel) ID() types.Hash {
	return crypto.Hash(append(c.myCode.Bytes(), c.theirCode.Bytes()...))
}

// Label returns the user label.
func (c *PaymentChannel) Label() string { return c.label }

// SetLabel sets the user label.
func (c *PaymentChannel) SetLabel(l string) { c.label = l }

// DeriveAddress derives the i-th address of the shared sequence.
//
// A receiver combines its own child key i with the sender's notification
// key; a sender combines its own notification key with the receiver's child
// key i. Both land on the same address:
//
//	S = b_i*A = a*B_i, s = SHA256(S.x), address = HASH160(B_i + s*G)
//
// Only the receiver learns the private key b_i + s.
func (c *PaymentChannel) DeriveAddress(i uint32) (AddressKey, error) {
	switch c.side {
	case SideReceiver:
		return c.deriveIncoming(i)
	case SideSender:
		return c.deriveOutgoing(i)
	default:
		return AddressKey{}, fmt.Errorf("unknown channel side %d", c.side)
	}
}

func (c *PaymentChannel) deriveIncoming(i uint32) (AddressKey, error) {
	child, err := c.accountKey.DeriveChild(i)
	if err != nil {
		return AddressKey{}, err
	}
	own, err := child.PrivKey()
	if err != nil {
		return AddressKey{}, err
	}
	theirs, err := c.theirCode.NotificationPubKey()
	if err != nil {
		return AddressKey{}, fmt.Errorf("derive counterparty notification key: %w", err)
	}
	s, err := sharedScalar(own, theirs)
	if err != nil {
		return AddressKey{}, fmt.Errorf("address %d: %w", i, err)
	}
	priv, err := crypto.TweakPrivKey(own, s)
	if err != nil {
		return AddressKey{}, fmt.Errorf("address %d: %w", i, err)
	}
	return AddressKey{Address: addressOf(c.params, priv.PubKey()), Index: i, PrivKey: priv}, nil
}

func (c *PaymentChannel) deriveOutgoing(i uint32) (AddressKey, error) {
	theirs, err := c.theirCode.DerivePubKey(i)
	if err != nil {
		return AddressKey{}, fmt.Errorf("derive counterparty key %d: %w", i, err)
	}
	s, err := sharedScalar(c.notifKey, theirs)
	if err != nil {
		return AddressKey{}, fmt.Errorf("address %d: %w", i, err)
	}
	pub, err := crypto.TweakPubKey(theirs, s)
	if err != nil {
		return AddressKey{}, fmt.Errorf("address %d: %w", i, err)
	}
	return AddressKey{Address: addressOf(c.params, pub), Index: i}, nil
}

func sharedScalar(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) (*secp256k1.ModNScalar, error) {
	x, err := crypto.SharedSecret(priv, pub)
	if err != nil {
		return nil, err
	}
	return crypto.SecretScalar(x)
}

// currentIndex is the first unused index of the sequence the channel watches:
// incoming for receivers, outgoing for senders.
func (c *PaymentChannel) currentIndex() uint32 {
	if c.side == SideReceiver {
		return c.incomingIndex
	}
	return c.outgoingIndex
}

func (c *PaymentChannel) setCurrentIndex(i uint32) {
	if c.side == SideReceiver {
		c.incomingIndex = i
	} else {
		c.outgoingIndex = i
	}
}

func (c *PaymentChannel) deriveRange(from, to uint32) ([]AddressKey, error) {
	out := make([]AddressKey, 0, to-from)
	for i := from; i < to; i++ {
		ak, err := c.DeriveAddress(i)
		if err != nil {
			return nil, err
		}
		out = append(out, ak)
	}
	return out, nil
}

// UsedAddresses returns every address below the current index, in index
// order. The slice is freshly built on each call.
func (c *PaymentChannel) UsedAddresses() ([]AddressKey, error) {
	return c.deriveRange(0, c.currentIndex())
}

// NextAddresses returns the lookahead window starting at the current index.
// The slice is freshly built on each call.
func (c *PaymentChannel) NextAddresses() ([]AddressKey, error) {
	cur := c.currentIndex()
	return c.deriveRange(cur, cur+c.lookahead)
}

// MarkAddressUsed advances the current index past addr if addr is in the
// lookahead window. It returns false, without error, for addresses this
// channel does not know.
func (c *PaymentChannel) MarkAddressUsed(addr types.Address) (bool, error) {
	next, err := c.NextAddresses()
	if err != nil {
		return false, err
	}
	for _, ak := range next {
		if ak.Address == addr {
			c.setCurrentIndex(ak.Index + 1)
			return true, nil
		}
	}
	return false, nil
}

// CurrentIncomingIndex returns the number of incoming addresses used so far.
func (c *PaymentChannel) CurrentIncomingIndex() uint32 { return c.incomingIndex }

// CurrentOutgoingIndex returns the number of outgoing addresses paid so far.
func (c *PaymentChannel) CurrentOutgoingIndex() uint32 { return c.outgoingIndex }

// IncrementOutgoingIndex moves past the current outgoing address.
func (c *PaymentChannel) IncrementOutgoingIndex() { c.outgoingIndex++ }

// NextOutgoingAddress returns the address a sender should pay next.
func (c *PaymentChannel) NextOutgoingAddress() (types.Address, error) {
	if c.side != SideSender {
		return types.Address{}, fmt.Errorf("next outgoing address needs a sender channel")
	}
	ak, err := c.DeriveAddress(c.outgoingIndex)
	if err != nil {
		return types.Address{}, err
	}
	return ak.Address, nil
}

// IncomingAddress looks addr up among the used and lookahead incoming
// addresses of a receiver channel.
func (c *PaymentChannel) IncomingAddress(addr types.Address) (IncomingAddress, bool, error) {
	if c.side != SideReceiver {
		return IncomingAddress{}, false, nil
	}
	all, err := c.deriveRange(0, c.incomingIndex+c.lookahead)
	if err != nil {
		return IncomingAddress{}, false, err
	}
	for _, ak := range all {
		if ak.Address == addr {
			return c.incomingEntry(ak), true, nil
		}
	}
	return IncomingAddress{}, false, nil
}

func (c *PaymentChannel) incomingEntry(ak AddressKey) IncomingAddress {
	return IncomingAddress{
		Address: ak.Address.String(),
		Index:   int32(ak.Index),
		Seen:    ak.Index < c.incomingIndex,
	}
}

// SetStatusSent records that the notification transaction txHash confirmed.
func (c *PaymentChannel) SetStatusSent(txHash types.Hash) {
	c.status = StatusSentConfirmed
	c.notificationTx = txHash
}

// SetStatusNotSent clears the notification status.
func (c *PaymentChannel) SetStatusNotSent() {
	c.status = StatusNotSent
	c.notificationTx = types.Hash{}
}

// IsNotificationSent reports whether the notification transaction confirmed.
func (c *PaymentChannel) IsNotificationSent() bool {
	return c.status == StatusSentConfirmed
}

// NotificationTxHash returns the hash of the notification transaction.
func (c *PaymentChannel) NotificationTxHash() types.Hash { return c.notificationTx }

// AddTransaction records a transaction paying through this channel.
// Duplicates are ignored.
func (c *PaymentChannel) AddTransaction(hash types.Hash) {
	for _, h := range c.transactions {
		if h == hash {
			return
		}
	}
	c.transactions = append(c.transactions, hash)
}

// Transactions returns the recorded transaction hashes in insertion order.
func (c *PaymentChannel) Transactions() []types.Hash {
	return append([]types.Hash(nil), c.transactions...)
}

// MaskPayload blinds the local payment code for a notification transaction
// to the counterparty. It does not change channel state.
func (c *PaymentChannel) MaskPayload(outpoint types.Outpoint, outpointKey *secp256k1.PrivateKey) ([]byte, error) {
	return MaskPayload(c.myCode, c.theirCode, outpoint, outpointKey)
}

// UnmaskPayload recovers a payment code from a notification payload sent to
// the local notification address.
func (c *PaymentChannel) UnmaskPayload(payload []byte, outpoint types.Outpoint, outpointPubKey []byte) (PaymentCode, error) {
	return UnmaskPayload(payload, outpoint, c.notifKey, outpointPubKey)
}

// Record returns the persisted form of the channel.
func (c *PaymentChannel) Record() (*ChannelRecord, error) {
	rec := &ChannelRecord{
		MyPaymentCode:        c.myCode.String(),
		PaymentCode:          c.theirCode.String(),
		Label:                c.label,
		Status:               c.status,
		CurrentIncomingIndex: int32(c.incomingIndex),
		CurrentOutgoingIndex: int32(c.outgoingIndex),
		NotificationTxHash:   c.notificationTx,
		Transactions:         c.Transactions(),
	}

	switch c.side {
	case SideReceiver:
		all, err := c.deriveRange(0, c.incomingIndex+c.lookahead)
		if err != nil {
			return nil, err
		}
		for _, ak := range all {
			rec.IncomingAddresses = append(rec.IncomingAddresses, c.incomingEntry(ak))
		}
	case SideSender:
		used, err := c.UsedAddresses()
		if err != nil {
			return nil, err
		}
		for _, ak := range used {
			rec.OutgoingAddresses = append(rec.OutgoingAddresses, ak.Address.String())
		}
	}
	return rec, nil
}

// restore loads persisted state into a freshly created channel.
func (c *PaymentChannel) restore(rec *ChannelRecord) error {
	if rec.MyPaymentCode != c.myCode.String() || rec.PaymentCode != c.theirCode.String() {
		return fmt.Errorf("%w: channel %s -> %s", ErrRecordMismatch, rec.MyPaymentCode, rec.PaymentCode)
	}
	if rec.CurrentIncomingIndex < 0 || rec.CurrentOutgoingIndex < 0 {
		return fmt.Errorf("%w: negative address index", ErrRecordMismatch)
	}
	c.label = rec.Label
	c.status = rec.Status
	c.incomingIndex = uint32(rec.CurrentIncomingIndex)
	c.outgoingIndex = uint32(rec.CurrentOutgoingIndex)
	c.notificationTx = rec.NotificationTxHash
	c.transactions = append([]types.Hash(nil), rec.Transactions...)
	return nil
}
