package paycode

import (
	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AccountSender pays one counterparty. It owns exactly one sender-side
// channel and watches a single address: the counterparty's notification
// address.
type AccountSender struct {
	accountKeys
	theirCode  PaymentCode
	channel    *PaymentChannel
	theirNotif AddressKey
	notifPaid  bool
}

func newAccountSender(root *wallet.HDKey, index uint32, theirCode PaymentCode, params *chaincfg.Params, lookahead uint32) (*AccountSender, error) {
	keys, err := newAccountKeys(root, index, params, lookahead)
	if err != nil {
		return nil, err
	}
	ch, err := keys.newChannel(theirCode, SideSender)
	if err != nil {
		return nil, err
	}
	naddr, err := theirCode.NotificationAddress(params)
	if err != nil {
		return nil, err
	}
	return &AccountSender{
		accountKeys: keys,
		theirCode:   theirCode,
		channel:     ch,
		theirNotif:  AddressKey{Address: naddr, Index: wallet.NotificationIndex},
	}, nil
}

// TheirPaymentCode returns the counterparty this account pays.
func (a *AccountSender) TheirPaymentCode() PaymentCode { return a.theirCode }

// Channel returns the account's payment channel.
func (a *AccountSender) Channel() *PaymentChannel { return a.channel }

// NotificationAddress returns the counterparty's notification address, the
// destination of the notification transaction.
func (a *AccountSender) NotificationAddress() types.Address { return a.theirNotif.Address }

// MaskedPayload returns the payload to embed in the notification
// transaction spending outpoint with outpointKey.
func (a *AccountSender) MaskedPayload(outpoint types.Outpoint, outpointKey *secp256k1.PrivateKey) ([]byte, error) {
	return a.channel.MaskPayload(outpoint, outpointKey)
}

// UsedAddresses returns the outgoing addresses already paid.
func (a *AccountSender) UsedAddresses() ([]AddressKey, error) {
	return a.channel.UsedAddresses()
}

// NextAddresses returns the counterparty's notification address as the only
// watched address.
func (a *AccountSender) NextAddresses() ([]AddressKey, error) {
	return []AddressKey{a.theirNotif}, nil
}

// NotificationPaid reports whether the counterparty's notification address
// has been seen paid.
func (a *AccountSender) NotificationPaid() bool { return a.notifPaid }

// MarkAddressUsed records a payment to the counterparty's notification
// address, or otherwise advances the outgoing window past addr.
func (a *AccountSender) MarkAddressUsed(addr types.Address) (bool, error) {
	if addr == a.theirNotif.Address {
		a.notifPaid = true
		return true, nil
	}
	return a.channel.MarkAddressUsed(addr)
}
