package paycode

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AccountReceiver publishes a payment code and keeps one receiver-side
// channel per counterparty that announced itself.
type AccountReceiver struct {
	accountKeys
	label    string
	notifKey *secp256k1.PrivateKey
	channels []*PaymentChannel
	observer Observer

	notifAddr *AddressKey
}

func newAccountReceiver(root *wallet.HDKey, index uint32, label string, params *chaincfg.Params, lookahead uint32, obs Observer) (*AccountReceiver, error) {
	keys, err := newAccountKeys(root, index, params, lookahead)
	if err != nil {
		return nil, err
	}
	notif, err := keys.key.DeriveNotification()
	if err != nil {
		return nil, fmt.Errorf("derive notification key: %w", err)
	}
	notifKey, err := notif.PrivKey()
	if err != nil {
		return nil, err
	}
	return &AccountReceiver{
		accountKeys: keys,
		label:       label,
		notifKey:    notifKey,
		observer:    obs,
	}, nil
}

// Label returns the label given at creation.
func (a *AccountReceiver) Label() string { return a.label }

// NotificationAddress returns the account's own notification address.
// Counterparties send their masked payment code there.
func (a *AccountReceiver) NotificationAddress() (types.Address, error) {
	ak, err := a.notificationKey()
	if err != nil {
		return types.Address{}, err
	}
	return ak.Address, nil
}

func (a *AccountReceiver) notificationKey() (AddressKey, error) {
	if a.notifAddr == nil {
		addr, err := a.myCode.NotificationAddress(a.params)
		if err != nil {
			return AddressKey{}, err
		}
		a.notifAddr = &AddressKey{Address: addr, Index: wallet.NotificationIndex, PrivKey: a.notifKey}
	}
	return *a.notifAddr, nil
}

// AcceptMaskedPayload tries to recover a counterparty payment code from a
// notification payload. It returns false when the payload is not addressed
// to this account or does not decode. A counterparty seen before is
// reported as true without creating a second channel. The error is reserved
// for key derivation failures.
//
// Payloads carry no checksum, so one masked for another recipient still
// decodes to a well-formed code about half the time. Only feed it payloads
// from transactions that pay NotificationAddress.
func (a *AccountReceiver) AcceptMaskedPayload(payload []byte, outpoint types.Outpoint, outpointPubKey []byte) (bool, error) {
	theirCode, err := UnmaskPayload(payload, outpoint, a.notifKey, outpointPubKey)
	if err != nil {
		a.observer.PayloadRejected(RejectEvent{Account: a.index, Outpoint: outpoint, Err: err})
		return false, nil
	}
	if a.FindTheirPaymentCode(theirCode) {
		return true, nil
	}
	ch, err := a.addChannel(theirCode)
	if err != nil {
		return false, err
	}
	a.observer.ChannelDiscovered(ChannelEvent{
		Account:   a.index,
		ChannelID: ch.ID(),
		TheirCode: theirCode,
		Outpoint:  outpoint,
	})
	return true, nil
}

func (a *AccountReceiver) addChannel(theirCode PaymentCode) (*PaymentChannel, error) {
	ch, err := a.newChannel(theirCode, SideReceiver)
	if err != nil {
		return nil, err
	}
	a.channels = append(a.channels, ch)
	return ch, nil
}

// FindTheirPaymentCode reports whether a channel to code exists.
func (a *AccountReceiver) FindTheirPaymentCode(code PaymentCode) bool {
	return a.Channel(code) != nil
}

// Channel returns the channel to code, or nil.
func (a *AccountReceiver) Channel(code PaymentCode) *PaymentChannel {
	for _, ch := range a.channels {
		if ch.TheirPaymentCode() == code {
			return ch
		}
	}
	return nil
}

// Channels returns the channels in discovery order.
func (a *AccountReceiver) Channels() []*PaymentChannel {
	return append([]*PaymentChannel(nil), a.channels...)
}

// UsedAddresses concatenates the used addresses of every channel in
// discovery order.
func (a *AccountReceiver) UsedAddresses() ([]AddressKey, error) {
	var out []AddressKey
	for _, ch := range a.channels {
		used, err := ch.UsedAddresses()
		if err != nil {
			return nil, err
		}
		out = append(out, used...)
	}
	return out, nil
}

// NextAddresses returns the notification address followed by the lookahead
// window of every channel in discovery order.
func (a *AccountReceiver) NextAddresses() ([]AddressKey, error) {
	naddr, err := a.notificationKey()
	if err != nil {
		return nil, err
	}
	out := []AddressKey{naddr}
	for _, ch := range a.channels {
		next, err := ch.NextAddresses()
		if err != nil {
			return nil, err
		}
		out = append(out, next...)
	}
	return out, nil
}

// MarkAddressUsed marks addr used in the first channel whose window holds it.
func (a *AccountReceiver) MarkAddressUsed(addr types.Address) (bool, error) {
	for _, ch := range a.channels {
		ok, err := ch.MarkAddressUsed(addr)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// IncomingAddress looks addr up across all channels.
func (a *AccountReceiver) IncomingAddress(addr types.Address) (*PaymentChannel, IncomingAddress, bool, error) {
	for _, ch := range a.channels {
		ia, ok, err := ch.IncomingAddress(addr)
		if err != nil {
			return nil, IncomingAddress{}, false, err
		}
		if ok {
			return ch, ia, true, nil
		}
	}
	return nil, IncomingAddress{}, false, nil
}
