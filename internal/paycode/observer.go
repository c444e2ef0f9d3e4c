package paycode

import (
	"github.com/Klingon-tech/klingnet-paycode/internal/log"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/rs/zerolog"
)

// AccountEvent describes a newly created account.
type AccountEvent struct {
	Side  Side
	Index uint32
	// MyCode is the account's own payment code.
	MyCode PaymentCode
	// TheirCode is set for sending accounts only.
	TheirCode PaymentCode
	// NotificationAddress is the account's own notification address for
	// receiving accounts, and the counterparty's for sending accounts.
	NotificationAddress types.Address
	Label               string
}

// ChannelEvent describes a counterparty discovered by a receiving account.
type ChannelEvent struct {
	Account   uint32
	ChannelID types.Hash
	TheirCode PaymentCode
	Outpoint  types.Outpoint
}

// RejectEvent describes a notification payload that did not decode.
type RejectEvent struct {
	Account  uint32
	Outpoint types.Outpoint
	Err      error
}

// Observer is notified of wallet state changes.
type Observer interface {
	AccountCreated(AccountEvent)
	ChannelDiscovered(ChannelEvent)
	PayloadRejected(RejectEvent)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) AccountCreated(AccountEvent) {}
func (NopObserver) ChannelDiscovered(ChannelEvent) {}
func (NopObserver) PayloadRejected(RejectEvent) {}

// LogObserver writes events to a zerolog logger.
type LogObserver struct {
	Logger zerolog.Logger
}

// NewLogObserver returns an observer logging to the paycode component logger.
func NewLogObserver() *LogObserver {
	return &LogObserver{Logger: log.Paycode}
}

func (o *LogObserver) AccountCreated(ev AccountEvent) {
	e := o.Logger.Info().
		Str("side", ev.Side.String()).
		Uint32("account", ev.Index).
		Str("naddr", ev.NotificationAddress.String())
	switch ev.Side {
	case SideReceiver:
		e = e.Str("pcode", ev.MyCode.String()).Str("label", ev.Label)
	case SideSender:
		e = e.Str("their_pcode", ev.TheirCode.String())
	}
	e.Msg("Account created")
}

func (o *LogObserver) ChannelDiscovered(ev ChannelEvent) {
	o.Logger.Info().
		Uint32("account", ev.Account).
		Str("channel", ev.ChannelID.String()).
		Str("their_pcode", ev.TheirCode.String()).
		Str("outpoint", ev.Outpoint.String()).
		Msg("Payment channel discovered")
}

func (o *LogObserver) PayloadRejected(ev RejectEvent) {
	o.Logger.Debug().
		Uint32("account", ev.Account).
		Str("outpoint", ev.Outpoint.String()).
		Err(ev.Err).
		Msg("Notification payload rejected")
}
