package paycode

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/internal/log"
	"github.com/Klingon-tech/klingnet-paycode/internal/storage"
)

// Key prefixes.
var (
	prefixRecvAccount = []byte("acct/r/")
	prefixSendAccount = []byte("acct/s/")
	prefixRecvChannel = []byte("chan/r/")
	prefixSendChannel = []byte("chan/s/")
	prefixSendPaid    = []byte("paid/s/")
)

// Store persists wallet accounts and channel state. Indices are encoded
// big-endian so prefix iteration yields them in creation order.
type Store struct {
	db storage.DB
}

// NewStore wraps db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func indexKey(prefix []byte, idx ...uint32) []byte {
	key := append([]byte(nil), prefix...)
	for i, v := range idx {
		if i > 0 {
			key = append(key, '/')
		}
		key = binary.BigEndian.AppendUint32(key, v)
	}
	return key
}

// parseIndexKey extracts the n indices following prefix.
func parseIndexKey(key, prefix []byte, n int) ([]uint32, error) {
	rest := key[len(prefix):]
	if len(rest) != n*4+(n-1) {
		return nil, fmt.Errorf("malformed key %q", key)
	}
	out := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if rest[0] != '/' {
				return nil, fmt.Errorf("malformed key %q", key)
			}
			rest = rest[1:]
		}
		out = append(out, binary.BigEndian.Uint32(rest[:4]))
		rest = rest[4:]
	}
	return out, nil
}

// Save writes every account and channel of w.
func (s *Store) Save(w *Wallet) error {
	for _, acc := range w.receivers {
		if err := s.db.Put(indexKey(prefixRecvAccount, acc.index), []byte(acc.label)); err != nil {
			return fmt.Errorf("save receiving account %d: %w", acc.index, err)
		}
		for seq, ch := range acc.channels {
			if err := s.putChannel(indexKey(prefixRecvChannel, acc.index, uint32(seq)), ch); err != nil {
				return fmt.Errorf("save receiving account %d channel %d: %w", acc.index, seq, err)
			}
		}
	}
	for _, acc := range w.senders {
		if err := s.db.Put(indexKey(prefixSendAccount, acc.index), []byte(acc.theirCode.String())); err != nil {
			return fmt.Errorf("save sending account %d: %w", acc.index, err)
		}
		if err := s.putChannel(indexKey(prefixSendChannel, acc.index), acc.channel); err != nil {
			return fmt.Errorf("save sending account %d channel: %w", acc.index, err)
		}
		if acc.notifPaid {
			if err := s.db.Put(indexKey(prefixSendPaid, acc.index), []byte{1}); err != nil {
				return fmt.Errorf("save sending account %d: %w", acc.index, err)
			}
		}
	}
	log.Storage.Debug().
		Int("receivers", len(w.receivers)).
		Int("senders", len(w.senders)).
		Msg("Wallet saved")
	return nil
}

func (s *Store) putChannel(key []byte, ch *PaymentChannel) error {
	rec, err := ch.Record()
	if err != nil {
		return err
	}
	return s.db.Put(key, rec.Bytes())
}

// Load recreates the persisted accounts in w, which must not have any
// accounts yet, and restores their channel state.
func (s *Store) Load(w *Wallet) error {
	if len(w.receivers) != 0 || len(w.senders) != 0 {
		return fmt.Errorf("load into non-empty wallet")
	}

	err := s.db.ForEach(prefixRecvAccount, func(key, value []byte) error {
		idx, err := parseIndexKey(key, prefixRecvAccount, 1)
		if err != nil {
			return err
		}
		if idx[0] != uint32(len(w.receivers)) {
			return fmt.Errorf("%w: receiving account %d out of sequence", ErrRecordMismatch, idx[0])
		}
		_, err = w.addReceivingAccount(string(value), false)
		return err
	})
	if err != nil {
		return fmt.Errorf("load receiving accounts: %w", err)
	}

	err = s.db.ForEach(prefixRecvChannel, func(key, value []byte) error {
		idx, err := parseIndexKey(key, prefixRecvChannel, 2)
		if err != nil {
			return err
		}
		acc := w.ReceivingAccount(idx[0])
		if acc == nil {
			return fmt.Errorf("%w: channel for unknown receiving account %d", ErrRecordMismatch, idx[0])
		}
		rec, err := DecodeChannelRecord(value)
		if err != nil {
			return err
		}
		theirCode, err := Parse(rec.PaymentCode)
		if err != nil {
			return err
		}
		if acc.FindTheirPaymentCode(theirCode) {
			return fmt.Errorf("%w: duplicate channel %s", ErrRecordMismatch, rec.PaymentCode)
		}
		ch, err := acc.newChannel(theirCode, SideReceiver)
		if err != nil {
			return err
		}
		if err := ch.restore(rec); err != nil {
			return err
		}
		acc.channels = append(acc.channels, ch)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load receiving channels: %w", err)
	}

	err = s.db.ForEach(prefixSendAccount, func(key, value []byte) error {
		idx, err := parseIndexKey(key, prefixSendAccount, 1)
		if err != nil {
			return err
		}
		if idx[0] != uint32(len(w.senders)) {
			return fmt.Errorf("%w: sending account %d out of sequence", ErrRecordMismatch, idx[0])
		}
		theirCode, err := Parse(string(value))
		if err != nil {
			return err
		}
		acc, err := w.provideSendingAccount(theirCode, false)
		if err != nil {
			return err
		}
		if acc.index != idx[0] {
			return fmt.Errorf("%w: duplicate sending account %s", ErrRecordMismatch, value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load sending accounts: %w", err)
	}

	err = s.db.ForEach(prefixSendChannel, func(key, value []byte) error {
		idx, err := parseIndexKey(key, prefixSendChannel, 1)
		if err != nil {
			return err
		}
		acc := w.SendingAccount(idx[0])
		if acc == nil {
			return fmt.Errorf("%w: channel for unknown sending account %d", ErrRecordMismatch, idx[0])
		}
		rec, err := DecodeChannelRecord(value)
		if err != nil {
			return err
		}
		return acc.channel.restore(rec)
	})
	if err != nil {
		return fmt.Errorf("load sending channels: %w", err)
	}

	err = s.db.ForEach(prefixSendPaid, func(key, _ []byte) error {
		idx, err := parseIndexKey(key, prefixSendPaid, 1)
		if err != nil {
			return err
		}
		acc := w.SendingAccount(idx[0])
		if acc == nil {
			return fmt.Errorf("%w: paid marker for unknown sending account %d", ErrRecordMismatch, idx[0])
		}
		acc.notifPaid = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("load sending accounts: %w", err)
	}

	log.Storage.Debug().
		Int("receivers", len(w.receivers)).
		Int("senders", len(w.senders)).
		Msg("Wallet loaded")
	return nil
}
