package paycode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/wire"
)

// maxRecordEntries bounds every vector in a decoded record.
const maxRecordEntries = 1 << 16

// recordPver is passed to the wire var-int helpers, which ignore it for
// the encodings used here.
const recordPver = 0

// IncomingAddress is one receiver-side address with its position in the
// shared sequence.
type IncomingAddress struct {
	Address string
	Index   int32
	Seen    bool
}

// ChannelRecord is the persisted form of a payment channel. Field order is
// the encoding order.
type ChannelRecord struct {
	MyPaymentCode        string
	PaymentCode          string
	Label                string
	Status               ChannelStatus
	CurrentIncomingIndex int32
	CurrentOutgoingIndex int32
	IncomingAddresses    []IncomingAddress
	OutgoingAddresses    []string
	NotificationTxHash   types.Hash
	Transactions         []types.Hash
}

// Serialize writes the record using Bitcoin compact-size strings and vectors.
func (r *ChannelRecord) Serialize(w io.Writer) error {
	for _, s := range []string{r.MyPaymentCode, r.PaymentCode, r.Label} {
		if err := wire.WriteVarString(w, recordPver, s); err != nil {
			return err
		}
	}
	for _, v := range []int32{int32(r.Status), r.CurrentIncomingIndex, r.CurrentOutgoingIndex} {
		if err := writeInt32(w, v); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, recordPver, uint64(len(r.IncomingAddresses))); err != nil {
		return err
	}
	for _, a := range r.IncomingAddresses {
		if err := wire.WriteVarString(w, recordPver, a.Address); err != nil {
			return err
		}
		if err := writeInt32(w, a.Index); err != nil {
			return err
		}
		seen := byte(0)
		if a.Seen {
			seen = 1
		}
		if _, err := w.Write([]byte{seen}); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, recordPver, uint64(len(r.OutgoingAddresses))); err != nil {
		return err
	}
	for _, a := range r.OutgoingAddresses {
		if err := wire.WriteVarString(w, recordPver, a); err != nil {
			return err
		}
	}

	if _, err := w.Write(r.NotificationTxHash[:]); err != nil {
		return err
	}
	if err := wire.WriteVarInt(w, recordPver, uint64(len(r.Transactions))); err != nil {
		return err
	}
	for _, h := range r.Transactions {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a record written by Serialize.
func (r *ChannelRecord) Deserialize(rd io.Reader) error {
	var err error
	for _, dst := range []*string{&r.MyPaymentCode, &r.PaymentCode, &r.Label} {
		if *dst, err = wire.ReadVarString(rd, recordPver); err != nil {
			return err
		}
	}
	var status int32
	for _, dst := range []*int32{&status, &r.CurrentIncomingIndex, &r.CurrentOutgoingIndex} {
		if *dst, err = readInt32(rd); err != nil {
			return err
		}
	}
	r.Status = ChannelStatus(status)

	n, err := readCount(rd)
	if err != nil {
		return err
	}
	r.IncomingAddresses = nil
	for i := uint64(0); i < n; i++ {
		var a IncomingAddress
		if a.Address, err = wire.ReadVarString(rd, recordPver); err != nil {
			return err
		}
		if a.Index, err = readInt32(rd); err != nil {
			return err
		}
		var seen [1]byte
		if _, err := io.ReadFull(rd, seen[:]); err != nil {
			return err
		}
		if seen[0] > 1 {
			return fmt.Errorf("invalid seen flag %d", seen[0])
		}
		a.Seen = seen[0] == 1
		r.IncomingAddresses = append(r.IncomingAddresses, a)
	}

	if n, err = readCount(rd); err != nil {
		return err
	}
	r.OutgoingAddresses = nil
	for i := uint64(0); i < n; i++ {
		s, err := wire.ReadVarString(rd, recordPver)
		if err != nil {
			return err
		}
		r.OutgoingAddresses = append(r.OutgoingAddresses, s)
	}

	if _, err := io.ReadFull(rd, r.NotificationTxHash[:]); err != nil {
		return err
	}
	if n, err = readCount(rd); err != nil {
		return err
	}
	r.Transactions = nil
	for i := uint64(0); i < n; i++ {
		var h types.Hash
		if _, err := io.ReadFull(rd, h[:]); err != nil {
			return err
		}
		r.Transactions = append(r.Transactions, h)
	}
	return nil
}

// Bytes returns the serialized record.
func (r *ChannelRecord) Bytes() []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer do not fail.
	_ = r.Serialize(&buf)
	return buf.Bytes()
}

// DecodeChannelRecord parses a serialized record and rejects trailing bytes.
func DecodeChannelRecord(b []byte) (*ChannelRecord, error) {
	rd := bytes.NewReader(b)
	rec := new(ChannelRecord)
	if err := rec.Deserialize(rd); err != nil {
		return nil, fmt.Errorf("decode channel record: %w", err)
	}
	if rd.Len() != 0 {
		return nil, fmt.Errorf("decode channel record: %d trailing bytes", rd.Len())
	}
	return rec, nil
}

func readCount(r io.Reader) (uint64, error) {
	n, err := wire.ReadVarInt(r, recordPver)
	if err != nil {
		return 0, err
	}
	if n > maxRecordEntries {
		return 0, fmt.Errorf("too many entries: %d", n)
	}
	return n, nil
}

func writeInt32(w io.Writer, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	_, err := w.Write(b[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}
