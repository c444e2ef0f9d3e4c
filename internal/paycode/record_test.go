package paycode

import (
	"bytes"
	"testing"

	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/wire"
)

func sampleRecord() *ChannelRecord {
	return &ChannelRecord{
		MyPaymentCode:        alicePaycode,
		PaymentCode:          bobPaycode,
		Label:                "bob",
		Status:               StatusSentConfirmed,
		CurrentIncomingIndex: 2,
		CurrentOutgoingIndex: 3,
		IncomingAddresses: []IncomingAddress{
			{Address: aliceToBob[0], Index: 0, Seen: true},
			{Address: aliceToBob[1], Index: 1},
		},
		OutgoingAddresses:  []string{aliceToBob[0], aliceToBob[1], aliceToBob[2]},
		NotificationTxHash: types.Hash{0x01, 0x02},
		Transactions:       []types.Hash{{0x0a}, {0x0b}},
	}
}

func TestChannelRecord_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  *ChannelRecord
	}{
		{"full", sampleRecord()},
		{"empty", &ChannelRecord{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.rec.Bytes()
			got, err := DecodeChannelRecord(data)
			if err != nil {
				t.Fatalf("DecodeChannelRecord() error: %v", err)
			}
			if !bytes.Equal(got.Bytes(), data) {
				t.Fatal("re-encoded record differs")
			}
			if got.Label != tt.rec.Label || got.Status != tt.rec.Status ||
				got.CurrentIncomingIndex != tt.rec.CurrentIncomingIndex ||
				got.CurrentOutgoingIndex != tt.rec.CurrentOutgoingIndex ||
				got.NotificationTxHash != tt.rec.NotificationTxHash {
				t.Errorf("decoded = %+v, want %+v", got, tt.rec)
			}
			if len(got.IncomingAddresses) != len(tt.rec.IncomingAddresses) ||
				len(got.OutgoingAddresses) != len(tt.rec.OutgoingAddresses) ||
				len(got.Transactions) != len(tt.rec.Transactions) {
				t.Errorf("decoded vectors = %+v", got)
			}
			for i := range got.IncomingAddresses {
				if got.IncomingAddresses[i] != tt.rec.IncomingAddresses[i] {
					t.Errorf("incoming[%d] = %+v", i, got.IncomingAddresses[i])
				}
			}
		})
	}
}

func TestChannelRecord_FieldOrder(t *testing.T) {
	data := sampleRecord().Bytes()
	r := bytes.NewReader(data)

	for _, want := range []string{alicePaycode, bobPaycode, "bob"} {
		got, err := wire.ReadVarString(r, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("field = %q, want %q", got, want)
		}
	}
	status, err := readInt32(r)
	if err != nil || status != int32(StatusSentConfirmed) {
		t.Errorf("status = %d, %v", status, err)
	}
}

func TestDecodeChannelRecord_Invalid(t *testing.T) {
	data := sampleRecord().Bytes()

	hugeVector := new(bytes.Buffer)
	for _, s := range []string{"a", "b", "c"} {
		_ = wire.WriteVarString(hugeVector, 0, s)
	}
	for i := 0; i < 3; i++ {
		_ = writeInt32(hugeVector, 0)
	}
	_ = wire.WriteVarInt(hugeVector, 0, maxRecordEntries+1)

	badSeen := bytes.Clone(data)
	// The first seen flag follows three strings, three ints, a count, one
	// string and its index.
	off := 0
	for _, s := range []string{alicePaycode, bobPaycode, "bob"} {
		off += wire.VarIntSerializeSize(uint64(len(s))) + len(s)
	}
	off += 12 + 1 + 1 + len(aliceToBob[0]) + 4
	badSeen[off] = 2

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", data[:len(data)-1]},
		{"trailing", append(bytes.Clone(data), 0)},
		{"too many entries", hugeVector.Bytes()},
		{"bad seen flag", badSeen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeChannelRecord(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPaymentChannel_RecordRestore(t *testing.T) {
	send, recv := aliceBobChannels(t)

	first, err := types.ParseAddress(aliceToBob[0])
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := recv.MarkAddressUsed(first); err != nil || !ok {
		t.Fatalf("MarkAddressUsed() = %v, %v", ok, err)
	}
	recv.SetLabel("alice")
	recv.AddTransaction(types.Hash{0x33})

	send.IncrementOutgoingIndex()
	send.IncrementOutgoingIndex()
	send.SetStatusSent(types.Hash{0x44})

	recvRec, err := recv.Record()
	if err != nil {
		t.Fatal(err)
	}
	if len(recvRec.IncomingAddresses) != 1+DefaultLookahead {
		t.Errorf("incoming addresses = %d", len(recvRec.IncomingAddresses))
	}
	if !recvRec.IncomingAddresses[0].Seen || recvRec.IncomingAddresses[1].Seen {
		t.Error("seen flags wrong")
	}
	sendRec, err := send.Record()
	if err != nil {
		t.Fatal(err)
	}
	if len(sendRec.OutgoingAddresses) != 2 || sendRec.OutgoingAddresses[1] != aliceToBob[1] {
		t.Errorf("outgoing addresses = %v", sendRec.OutgoingAddresses)
	}

	freshSend, freshRecv := aliceBobChannels(t)
	decodedRecv, err := DecodeChannelRecord(recvRec.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if err := freshRecv.restore(decodedRecv); err != nil {
		t.Fatalf("restore() error: %v", err)
	}
	if freshRecv.CurrentIncomingIndex() != 1 || freshRecv.Label() != "alice" || len(freshRecv.Transactions()) != 1 {
		t.Error("receiver state not restored")
	}
	if err := freshSend.restore(sendRec); err != nil {
		t.Fatalf("restore() error: %v", err)
	}
	if freshSend.CurrentOutgoingIndex() != 2 || !freshSend.IsNotificationSent() {
		t.Error("sender state not restored")
	}

	// A record for the opposite direction does not fit.
	if err := freshSend.restore(recvRec); err == nil {
		t.Error("expected mismatch error")
	}
}
