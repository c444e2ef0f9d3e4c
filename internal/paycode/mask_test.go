package paycode

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-paycode/pkg/crypto"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Alice's notification transaction to Bob in the reference vectors.
const (
	vectorOutpointTxID = "86f411ab1c8e70ae8a0795ab7a6757aea6e4d5ae1826fc7b8f00c597d500609c"
	vectorInputKey     = "8d6a8ecd8ee5e0042ad0cb56e3a971c760b5145c3917a8e7beaf0ed92d7a520c"
	vectorPayload      = "010002063e4eb95e62791b06c50e1a3a942e1ecaaa9afbbeb324d16ae6821e091611fa96c0cf048f607fe51a0327f5e2528979311c78cb2de0d682c61e1180fc3d543b00000000000000000000000000"
)

func vectorOutpoint(t *testing.T) types.Outpoint {
	t.Helper()
	var op types.Outpoint
	copy(op.TxID[:], mustHex(t, vectorOutpointTxID))
	op.Index = 1
	return op
}

func TestMaskPayload_Vector(t *testing.T) {
	alice := mustParse(t, alicePaycode)
	bob := mustParse(t, bobPaycode)
	key := secp256k1.PrivKeyFromBytes(mustHex(t, vectorInputKey))

	payload, err := MaskPayload(alice, bob, vectorOutpoint(t), key)
	if err != nil {
		t.Fatalf("MaskPayload() error: %v", err)
	}
	if want := mustHex(t, vectorPayload); !bytes.Equal(payload, want) {
		t.Fatalf("MaskPayload() = %x, want %x", payload, want)
	}

	bobKey, err := bip47AccountKey(t, bobMnemonic).DeriveNotification()
	if err != nil {
		t.Fatal(err)
	}
	bobNotif, err := bobKey.PrivKey()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmaskPayload(payload, vectorOutpoint(t), bobNotif, key.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("UnmaskPayload() error: %v", err)
	}
	if got != alice {
		t.Errorf("UnmaskPayload() = %s, want %s", got, alicePaycode)
	}
}

func TestMaskPayload_RoundTrip(t *testing.T) {
	sender := mustParse(t, alicePaycode)
	recipientKey := bip47AccountKey(t, bobMnemonic)
	recipient, err := FromKey(recipientKey)
	if err != nil {
		t.Fatal(err)
	}
	notif, err := recipientKey.DeriveNotification()
	if err != nil {
		t.Fatal(err)
	}
	notifKey, err := notif.PrivKey()
	if err != nil {
		t.Fatal(err)
	}

	for i := byte(1); i <= 8; i++ {
		outpoint := testOutpoint(i, uint32(i))
		inputKey := testKey(i)

		payload, err := MaskPayload(sender, recipient, outpoint, inputKey)
		if err != nil {
			t.Fatalf("MaskPayload(%d) error: %v", i, err)
		}
		if len(payload) != MaskedPayloadSize {
			t.Fatalf("payload length = %d", len(payload))
		}
		if bytes.Equal(payload, sender.Bytes()) {
			t.Fatal("payload is not masked")
		}

		got, err := UnmaskPayload(payload, outpoint, notifKey, inputKey.PubKey().SerializeCompressed())
		if err != nil {
			t.Fatalf("UnmaskPayload(%d) error: %v", i, err)
		}
		if got != sender {
			t.Errorf("round trip %d = %s, want %s", i, got, sender)
		}
	}
}

func TestUnmaskPayload_Invalid(t *testing.T) {
	notifKey := testKey(7)
	inputPub := testKey(8).PubKey().SerializeCompressed()
	valid := mustHex(t, vectorPayload)
	outpoint := vectorOutpoint(t)

	badVersion := bytes.Clone(valid)
	badVersion[0] = 0x02

	tests := []struct {
		name      string
		payload   []byte
		pub       []byte
		wantPoint bool
	}{
		{"empty", nil, inputPub, false},
		{"short", valid[:Size-1], inputPub, false},
		{"long", append(bytes.Clone(valid), 0), inputPub, false},
		{"bad version", badVersion, inputPub, false},
		{"input key off curve", valid, append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...), true},
		{"uncompressed garbage", valid, []byte{0x04, 0x01}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmaskPayload(tt.payload, outpoint, notifKey, tt.pub)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("error = %v, want ErrInvalidPayload", err)
			}
			if got := errors.Is(err, crypto.ErrInvalidPoint); got != tt.wantPoint {
				t.Errorf("errors.Is(ErrInvalidPoint) = %v, want %v", got, tt.wantPoint)
			}
		})
	}
}
