package paycode

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Reference vectors from the BIP-47 test data.
const (
	aliceMnemonic  = "response seminar brave tip suit recall often sound stick owner lottery motion"
	alicePaycode   = "PM8TJTLJbPRGxSbc8EJi42Wrr6QbNSaSSVJ5Y3E4pbCYiTHUskHg13935Ubb7q8tx9GVbh2UuRnBc3WSyJHhUrw8KhprKnn9eDznYGieTzFcwQRya4GA"
	aliceNotifAddr = "1JDdmqFLhpzcUwPeinhJbUPw4Co3aWLyzW"
	aliceHex       = "010002b85034fb08a8bfefd22848238257b252721454bbbfba2c3667f168837ea2cdad671af9f65904632e2dcc0c6ad314e11d53fc82fa4c4ea27a4a14eccecc478fee00000000000000000000000000"

	bobMnemonic  = "reward upper indicate eight swift arch injury crystal super wrestle already dentist"
	bobPaycode   = "PM8TJS2JxQ5ztXUpBBRnpTbcUXbUHy2T1abfrb3KkAAtMEGNbey4oumH7Hc578WgQJhPjBxteQ5GHHToTYHE3A1w6p7tU6KSoFmWBVbFGjKPisZDbP97"
	bobNotifAddr = "1ChvUUvht2hUQufHBXF8NgLhW8SwE2ecGV"
)

// aliceToBob are the first addresses Alice pays Bob on.
var aliceToBob = []string{
	"141fi7TY3h936vRUKh1qfUZr8rSBuYbVBK",
	"12u3Uued2fuko2nY4SoSFGCoGLCBUGPkk6",
	"1FsBVhT5dQutGwaPePTYMe5qvYqqjxyftc",
}

// bip47AccountKey derives m/47'/0'/0', the account key layout of the
// reference vectors.
func bip47AccountKey(t *testing.T, mnemonic string) *wallet.HDKey {
	t.Helper()
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	key, err := master.DerivePath(wallet.PurposeBIP47, wallet.Hardened(0), wallet.Hardened(0))
	if err != nil {
		t.Fatalf("DerivePath() error: %v", err)
	}
	return key
}

func mustParse(t *testing.T, s string) PaymentCode {
	t.Helper()
	pc, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", s, err)
	}
	return pc
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func mustChannel(t *testing.T, theirCode PaymentCode, key *wallet.HDKey, side Side) *PaymentChannel {
	t.Helper()
	ch, err := NewPaymentChannel(theirCode, key, side, &chaincfg.MainNetParams, DefaultLookahead)
	if err != nil {
		t.Fatalf("NewPaymentChannel() error: %v", err)
	}
	return ch
}

// seedOf returns a 32-byte seed filled with b.
func seedOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func testWallet(t *testing.T, seedByte byte, obs Observer) *Wallet {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Observer = obs
	w, err := NewWallet(seedOf(seedByte), cfg)
	if err != nil {
		t.Fatalf("NewWallet() error: %v", err)
	}
	return w
}

// testKey returns a deterministic private key for designated inputs.
func testKey(b byte) *secp256k1.PrivateKey {
	return secp256k1.PrivKeyFromBytes(bytes.Repeat([]byte{b}, 32))
}

func testOutpoint(b byte, index uint32) types.Outpoint {
	var h types.Hash
	for i := range h {
		h[i] = b + byte(i)
	}
	return types.Outpoint{TxID: h, Index: index}
}

// recordingObserver collects events for assertions.
type recordingObserver struct {
	accounts []AccountEvent
	channels []ChannelEvent
	rejected []RejectEvent
}

func (o *recordingObserver) AccountCreated(ev AccountEvent) { o.accounts = append(o.accounts, ev) }
func (o *recordingObserver) ChannelDiscovered(ev ChannelEvent) { o.channels = append(o.channels, ev) }
func (o *recordingObserver) PayloadRejected(ev RejectEvent) { o.rejected = append(o.rejected, ev) }
