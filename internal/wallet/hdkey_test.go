package wallet

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// testSeed returns a deterministic seed for testing.
// Uses the BIP-39 test vector: "abandon" x11 + "about" with passphrase "TREZOR".
func testSeed(t *testing.T) []byte {
	t.Helper()
	seed, err := SeedFromMnemonic(abandonMnemonic, "TREZOR")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	return seed
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// BIP-32 test vector 1.
func TestNewMasterKey_BIP32Vector(t *testing.T) {
	master, err := NewMasterKey(mustHex(t, "000102030405060708090a0b0c0d0e0f"))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}
	if got := hex.EncodeToString(master.PrivateKeyBytes()); got != "e8f32e723decf4051aefac8e2c93c9c5b214313817cdb01a1494b917c8436b35" {
		t.Errorf("master private key = %s", got)
	}
	if got := hex.EncodeToString(master.ChainCode()); got != "873dff81c02f525623fd1fe5167eac3a55a049de3d314bb42ee227ffed37d508" {
		t.Errorf("master chain code = %s", got)
	}

	child, err := master.DeriveChild(Hardened(0))
	if err != nil {
		t.Fatalf("DeriveChild(0') error: %v", err)
	}
	if got := hex.EncodeToString(child.PrivateKeyBytes()); got != "edb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea" {
		t.Errorf("m/0' private key = %s", got)
	}
}

func TestNewMasterKey_SeedLength(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"empty", 0, true},
		{"too short", 15, true},
		{"minimum", 16, false},
		{"hash sized", 32, false},
		{"bip39", 64, false},
		{"too long", 65, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := make([]byte, tt.size)
			for i := range seed {
				seed[i] = byte(i + 1)
			}
			_, err := NewMasterKey(seed)
			if tt.wantErr && err == nil {
				t.Error("expected error for invalid seed length")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("NewMasterKey() error: %v", err)
			}
		})
	}
}

func TestNewMasterKey_ZeroSeed(t *testing.T) {
	master, err := NewMasterKey(make([]byte, 32))
	if err != nil {
		t.Fatalf("NewMasterKey(zero seed) error: %v", err)
	}
	if !master.IsPrivate() || master.Depth() != 0 {
		t.Error("master key should be private at depth 0")
	}
}

func TestDerivePath(t *testing.T) {
	master, err := NewMasterKey(testSeed(t))
	if err != nil {
		t.Fatalf("NewMasterKey() error: %v", err)
	}

	c1, _ := master.DeriveChild(PurposeBIP47)
	c2, _ := c1.DeriveChild(Hardened(0))
	c3, _ := c2.DeriveChild(RootReceive)

	combined, err := master.DeriveRoot(0, RootReceive)
	if err != nil {
		t.Fatalf("DeriveRoot() error: %v", err)
	}
	if !bytes.Equal(c3.PrivateKeyBytes(), combined.PrivateKeyBytes()) {
		t.Error("DeriveRoot should equal sequential DeriveChild")
	}
	if combined.Depth() != 3 {
		t.Errorf("root depth = %d, want 3", combined.Depth())
	}

	send, err := master.DeriveRoot(0, RootSend)
	if err != nil {
		t.Fatalf("DeriveRoot(send) error: %v", err)
	}
	if bytes.Equal(send.PrivateKeyBytes(), combined.PrivateKeyBytes()) {
		t.Error("send and receive roots should differ")
	}
}

func TestDeriveAccount(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))
	root, _ := master.DeriveRoot(0, RootReceive)

	a0, err := root.DeriveAccount(0)
	if err != nil {
		t.Fatalf("DeriveAccount(0) error: %v", err)
	}
	a1, err := root.DeriveAccount(1)
	if err != nil {
		t.Fatalf("DeriveAccount(1) error: %v", err)
	}
	if bytes.Equal(a0.PrivateKeyBytes(), a1.PrivateKeyBytes()) {
		t.Error("different accounts should produce different keys")
	}

	// Account keys are hardened: the public root cannot reach them.
	if _, err := root.Neuter().DeriveAccount(0); err == nil {
		t.Error("hardened account derivation from a public key should fail")
	}
}

func TestNeuter(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))
	pub := master.Neuter()

	if pub.IsPrivate() {
		t.Error("neutered key should not be private")
	}
	if pub.PrivateKeyBytes() != nil {
		t.Error("neutered key PrivateKeyBytes() should return nil")
	}
	if _, err := pub.PrivKey(); err == nil {
		t.Error("PrivKey() on a public key should fail")
	}
	if !bytes.Equal(master.PublicKeyBytes(), pub.PublicKeyBytes()) {
		t.Error("neutered key should have same public key")
	}
}

func TestNeuter_DeriveNotification(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))
	account, _ := master.DerivePath(PurposeBIP47, Hardened(0), RootReceive, Hardened(0))

	privChild, err := account.DeriveNotification()
	if err != nil {
		t.Fatalf("DeriveNotification() error: %v", err)
	}

	// Rebuild the account from its public half, the way a payment code does.
	pub, err := NewPublicKey(account.PublicKeyBytes(), account.ChainCode())
	if err != nil {
		t.Fatalf("NewPublicKey() error: %v", err)
	}
	pubChild, err := pub.DeriveNotification()
	if err != nil {
		t.Fatalf("public DeriveNotification() error: %v", err)
	}

	if !bytes.Equal(privChild.PublicKeyBytes(), pubChild.PublicKeyBytes()) {
		t.Error("private and public derivation of child 0 should agree")
	}
	if privChild.Address(0x00) != pubChild.Address(0x00) {
		t.Error("notification addresses should agree")
	}
}

func TestNewPublicKey_Invalid(t *testing.T) {
	master, _ := NewMasterKey(testSeed(t))
	pub := master.PublicKeyBytes()
	cc := master.ChainCode()

	if _, err := NewPublicKey(pub[:32], cc); err == nil {
		t.Error("expected error for short public key")
	}
	if _, err := NewPublicKey(pub, cc[:31]); err == nil {
		t.Error("expected error for short chain code")
	}
	bad := append([]byte{0x05}, pub[1:]...)
	if _, err := NewPublicKey(bad, cc); err == nil {
		t.Error("expected error for invalid public key prefix")
	}
}
