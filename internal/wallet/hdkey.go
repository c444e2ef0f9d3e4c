package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/pkg/crypto"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip32"
)

// BIP-47 derivation path constants.
// Roots: m/47'/coin_type'/0 (send) and m/47'/coin_type'/1 (receive).
// Account keys hang off a root at account', and the notification key is
// the account key's child 0.
const (
	// PurposeBIP47 is the BIP-47 purpose field (hardened).
	PurposeBIP47 = bip32.FirstHardenedChild + 47

	// RootSend is the non-hardened branch under the coin type that holds
	// sending accounts.
	RootSend = 0

	// RootReceive is the non-hardened branch that holds receiving accounts.
	RootReceive = 1

	// NotificationIndex is the child of an account key whose address is
	// used to announce a new payment code relationship.
	NotificationIndex = 0
)

// BIP-32 seed length limits.
const (
	MinSeedSize = 16
	MaxSeedSize = 64
)

// Hardened returns index with the hardened bit set.
func Hardened(index uint32) uint32 {
	return index | bip32.FirstHardenedChild
}

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a BIP-32 seed of 16 to 64 bytes.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) < MinSeedSize || len(seed) > MaxSeedSize {
		return nil, fmt.Errorf("seed must be %d-%d bytes, got %d", MinSeedSize, MaxSeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// NewPublicKey builds a public-only HD key from a compressed public key and
// a chain code. Payment codes carry exactly this pair.
func NewPublicKey(pubKey, chainCode []byte) (*HDKey, error) {
	if len(pubKey) != bip32.PublicKeyCompressedLength {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", bip32.PublicKeyCompressedLength, len(pubKey))
	}
	if len(chainCode) != 32 {
		return nil, fmt.Errorf("chain code must be 32 bytes, got %d", len(chainCode))
	}
	if _, err := crypto.ParsePublicKey(pubKey); err != nil {
		return nil, err
	}
	return &HDKey{key: &bip32.Key{
		Version:     bip32.PublicWalletVersion,
		Depth:       3,
		ChildNumber: []byte{0, 0, 0, 0},
		FingerPrint: []byte{0, 0, 0, 0},
		ChainCode:   append([]byte(nil), chainCode...),
		Key:         append([]byte(nil), pubKey...),
		IsPrivate:   false,
	}}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, pass Hardened(index).
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DerivePath derives a key along a sequence of indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DeriveRoot derives m/47'/coinType'/branch from a master key.
func (k *HDKey) DeriveRoot(coinType, branch uint32) (*HDKey, error) {
	return k.DerivePath(PurposeBIP47, Hardened(coinType), branch)
}

// DeriveAccount derives the hardened account key under a root.
func (k *HDKey) DeriveAccount(accountNum uint32) (*HDKey, error) {
	return k.DeriveChild(Hardened(accountNum))
}

// DeriveNotification derives the notification key (child 0) of an account key.
func (k *HDKey) DeriveNotification() (*HDKey, error) {
	return k.DeriveChild(NotificationIndex)
}

// PrivateKeyBytes returns the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// ChainCode returns a copy of the 32-byte chain code.
func (k *HDKey) ChainCode() []byte {
	return append([]byte(nil), k.key.ChainCode...)
}

// PrivKey returns the secp256k1 private key.
// Returns error if this is a public-only key.
func (k *HDKey) PrivKey() (*secp256k1.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot use public key as private key")
	}
	return secp256k1.PrivKeyFromBytes(priv), nil
}

// PubKey returns the secp256k1 public key.
func (k *HDKey) PubKey() (*secp256k1.PublicKey, error) {
	return crypto.ParsePublicKey(k.PublicKeyBytes())
}

// Address derives a pay-to-pubkey-hash address from this key's public key.
func (k *HDKey) Address(version byte) types.Address {
	return crypto.AddressFromPubKey(version, k.PublicKeyBytes())
}

// IsPrivate returns true if this key contains a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-key-only copy.
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}

// String returns the base58 extended key serialization (xprv/xpub).
func (k *HDKey) String() string {
	return k.key.B58Serialize()
}
