// Package paycode implements BIP-47 reusable payment codes: encoding, the
// notification payload mask, per-counterparty payment channels, and the
// sending/receiving accounts a wallet aggregates them into.
//
// Nothing in this package is safe for concurrent use. Callers serialize all
// mutating calls and any read that needs a consistent view of the address
// windows.
package paycode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/crypto"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Payment code binary layout (BIP-47 version 1).
const (
	// Version is the payment code version this package produces and accepts.
	Version byte = 0x01

	// Size is the length of a serialized payment code.
	Size = 80

	// Base58Prefix is the base58check version byte that makes encoded
	// payment codes start with "PM8T".
	Base58Prefix byte = 0x47

	pubKeyLen    = 33
	chainCodeLen = 32

	offVersion   = 0
	offFeatures  = 1
	offPubKey    = 2
	offX         = 3 // x coordinate, after the sign byte
	offChainCode = offPubKey + pubKeyLen
	offReserved  = offChainCode + chainCodeLen
)

// ErrInvalidPaymentCode is returned when bytes or text do not decode to a
// structurally valid payment code.
var ErrInvalidPaymentCode = errors.New("invalid payment code")

// PaymentCode is a party's reusable public identity: a compressed public key
// and a chain code. Values are immutable and comparable; two codes are equal
// exactly when their keys and chain codes are.
type PaymentCode struct {
	pubKey    [pubKeyLen]byte
	chainCode [chainCodeLen]byte
}

// NewPaymentCode builds a payment code from a compressed public key and a chain code.
func NewPaymentCode(pubKey, chainCode []byte) (PaymentCode, error) {
	var pc PaymentCode
	if len(pubKey) != pubKeyLen {
		return pc, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidPaymentCode, pubKeyLen, len(pubKey))
	}
	if len(chainCode) != chainCodeLen {
		return pc, fmt.Errorf("%w: chain code must be %d bytes, got %d", ErrInvalidPaymentCode, chainCodeLen, len(chainCode))
	}
	if _, err := secp256k1.ParsePubKey(pubKey); err != nil {
		return pc, fmt.Errorf("%w: %v", ErrInvalidPaymentCode, err)
	}
	copy(pc.pubKey[:], pubKey)
	copy(pc.chainCode[:], chainCode)
	return pc, nil
}

// FromKey returns the payment code for an account key.
func FromKey(k *wallet.HDKey) (PaymentCode, error) {
	return NewPaymentCode(k.PublicKeyBytes(), k.ChainCode())
}

// FromBytes decodes the 80-byte binary form.
func FromBytes(b []byte) (PaymentCode, error) {
	if len(b) != Size {
		return PaymentCode{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidPaymentCode, len(b), Size)
	}
	if b[offVersion] != Version {
		return PaymentCode{}, fmt.Errorf("%w: unsupported version %#x", ErrInvalidPaymentCode, b[offVersion])
	}
	if sign := b[offPubKey]; sign != 0x02 && sign != 0x03 {
		return PaymentCode{}, fmt.Errorf("%w: bad public key sign byte %#x", ErrInvalidPaymentCode, sign)
	}
	return NewPaymentCode(b[offPubKey:offChainCode], b[offChainCode:offReserved])
}

// Parse decodes the base58check text form ("PM8T...").
func Parse(s string) (PaymentCode, error) {
	payload, prefix, err := base58.CheckDecode(s)
	if err != nil {
		return PaymentCode{}, fmt.Errorf("%w: %v", ErrInvalidPaymentCode, err)
	}
	if prefix != Base58Prefix {
		return PaymentCode{}, fmt.Errorf("%w: base58 prefix %#x", ErrInvalidPaymentCode, prefix)
	}
	return FromBytes(payload)
}

// Bytes returns the 80-byte binary form. Feature and reserved bytes are zero.
func (pc PaymentCode) Bytes() []byte {
	b := make([]byte, Size)
	b[offVersion] = Version
	copy(b[offPubKey:], pc.pubKey[:])
	copy(b[offChainCode:], pc.chainCode[:])
	return b
}

// String returns the base58check text form.
func (pc PaymentCode) String() string {
	return base58.CheckEncode(pc.Bytes(), Base58Prefix)
}

// PubKey returns a copy of the compressed public key.
func (pc PaymentCode) PubKey() []byte {
	return bytes.Clone(pc.pubKey[:])
}

// ChainCode returns a copy of the chain code.
func (pc PaymentCode) ChainCode() []byte {
	return bytes.Clone(pc.chainCode[:])
}

// IsZero reports whether pc is the zero value.
func (pc PaymentCode) IsZero() bool {
	return pc == PaymentCode{}
}

// Equal reports structural equality.
func (pc PaymentCode) Equal(other PaymentCode) bool {
	return pc == other
}

// DerivePubKey returns the public key at child index i of the code.
func (pc PaymentCode) DerivePubKey(i uint32) (*secp256k1.PublicKey, error) {
	k, err := wallet.NewPublicKey(pc.pubKey[:], pc.chainCode[:])
	if err != nil {
		return nil, err
	}
	child, err := k.DeriveChild(i)
	if err != nil {
		return nil, err
	}
	return child.PubKey()
}

// NotificationPubKey returns the public key at child index 0.
func (pc PaymentCode) NotificationPubKey() (*secp256k1.PublicKey, error) {
	return pc.DerivePubKey(wallet.NotificationIndex)
}

// NotificationAddress returns the pay-to-pubkey-hash address of the
// notification key for the given network.
func (pc PaymentCode) NotificationAddress(params *chaincfg.Params) (types.Address, error) {
	pub, err := pc.NotificationPubKey()
	if err != nil {
		return types.Address{}, fmt.Errorf("derive notification key: %w", err)
	}
	return addressOf(params, pub), nil
}

// MarshalText implements encoding.TextMarshaler.
func (pc PaymentCode) MarshalText() ([]byte, error) {
	if pc.IsZero() {
		return []byte{}, nil
	}
	return []byte(pc.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pc *PaymentCode) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*pc = PaymentCode{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*pc = parsed
	return nil
}

func addressOf(params *chaincfg.Params, pub *secp256k1.PublicKey) types.Address {
	return crypto.AddressFromPubKey(params.PubKeyHashAddrID, pub.SerializeCompressed())
}
