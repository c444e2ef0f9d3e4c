package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// AddressSize is the length of a public key hash in bytes.
const AddressSize = 20

// Address is a pay-to-pubkey-hash address: a network version byte and the
// HASH160 of a compressed public key. The zero value is not a valid address.
//
// Address is comparable and may be used as a map key.
type Address struct {
	Version byte
	Hash    [AddressSize]byte
}

// NewAddress builds an address from a version byte and a 20-byte pubkey hash.
func NewAddress(version byte, pubKeyHash []byte) (Address, error) {
	if len(pubKeyHash) != AddressSize {
		return Address{}, fmt.Errorf("pubkey hash must be %d bytes, got %d", AddressSize, len(pubKeyHash))
	}
	a := Address{Version: version}
	copy(a.Hash[:], pubKeyHash)
	return a, nil
}

// IsZero returns true if the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the base58check encoding of the address.
func (a Address) String() string {
	return base58.CheckEncode(a.Hash[:], a.Version)
}

// Hex returns the hex-encoded pubkey hash without the version byte.
func (a Address) Hex() string {
	return hex.EncodeToString(a.Hash[:])
}

// Bytes returns a copy of the pubkey hash.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a.Hash[:])
	return b
}

// MarshalJSON encodes the address as a base58check string.
func (a Address) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a base58check string into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a base58check pay-to-pubkey-hash address.
// The version byte is returned as-is; callers that care about the network
// compare it against their own parameters.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58check address: %w", err)
	}
	return NewAddress(version, payload)
}
