// Package crypto provides the hashing and elliptic-curve primitives used by
// payment code derivation and masking.
package crypto

import (
	"crypto/sha256"

	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // HASH160 is protocol-fixed.
)

// Hash computes a BLAKE3-256 hash of the input data.
// It is used for local identifiers only, never for protocol data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// AddressFromPubKey derives a pay-to-pubkey-hash address from a compressed
// public key and a network version byte.
func AddressFromPubKey(version byte, pubKey []byte) types.Address {
	addr := types.Address{Version: version}
	copy(addr.Hash[:], Hash160(pubKey))
	return addr
}
