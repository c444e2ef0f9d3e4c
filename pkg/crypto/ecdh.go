package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrInvalidPoint is returned when a public key does not decode to a
	// point on the curve, or an operation lands on the point at infinity.
	ErrInvalidPoint = errors.New("invalid curve point")

	// ErrInvalidSecret is returned when a hashed shared secret is not a
	// scalar in [1, n-1].
	ErrInvalidSecret = errors.New("shared secret out of range")
)

// ParsePublicKey decodes a compressed or uncompressed secp256k1 public key.
func ParsePublicKey(b []byte) (*secp256k1.PublicKey, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return pub, nil
}

// SharedSecret returns the x coordinate of priv*pub.
func SharedSecret(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) ([32]byte, error) {
	var (
		pubJ    secp256k1.JacobianPoint
		resultJ secp256k1.JacobianPoint
		x       [32]byte
	)
	pub.AsJacobian(&pubJ)
	secp256k1.ScalarMultNonConst(&priv.Key, &pubJ, &resultJ)
	if isInfinity(&resultJ) {
		return x, ErrInvalidPoint
	}
	resultJ.ToAffine()
	resultJ.X.PutBytes(&x)
	return x, nil
}

// SecretScalar hashes a shared secret x coordinate with SHA256 and returns
// it as a scalar. Values outside [1, n-1] are rejected.
func SecretScalar(x [32]byte) (*secp256k1.ModNScalar, error) {
	sum := sha256.Sum256(x[:])
	var s secp256k1.ModNScalar
	if overflow := s.SetBytes(&sum); overflow != 0 || s.IsZero() {
		return nil, ErrInvalidSecret
	}
	return &s, nil
}

// TweakPubKey returns pub + tweak*G.
func TweakPubKey(pub *secp256k1.PublicKey, tweak *secp256k1.ModNScalar) (*secp256k1.PublicKey, error) {
	var (
		pubJ    secp256k1.JacobianPoint
		tweakJ  secp256k1.JacobianPoint
		resultJ secp256k1.JacobianPoint
	)
	secp256k1.ScalarBaseMultNonConst(tweak, &tweakJ)
	pub.AsJacobian(&pubJ)
	secp256k1.AddNonConst(&pubJ, &tweakJ, &resultJ)
	if isInfinity(&resultJ) {
		return nil, ErrInvalidPoint
	}
	resultJ.ToAffine()
	return secp256k1.NewPublicKey(&resultJ.X, &resultJ.Y), nil
}

// TweakPrivKey returns priv + tweak mod n.
func TweakPrivKey(priv *secp256k1.PrivateKey, tweak *secp256k1.ModNScalar) (*secp256k1.PrivateKey, error) {
	var k secp256k1.ModNScalar
	k.Set(&priv.Key).Add(tweak)
	if k.IsZero() {
		return nil, ErrInvalidSecret
	}
	return secp256k1.NewPrivateKey(&k), nil
}

func isInfinity(p *secp256k1.JacobianPoint) bool {
	return new(secp256k1.FieldVal).Set(&p.Z).Normalize().IsZero()
}
