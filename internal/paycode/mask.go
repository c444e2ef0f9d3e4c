package paycode

import (
	"crypto/hmac"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/pkg/crypto"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MaskedPayloadSize is the length of a notification payload. It is the
// binary payment code with its x coordinate and chain code blinded.
const MaskedPayloadSize = Size

// ErrInvalidPayload is returned when a notification payload cannot be
// unmasked into a payment code. Most notification-shaped outputs on chain
// are addressed to someone else, so callers usually treat it as "not mine".
var ErrInvalidPayload = errors.New("invalid notification payload")

// MaskPayload blinds the sender's payment code for the notification
// transaction addressed to recipient. outpointKey is the private key of the
// designated input, outpoint is that input's previous outpoint.
//
//	S = a*B, x = S.x, s = HMAC-SHA512(outpoint, x)
//	payload = code with x coordinate ^ s[0:32] and chain code ^ s[32:64]
func MaskPayload(sender, recipient PaymentCode, outpoint types.Outpoint, outpointKey *secp256k1.PrivateKey) ([]byte, error) {
	notifPub, err := recipient.NotificationPubKey()
	if err != nil {
		return nil, fmt.Errorf("derive recipient notification key: %w", err)
	}
	x, err := crypto.SharedSecret(outpointKey, notifPub)
	if err != nil {
		return nil, err
	}
	payload := sender.Bytes()
	applyMask(payload, blindingMask(x, outpoint))
	return payload, nil
}

// UnmaskPayload recovers the sender's payment code from a notification
// payload, using the recipient's notification private key and the public
// key spent by the designated input.
//
// Failures wrap ErrInvalidPayload, and additionally crypto.ErrInvalidPoint
// when the input public key is not a curve point.
func UnmaskPayload(payload []byte, outpoint types.Outpoint, notificationKey *secp256k1.PrivateKey, outpointPubKey []byte) (PaymentCode, error) {
	if len(payload) != MaskedPayloadSize {
		return PaymentCode{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidPayload, len(payload), MaskedPayloadSize)
	}
	if payload[offVersion] != Version {
		return PaymentCode{}, fmt.Errorf("%w: version %#x", ErrInvalidPayload, payload[offVersion])
	}
	pub, err := crypto.ParsePublicKey(outpointPubKey)
	if err != nil {
		return PaymentCode{}, errors.Join(ErrInvalidPayload, err)
	}
	x, err := crypto.SharedSecret(notificationKey, pub)
	if err != nil {
		return PaymentCode{}, errors.Join(ErrInvalidPayload, err)
	}

	plain := make([]byte, MaskedPayloadSize)
	copy(plain, payload)
	applyMask(plain, blindingMask(x, outpoint))

	pc, err := FromBytes(plain)
	if err != nil {
		return PaymentCode{}, errors.Join(ErrInvalidPayload, err)
	}
	return pc, nil
}

func blindingMask(x [32]byte, outpoint types.Outpoint) []byte {
	mac := hmac.New(sha512.New, outpoint.Bytes())
	mac.Write(x[:])
	return mac.Sum(nil)
}

// applyMask XORs the x coordinate and chain code of b in place.
func applyMask(b, mask []byte) {
	for i := 0; i < 32; i++ {
		b[offX+i] ^= mask[i]
		b[offChainCode+i] ^= mask[32+i]
	}
}
