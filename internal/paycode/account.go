package paycode

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-paycode/internal/wallet"
	"github.com/Klingon-tech/klingnet-paycode/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
)

// Account is the capability set shared by sending and receiving accounts.
//
// Address slices are built fresh on every call. Callers must not assume a
// slice reflects state changed by a later MarkAddressUsed.
type Account interface {
	AccountIndex() uint32
	MyPaymentCode() PaymentCode
	UsedAddresses() ([]AddressKey, error)
	NextAddresses() ([]AddressKey, error)
	// MarkAddressUsed reports whether addr belonged to the account's
	// lookahead window. An unknown address is not an error.
	MarkAddressUsed(addr types.Address) (bool, error)
}

// accountKeys holds the key material every account owns.
type accountKeys struct {
	index     uint32
	key       *wallet.HDKey
	params    *chaincfg.Params
	lookahead uint32
	myCode    PaymentCode
}

func newAccountKeys(root *wallet.HDKey, index uint32, params *chaincfg.Params, lookahead uint32) (accountKeys, error) {
	key, err := root.DeriveAccount(index)
	if err != nil {
		return accountKeys{}, fmt.Errorf("derive account %d: %w", index, err)
	}
	myCode, err := FromKey(key)
	if err != nil {
		return accountKeys{}, err
	}
	return accountKeys{index: index, key: key, params: params, lookahead: lookahead, myCode: myCode}, nil
}

// AccountIndex returns the dense index of the account within its role.
func (a *accountKeys) AccountIndex() uint32 { return a.index }

// MyPaymentCode returns the account's own payment code.
func (a *accountKeys) MyPaymentCode() PaymentCode { return a.myCode }

func (a *accountKeys) newChannel(theirCode PaymentCode, side Side) (*PaymentChannel, error) {
	return NewPaymentChannel(theirCode, a.key, side, a.params, a.lookahead)
}
