// Package ownership implements the Ownership Prover (C4): a bounded
// account×address search for the private key that maps to a given public
// key, so the host can ask the device to prove control of an address
// without the host ever learning the account or chain index that
// produced it.
package ownership

import (
	"bytes"
	"errors"

	"github.com/cardano-embedded/signer/internal/derivation"
)

// ErrNotFound indicates the search exhausted its bounds without a match.
var ErrNotFound = errors.New("ownership: no matching key within the search bounds")

// KeyType selects which of the two bounded searches to run (spec.md §4.4).
type KeyType interface {
	isKeyType()
}

// AccountKey searches m/1852'/1815'/a' for a ∈ [0, AccountGap].
type AccountKey struct {
	AccountGap uint32
}

func (AccountKey) isKeyType() {}

// AddressKey searches m/1852'/1815'/a'/0/i for a ∈ [0, AccountGap],
// i ∈ [0, AddressGap], external chain only (spec.md §4.4: internal chain 1
// and staking chain 2 are not searched).
type AddressKey struct {
	AccountGap uint32
	AddressGap uint32
}

func (AddressKey) isKeyType() {}

// Find performs the bounded search described by keyType against target,
// returning the first matching XPrv in ascending (account, index) order
// (spec.md §4.4 tie-break rule), or ErrNotFound if exhausted.
func Find(root *derivation.XPrv, target *derivation.XPub, keyType KeyType) (*derivation.XPrv, error) {
	switch kt := keyType.(type) {
	case AccountKey:
		return findAccount(root, target, kt.AccountGap)
	case AddressKey:
		return findAddress(root, target, kt.AccountGap, kt.AddressGap)
	default:
		return nil, errors.New("ownership: unknown key type")
	}
}

func findAccount(root *derivation.XPrv, target *derivation.XPub, accountGap uint32) (*derivation.XPrv, error) {
	for a := uint32(0); a <= accountGap; a++ {
		xprv, err := derivation.DeriveKey(root, derivation.AccountPath(a))
		if err != nil {
			continue
		}
		if matches(xprv, target) {
			return xprv, nil
		}
	}
	return nil, ErrNotFound
}

func findAddress(root *derivation.XPrv, target *derivation.XPub, accountGap, addressGap uint32) (*derivation.XPrv, error) {
	for a := uint32(0); a <= accountGap; a++ {
		for i := uint32(0); i <= addressGap; i++ {
			path := derivation.AddressPath(a, derivation.ChainExternal, i)
			xprv, err := derivation.DeriveKey(root, path)
			if err != nil {
				continue
			}
			if matches(xprv, target) {
				return xprv, nil
			}
		}
	}
	return nil, ErrNotFound
}

func matches(xprv *derivation.XPrv, target *derivation.XPub) bool {
	pub, err := xprv.ToPublic()
	if err != nil {
		return false
	}
	return bytes.Equal(pub.Bytes(), target.Bytes())
}
