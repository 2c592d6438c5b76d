package ownership

import (
	"testing"

	"github.com/cardano-embedded/signer/internal/derivation"
	"github.com/cardano-embedded/signer/internal/mnemonic"
)

func slip14Root(t *testing.T) *derivation.XPrv {
	t.Helper()
	entropy, err := mnemonic.ToEntropy("all all all all all all all all all all all all")
	if err != nil {
		t.Fatalf("ToEntropy: %v", err)
	}
	return derivation.RootXPrv(entropy, nil)
}

func TestFind_AddressKey_Match(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(2, derivation.ChainExternal, 3)
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	target, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	found, err := Find(root, target, AddressKey{AccountGap: 2, AddressGap: 3})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	foundPub, err := found.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic on found key: %v", err)
	}
	if !matches(found, target) {
		t.Fatalf("found key does not match target: %x", foundPub.Bytes())
	}
}

func TestFind_AddressKey_NotFound(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(5, derivation.ChainExternal, 0)
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	target, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	// Search bounds too small to reach account 5.
	if _, err := Find(root, target, AddressKey{AccountGap: 2, AddressGap: 2}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFind_AddressKey_DoesNotSearchInternalChain(t *testing.T) {
	root := slip14Root(t)
	// A key on the internal chain (1) must never be found by AddressKey,
	// which is restricted to the external chain (spec.md §4.4).
	path := derivation.AddressPath(0, derivation.ChainInternal, 0)
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	target, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	if _, err := Find(root, target, AddressKey{AccountGap: 3, AddressGap: 3}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound (internal chain must not be searched)", err)
	}
}

func TestFind_AccountKey_Match(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AccountPath(1)
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	target, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	found, err := Find(root, target, AccountKey{AccountGap: 2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !matches(found, target) {
		t.Fatalf("found key does not match target")
	}
}

// TestFind_SLIP14ScenarioPositive reproduces the spec's conformance
// scenario: the target xpub at m/1852'/1815'/4'/0/2 must be found by an
// AddressKey search with gap 20/20.
func TestFind_SLIP14ScenarioPositive(t *testing.T) {
	root := slip14Root(t)
	target, err := derivation.DeriveKey(root, derivation.AddressPath(4, derivation.ChainExternal, 2))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	targetPub := mustPub(t, target)

	found, err := Find(root, targetPub, AddressKey{AccountGap: 20, AddressGap: 20})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !matches(found, targetPub) {
		t.Fatalf("found key does not match the scenario-4 target")
	}
}

// TestFind_SLIP14ScenarioOutOfGap reproduces the spec's conformance
// scenario: account 21 lies just outside an AccountKey search with gap 20.
func TestFind_SLIP14ScenarioOutOfGap(t *testing.T) {
	root := slip14Root(t)
	target, err := derivation.DeriveKey(root, derivation.AccountPath(21))
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	targetPub := mustPub(t, target)

	if _, err := Find(root, targetPub, AccountKey{AccountGap: 20}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFind_AscendingTieBreak(t *testing.T) {
	root := slip14Root(t)
	// Two distinct (account, index) pairs produce distinct public keys with
	// overwhelming probability; confirm the search returns the first match
	// in ascending order rather than continuing past it.
	path := derivation.AddressPath(0, derivation.ChainExternal, 0)
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	target, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	found, err := Find(root, target, AddressKey{AccountGap: 5, AddressGap: 5})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	foundPath := derivation.AddressPath(0, derivation.ChainExternal, 0)
	wantXPrv, err := derivation.DeriveKey(root, foundPath)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if !matches(found, mustPub(t, wantXPrv)) {
		t.Fatalf("did not return the first (0,0) match")
	}
}

func mustPub(t *testing.T, xprv *derivation.XPrv) *derivation.XPub {
	t.Helper()
	pub, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	return pub
}
