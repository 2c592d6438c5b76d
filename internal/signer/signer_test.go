package signer

import (
	"encoding/hex"
	"errors"
	"strings"
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

// TestSign_RootVector reproduces an extended Ed25519 signature over the
// all-zero 32-byte message directly with the SLIP-14 root key, a
// ground-truth vector cross-checked against an independent implementation.
func TestSign_RootVector(t *testing.T) {
	root := slip14Root(t)
	msg := make([]byte, 32)

	sig, err := Sign(root, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	want := "e60adedcb3bde0ce6274ed8742f32ca9173ce09781d1a1b356cc3b5a4449163" +
		"380ffa254262d804740275a5e3d32763cb7cf95245f2da15a6abd9c0b801b9e02"
	if got := hex.EncodeToString(sig); got != want {
		t.Fatalf("signature =\n%s\nwant\n%s", got, want)
	}

	pub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	if !Verify(pub, msg, sig) {
		t.Fatalf("Verify rejected a genuine signature")
	}
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	root := slip14Root(t)
	msg := make([]byte, 32)
	sig, err := Sign(root, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	pub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0x01
	if Verify(pub, msg, tampered) {
		t.Fatalf("Verify accepted a tampered signature")
	}
}

func TestVerify_RejectsWrongLength(t *testing.T) {
	root := slip14Root(t)
	pub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	if Verify(pub, []byte("msg"), []byte{1, 2, 3}) {
		t.Fatalf("Verify accepted a malformed signature instead of returning false")
	}
}

func TestSignTxID_RejectsWrongLength(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(0, derivation.ChainExternal, 0)
	if _, err := SignTxID(root, path, []byte{1, 2, 3}); !errors.Is(err, ErrLenMismatch) {
		t.Fatalf("err = %v, want ErrLenMismatch", err)
	}
}

// TestSignTxID_SLIP14Scenario reproduces the spec's conformance scenario:
// SLIP-14 mnemonic, empty password, path m/1852'/1815'/0'/0/0, a fixed
// 32-byte tx-id, against its published extended Ed25519 signature.
func TestSignTxID_SLIP14Scenario(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(0, derivation.ChainExternal, 0)
	txID, err := hex.DecodeString("bb1eb401cd03b0cd8caa08997df0a2ab226772c4d3a08adfb5a60ba34de12dfb")
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}

	sig, err := SignTxID(root, path, txID)
	if err != nil {
		t.Fatalf("SignTxID: %v", err)
	}
	want := "e6766adf71231ec80faddbe12dcea623fd6bc31982cdbc69e90fb8c4dd937d4" +
		"cdc87c2d3287a1c62be928a4ec01b970099410301adba27ca20fee0c08f68e50a"
	if got := hex.EncodeToString(sig); got != want {
		t.Fatalf("signature =\n%s\nwant\n%s", got, want)
	}
}

func TestSignTxID_DerivedKeyRoundTrip(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(0, derivation.ChainExternal, 0)
	txID := make([]byte, 32)
	for i := range txID {
		txID[i] = byte(i)
	}

	sig, err := SignTxID(root, path, txID)
	if err != nil {
		t.Fatalf("SignTxID: %v", err)
	}

	xprv, err := DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	pub, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	if !Verify(pub, txID, sig) {
		t.Fatalf("derived-key signature failed verification")
	}
}

func TestDeriveKeyPair(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(0, derivation.ChainExternal, 0)
	xprv, xpub, err := DeriveKeyPair(root, path)
	if err != nil {
		t.Fatalf("DeriveKeyPair: %v", err)
	}
	wantPub, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	if hex.EncodeToString(xpub.Bytes()) != hex.EncodeToString(wantPub.Bytes()) {
		t.Fatalf("DeriveKeyPair's xpub does not match xprv.ToPublic()")
	}
}

func TestPublicKeyExport(t *testing.T) {
	root := slip14Root(t)
	pub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	hexKey := PublicKeyHex(pub)
	if len(hexKey) != 64 {
		t.Fatalf("hex key length = %d, want 64", len(hexKey))
	}
	raw := PublicKeyRaw(pub)
	if hex.EncodeToString(raw) != hexKey {
		t.Fatalf("raw export does not match hex export")
	}

	b32, err := PublicKeyBech32(pub)
	if err != nil {
		t.Fatalf("PublicKeyBech32: %v", err)
	}
	if len(b32) == 0 {
		t.Fatalf("bech32 export is empty")
	}
	if !strings.HasPrefix(b32, publicKeyHRP) {
		t.Fatalf("bech32 export %q does not start with hrp %q", b32, publicKeyHRP)
	}
}
