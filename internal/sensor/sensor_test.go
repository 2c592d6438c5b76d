package sensor

import (
	"encoding/hex"
	"testing"

	"github.com/cardano-embedded/signer/internal/derivation"
	"github.com/cardano-embedded/signer/internal/mnemonic"
	"github.com/cardano-embedded/signer/internal/signer"
)

func slip14Root(t *testing.T) *derivation.XPrv {
	t.Helper()
	entropy, err := mnemonic.ToEntropy("all all all all all all all all all all all all")
	if err != nil {
		t.Fatalf("ToEntropy: %v", err)
	}
	return derivation.RootXPrv(entropy, nil)
}

// TestEncode_BigEndianLayout pins the exact byte layout spec.md §9 mandates:
// big-endian i32 reading followed by big-endian u64 time.
func TestEncode_BigEndianLayout(t *testing.T) {
	got := encode(-1, 0x0102030405060708)
	want := "ffffffff0102030405060708"
	if hex.EncodeToString(got) != want {
		t.Fatalf("encode = %x, want %s", got, want)
	}
}

// TestSignReading_VerifiesAgainstDerivedKey checks that the signature
// SignReading produces verifies under the same big-endian frame against
// the public key at the same derivation path.
func TestSignReading_VerifiesAgainstDerivedKey(t *testing.T) {
	root := slip14Root(t)
	path := derivation.AddressPath(0, derivation.ChainExternal, 0)

	reading, sig, err := SignReading(root, path, func() int32 { return 42 }, 1_700_000_000)
	if err != nil {
		t.Fatalf("SignReading: %v", err)
	}
	if reading != 42 {
		t.Fatalf("reading = %d, want 42", reading)
	}

	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	xpub, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	data := encode(42, 1_700_000_000)
	if !signer.Verify(xpub, data, sig) {
		t.Fatalf("Verify rejected a genuine sensor signature")
	}
}

// TestSignReading_AcceptsHardenedPath checks that a hardened leaf path is
// accepted by SignReading (only public-key derivation rejects hardened
// indices): a hardened path signs successfully via the private chain.
func TestSignReading_AcceptsHardenedPath(t *testing.T) {
	root := slip14Root(t)
	path, err := derivation.ParsePath("m/1852'/1815'/0'")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if _, _, err := SignReading(root, path, func() int32 { return 0 }, 0); err != nil {
		t.Fatalf("SignReading over a hardened path: %v", err)
	}
}
