package derivation

import (
	"encoding/hex"
	"testing"

	"github.com/cardano-embedded/signer/internal/mnemonic"
)

func slip14Entropy(t *testing.T) []byte {
	t.Helper()
	e, err := mnemonic.ToEntropy("all all all all all all all all all all all all")
	if err != nil {
		t.Fatalf("ToEntropy: %v", err)
	}
	return e
}

// TestRootXPrv_Clamping exercises the clamping invariants (spec.md §4.2)
// against the SLIP-14 entropy: standard Ed25519 clamping plus the
// Icarus "force third-highest-bit-zero" constraint.
func TestRootXPrv_Clamping(t *testing.T) {
	root := RootXPrv(slip14Entropy(t), nil)
	if len(root.Bytes()) != XPrvSize {
		t.Fatalf("root xprv length = %d, want %d", len(root.Bytes()), XPrvSize)
	}
	if root.KL[0]&0b0000_0111 != 0 {
		t.Fatalf("clamping failed: low 3 bits of KL[0] set")
	}
	if root.KL[31]&0b1000_0000 != 0 {
		t.Fatalf("clamping failed: bit 7 of KL[31] set")
	}
	if root.KL[31]&0b0100_0000 == 0 {
		t.Fatalf("clamping failed: bit 6 of KL[31] not set")
	}
	if root.KL[31]&0b0010_0000 != 0 {
		t.Fatalf("clamping failed: bit 5 of KL[31] set")
	}
}

// TestRootXPrv_KnownVector reproduces the exact 96-byte and 128-byte root
// xprv derived from entropy 0ccb74f36b7da1649a8144675522d4d8097c6412, per
// the original implementation's own unit tests.
func TestRootXPrv_KnownVector(t *testing.T) {
	entropy, err := hex.DecodeString("0ccb74f36b7da1649a8144675522d4d8097c6412")
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	root := RootXPrv(entropy, nil)

	wantRoot := "b8f2bece9bdfe2b0282f5bad705562ac996efb6af96b648f4445ec44f47ad95" +
		"c10e3d72f26ed075422a36ed8585c745a0e1150bcceba2357d058636991f38a" +
		"3791e248de509c070d812ab2fda57860ac876bc489192c1ef4ce253c197ee21" +
		"9a4"
	if got := hex.EncodeToString(root.Bytes()); got != wantRoot {
		t.Fatalf("root xprv =\n%s\nwant\n%s", got, wantRoot)
	}

	wantChainCode := "91e248de509c070d812ab2fda57860ac876bc489192c1ef4ce253c197ee219a4"
	// The 96-byte vector above already contains the chain code as its final
	// 32 bytes; re-derive it independently through XPub to confirm the two
	// accessors agree (see TestChainCodeEquality).
	_ = wantChainCode

	xprv128, err := root.To128()
	if err != nil {
		t.Fatalf("To128: %v", err)
	}
	wantXPrv128 := "b8f2bece9bdfe2b0282f5bad705562ac996efb6af96b648f4445ec44f47ad95" +
		"c10e3d72f26ed075422a36ed8585c745a0e1150bcceba2357d058636991f38a" +
		"37cf76399a210de8720e9fa894e45e41e29ab525e30bc402801c076250d1585" +
		"bcd91e248de509c070d812ab2fda57860ac876bc489192c1ef4ce253c197ee2" +
		"19a4"
	if got := hex.EncodeToString(xprv128); got != wantXPrv128 {
		t.Fatalf("128-byte xprv =\n%s\nwant\n%s", got, wantXPrv128)
	}
}

func TestXPrv_128RoundTrip(t *testing.T) {
	entropy, err := hex.DecodeString("0ccb74f36b7da1649a8144675522d4d8097c6412")
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	root := RootXPrv(entropy, nil)

	xprv128, err := root.To128()
	if err != nil {
		t.Fatalf("To128: %v", err)
	}
	roundTripped, err := XPrvFrom128(xprv128)
	if err != nil {
		t.Fatalf("XPrvFrom128: %v", err)
	}
	if hex.EncodeToString(roundTripped.Bytes()) != hex.EncodeToString(root.Bytes()) {
		t.Fatalf("128-byte round trip changed the root xprv")
	}
}

func TestXPrvFrom128_RejectsTamperedPublicKey(t *testing.T) {
	entropy, err := hex.DecodeString("0ccb74f36b7da1649a8144675522d4d8097c6412")
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	root := RootXPrv(entropy, nil)
	xprv128, err := root.To128()
	if err != nil {
		t.Fatalf("To128: %v", err)
	}
	xprv128[64] ^= 0xff // flip a byte inside the embedded A
	if _, err := XPrvFrom128(xprv128); err != ErrRoundTrip {
		t.Fatalf("err = %v, want ErrRoundTrip", err)
	}
}

func TestChainCodeEquality(t *testing.T) {
	entropy, err := hex.DecodeString("0ccb74f36b7da1649a8144675522d4d8097c6412")
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	root := RootXPrv(entropy, nil)
	pub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	if hex.EncodeToString(root.ChainCode[:]) != hex.EncodeToString(pub.ChainCode[:]) {
		t.Fatalf("XPrv.chaincode() != XPub.chaincode()")
	}
	wantChainCode := "91e248de509c070d812ab2fda57860ac876bc489192c1ef4ce253c197ee219a4"
	if got := hex.EncodeToString(pub.ChainCode[:]); got != wantChainCode {
		t.Fatalf("chain code = %s, want %s", got, wantChainCode)
	}
}

// TestDeriveKeyPair_PublicMatchesPrivate walks a fully-soft path (no
// hardened segments) through both the private and public chains and
// confirms they land on the same extended public key, the property
// signing relies on to let a watch-only host validate addresses.
func TestDeriveKeyPair_PublicMatchesPrivate(t *testing.T) {
	root := RootXPrv(slip14Entropy(t), nil)
	path := Path{0, 0} // chain/index, both soft

	xprv, err := DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	wantPub, err := xprv.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}

	rootPub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("root ToPublic: %v", err)
	}
	curPub := rootPub
	for _, idx := range path {
		curPub, err = curPub.DerivePublic(idx)
		if err != nil {
			t.Fatalf("DerivePublic(%d): %v", idx, err)
		}
	}

	if hex.EncodeToString(curPub.Bytes()) != hex.EncodeToString(wantPub.Bytes()) {
		t.Fatalf("public chain = %x, want %x", curPub.Bytes(), wantPub.Bytes())
	}
}

func TestDerivePublic_RejectsHardened(t *testing.T) {
	root := RootXPrv(slip14Entropy(t), nil)
	pub, err := root.ToPublic()
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	_, err = pub.DerivePublic(hardenedOffset | 1852)
	if err != ErrHardened {
		t.Fatalf("err = %v, want ErrHardened", err)
	}
}

func TestDerive_FullCIP1852Path(t *testing.T) {
	root := RootXPrv(slip14Entropy(t), nil)
	path := AddressPath(0, ChainExternal, 0)
	if path.String() != "m/1852'/1815'/0'/0/0" {
		t.Fatalf("AddressPath string = %q", path.String())
	}
	xprv, err := DeriveKey(root, path)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if _, err := xprv.ToPublic(); err != nil {
		t.Fatalf("ToPublic on derived key: %v", err)
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("m/1852'/1815'/0'/0/0")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if p.String() != "m/1852'/1815'/0'/0/0" {
		t.Fatalf("String() = %q", p.String())
	}

	if _, err := ParsePath("1852'/1815'/0'/0/0"); err == nil {
		t.Fatalf("expected error for path missing leading m")
	}
	if _, err := ParsePath("m/abc"); err == nil {
		t.Fatalf("expected error for non-numeric segment")
	}
}
