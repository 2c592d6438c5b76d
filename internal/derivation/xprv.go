// Package derivation implements the BIP-32-Ed25519 "V2" (Khovratovich-Law)
// extended-key engine (C2): chain-code propagation, clamping, and the raw
// Ed25519 key extraction that the signing surface (C3) builds on.
package derivation

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// XPrvSize is the length of the 96-byte extended private key: kL‖kR‖chaincode.
	XPrvSize = 96
	// XPrv128Size inlines the raw public key: kL‖kR‖A‖chaincode.
	XPrv128Size = 128
	// XPubSize is the length of the 64-byte extended public key: A‖chaincode.
	XPubSize = 64

	pbkdf2Iterations = 4096
)

var (
	ErrLength    = errors.New("derivation: key has the wrong length")
	ErrHardened  = errors.New("derivation: hardened index in public derivation")
	ErrRejected  = errors.New("derivation: child key rejected by safety predicate")
	ErrBadPoint  = errors.New("derivation: not a valid compressed Ed25519 point")
	ErrRoundTrip = errors.New("derivation: 128-byte xprv does not round-trip")
)

const hardenedOffset = uint32(1) << 31

// XPrv is a 96-byte extended private key: kL (32) ‖ kR (32) ‖ chain code (32).
type XPrv struct {
	KL        [32]byte
	KR        [32]byte
	ChainCode [32]byte
}

// XPub is a 64-byte extended public key: A (32, compressed point) ‖ chain code (32).
type XPub struct {
	A         [32]byte
	ChainCode [32]byte
}

// RootXPrv expands a BIP-39 entropy buffer (via PBKDF2-HMAC-SHA512, 4096
// iterations, matching Cardano's Icarus master-key derivation) into an
// already-clamped, already-safe root extended private key. The password is
// the wallet passphrase (often empty), not a transport credential.
func RootXPrv(entropy, password []byte) *XPrv {
	out := pbkdf2.Key(password, entropy, pbkdf2Iterations, XPrvSize, sha512.New)

	var x XPrv
	copy(x.KL[:], out[0:32])
	copy(x.KR[:], out[32:64])
	copy(x.ChainCode[:], out[64:96])
	clampRoot(&x.KL)
	return &x
}

// clampRoot forces the standard Ed25519 clamping bits plus the Icarus
// "force third-highest-bit-to-zero" constraint, so that the root k_L always
// satisfies the safety predicate that child derivation enforces by
// rejection (spec invariant: clamping is applied uniformly everywhere).
func clampRoot(kl *[32]byte) {
	kl[0] &= 0b1111_1000
	kl[31] &= 0b0101_1111
	kl[31] |= 0b0100_0000
}

// ToPublic computes the XPub corresponding to this XPrv: A = k_L·B.
func (x *XPrv) ToPublic() (*XPub, error) {
	a, err := compressedPointFromScalarBytes(x.KL[:])
	if err != nil {
		return nil, err
	}
	var pub XPub
	copy(pub.A[:], a)
	pub.ChainCode = x.ChainCode
	return &pub, nil
}

// Bytes serializes the 96-byte form: kL‖kR‖chaincode.
func (x *XPrv) Bytes() []byte {
	out := make([]byte, 0, XPrvSize)
	out = append(out, x.KL[:]...)
	out = append(out, x.KR[:]...)
	out = append(out, x.ChainCode[:]...)
	return out
}

// XPrvFromBytes parses the 96-byte form.
func XPrvFromBytes(b []byte) (*XPrv, error) {
	if len(b) != XPrvSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(b), XPrvSize)
	}
	var x XPrv
	copy(x.KL[:], b[0:32])
	copy(x.KR[:], b[32:64])
	copy(x.ChainCode[:], b[64:96])
	return &x, nil
}

// To128 serializes the alternate 128-byte form that inlines the derived
// raw public key: kL‖kR‖A‖chaincode.
func (x *XPrv) To128() ([]byte, error) {
	pub, err := x.ToPublic()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, XPrv128Size)
	out = append(out, x.KL[:]...)
	out = append(out, x.KR[:]...)
	out = append(out, pub.A[:]...)
	out = append(out, x.ChainCode[:]...)
	return out, nil
}

// XPrvFrom128 parses the 128-byte form, recomputing A to validate the
// round-trip and discarding it (the 96-byte form recomputes it on demand).
func XPrvFrom128(b []byte) (*XPrv, error) {
	if len(b) != XPrv128Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(b), XPrv128Size)
	}
	var x XPrv
	copy(x.KL[:], b[0:32])
	copy(x.KR[:], b[32:64])
	embeddedA := b[64:96]
	copy(x.ChainCode[:], b[96:128])

	pub, err := x.ToPublic()
	if err != nil {
		return nil, err
	}
	for i := range pub.A {
		if pub.A[i] != embeddedA[i] {
			return nil, ErrRoundTrip
		}
	}
	return &x, nil
}

// Bytes serializes the 64-byte form: A‖chaincode.
func (p *XPub) Bytes() []byte {
	out := make([]byte, 0, XPubSize)
	out = append(out, p.A[:]...)
	out = append(out, p.ChainCode[:]...)
	return out
}

// XPubFromBytes parses the 64-byte form.
func XPubFromBytes(b []byte) (*XPub, error) {
	if len(b) != XPubSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(b), XPubSize)
	}
	var p XPub
	copy(p.A[:], b[0:32])
	copy(p.ChainCode[:], b[32:64])
	return &p, nil
}

// compressedPointFromScalarBytes computes (scalar·B) and returns its
// compressed 32-byte encoding. scalar is the raw, unreduced 32-byte
// clamped k_L; edwards25519.Scalar reduces it mod the group order L via
// SetUniformBytes (zero-extended to 64 bytes), which is safe because B has
// order L so scalar·B == (scalar mod L)·B.
func compressedPointFromScalarBytes(scalar []byte) ([]byte, error) {
	s, err := scalarModL(scalar)
	if err != nil {
		return nil, err
	}
	p := new(edwards25519.Point).ScalarBaseMult(s)
	return p.Bytes(), nil
}

// scalarModL reduces an arbitrary 32-byte little-endian integer modulo the
// Ed25519 group order L.
func scalarModL(b []byte) (*edwards25519.Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: scalar must be 32 bytes", ErrLength)
	}
	wide := make([]byte, 64)
	copy(wide, b)
	return edwards25519.NewScalar().SetUniformBytes(wide)
}
