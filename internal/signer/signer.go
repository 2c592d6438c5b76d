// Package signer implements the Signing Surface (C3): extended Ed25519
// signing and verification over keys produced by internal/derivation,
// plus public-key export in hex, bech32, and raw forms.
package signer

import (
	"crypto/sha512"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/cardano-embedded/signer/internal/derivation"
)

var (
	ErrLenMismatch = errors.New("signer: tx id must be exactly 32 bytes")
	ErrBadSig      = errors.New("signer: malformed signature")
)

// SignatureSize is the length of an extended Ed25519 signature: R (32) ‖ S (32).
const SignatureSize = 64

// DeriveKey walks path from root and returns the leaf XPrv (spec.md §4.3).
func DeriveKey(root *derivation.XPrv, path derivation.Path) (*derivation.XPrv, error) {
	return derivation.DeriveKey(root, path)
}

// DeriveKeyPair walks path from root and returns both the leaf XPrv and its
// corresponding XPub.
func DeriveKeyPair(root *derivation.XPrv, path derivation.Path) (*derivation.XPrv, *derivation.XPub, error) {
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		return nil, nil, err
	}
	xpub, err := xprv.ToPublic()
	if err != nil {
		return nil, nil, err
	}
	return xprv, xpub, nil
}

// SignTxID signs a 32-byte transaction id with the key at path, derived
// from root (spec.md §4.3 sign_tx_id).
func SignTxID(root *derivation.XPrv, path derivation.Path, txID []byte) ([]byte, error) {
	if len(txID) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrLenMismatch, len(txID))
	}
	return signWithPath(root, path, txID)
}

// SignData signs an arbitrary-length message with the key at path (spec.md
// §4.3 sign_data).
func SignData(root *derivation.XPrv, path derivation.Path, message []byte) ([]byte, error) {
	return signWithPath(root, path, message)
}

func signWithPath(root *derivation.XPrv, path derivation.Path, message []byte) ([]byte, error) {
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		return nil, err
	}
	return Sign(xprv, message)
}

// Sign computes the extended Ed25519 signature over message using the
// pre-expanded k_L directly as the signing scalar (spec.md §4.2 "Ed25519
// extended sign" — no re-hash of a seed, unlike textbook Ed25519):
//
//	r = SHA-512(k_R ‖ m) mod ℓ
//	R = r·B
//	k = SHA-512(R ‖ A ‖ m) mod ℓ
//	S = r + k·k_L mod ℓ
func Sign(xprv *derivation.XPrv, message []byte) ([]byte, error) {
	pub, err := xprv.ToPublic()
	if err != nil {
		return nil, err
	}
	a := pub.A[:]

	rHash := sha512.New()
	rHash.Write(xprv.KR[:])
	rHash.Write(message)
	r, err := reduceWide(rHash.Sum(nil))
	if err != nil {
		return nil, err
	}

	R := new(edwards25519.Point).ScalarBaseMult(r)
	rBytes := R.Bytes()

	kHash := sha512.New()
	kHash.Write(rBytes)
	kHash.Write(a)
	kHash.Write(message)
	k, err := reduceWide(kHash.Sum(nil))
	if err != nil {
		return nil, err
	}

	kl, err := scalarFromClamped(xprv.KL[:])
	if err != nil {
		return nil, err
	}

	s := new(edwards25519.Scalar).MultiplyAdd(k, kl, r)

	sig := make([]byte, 0, SignatureSize)
	sig = append(sig, rBytes...)
	sig = append(sig, s.Bytes()...)
	return sig, nil
}

// Verify checks an extended Ed25519 signature against xpub, returning false
// on any malformed input rather than an error (spec.md §4.3 verify: "never
// fails; returns false").
func Verify(xpub *derivation.XPub, message, signature []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	R, err := edwards25519.NewIdentityPoint().SetBytes(signature[0:32])
	if err != nil {
		return false
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(signature[32:64])
	if err != nil {
		return false
	}
	A, err := edwards25519.NewIdentityPoint().SetBytes(xpub.A[:])
	if err != nil {
		return false
	}

	kHash := sha512.New()
	kHash.Write(signature[0:32])
	kHash.Write(xpub.A[:])
	kHash.Write(message)
	k, err := reduceWide(kHash.Sum(nil))
	if err != nil {
		return false
	}

	// Check S·B == R + k·A.
	sB := new(edwards25519.Point).ScalarBaseMult(s)
	kA := new(edwards25519.Point).ScalarMult(k, A)
	want := new(edwards25519.Point).Add(R, kA)
	return sB.Equal(want) == 1
}

// reduceWide reduces a 64-byte SHA-512 digest modulo the group order ℓ.
func reduceWide(digest []byte) (*edwards25519.Scalar, error) {
	return edwards25519.NewScalar().SetUniformBytes(digest)
}

// scalarFromClamped reduces the 32-byte clamped k_L modulo ℓ, the same
// zero-extend trick used throughout internal/derivation.
func scalarFromClamped(kl []byte) (*edwards25519.Scalar, error) {
	wide := make([]byte, 64)
	copy(wide, kl)
	return edwards25519.NewScalar().SetUniformBytes(wide)
}
