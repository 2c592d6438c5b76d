package signer

import (
	"encoding/hex"

	"github.com/cosmos/btcutil/bech32"

	"github.com/cardano-embedded/signer/internal/derivation"
)

// publicKeyHRP is the bech32 human-readable prefix for a raw Ed25519
// public key, per spec.md §6's enumerated HRPs (ed25519_sk, ed25519e_sk,
// ed25519_pk, ed25519_sig) — distinct from Cardano's on-chain address
// HRPs ("addr"/"stake") since this exports the signing key itself, not a
// payment address.
const publicKeyHRP = "ed25519_pk"

// PublicKeyHex returns the lowercase hex encoding of the 32-byte raw Ed25519
// point A (spec.md §4.3 public_key_hex), discarding the chain code.
func PublicKeyHex(xpub *derivation.XPub) string {
	return hex.EncodeToString(xpub.A[:])
}

// PublicKeyBech32 bech32-encodes the raw 32-byte public key under the
// ed25519_pk prefix, for display surfaces that prefer the Cardano-style
// encoding over plain hex.
func PublicKeyBech32(xpub *derivation.XPub) (string, error) {
	conv, err := bech32.ConvertBits(xpub.A[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(publicKeyHRP, conv)
}

// PublicKeyRaw returns the raw 32-byte public key, copied out of xpub so
// callers cannot mutate the original.
func PublicKeyRaw(xpub *derivation.XPub) []byte {
	out := make([]byte, 32)
	copy(out, xpub.A[:])
	return out
}
