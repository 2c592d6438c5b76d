package derivation

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"math/big"

	"filippo.io/edwards25519"
)

// two256 is 2^256, used to truncate the unreduced k_L addition back to 32
// bytes (spec.md §4.2 step 3: "33 bytes of headroom, truncated back to 32
// bytes").
var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Derive computes the V2 ("Khovratovich-Law") child of x at the given
// 32-bit index, applying the bit-5 safety predicate uniformly (spec.md §9
// open question: some reference call sites skip this check; we never do).
func (x *XPrv) Derive(index uint32) (*XPrv, error) {
	z, c, err := x.deriveZAndChainCode(index)
	if err != nil {
		return nil, err
	}

	zl := z[0:28]
	zr := z[32:64]

	kl := addKL(x.KL[:], zl)
	kr := addKR(x.KR[:], zr)

	if kl[31]&0b0010_0000 != 0 {
		return nil, ErrRejected
	}

	child := &XPrv{KL: kl, KR: kr}
	copy(child.ChainCode[:], c)
	return child, nil
}

// deriveZAndChainCode computes Z = HMAC-SHA512(chaincode, tag_Z‖payload) and
// c_i = right256(HMAC-SHA512(chaincode, tag_C‖payload)) for either a
// hardened or soft child index.
func (x *XPrv) deriveZAndChainCode(index uint32) ([]byte, []byte, error) {
	var tagZ, tagC byte
	var payload []byte

	if isHardened(index) {
		tagZ, tagC = 0x00, 0x01
		payload = make([]byte, 0, 68)
		payload = append(payload, x.KL[:]...)
		payload = append(payload, x.KR[:]...)
		payload = append(payload, le32(index)...)
	} else {
		tagZ, tagC = 0x02, 0x03
		pub, err := x.ToPublic()
		if err != nil {
			return nil, nil, err
		}
		payload = make([]byte, 0, 36)
		payload = append(payload, pub.A[:]...)
		payload = append(payload, le32(index)...)
	}

	z := hmacSHA512(x.ChainCode[:], append([]byte{tagZ}, payload...))
	cFull := hmacSHA512(x.ChainCode[:], append([]byte{tagC}, payload...))
	return z, cFull[32:64], nil
}

// DerivePublic computes the V2 soft child of a public key. Hardened
// indices always fail here (spec.md §4.2, §4.3 invariant 3).
func (p *XPub) DerivePublic(index uint32) (*XPub, error) {
	if isHardened(index) {
		return nil, ErrHardened
	}

	payload := make([]byte, 0, 36)
	payload = append(payload, p.A[:]...)
	payload = append(payload, le32(index)...)

	z := hmacSHA512(p.ChainCode[:], append([]byte{0x02}, payload...))
	cFull := hmacSHA512(p.ChainCode[:], append([]byte{0x03}, payload...))

	zl := z[0:28]

	a, err := edwards25519.NewIdentityPoint().SetBytes(p.A[:])
	if err != nil {
		return nil, ErrBadPoint
	}

	eightZL := new(big.Int).Lsh(leToBigInt(zl), 3)
	scalar, err := scalarFromBigInt(eightZL)
	if err != nil {
		return nil, err
	}
	delta := new(edwards25519.Point).ScalarBaseMult(scalar)
	ai := new(edwards25519.Point).Add(a, delta)

	var child XPub
	copy(child.A[:], ai.Bytes())
	copy(child.ChainCode[:], cFull[32:64])
	return &child, nil
}

// isHardened reports whether index names a hardened (bit 31 set) child.
func isHardened(index uint32) bool {
	return index >= hardenedOffset
}

func le32(index uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, index)
	return b
}

func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// addKL computes k_L_i = 8*Z_L + k_L as a 256-bit little-endian integer,
// discarding any carry past the 32nd byte.
func addKL(kl, zl []byte) [32]byte {
	sum := new(big.Int).Lsh(leToBigInt(zl), 3)
	sum.Add(sum, leToBigInt(kl))
	sum.Mod(sum, two256)
	return bigIntToLE32(sum)
}

// addKR computes k_R_i = (Z_R + k_R) mod 2^256, a plain byte-wise add with
// carry, discarding the final carry.
func addKR(kr, zr []byte) [32]byte {
	sum := new(big.Int).Add(leToBigInt(zr), leToBigInt(kr))
	sum.Mod(sum, two256)
	return bigIntToLE32(sum)
}

// leToBigInt interprets b as a little-endian unsigned integer.
func leToBigInt(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}

// bigIntToLE32 encodes n as a 32-byte little-endian integer, truncating
// (mod 2^256) if it overflows.
func bigIntToLE32(n *big.Int) [32]byte {
	n = new(big.Int).Mod(n, two256)
	be := n.Bytes()
	var out [32]byte
	for i, v := range be {
		out[len(be)-1-i] = v
	}
	return out
}

// scalarFromBigInt reduces a non-negative integer modulo the Ed25519 group
// order L and returns it as a Scalar, via the same zero-extend-to-64-bytes
// trick used for root/child k_L values. Only the low 32 bytes of n are
// used: bytes above the 32nd are dropped before the reduction.
func scalarFromBigInt(n *big.Int) (*edwards25519.Scalar, error) {
	be := n.Bytes()
	le := make([]byte, 32)
	for i, v := range be {
		if len(be)-1-i >= 32 {
			continue
		}
		le[len(be)-1-i] = v
	}
	return scalarModL(le)
}
