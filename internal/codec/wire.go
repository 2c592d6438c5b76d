// Package codec implements the length-prefixed framing and tagged-variant
// CBOR wire format of the Framed Codec & Dispatcher (C5): every host↔device
// message is an 8-byte big-endian length prefix followed by a CBOR body
// whose top-level shape is a numbered (not named) tagged sum, so the
// protocol stays stable across Go-side renames.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// RequestTag numbers the host→device variants (spec.md §4.5 table).
type RequestTag uint8

const (
	TagInit RequestTag = iota
	TagSign
	TagVerify
	TagTemp
	TagPubKey
	TagStream
	// TagOwnership is a supplemented variant: spec.md §4.4 describes the
	// Ownership Prover and §4.3's control-flow summary says the dispatcher
	// "routes to C3/C4/C6", but the distilled wire table only lists C3/C6.
	// This restores C4 to the wire protocol.
	TagOwnership
	// TagVersion is a supplemented variant (not in the distilled spec): it
	// lets the host query the device's protocol/firmware version without
	// requiring entropy to be present.
	TagVersion
)

// ResponseTag numbers the device→host variants. Tags 0-2 reuse the request
// numbering for the variants that mirror a request one-to-one (Init, Sign,
// Verify); 3 is Error, 4 and 5 are unused, and 6-10 carry the remaining
// responses under numbers of their own.
type ResponseTag uint8

const (
	TagInitOK ResponseTag = iota
	TagSignOut
	TagVerifyOut
	TagError
	_
	_
	TagTempOut
	TagPubKeyOut
	TagStreamOut
	TagVersionOut
	TagOwnershipOut
)

// Request is the decoded form of a host→device frame body.
type Request struct {
	Tag       RequestTag
	Init      *InitRequest
	Sign      *SignRequest
	Verify    *VerifyRequest
	Temp      *TempRequest
	PubKey    *PubKeyRequest
	Stream    *StreamRequest
	Ownership *OwnershipRequest
}

type InitRequest struct {
	Mnemonic string `cbor:"mnemonic"`
}

type SignRequest struct {
	TxID     []byte `cbor:"tx_id"`
	Password []byte `cbor:"password"`
	Path     string `cbor:"path"`
}

type VerifyRequest struct {
	TxID      []byte `cbor:"tx_id"`
	Signature []byte `cbor:"signature"`
	Password  []byte `cbor:"password"`
	Path      string `cbor:"path"`
}

type TempRequest struct {
	Password []byte `cbor:"password"`
	Time     uint64 `cbor:"time"`
	Path     string `cbor:"path"`
}

type PubKeyRequest struct {
	Password []byte `cbor:"password"`
	Path     string `cbor:"path"`
}

// StreamRequest carries the nested tagged variant of spec.md §4.5: either a
// confirmed-or-rejected Entry, or Done, which finalizes the stream.
type StreamRequest struct {
	Entry *TxEntry
	Done  *DoneRequest
}

type DoneRequest struct {
	Password []byte `cbor:"password"`
	Path     string `cbor:"path"`
}

// TxEntry is itself a tagged sum: TxInput or Fee.
type TxEntry struct {
	TxInput *TxInput
	Fee     *Fee
}

type TxInput struct {
	Hash  []byte `cbor:"hash"`
	Index uint32 `cbor:"index"`
}

type Fee struct {
	Lovelace uint64 `cbor:"lovelace"`
}

// OwnershipRequest asks the device to prove control of targetXPub via a
// bounded account×address search (spec.md §4.4), signing nonce with the
// matching key if one is found. Mode selects the search shape: "account"
// bounds by AccountGap alone, "address" bounds by AccountGap and
// AddressGap on the external chain.
type OwnershipRequest struct {
	Password   []byte `cbor:"password"`
	TargetXPub []byte `cbor:"target_xpub"`
	Mode       string `cbor:"mode"`
	AccountGap uint32 `cbor:"account_gap"`
	AddressGap uint32 `cbor:"address_gap"`
	Nonce      []byte `cbor:"nonce"`
}

// Response is the decoded form of a device→host frame body.
type Response struct {
	Tag       ResponseTag
	Init      *InitResponse
	Sign      *SignResponse
	Verify    *VerifyResponse
	Error     *ErrorResponse
	Temp      *TempResponse
	PubKey    *PubKeyResponse
	Stream    *StreamResponse
	Version   *VersionResponse
	Ownership *OwnershipResponse
}

// OwnershipResponse reports whether the bounded search in an
// OwnershipRequest found a matching key, and if so the signature over its
// nonce (spec.md §4.4 "The caller obtains a signature over a nonce as the
// ownership proof").
type OwnershipResponse struct {
	Found     bool   `cbor:"found"`
	Signature []byte `cbor:"signature"`
}

type InitResponse struct{}

type SignResponse struct {
	Signature []byte `cbor:"signature"`
}

type VerifyResponse struct {
	OK bool `cbor:"ok"`
}

type ErrorResponse struct {
	Message string `cbor:"message"`
}

type TempResponse struct {
	Reading   int32  `cbor:"reading"`
	Signature []byte `cbor:"signature"`
}

type PubKeyResponse struct {
	Hex string `cbor:"hex"`
}

type StreamResponse struct {
	Message string `cbor:"message"`
}

// VersionResponse reports the semantic version of the wire protocol and
// firmware build (supplemented §4.5 variant, tag 9).
type VersionResponse struct {
	Protocol string `cbor:"protocol"`
	Firmware string `cbor:"firmware"`
}

// envelope is the on-wire shape of every tagged body: a 2-element CBOR
// array [tag, fields]. The `toarray` struct tag tells fxamacker/cbor to
// encode/decode Envelope positionally instead of as a map.
type envelope struct {
	_    struct{} `cbor:",toarray"`
	Tag  uint8
	Body cbor.RawMessage
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building canonical encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building decode mode: %v", err))
	}
}
