// Package txstream implements the Transaction-Stream Engine (C6): a
// rolling Blake2b-256 hasher over user-confirmed transaction entries, a
// per-entry confirmation gate, and finalization into a signed transaction
// id (spec.md §4.6).
package txstream

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/cardano-embedded/signer/internal/codec"
	"github.com/cardano-embedded/signer/internal/derivation"
	"github.com/cardano-embedded/signer/internal/session"
	"github.com/cardano-embedded/signer/internal/signer"
)

// Confirmer blocks until the user presses one of the two device buttons
// for the given human-readable summary, returning true for confirm and
// false for reject (spec.md §5 suspension point (b)).
type Confirmer interface {
	Confirm(summary string) bool
}

// ErrRejected is returned by HandleEntry/HandleDone when the user pressed
// reject instead of confirm. It carries no package prefix: its text is
// wire-visible, wrapped as "<kind> rejected by the user" in the CBOR Error
// response (spec.md §4.6 step 2; original_source/.../stream-device/src/lib.rs:214).
var ErrRejected = errors.New("rejected by the user")

// Engine holds the one Blake2b-256 hasher context and the implicit
// "awaiting entry | awaiting done" state of spec.md §4.6. It has a single
// owner (the dispatcher); nothing else observes the hasher.
type Engine struct {
	confirmer Confirmer
	hasher    hash.Hash
}

// New creates an Engine with a fresh, empty hasher.
func New(confirmer Confirmer) *Engine {
	e := &Engine{confirmer: confirmer}
	e.reset()
	return e
}

func (e *Engine) reset() {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an oversized key, and we pass nil.
		panic(fmt.Sprintf("txstream: blake2b.New256: %v", err))
	}
	e.hasher = h
}

// HandleEntry processes one streamed TxEntry (spec.md §4.6 step 1-3):
// display a detailed summary on the side channel, block on the two
// buttons, and either absorb its canonical CBOR encoding into the rolling
// hasher or reset the hasher on rejection. The wire-visible response and
// error text name only the entry's kind ("TxIn"/"Fee"), matching
// original_source/.../stream-device/src/lib.rs:209,214 exactly; the
// detailed "TxIn(hash,index)" form is for the display side-channel only.
func (e *Engine) HandleEntry(entry *codec.TxEntry) (*codec.StreamResponse, error) {
	kind, err := kindOf(entry)
	if err != nil {
		return nil, err
	}
	detail, err := detailOf(entry)
	if err != nil {
		return nil, err
	}

	if !e.confirmer.Confirm(detail) {
		e.reset()
		return nil, fmt.Errorf("%s %w", kind, ErrRejected)
	}

	raw, err := codec.EncodeTxEntry(entry)
	if err != nil {
		return nil, err
	}
	e.hasher.Write(raw)
	return &codec.StreamResponse{Message: kind + " confirmed"}, nil
}

// HandleDone finalizes the hasher into a transaction id, displays it, and
// on confirmation signs it with the key at path (spec.md §4.6 "Done").
// The hasher is reset unconditionally, matching the "Non-restartable"
// rule: once Done is processed the host must re-stream from scratch.
// sess supplies the root key (password-gated, per spec.md §3 invariant 1).
func (e *Engine) HandleDone(sess *session.Session, password []byte, pathStr string) (*codec.SignResponse, error) {
	txID := e.hasher.Sum(nil)
	defer e.reset()

	if !e.confirmer.Confirm(hex.EncodeToString(txID)) {
		return nil, fmt.Errorf("TxId %w", ErrRejected)
	}

	path, err := derivation.ParsePath(pathStr)
	if err != nil {
		return nil, err
	}
	root, err := sess.Root(password)
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignTxID(root, path, txID)
	if err != nil {
		return nil, err
	}
	return &codec.SignResponse{Signature: sig}, nil
}

// kindOf names the entry's wire-visible kind, exactly as lib.rs's
// `of_what` does: "TxIn" or "Fee", never the entry's contents.
func kindOf(entry *codec.TxEntry) (string, error) {
	switch {
	case entry.TxInput != nil:
		return "TxIn", nil
	case entry.Fee != nil:
		return "Fee", nil
	default:
		return "", errors.New("txstream: entry names neither TxInput nor Fee")
	}
}

// detailOf renders the entry's contents for the display side-channel
// only (spec.md §5 "Suspension points"); it never reaches the wire.
func detailOf(entry *codec.TxEntry) (string, error) {
	switch {
	case entry.TxInput != nil:
		return fmt.Sprintf("TxIn(%s,%d)", hex.EncodeToString(entry.TxInput.Hash), entry.TxInput.Index), nil
	case entry.Fee != nil:
		return fmt.Sprintf("Fee(%d)", entry.Fee.Lovelace), nil
	default:
		return "", errors.New("txstream: entry names neither TxInput nor Fee")
	}
}
