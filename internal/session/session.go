// Package session holds the single-owner device session state (spec.md §3
// "Session State"): at most one entropy buffer, mutated only by Init and
// read by every crypto operation that needs it. There is no concurrent
// mutator — the dispatcher is the sole owner and loans entropy out
// immutably for the duration of one operation (spec.md §5 "Shared
// resources").
package session

import (
	"errors"

	"github.com/cardano-embedded/signer/internal/derivation"
)

// ErrNoEntropy is returned by any operation gated on "entropy present"
// (spec.md §3 invariant 1) when Init has not yet succeeded.
var ErrNoEntropy = errors.New("session: no entropy; Init has not been called")

// Session is the device-wide session: an optional entropy buffer and the
// root key it implies.
type Session struct {
	entropy []byte
}

// New returns an empty session with no entropy present.
func New() *Session {
	return &Session{}
}

// SetEntropy installs entropy, replacing any previous session (spec.md §3
// "Lifecycle": entropy lives until power-cycle or next Init). The caller's
// slice is copied so the session owns its own buffer.
func (s *Session) SetEntropy(entropy []byte) {
	s.entropy = append([]byte(nil), entropy...)
}

// Clear zeroizes and discards the session entropy (spec.md §3: "zeroized
// on session reset").
func (s *Session) Clear() {
	for i := range s.entropy {
		s.entropy[i] = 0
	}
	s.entropy = nil
}

// Present reports whether entropy has been installed.
func (s *Session) Present() bool {
	return s.entropy != nil
}

// Root derives the root extended private key from the session entropy
// under password, failing with ErrNoEntropy if no entropy is present.
// Every call recomputes the root rather than caching it: the spec
// discards derived keys after each operation and never persists them.
func (s *Session) Root(password []byte) (*derivation.XPrv, error) {
	if !s.Present() {
		return nil, ErrNoEntropy
	}
	return derivation.RootXPrv(s.entropy, password), nil
}
