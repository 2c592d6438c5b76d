// Package protocol implements the Framed Codec & Dispatcher (C5) cooperative
// state machine of spec.md §4.5/§5: a single-threaded, event-driven loop
// that reads one framed request, executes it, and writes the framed
// response, yielding to the caller on every partial I/O instead of
// blocking. Grounded on the teacher's handler-table dispatch in
// p2p/node.go (RegisterHandler/HandlerFunc), adapted from an HTTP request
// router into a byte-oriented, backpressure-aware state machine.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blang/semver/v4"
	"golang.org/x/sync/semaphore"

	"github.com/cardano-embedded/signer/internal/codec"
	"github.com/cardano-embedded/signer/internal/derivation"
	"github.com/cardano-embedded/signer/internal/mnemonic"
	"github.com/cardano-embedded/signer/internal/ownership"
	"github.com/cardano-embedded/signer/internal/sensor"
	"github.com/cardano-embedded/signer/internal/session"
	"github.com/cardano-embedded/signer/internal/signer"
	"github.com/cardano-embedded/signer/internal/txstream"
)

// ProtocolVersion and FirmwareVersion are reported by the supplemented
// Version request (spec.md §4.5 table does not name one; see codec.TagVersion).
// protocolVersion is parsed once at package init so a malformed constant
// fails at load time rather than silently round-tripping as an opaque
// string to the host.
const (
	ProtocolVersion = "1.0.0"
	FirmwareVersion = "signerd-dev"
)

var protocolVersion = semver.MustParse(ProtocolVersion)

// ErrWouldBlock is returned by a Transport when no data is currently
// available (Read) or the underlying link cannot accept more bytes right
// now (Write). It is not an error condition for the dispatcher: Poll
// leaves the state machine exactly where it was and returns nil.
var ErrWouldBlock = errors.New("protocol: would block")

// Transport is the non-blocking byte pipe the dispatcher drives. A single
// call must never block: it either makes partial progress and returns
// (n, nil), or returns (0, ErrWouldBlock) if it could not move any bytes,
// or returns (n, err) for an unrecoverable transport fault (spec.md §5
// "Backpressure").
type Transport interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}

// MaxBody bounds a frame body's declared length against the device's
// fixed ≈1 KiB heap (spec.md §5 "Memory"). It is a var, not a const, so
// tests can shrink it to exercise ErrFrameTooLarge cheaply.
var MaxBody uint64 = 1024

type state int

const (
	stateReadHead state = iota
	stateReadBody
	stateExec
	stateWriteHead
	stateWriteBody
)

// Dispatcher is the device-side cooperative state machine. It owns the
// session (entropy), the transaction-stream engine, and the in-flight
// frame buffers. signerd builds one Dispatcher, with a fresh session, for
// each host connection and serves one connection at a time.
type Dispatcher struct {
	sess      *session.Session
	stream    *txstream.Engine
	readTemp  sensor.Reader
	heapSem   *semaphore.Weighted

	st state

	head    [codec.HeadSize]byte
	headLen int

	bodyLen   uint64
	bodyHeld  bool
	body      []byte
	bodyPos   int

	outHead [codec.HeadSize]byte
	outBody []byte
	outPos  int
}

// New creates a Dispatcher in its idle (awaiting a frame) state, bound to
// sess for entropy and a fresh Engine for transaction streaming. reader
// samples the on-die temperature register for Temp requests. heapSem
// accounts for the device's fixed ≈1 KiB heap (spec.md §5 "Memory"): every
// in-flight frame body is weighed against it with a non-blocking
// TryAcquire, matching Poll's "never blocks" contract.
func New(sess *session.Session, confirmer txstream.Confirmer, reader sensor.Reader) *Dispatcher {
	return &Dispatcher{
		sess:     sess,
		stream:   txstream.New(confirmer),
		readTemp: reader,
		heapSem:  semaphore.NewWeighted(int64(MaxBody)),
		st:       stateReadHead,
	}
}

// Poll services at most one state-machine transition and returns
// (spec.md §5 "on every wake it services at most one state-machine
// transition and returns"). A returned error is an unrecoverable
// transport fault; ErrWouldBlock is never returned from Poll itself —
// it is absorbed as a no-op so the caller can simply loop forever.
func (d *Dispatcher) Poll(t Transport) error {
	switch d.st {
	case stateReadHead:
		return d.pollReadHead(t)
	case stateReadBody:
		return d.pollReadBody(t)
	case stateExec:
		d.exec()
		return nil
	case stateWriteHead:
		return d.pollWriteHead(t)
	case stateWriteBody:
		return d.pollWriteBody(t)
	default:
		panic("protocol: unreachable dispatcher state")
	}
}

func (d *Dispatcher) pollReadHead(t Transport) error {
	n, err := t.Read(d.head[d.headLen:])
	if errors.Is(err, ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return err
	}
	d.headLen += n
	if d.headLen < codec.HeadSize {
		return nil
	}

	d.bodyLen = binary.BigEndian.Uint64(d.head[:])
	d.headLen = 0
	if d.bodyLen > MaxBody || !d.heapSem.TryAcquire(int64(d.bodyLen)) {
		d.bodyHeld = false
		d.enqueueError(fmt.Errorf("%w: %d > %d", codec.ErrFrameTooLarge, d.bodyLen, MaxBody))
		return nil
	}
	d.bodyHeld = true
	d.body = make([]byte, d.bodyLen)
	d.bodyPos = 0
	d.st = stateReadBody
	return nil
}

func (d *Dispatcher) pollReadBody(t Transport) error {
	if d.bodyLen == 0 {
		d.st = stateExec
		return nil
	}
	n, err := t.Read(d.body[d.bodyPos:])
	if errors.Is(err, ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return err
	}
	d.bodyPos += n
	if uint64(d.bodyPos) < d.bodyLen {
		return nil
	}
	d.st = stateExec
	return nil
}

func (d *Dispatcher) exec() {
	req, err := codec.DecodeRequest(d.body)
	if err != nil {
		d.enqueueError(fmt.Errorf("Decode: %w", err))
		return
	}
	resp := d.dispatch(req)
	d.enqueueResponse(resp)
}

func (d *Dispatcher) enqueueError(err error) {
	d.enqueueResponse(&codec.Response{
		Tag:   codec.TagError,
		Error: &codec.ErrorResponse{Message: err.Error()},
	})
}

func (d *Dispatcher) enqueueResponse(resp *codec.Response) {
	raw, err := codec.EncodeResponse(resp)
	if err != nil {
		// Encoding our own response failed: fall back to a minimal, known-
		// good Error body rather than wedging the state machine.
		raw, _ = codec.EncodeResponse(&codec.Response{
			Tag:   codec.TagError,
			Error: &codec.ErrorResponse{Message: "internal: failed to encode response"},
		})
	}
	binary.BigEndian.PutUint64(d.outHead[:], uint64(len(raw)))
	d.outBody = raw
	d.outPos = 0
	d.st = stateWriteHead
}

func (d *Dispatcher) pollWriteHead(t Transport) error {
	n, err := t.Write(d.outHead[d.outPos:])
	if errors.Is(err, ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return err
	}
	d.outPos += n
	if d.outPos < codec.HeadSize {
		return nil
	}
	d.outPos = 0
	d.st = stateWriteBody
	return nil
}

func (d *Dispatcher) pollWriteBody(t Transport) error {
	if len(d.outBody) == 0 {
		d.finishFrame()
		return nil
	}
	n, err := t.Write(d.outBody[d.outPos:])
	if errors.Is(err, ErrWouldBlock) {
		return nil
	}
	if err != nil {
		return err
	}
	d.outPos += n
	if d.outPos < len(d.outBody) {
		return nil
	}
	d.finishFrame()
	return nil
}

func (d *Dispatcher) finishFrame() {
	if d.bodyHeld {
		d.heapSem.Release(int64(d.bodyLen))
		d.bodyHeld = false
	}
	d.bodyLen = 0
	d.outBody = nil
	d.outPos = 0
	d.st = stateReadHead
}

// dispatch performs the operation named by req and returns its response.
// It never panics on a well-formed request: every error path (missing
// entropy, rejected derivation, malformed path) becomes an Error
// response, matching spec.md §6 "the session is not torn down".
func (d *Dispatcher) dispatch(req *codec.Request) *codec.Response {
	switch req.Tag {
	case codec.TagInit:
		return d.execInit(req.Init)
	case codec.TagSign:
		return d.execSign(req.Sign)
	case codec.TagVerify:
		return d.execVerify(req.Verify)
	case codec.TagTemp:
		return d.execTemp(req.Temp)
	case codec.TagPubKey:
		return d.execPubKey(req.PubKey)
	case codec.TagStream:
		return d.execStream(req.Stream)
	case codec.TagOwnership:
		return d.execOwnership(req.Ownership)
	case codec.TagVersion:
		return &codec.Response{Tag: codec.TagVersionOut, Version: &codec.VersionResponse{
			Protocol: protocolVersion.String(),
			Firmware: FirmwareVersion,
		}}
	default:
		return errorResponse(fmt.Errorf("%w: %d", codec.ErrUnknownTag, req.Tag))
	}
}

func (d *Dispatcher) execInit(req *codec.InitRequest) *codec.Response {
	entropy, err := mnemonic.ToEntropy(req.Mnemonic)
	if err != nil {
		return errorResponse(err)
	}
	d.sess.SetEntropy(entropy)
	return &codec.Response{Tag: codec.TagInitOK, Init: &codec.InitResponse{}}
}

func (d *Dispatcher) execSign(req *codec.SignRequest) *codec.Response {
	root, err := d.sess.Root(req.Password)
	if err != nil {
		return errorResponse(err)
	}
	path, err := derivation.ParsePath(req.Path)
	if err != nil {
		return errorResponse(err)
	}
	sig, err := signer.SignTxID(root, path, req.TxID)
	if err != nil {
		return errorResponse(err)
	}
	return &codec.Response{Tag: codec.TagSignOut, Sign: &codec.SignResponse{Signature: sig}}
}

func (d *Dispatcher) execVerify(req *codec.VerifyRequest) *codec.Response {
	root, err := d.sess.Root(req.Password)
	if err != nil {
		return errorResponse(err)
	}
	path, err := derivation.ParsePath(req.Path)
	if err != nil {
		return errorResponse(err)
	}
	_, xpub, err := signer.DeriveKeyPair(root, path)
	if err != nil {
		return errorResponse(err)
	}
	ok := signer.Verify(xpub, req.TxID, req.Signature)
	return &codec.Response{Tag: codec.TagVerifyOut, Verify: &codec.VerifyResponse{OK: ok}}
}

func (d *Dispatcher) execTemp(req *codec.TempRequest) *codec.Response {
	root, err := d.sess.Root(req.Password)
	if err != nil {
		return errorResponse(err)
	}
	path, err := derivation.ParsePath(req.Path)
	if err != nil {
		return errorResponse(err)
	}
	reading, sig, err := sensor.SignReading(root, path, d.readTemp, req.Time)
	if err != nil {
		return errorResponse(err)
	}
	return &codec.Response{Tag: codec.TagTempOut, Temp: &codec.TempResponse{Reading: reading, Signature: sig}}
}

func (d *Dispatcher) execPubKey(req *codec.PubKeyRequest) *codec.Response {
	root, err := d.sess.Root(req.Password)
	if err != nil {
		return errorResponse(err)
	}
	path, err := derivation.ParsePath(req.Path)
	if err != nil {
		return errorResponse(err)
	}
	xprv, err := derivation.DeriveKey(root, path)
	if err != nil {
		return errorResponse(err)
	}
	xpub, err := xprv.ToPublic()
	if err != nil {
		return errorResponse(err)
	}
	return &codec.Response{Tag: codec.TagPubKeyOut, PubKey: &codec.PubKeyResponse{Hex: signer.PublicKeyHex(xpub)}}
}

func (d *Dispatcher) execStream(req *codec.StreamRequest) *codec.Response {
	switch {
	case req.Entry != nil:
		if !d.sess.Present() {
			return errorResponse(session.ErrNoEntropy)
		}
		resp, err := d.stream.HandleEntry(req.Entry)
		if err != nil {
			return errorResponse(err)
		}
		return &codec.Response{Tag: codec.TagStreamOut, Stream: resp}
	case req.Done != nil:
		resp, err := d.stream.HandleDone(d.sess, req.Done.Password, req.Done.Path)
		if err != nil {
			return errorResponse(err)
		}
		return &codec.Response{Tag: codec.TagSignOut, Sign: resp}
	default:
		return errorResponse(fmt.Errorf("%w: stream request names neither Entry nor Done", codec.ErrMalformed))
	}
}

func (d *Dispatcher) execOwnership(req *codec.OwnershipRequest) *codec.Response {
	root, err := d.sess.Root(req.Password)
	if err != nil {
		return errorResponse(err)
	}
	target, err := derivation.XPubFromBytes(req.TargetXPub)
	if err != nil {
		return errorResponse(err)
	}

	var keyType ownership.KeyType
	switch req.Mode {
	case "account":
		keyType = ownership.AccountKey{AccountGap: req.AccountGap}
	case "address":
		keyType = ownership.AddressKey{AccountGap: req.AccountGap, AddressGap: req.AddressGap}
	default:
		return errorResponse(fmt.Errorf("protocol: unknown ownership mode %q", req.Mode))
	}

	found, err := ownership.Find(root, target, keyType)
	if errors.Is(err, ownership.ErrNotFound) {
		return &codec.Response{Tag: codec.TagOwnershipOut, Ownership: &codec.OwnershipResponse{Found: false}}
	}
	if err != nil {
		return errorResponse(err)
	}
	sig, err := signer.SignData(found, nil, req.Nonce)
	if err != nil {
		return errorResponse(err)
	}
	return &codec.Response{Tag: codec.TagOwnershipOut, Ownership: &codec.OwnershipResponse{Found: true, Signature: sig}}
}

func errorResponse(err error) *codec.Response {
	return &codec.Response{Tag: codec.TagError, Error: &codec.ErrorResponse{Message: err.Error()}}
}
