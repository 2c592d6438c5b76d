package codec

import (
	"errors"
	"fmt"
)

// ErrUnknownTag is returned when a frame body names a tag this build does
// not recognize.
var ErrUnknownTag = errors.New("codec: unknown tag")

// ErrMalformed is returned when a tagged body decodes the wrong field set
// for its own tag (e.g. a Stream body naming neither Entry nor Done).
var ErrMalformed = errors.New("codec: malformed tagged body")

// EncodeRequest serializes req into the CBOR body of a host→device frame.
func EncodeRequest(req *Request) ([]byte, error) {
	var body interface{}
	switch req.Tag {
	case TagInit:
		body = req.Init
	case TagSign:
		body = req.Sign
	case TagVerify:
		body = req.Verify
	case TagTemp:
		body = req.Temp
	case TagPubKey:
		body = req.PubKey
	case TagStream:
		raw, err := encodeStream(req.Stream)
		if err != nil {
			return nil, err
		}
		return encodeEnvelope(uint8(req.Tag), raw)
	case TagOwnership:
		body = req.Ownership
	case TagVersion:
		body = struct{}{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, req.Tag)
	}
	raw, err := encMode.Marshal(body)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(uint8(req.Tag), raw)
}

// DecodeRequest parses the CBOR body of a host→device frame.
func DecodeRequest(data []byte) (*Request, error) {
	tag, body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	req := &Request{Tag: RequestTag(tag)}
	switch req.Tag {
	case TagInit:
		req.Init = new(InitRequest)
		err = decMode.Unmarshal(body, req.Init)
	case TagSign:
		req.Sign = new(SignRequest)
		err = decMode.Unmarshal(body, req.Sign)
	case TagVerify:
		req.Verify = new(VerifyRequest)
		err = decMode.Unmarshal(body, req.Verify)
	case TagTemp:
		req.Temp = new(TempRequest)
		err = decMode.Unmarshal(body, req.Temp)
	case TagPubKey:
		req.PubKey = new(PubKeyRequest)
		err = decMode.Unmarshal(body, req.PubKey)
	case TagStream:
		req.Stream, err = decodeStream(body)
	case TagOwnership:
		req.Ownership = new(OwnershipRequest)
		err = decMode.Unmarshal(body, req.Ownership)
	case TagVersion:
		// no fields
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// EncodeResponse serializes resp into the CBOR body of a device→host frame.
func EncodeResponse(resp *Response) ([]byte, error) {
	var body interface{}
	switch resp.Tag {
	case TagInitOK:
		body = struct{}{}
	case TagSignOut:
		body = resp.Sign
	case TagVerifyOut:
		body = resp.Verify
	case TagError:
		body = resp.Error
	case TagTempOut:
		body = resp.Temp
	case TagPubKeyOut:
		body = resp.PubKey
	case TagStreamOut:
		body = resp.Stream
	case TagVersionOut:
		body = resp.Version
	case TagOwnershipOut:
		body = resp.Ownership
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, resp.Tag)
	}
	raw, err := encMode.Marshal(body)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(uint8(resp.Tag), raw)
}

// DecodeResponse parses the CBOR body of a device→host frame.
func DecodeResponse(data []byte) (*Response, error) {
	tag, body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	resp := &Response{Tag: ResponseTag(tag)}
	switch resp.Tag {
	case TagInitOK:
		// no fields
	case TagSignOut:
		resp.Sign = new(SignResponse)
		err = decMode.Unmarshal(body, resp.Sign)
	case TagVerifyOut:
		resp.Verify = new(VerifyResponse)
		err = decMode.Unmarshal(body, resp.Verify)
	case TagError:
		resp.Error = new(ErrorResponse)
		err = decMode.Unmarshal(body, resp.Error)
	case TagTempOut:
		resp.Temp = new(TempResponse)
		err = decMode.Unmarshal(body, resp.Temp)
	case TagPubKeyOut:
		resp.PubKey = new(PubKeyResponse)
		err = decMode.Unmarshal(body, resp.PubKey)
	case TagStreamOut:
		resp.Stream = new(StreamResponse)
		err = decMode.Unmarshal(body, resp.Stream)
	case TagVersionOut:
		resp.Version = new(VersionResponse)
		err = decMode.Unmarshal(body, resp.Version)
	case TagOwnershipOut:
		resp.Ownership = new(OwnershipResponse)
		err = decMode.Unmarshal(body, resp.Ownership)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// streamEntryTag / streamDoneTag number the nested Stream variant; the
// nested TxEntry variant reuses its own 0/1 tag space one level deeper.
const (
	streamEntryTag uint8 = 0
	streamDoneTag  uint8 = 1

	txEntryInputTag uint8 = 0
	txEntryFeeTag   uint8 = 1
)

func encodeStream(s *StreamRequest) ([]byte, error) {
	switch {
	case s == nil:
		return nil, fmt.Errorf("%w: nil stream request", ErrMalformed)
	case s.Entry != nil:
		raw, err := encodeTxEntry(s.Entry)
		if err != nil {
			return nil, err
		}
		return encodeEnvelope(streamEntryTag, raw)
	case s.Done != nil:
		raw, err := encMode.Marshal(s.Done)
		if err != nil {
			return nil, err
		}
		return encodeEnvelope(streamDoneTag, raw)
	default:
		return nil, fmt.Errorf("%w: stream request names neither Entry nor Done", ErrMalformed)
	}
}

func decodeStream(data []byte) (*StreamRequest, error) {
	tag, body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case streamEntryTag:
		entry, err := decodeTxEntry(body)
		if err != nil {
			return nil, err
		}
		return &StreamRequest{Entry: entry}, nil
	case streamDoneTag:
		done := new(DoneRequest)
		if err := decMode.Unmarshal(body, done); err != nil {
			return nil, err
		}
		return &StreamRequest{Done: done}, nil
	default:
		return nil, fmt.Errorf("%w: stream variant %d", ErrUnknownTag, tag)
	}
}

func encodeTxEntry(e *TxEntry) ([]byte, error) {
	switch {
	case e == nil:
		return nil, fmt.Errorf("%w: nil tx entry", ErrMalformed)
	case e.TxInput != nil:
		raw, err := encMode.Marshal(e.TxInput)
		if err != nil {
			return nil, err
		}
		return encodeEnvelope(txEntryInputTag, raw)
	case e.Fee != nil:
		raw, err := encMode.Marshal(e.Fee)
		if err != nil {
			return nil, err
		}
		return encodeEnvelope(txEntryFeeTag, raw)
	default:
		return nil, fmt.Errorf("%w: tx entry names neither TxInput nor Fee", ErrMalformed)
	}
}

func decodeTxEntry(data []byte) (*TxEntry, error) {
	tag, body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case txEntryInputTag:
		in := new(TxInput)
		if err := decMode.Unmarshal(body, in); err != nil {
			return nil, err
		}
		return &TxEntry{TxInput: in}, nil
	case txEntryFeeTag:
		fee := new(Fee)
		if err := decMode.Unmarshal(body, fee); err != nil {
			return nil, err
		}
		return &TxEntry{Fee: fee}, nil
	default:
		return nil, fmt.Errorf("%w: tx entry variant %d", ErrUnknownTag, tag)
	}
}

// EncodeTxEntry is the canonical CBOR encoding of a single confirmed
// TxEntry, exported for internal/txstream to absorb into its rolling
// hasher (spec.md invariant 5: the tx id hashes exactly these bytes).
func EncodeTxEntry(e *TxEntry) ([]byte, error) {
	return encodeTxEntry(e)
}

func encodeEnvelope(tag uint8, body []byte) ([]byte, error) {
	return encMode.Marshal(&envelope{Tag: tag, Body: body})
}

func decodeEnvelope(data []byte) (uint8, []byte, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return 0, nil, err
	}
	return env.Tag, env.Body, nil
}
