package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeadSize is the length, in bytes, of the big-endian u64 length prefix
// that precedes every frame body (spec.md §4.5).
const HeadSize = 8

// ErrFrameTooLarge is returned when a frame's declared length exceeds the
// heap bound this device enforces (spec.md §9: oversized `len` fields must
// be rejected at Read(Head), not after accumulating the body).
var ErrFrameTooLarge = errors.New("codec: frame length exceeds heap bound")

// ReadFrame reads one complete frame from r: an 8-byte big-endian length
// prefix followed by that many bytes of CBOR body. maxBody bounds the
// declared length so a corrupt or adversarial header cannot force an
// unbounded allocation on a heap-constrained device.
func ReadFrame(r io.Reader, maxBody uint64) ([]byte, error) {
	var head [HeadSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint64(head[:])
	if length > maxBody {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxBody)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes body as a single frame: its 8-byte big-endian length
// followed by the body itself.
func WriteFrame(w io.Writer, body []byte) error {
	var head [HeadSize]byte
	binary.BigEndian.PutUint64(head[:], uint64(len(body)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
