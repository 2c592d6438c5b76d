// Package sensor implements Temp signing (spec.md §6 "Sensor signing"): the
// device samples an on-die register, frames the reading with the request
// time, and signs the result with the requested derived key.
package sensor

import (
	"encoding/binary"

	"github.com/cardano-embedded/signer/internal/derivation"
	"github.com/cardano-embedded/signer/internal/signer"
)

// Reader samples the on-die temperature register as a fixed-point i32 in
// degrees Celsius. Production builds back this with the board's ADC; tests
// and the host simulator use a constant or scripted Reader.
type Reader func() int32

// SignReading samples reading(), composes the big-endian frame mandated by
// spec.md §9 ("this specification mandates big-endian for both i32 and
// u64"), and signs it with the key at path.
func SignReading(root *derivation.XPrv, path derivation.Path, reading Reader, time uint64) (int32, []byte, error) {
	value := reading()
	data := encode(value, time)
	sig, err := signer.SignData(root, path, data)
	if err != nil {
		return 0, nil, err
	}
	return value, sig, nil
}

// encode composes data = big_endian(i32 reading) ‖ big_endian(u64 time).
func encode(reading int32, time uint64) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], uint32(reading))
	binary.BigEndian.PutUint64(buf[4:12], time)
	return buf
}
