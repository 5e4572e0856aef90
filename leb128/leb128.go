// Package leb128 implements the little-endian base-128 variable-length
// integer encoding used by tagged message streams.
package leb128

import (
	"github.com/gaze-network/txembed/common/errs"
	"github.com/gaze-network/uint128"
)

const (
	// ErrEmpty is returned when decoding a zero-length byte sequence.
	ErrEmpty = errs.ErrorKind("leb128: empty byte sequence")
	// ErrUnterminated is returned when every byte has its continuation bit set.
	ErrUnterminated = errs.ErrorKind("leb128: unterminated byte sequence")
)

// EncodeUint128 encodes input into LEB128 bytes, 7 bits per byte with the
// high bit marking continuation. The encoding is minimal: at most 19 bytes,
// with no trailing zero groups.
func EncodeUint128(input uint128.Uint128) []byte {
	bytes := make([]byte, 0)
	// for n >> 7 > 0
	for !input.Rsh(7).IsZero() {
		last_7_bits := input.And64(0b0111_1111).Uint8()
		bytes = append(bytes, last_7_bits|0b1000_0000)
		input = input.Rsh(7)
	}
	last_byte := input.Uint8()
	bytes = append(bytes, last_byte)
	return bytes
}

// DecodeUint128 reads a single LEB128 value from the front of data and
// returns it together with the number of bytes consumed. The decoder never
// reads more than 19 continuation groups, so adversarial input cannot make
// it scan an arbitrarily long buffer.
func DecodeUint128(data []byte) (n uint128.Uint128, length int, err error) {
	if len(data) == 0 {
		return uint128.Uint128{}, 0, ErrEmpty
	}
	n = uint128.From64(0)

	for i, b := range data {
		if i > 18 {
			return uint128.Uint128{}, 0, errs.OverflowUint128
		}
		value := uint128.New(uint64(b&0b0111_1111), 0)
		if i == 18 && !value.And64(0b0111_1100).IsZero() {
			return uint128.Uint128{}, 0, errs.OverflowUint128
		}
		n = n.Or(value.Lsh(uint(7 * i)))
		// if the high bit is not set, then this is the last byte
		if b&0b1000_0000 == 0 {
			return n, i + 1, nil
		}
	}
	return uint128.Uint128{}, 0, ErrUnterminated
}
