// Package varint implements SKilL's v64 variable-length integer encoding.
//
// v64 is a LEB128-like base-128 encoding: each byte carries 7 payload bits
// plus a continuation bit, low group first, except that the 9th byte (if
// reached) carries all 8 bits as payload so that a full int64 always fits in
// at most 9 bytes.
package varint

import "github.com/pkg/errors"

// ErrOverflow is returned when a v64 value does not terminate within 9 bytes.
var ErrOverflow = errors.New("skillrt: v64 value longer than 9 bytes")

// ErrTruncated is returned when the input ends before a v64 value terminates.
var ErrTruncated = errors.New("skillrt: truncated v64 value")

// MaxLen is the maximum number of bytes a v64 value can occupy.
const MaxLen = 9

// Len returns the number of bytes needed to encode v as a v64.
func Len(v int64) int {
	u := uint64(v)
	n := 1
	for i := 0; i < MaxLen-1; i++ {
		u >>= 7
		if u == 0 {
			return n
		}
		n++
	}
	return MaxLen
}

// Append encodes v as a v64 and appends it to buf, returning the extended
// slice.
func Append(buf []byte, v int64) []byte {
	u := uint64(v)
	for i := 0; i < MaxLen-1; i++ {
		b := byte(u & 0x7f)
		u >>= 7
		if u == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
	// Ninth byte: all 8 bits are payload, no continuation bit.
	return append(buf, byte(u))
}

// Decode reads a v64 from the front of buf, returning the value and the
// number of bytes consumed.
func Decode(buf []byte) (int64, int, error) {
	var x uint64
	for i := 0; i < MaxLen; i++ {
		if i >= len(buf) {
			return 0, 0, ErrTruncated
		}
		b := buf[i]
		if i == MaxLen-1 {
			// Ninth byte: all 8 bits are payload.
			x |= uint64(b) << (7 * i)
			return int64(x), i + 1, nil
		}
		x |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return int64(x), i + 1, nil
		}
	}
	return 0, 0, ErrOverflow
}

// Narrow converts a decoded v64 to a v32, matching the "v32 is v64 read then
// narrowed" rule from the field-type catalogue.
func Narrow(v int64) int32 {
	return int32(v)
}

// DecodeContinuation decodes a v64 whose first byte has already been
// consumed by the caller (e.g. because it was peeked at to dispatch on a
// tag value). It returns the decoded value and the number of additional
// bytes consumed from rest.
func DecodeContinuation(first byte, rest []byte) (int64, int, error) {
	var x uint64
	x = uint64(first & 0x7f)
	if first&0x80 == 0 {
		return int64(x), 0, nil
	}
	for i := 0; i < MaxLen-1; i++ {
		if i >= len(rest) {
			return 0, 0, ErrTruncated
		}
		b := rest[i]
		if i == MaxLen-2 {
			// Ninth byte overall: all 8 bits are payload.
			x |= uint64(b) << (7 * (i + 1))
			return int64(x), i + 1, nil
		}
		x |= uint64(b&0x7f) << (7 * (i + 1))
		if b&0x80 == 0 {
			return int64(x), i + 1, nil
		}
	}
	return 0, 0, ErrOverflow
}
