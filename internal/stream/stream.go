// Package stream implements the binary stream primitives SKilL reads and
// writes fields through: fixed-width big-endian integers and floats, v64,
// bool, and a bounded view over a memory-mapped byte region that supports
// stacked push/pop of its read position (needed by the string pool's
// out-of-band lazy loads, spec §4.3).
package stream

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/skill-lang/skillrt/internal/varint"
)

// ErrShortWrite is returned when a mapped output region is too small for a
// write.
var ErrShortWrite = errors.New("skillrt: write past end of mapped region")

// Reader is a bounded reader over a byte slice (a window into a
// memory-mapped file region, or an in-memory buffer in tests). It is not
// safe for concurrent use by multiple goroutines against the *same*
// Reader value, but independent Readers over disjoint sub-slices of one
// mapping may be used concurrently without synchronization — this is the
// property the parallel field decoder (spec §4.4 finish, §5) relies on.
type Reader struct {
	buf   []byte
	pos   int
	stack []int
}

// NewReader wraps buf for bounded reading starting at position 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// EOF reports whether the reader has consumed the entire region.
func (r *Reader) EOF() bool { return r.pos >= len(r.buf) }

// Pos returns the current read offset within the wrapped region.
func (r *Reader) Pos() int { return r.pos }

// Seek moves the read position to an absolute offset within the region.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return errors.Errorf("skillrt: seek %d out of range [0,%d]", pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

// Push saves the current position on an internal stack, for the
// string pool's out-of-band reads (spec §4.3: "position is stacked
// (push/pop) within the critical section").
func (r *Reader) Push() {
	r.stack = append(r.stack, r.pos)
}

// Pop restores the most recently pushed position.
func (r *Reader) Pop() {
	n := len(r.stack) - 1
	r.pos = r.stack[n]
	r.stack = r.stack[:n]
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errors.Wrapf(ErrShortRead, "need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ErrShortRead is returned when a fixed-width read runs past the end of the
// bounded region.
var ErrShortRead = errors.New("skillrt: read past end of mapped region")

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) { return r.take(n) }

// I8 reads a signed 8-bit big-endian integer.
func (r *Reader) I8() (int8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

// I16 reads a signed 16-bit big-endian integer.
func (r *Reader) I16() (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// I32 reads a signed 32-bit big-endian integer.
func (r *Reader) I32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// I64 reads a signed 64-bit big-endian integer.
func (r *Reader) I64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// F32 reads an IEEE-754 big-endian 32-bit float.
func (r *Reader) F32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// F64 reads an IEEE-754 big-endian 64-bit float.
func (r *Reader) F64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// Bool reads a one-byte boolean (0 = false, non-zero = true).
func (r *Reader) Bool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// V64 reads a variable-length integer.
func (r *Reader) V64() (int64, error) {
	v, n, err := varint.Decode(r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// V64Continue decodes a v64 value whose first byte has already been read
// by the caller (e.g. after peeking at it to dispatch on a tag), advancing
// the reader past any additional bytes the value needs.
func (r *Reader) V64Continue(first byte) (int64, error) {
	v, n, err := varint.DecodeContinuation(first, r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// V32 reads a v64 and narrows it to 32 bits.
func (r *Reader) V32() (int32, error) {
	v, err := r.V64()
	if err != nil {
		return 0, err
	}
	return varint.Narrow(v), nil
}

// Writer writes into a pre-sized mapped output region at a fixed starting
// offset; unlike Reader it does not grow, matching the serializer's
// pre-computed-offset write model (spec §4.6: per-field offsets are
// computed before any bytes are written).
type Writer struct {
	buf []byte
	pos int
}

// NewWriter wraps a pre-allocated output region for writing starting at
// position 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Pos returns the current write offset.
func (w *Writer) Pos() int { return w.pos }

func (w *Writer) reserve(n int) ([]byte, error) {
	if w.pos+n > len(w.buf) {
		return nil, errors.Wrapf(ErrShortWrite, "need %d bytes at offset %d, have %d", n, w.pos, len(w.buf))
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b, nil
}

// Bytes writes raw bytes.
func (w *Writer) Bytes(b []byte) error {
	dst, err := w.reserve(len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// I8 writes a signed 8-bit big-endian integer.
func (w *Writer) I8(v int8) error {
	dst, err := w.reserve(1)
	if err != nil {
		return err
	}
	dst[0] = byte(v)
	return nil
}

// I16 writes a signed 16-bit big-endian integer.
func (w *Writer) I16(v int16) error {
	dst, err := w.reserve(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(dst, uint16(v))
	return nil
}

// I32 writes a signed 32-bit big-endian integer.
func (w *Writer) I32(v int32) error {
	dst, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(dst, uint32(v))
	return nil
}

// I64 writes a signed 64-bit big-endian integer.
func (w *Writer) I64(v int64) error {
	dst, err := w.reserve(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dst, uint64(v))
	return nil
}

// F32 writes an IEEE-754 big-endian 32-bit float.
func (w *Writer) F32(v float32) error {
	dst, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(dst, math.Float32bits(v))
	return nil
}

// F64 writes an IEEE-754 big-endian 64-bit float.
func (w *Writer) F64(v float64) error {
	dst, err := w.reserve(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dst, math.Float64bits(v))
	return nil
}

// Bool writes a one-byte boolean.
func (w *Writer) Bool(v bool) error {
	dst, err := w.reserve(1)
	if err != nil {
		return err
	}
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	return nil
}

// V64 writes a variable-length integer.
func (w *Writer) V64(v int64) error {
	n := varint.Len(v)
	dst, err := w.reserve(n)
	if err != nil {
		return err
	}
	varint.Append(dst[:0], v)
	return nil
}
