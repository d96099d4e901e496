package stream_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/stream"
)

func TestReaderWriterFixedWidth(t *testing.T) {
	buf := make([]byte, 64)
	w := stream.NewWriter(buf)

	require.NoError(t, w.I8(-5))
	require.NoError(t, w.I16(-1000))
	require.NoError(t, w.I32(123456))
	require.NoError(t, w.I64(-9876543210))
	require.NoError(t, w.F32(3.5))
	require.NoError(t, w.F64(2.71828))
	require.NoError(t, w.Bool(true))
	require.NoError(t, w.V64(300))
	require.NoError(t, w.Bytes([]byte("hi")))

	r := stream.NewReader(buf[:w.Pos()])

	i8, err := r.I8()
	require.NoError(t, err)
	require.Equal(t, int8(-5), i8)

	i16, err := r.I16()
	require.NoError(t, err)
	require.Equal(t, int16(-1000), i16)

	i32, err := r.I32()
	require.NoError(t, err)
	require.Equal(t, int32(123456), i32)

	i64, err := r.I64()
	require.NoError(t, err)
	require.Equal(t, int64(-9876543210), i64)

	f32, err := r.F32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	f64, err := r.F64()
	require.NoError(t, err)
	require.Equal(t, 2.71828, f64)

	b, err := r.Bool()
	require.NoError(t, err)
	require.True(t, b)

	v, err := r.V64()
	require.NoError(t, err)
	require.Equal(t, int64(300), v)

	raw, err := r.Bytes(2)
	require.NoError(t, err)
	require.Equal(t, "hi", string(raw))

	require.True(t, r.EOF())
}

func TestReaderShortRead(t *testing.T) {
	r := stream.NewReader([]byte{1, 2})
	_, err := r.I32()
	require.ErrorIs(t, err, stream.ErrShortRead)
}

func TestWriterShortWrite(t *testing.T) {
	w := stream.NewWriter(make([]byte, 2))
	err := w.I32(1)
	require.ErrorIs(t, err, stream.ErrShortWrite)
}

func TestPushPop(t *testing.T) {
	r := stream.NewReader([]byte{1, 2, 3, 4})
	_, _ = r.I8()
	r.Push()
	_, _ = r.I8()
	_, _ = r.I8()
	require.Equal(t, 3, r.Pos())
	r.Pop()
	require.Equal(t, 1, r.Pos())
}

func TestSeek(t *testing.T) {
	r := stream.NewReader([]byte{1, 2, 3, 4})
	require.NoError(t, r.Seek(2))
	require.Equal(t, 2, r.Pos())
	require.Error(t, r.Seek(10))
}

func TestMemStreamTruncateGrowsAndShrinks(t *testing.T) {
	m := stream.NewMemStream([]byte{1, 2, 3})
	grown, err := m.Truncate(5)
	require.NoError(t, err)
	require.Len(t, grown, 5)

	shrunk, err := m.Truncate(1)
	require.NoError(t, err)
	require.Len(t, shrunk, 1)
	require.Equal(t, byte(1), shrunk[0])
}
