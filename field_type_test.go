package skill

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/stream"
)

func writeRead(t *testing.T, ft FieldType, v any) any {
	t.Helper()
	buf := make([]byte, 64)
	w := stream.NewWriter(buf)
	require.NoError(t, ft.WriteSingleField(v, w))
	require.Equal(t, ft.SingleOffset(v), w.Pos())

	r := stream.NewReader(buf[:w.Pos()])
	got, err := ft.ReadSingleField(r)
	require.NoError(t, err)
	require.True(t, r.EOF())
	return got
}

func TestPrimitiveRoundTrips(t *testing.T) {
	require.Equal(t, int8(-5), writeRead(t, I8, int8(-5)))
	require.Equal(t, int16(1234), writeRead(t, I16, int16(1234)))
	require.Equal(t, int32(-999999), writeRead(t, I32, int32(-999999)))
	require.Equal(t, int64(123456789012), writeRead(t, I64, int64(123456789012)))
	require.Equal(t, float32(1.5), writeRead(t, F32, float32(1.5)))
	require.Equal(t, float64(2.25), writeRead(t, F64, float64(2.25)))
	require.Equal(t, true, writeRead(t, Bool, true))
	require.Equal(t, int64(90000), writeRead(t, V64, int64(90000)))
}

func TestConstantTypeWritesNothing(t *testing.T) {
	c := NewConstantI32(42)
	require.Equal(t, 0, c.SingleOffset(nil))

	buf := make([]byte, 0)
	w := stream.NewWriter(buf)
	require.NoError(t, c.WriteSingleField(nil, w))
	require.Equal(t, 0, w.Pos())

	r := stream.NewReader(nil)
	v, err := c.ReadSingleField(r)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestConstantEqual(t *testing.T) {
	a := NewConstantI32(1).(*constantType)
	b := NewConstantI32(1).(*constantType)
	c := NewConstantI32(2).(*constantType)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(nil))
}
