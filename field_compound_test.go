package skill

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skill-lang/skillrt/internal/stream"
)

func TestConstLenArrayRoundTrip(t *testing.T) {
	at := NewConstantLengthArrayType(3, I32)
	vs := []any{int32(1), int32(2), int32(3)}

	got := writeRead(t, at, vs)
	require.Equal(t, vs, got)
}

func TestConstLenArrayWrongLength(t *testing.T) {
	at := NewConstantLengthArrayType(3, I32)
	buf := make([]byte, 16)
	w := stream.NewWriter(buf)
	err := at.WriteSingleField([]any{int32(1)}, w)
	require.Error(t, err)
	serr, ok := err.(*SkillError)
	require.True(t, ok)
	require.Equal(t, KindArrayLengthMismatch, serr.Kind)
}

func TestVarArrayListSetRoundTrip(t *testing.T) {
	for _, ft := range []FieldType{NewVarArrayType(I8), NewListType(I8), NewSetType(I8)} {
		vs := []any{int8(1), int8(2), int8(3)}
		got := writeRead(t, ft, vs)
		require.Equal(t, vs, got)
	}
}

func TestEmptyCollectionRoundTrip(t *testing.T) {
	ct := NewListType(I32)
	got := writeRead(t, ct, []any{})
	require.Equal(t, []any{}, got)
}

func TestMapRoundTrip(t *testing.T) {
	mt := NewMapType(I32, Bool)
	entries := []MapEntry{
		{Key: int32(1), Value: true},
		{Key: int32(2), Value: false},
	}
	got := writeRead(t, mt, entries)
	require.Equal(t, entries, got)
}
