package skill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReferenceTypeRoundTrip(t *testing.T) {
	rt := NewReferenceType(42)
	got := writeRead(t, rt, Ref{TypeID: 42, ID: SkillID(7)})
	require.Equal(t, Ref{TypeID: 42, ID: SkillID(7)}, got)
}

func TestReferenceTypeNull(t *testing.T) {
	rt := NewReferenceType(42)
	got := writeRead(t, rt, nil)
	require.Nil(t, got)
}

func TestAnnotationRoundTrip(t *testing.T) {
	got := writeRead(t, Annotation, Ref{TypeID: 40, ID: SkillID(3)})
	require.Equal(t, Ref{TypeID: 40, ID: SkillID(3)}, got)
}

func TestAnnotationNull(t *testing.T) {
	got := writeRead(t, Annotation, nil)
	require.Nil(t, got)
}

func TestStringTypeRoundTrip(t *testing.T) {
	sp := NewStringPool()
	sp.Add("hello")
	sp.prepareFull()

	st := NewStringType(sp)
	got := writeRead(t, st, "hello")
	require.Equal(t, "hello", got)
}

func TestStringTypeNull(t *testing.T) {
	sp := NewStringPool()
	st := NewStringType(sp)
	got := writeRead(t, st, nil)
	require.Nil(t, got)
}
