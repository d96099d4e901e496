package skill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBasePool(t *testing.T) *StoragePool {
	t.Helper()
	p := NewBasePool("Base", FirstPoolTypeID)
	p.SetAllocator(func() SkillObject { return NewSubType(p) })
	return p
}

func TestPoolAddAndMake(t *testing.T) {
	p := newTestBasePool(t)

	obj, err := p.Make()
	require.NoError(t, err)
	require.Equal(t, Unassigned, obj.SkillID())
	require.Equal(t, 1, p.StaticSize())
	require.Len(t, p.NewObjects(), 1)
}

func TestPoolMakeWithoutAllocatorFails(t *testing.T) {
	p := NewBasePool("Base", FirstPoolTypeID)
	_, err := p.Make()
	require.Error(t, err)
	serr, ok := err.(*SkillError)
	require.True(t, ok)
	require.Equal(t, KindPoolFixed, serr.Kind)
}

func TestPoolAddRejectsWhenFixed(t *testing.T) {
	p := newTestBasePool(t)
	Fix([]*StoragePool{p})
	obj := NewSubType(p)
	err := p.Add(obj)
	require.Error(t, err)
}

func TestPoolDeleteIsIdempotent(t *testing.T) {
	p := newTestBasePool(t)
	obj, err := p.Make()
	require.NoError(t, err)
	obj.setSkillID(SkillID(1))

	p.Delete(obj)
	require.Equal(t, 1, p.DeletedCount())
	p.Delete(obj)
	require.Equal(t, 1, p.DeletedCount())
	require.Equal(t, Deleted, obj.SkillID())
}

func TestSubPoolSharesBaseArray(t *testing.T) {
	base := newTestBasePool(t)
	sub := base.NewSubPool("Sub", FirstPoolTypeID+1)
	sub.SetAllocator(func() SkillObject { return NewSubType(sub) })

	require.Same(t, base, sub.BasePool())
	require.Same(t, base.data, sub.data)
	require.Equal(t, 1, sub.TypeHierarchyHeight())
	require.Equal(t, base, sub.SuperPool())
}

func TestFixComputesSizeAcrossSubtypes(t *testing.T) {
	base := newTestBasePool(t)
	sub := base.NewSubPool("Sub", FirstPoolTypeID+1)
	sub.SetAllocator(func() SkillObject { return NewSubType(sub) })

	_, err := base.Make()
	require.NoError(t, err)
	_, err = sub.Make()
	require.NoError(t, err)

	Fix([]*StoragePool{base, sub})
	require.Equal(t, 2, base.Size())
	require.Equal(t, 1, sub.Size())

	Unfix([]*StoragePool{base, sub})
	require.False(t, base.Fixed())
}

func TestEstablishNextPoolsDFSPreorder(t *testing.T) {
	base := newTestBasePool(t)
	a := base.NewSubPool("A", FirstPoolTypeID+1)
	b := base.NewSubPool("B", FirstPoolTypeID+2)
	aa := a.NewSubPool("AA", FirstPoolTypeID+3)

	EstablishNextPools([]*StoragePool{base, a, b, aa})

	require.Same(t, a, base.NextPool())
	require.Same(t, aa, a.NextPool())
	require.Same(t, b, aa.NextPool())
	require.Nil(t, b.NextPool())
}

func TestFieldByName(t *testing.T) {
	p := newTestBasePool(t)
	f := NewDistributedField("x", I32)
	p.AddField(f)

	got, ok := p.FieldByName("x")
	require.True(t, ok)
	require.Same(t, f, got)
	require.Equal(t, 1, f.Index())
	require.Same(t, p, f.Owner())

	_, ok = p.FieldByName("missing")
	require.False(t, ok)
}

func TestGetByIDOutOfRange(t *testing.T) {
	p := newTestBasePool(t)
	_, ok := p.GetByID(SkillID(5))
	require.False(t, ok)

	_, ok = p.GetByID(Unassigned)
	require.False(t, ok)
}

func TestTypedPoolFacade(t *testing.T) {
	p := newTestBasePool(t)
	obj, err := p.Make()
	require.NoError(t, err)
	obj.setSkillID(SkillID(1))
	*p.data = append(*p.data, obj) // skillID 1 maps to base-array index 0

	typed := NewPool[*SubType](p)
	got, ok := typed.GetByID(SkillID(1))
	require.True(t, ok)
	require.Same(t, obj, got)
}
