package skill

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tiendc/go-deepcopy"

	"github.com/skill-lang/skillrt/internal/stream"
)

// sharedMemOpener returns a stream.Opener whose every call hands back the
// same in-memory backing store, so a Write followed by an Open round-trips
// through memory instead of a real file (spec §8 property 1: "parse(write(g))
// produces an isomorphic graph").
func sharedMemOpener(m *stream.MemStream) stream.Opener {
	return func(string, bool) (stream.FileStream, error) { return m, nil }
}

type pointValues struct {
	x, y int32
}

func buildPointState(t *testing.T) (*SkillState, *StoragePool, *FieldDeclaration, *FieldDeclaration) {
	t.Helper()
	mem := stream.NewMemStream(nil)
	s := NewState(WithFileStream(sharedMemOpener(mem)))

	pool := s.NewPool("Point", nil)
	fx := NewDistributedField("x", I32)
	fy := NewDistributedField("y", I32)
	pool.AddField(fx)
	pool.AddField(fy)

	for _, v := range []pointValues{{1, 2}, {3, 4}, {5, 6}} {
		obj, err := pool.Make()
		require.NoError(t, err)
		fx.Set(obj, v.x)
		fy.Set(obj, v.y)
	}
	return s, pool, fx, fy
}

func TestWriteThenOpenRoundTrip(t *testing.T) {
	s, pool, fx, fy := buildPointState(t)

	var written []pointValues
	for obj := range pool.TypeOrderIterator() {
		written = append(written, pointValues{fx.Get(obj).(int32), fy.Get(obj).(int32)})
	}

	var backup []pointValues
	require.NoError(t, deepcopy.Copy(&backup, &written))

	require.NoError(t, s.Write("mem"))
	require.NoError(t, s.Close())

	reopened, err := Open("mem", WithFileStream(s.cfg.opener))
	require.NoError(t, err)

	rp, ok := reopened.PoolByName("Point")
	require.True(t, ok)

	fxr, ok := rp.FieldByName("x")
	require.True(t, ok)
	fyr, ok := rp.FieldByName("y")
	require.True(t, ok)

	var got []pointValues
	for obj := range rp.TypeOrderIterator() {
		got = append(got, pointValues{fxr.Get(obj).(int32), fyr.Get(obj).(int32)})
	}

	require.Equal(t, backup, got)
	require.Equal(t, 1, reopened.Stats().Pools)
	require.Equal(t, 1, reopened.Stats().Blocks)
}

func TestAppendAddsOnlyNewInstances(t *testing.T) {
	s, pool, fx, fy := buildPointState(t)
	require.NoError(t, s.Write("mem"))

	obj, err := pool.Make()
	require.NoError(t, err)
	fx.Set(obj, int32(100))
	fy.Set(obj, int32(200))

	require.NoError(t, s.Append())

	reopened, err := Open("mem", WithFileStream(s.cfg.opener))
	require.NoError(t, err)
	rp, _ := reopened.PoolByName("Point")

	count := 0
	for range rp.TypeOrderIterator() {
		count++
	}
	require.Equal(t, 4, count)
	require.Equal(t, 2, reopened.Stats().Blocks)
}

func TestAppendRefusesWithPendingDeletions(t *testing.T) {
	s, pool, _, _ := buildPointState(t)
	require.NoError(t, s.Write("mem"))

	for obj := range pool.TypeOrderIterator() {
		pool.Delete(obj)
		break
	}

	err := s.Append()
	require.Error(t, err)
	serr, ok := err.(*SkillError)
	require.True(t, ok)
	require.Equal(t, KindPoolFixed, serr.Kind)
}

func TestCompressReclaimsDeletedSlots(t *testing.T) {
	s, pool, fx, fy := buildPointState(t)

	for obj := range pool.TypeOrderIterator() {
		pool.Delete(obj)
		break
	}

	require.NoError(t, s.Write("mem"))

	reopened, err := Open("mem", WithFileStream(s.cfg.opener))
	require.NoError(t, err)
	rp, _ := reopened.PoolByName("Point")
	fxr, _ := rp.FieldByName("x")
	fyr, _ := rp.FieldByName("y")

	var got []pointValues
	for obj := range rp.TypeOrderIterator() {
		got = append(got, pointValues{fxr.Get(obj).(int32), fyr.Get(obj).(int32)})
	}
	require.Equal(t, []pointValues{{3, 4}, {5, 6}}, got)
}

// TestCheckRestrictionsSurfacesViolation exercises spec §4.4 Restrictions:
// a predicate attached to a field is checked against every live instance,
// and the first violation is reported as a KindRestrictionViolation error.
// Restrictions are a per-field binding concern (spec §1: code generation is
// out of scope), so attaching one requires the field to exist first; here
// that means parsing the file once to get real FieldDeclarations, then
// calling the same CheckRestrictions parseAll itself gates on.
func TestCheckRestrictionsSurfacesViolation(t *testing.T) {
	s, _, _, _ := buildPointState(t)
	require.NoError(t, s.Write("mem"))

	reopened, err := Open("mem", WithFileStream(s.cfg.opener))
	require.NoError(t, err)

	rp, ok := reopened.PoolByName("Point")
	require.True(t, ok)
	fx, ok := rp.FieldByName("x")
	require.True(t, ok)

	fx.AddRestriction(func(obj SkillObject, value any) error {
		if value.(int32) >= 5 {
			return errors.New("x must be < 5")
		}
		return nil
	})

	err = reopened.CheckRestrictions()
	require.Error(t, err)
	serr, ok := err.(*SkillError)
	require.True(t, ok)
	require.Equal(t, KindRestrictionViolation, serr.Kind)
}
