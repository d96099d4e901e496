package skill

import (
	"github.com/skill-lang/skillrt/internal/stream"
	"github.com/skill-lang/skillrt/internal/varint"
)

// constLenArrayType implements a constant-length array (spec §4.1, type ID
// 15): exactly n elements, no length prefix. Writing a value whose length
// differs from n raises KindArrayLengthMismatch (spec §8 property 8).
type constLenArrayType struct {
	n      int
	ground FieldType
}

// NewConstantLengthArrayType creates a constant-length array field type of
// n elements of the given ground type.
func NewConstantLengthArrayType(n int, ground FieldType) FieldType {
	return &constLenArrayType{n, ground}
}

func (a *constLenArrayType) TypeID() int32 { return TypeIDConstArray }

func (a *constLenArrayType) ReadSingleField(r *stream.Reader) (any, error) {
	vs := make([]any, a.n)
	for i := range vs {
		v, err := a.ground.ReadSingleField(r)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func (a *constLenArrayType) WriteSingleField(v any, w *stream.Writer) error {
	vs := v.([]any)
	if len(vs) != a.n {
		return newErr(KindArrayLengthMismatch, "constant-length array expects %d elements, got %d", a.n, len(vs))
	}
	for _, e := range vs {
		if err := a.ground.WriteSingleField(e, w); err != nil {
			return err
		}
	}
	return nil
}

func (a *constLenArrayType) SingleOffset(v any) int {
	vs := v.([]any)
	return a.ground.CalculateOffset(vs)
}

func (a *constLenArrayType) CalculateOffset(vs []any) int { return calculateOffset(a, vs) }

// collectionKind distinguishes the three length-prefixed collection types,
// which are otherwise byte-for-byte identical (spec §4.1: "v64 length
// prefix then that many ground elements").
type collectionKind int32

const (
	kindVarArray collectionKind = TypeIDVarArray
	kindList     collectionKind = TypeIDList
	kindSet      collectionKind = TypeIDSet
)

type collectionType struct {
	kind   collectionKind
	ground FieldType
}

// NewVarArrayType creates a variable-length array field type (type ID 17).
func NewVarArrayType(ground FieldType) FieldType { return &collectionType{kindVarArray, ground} }

// NewListType creates a list field type (type ID 18).
func NewListType(ground FieldType) FieldType { return &collectionType{kindList, ground} }

// NewSetType creates a set field type (type ID 19). Deduplication of set
// elements is a binding-layer concern; the wire encoding for a set is
// identical to a list (spec §4.1 groups 17/18/19 under one rule), so this
// runtime preserves insertion order and leaves de-duplication to whatever
// constructs the value, matching the fact that SKilL's own spec never
// requires the runtime to normalize duplicates on decode.
func NewSetType(ground FieldType) FieldType { return &collectionType{kindSet, ground} }

func (c *collectionType) TypeID() int32 { return int32(c.kind) }

func (c *collectionType) ReadSingleField(r *stream.Reader) (any, error) {
	n, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "collection length")
	}
	vs := make([]any, n)
	for i := range vs {
		v, err := c.ground.ReadSingleField(r)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func (c *collectionType) WriteSingleField(v any, w *stream.Writer) error {
	vs, _ := v.([]any)
	if err := w.V64(int64(len(vs))); err != nil {
		return err
	}
	for _, e := range vs {
		if err := c.ground.WriteSingleField(e, w); err != nil {
			return err
		}
	}
	return nil
}

func (c *collectionType) SingleOffset(v any) int {
	vs, _ := v.([]any)
	return varint.Len(int64(len(vs))) + c.ground.CalculateOffset(vs)
}

func (c *collectionType) CalculateOffset(vs []any) int { return calculateOffset(c, vs) }

// MapEntry is one key-value pair of a Map field value. Map values are
// represented as an ordered []MapEntry rather than a Go map so that
// round-tripping (spec §8 property 1) and offset computation are
// deterministic; SKilL's wire format has no inherent key ordering
// requirement, so any stable order chosen by the writer is valid, but it
// must actually be stable across the two offset/write passes of a single
// serialize call.
type MapEntry struct {
	Key, Value any
}

type mapType struct {
	key, value FieldType
}

// NewMapType creates a map field type (type ID 20) over the given key and
// value ground types.
func NewMapType(key, value FieldType) FieldType { return &mapType{key, value} }

func (m *mapType) TypeID() int32 { return TypeIDMap }

func (m *mapType) ReadSingleField(r *stream.Reader) (any, error) {
	n, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "map length")
	}
	entries := make([]MapEntry, n)
	for i := range entries {
		k, err := m.key.ReadSingleField(r)
		if err != nil {
			return nil, err
		}
		v, err := m.value.ReadSingleField(r)
		if err != nil {
			return nil, err
		}
		entries[i] = MapEntry{k, v}
	}
	return entries, nil
}

func (m *mapType) WriteSingleField(v any, w *stream.Writer) error {
	entries, _ := v.([]MapEntry)
	if err := w.V64(int64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := m.key.WriteSingleField(e.Key, w); err != nil {
			return err
		}
		if err := m.value.WriteSingleField(e.Value, w); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapType) SingleOffset(v any) int {
	entries, _ := v.([]MapEntry)
	n := varint.Len(int64(len(entries)))
	for _, e := range entries {
		n += m.key.SingleOffset(e.Key) + m.value.SingleOffset(e.Value)
	}
	return n
}

func (m *mapType) CalculateOffset(vs []any) int {
	n := 0
	for _, v := range vs {
		n += m.SingleOffset(v)
	}
	return n
}
