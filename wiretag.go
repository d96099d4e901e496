package skill

import (
	"github.com/skill-lang/skillrt/internal/stream"
	"github.com/skill-lang/skillrt/internal/varint"
)

// Field-type tag bytes for the schema stream's tagged field-type encoding
// (spec §6 field section, "fieldType is a tagged encoding"). Tags 0..4 are
// the constant kinds' own type IDs (reused directly as their tag, per
// spec: "0..4 constants: i8 tag then the constant value at its width").
// The remaining tags are the literal hex values spec §6 specifies.
const (
	tagConstArray = 0x0F
	tagVarArray   = 0x11
	tagList       = 0x12
	tagSet        = 0x13
	tagMap        = 0x14
)

// writeFieldTypeTag serializes a FieldType's schema-stream encoding (spec
// §6 field section item 3), recursing for compound types. Reference,
// annotation, string and scalar types are written as their v64 TypeID().
func writeFieldTypeTag(w *stream.Writer, t FieldType) error {
	switch v := t.(type) {
	case *constantType:
		if err := w.I8(int8(v.typeID)); err != nil {
			return err
		}
		switch vv := v.value.(type) {
		case int8:
			return w.I8(vv)
		case int16:
			return w.I16(vv)
		case int32:
			return w.I32(vv)
		case int64:
			if v.typeID == TypeIDConstV64 {
				return w.V64(vv)
			}
			return w.I64(vv)
		}
		return nil
	case *constLenArrayType:
		if err := w.I8(tagConstArray); err != nil {
			return err
		}
		if err := w.V64(int64(v.n)); err != nil {
			return err
		}
		return w.V64(int64(v.ground.TypeID()))
	case *collectionType:
		tag := map[collectionKind]int8{kindVarArray: tagVarArray, kindList: tagList, kindSet: tagSet}[v.kind]
		if err := w.I8(tag); err != nil {
			return err
		}
		return w.V64(int64(v.ground.TypeID()))
	case *mapType:
		if err := w.I8(tagMap); err != nil {
			return err
		}
		if err := writeFieldTypeTag(w, v.key); err != nil {
			return err
		}
		return writeFieldTypeTag(w, v.value)
	default:
		return w.V64(int64(t.TypeID()))
	}
}

// readFieldTypeTag decodes a schema-stream field type, resolving pool and
// string references through resolve (typeID -> ground FieldType).
func readFieldTypeTag(r *stream.Reader, resolve func(int32) FieldType) (FieldType, error) {
	tag, err := r.I8()
	if err != nil {
		return nil, wrapIO(err, "field type tag")
	}
	switch tag {
	case 0:
		v, err := r.I8()
		if err != nil {
			return nil, err
		}
		return NewConstantI8(v), nil
	case 1:
		v, err := r.I16()
		if err != nil {
			return nil, err
		}
		return NewConstantI16(v), nil
	case 2:
		v, err := r.I32()
		if err != nil {
			return nil, err
		}
		return NewConstantI32(v), nil
	case 3:
		v, err := r.I64()
		if err != nil {
			return nil, err
		}
		return NewConstantI64(v), nil
	case 4:
		v, err := r.V64()
		if err != nil {
			return nil, err
		}
		return NewConstantV64(v), nil
	case tagConstArray:
		n, err := r.V64()
		if err != nil {
			return nil, err
		}
		gid, err := r.V64()
		if err != nil {
			return nil, err
		}
		return NewConstantLengthArrayType(int(n), resolve(int32(gid))), nil
	case tagVarArray:
		gid, err := r.V64()
		if err != nil {
			return nil, err
		}
		return NewVarArrayType(resolve(int32(gid))), nil
	case tagList:
		gid, err := r.V64()
		if err != nil {
			return nil, err
		}
		return NewListType(resolve(int32(gid))), nil
	case tagSet:
		gid, err := r.V64()
		if err != nil {
			return nil, err
		}
		return NewSetType(resolve(int32(gid))), nil
	case tagMap:
		k, err := readFieldTypeTag(r, resolve)
		if err != nil {
			return nil, err
		}
		v, err := readFieldTypeTag(r, resolve)
		if err != nil {
			return nil, err
		}
		return NewMapType(k, v), nil
	default:
		// Otherwise: the tag byte already read was actually the first
		// byte of a v64-encoded typeID (>= 32 for a pool reference, or one
		// of the ground IDs 5..14: annotation, scalars, string).
		id, err := r.V64Continue(byte(tag))
		if err != nil {
			return nil, err
		}
		if id < int64(FirstPoolTypeID) && (id < int64(TypeIDAnnotation) || id > int64(TypeIDString)) {
			return nil, newErrAt(KindUnknownFieldType, r.Pos(), "unknown field type id %d", id)
		}
		return resolve(int32(id)), nil
	}
}

// sizeFieldTypeTag returns the exact byte count writeFieldTypeTag(_, t)
// would emit, mirroring its structure so a serializer can size a field
// section entry before allocating its output buffer.
func sizeFieldTypeTag(t FieldType) int {
	switch v := t.(type) {
	case *constantType:
		switch vv := v.value.(type) {
		case int8:
			return 2
		case int16:
			return 3
		case int32:
			return 5
		case int64:
			if v.typeID == TypeIDConstV64 {
				return 1 + varint.Len(vv)
			}
			return 9
		}
		return 1
	case *constLenArrayType:
		return 1 + varint.Len(int64(v.n)) + varint.Len(int64(v.ground.TypeID()))
	case *collectionType:
		return 1 + varint.Len(int64(v.ground.TypeID()))
	case *mapType:
		return 1 + sizeFieldTypeTag(v.key) + sizeFieldTypeTag(v.value)
	default:
		return varint.Len(int64(t.TypeID()))
	}
}

// collectStrings walks v according to ft's shape, registering every string
// value it finds (including ones nested inside arrays, lists, sets, and
// maps) with sp so it gets assigned an ID before the string block is sized
// (spec §4.6 "gather strings").
func collectStrings(ft FieldType, v any, sp *StringPool) {
	if v == nil {
		return
	}
	switch t := ft.(type) {
	case *stringType:
		sp.Add(v.(string))
	case *constLenArrayType:
		for _, e := range v.([]any) {
			collectStrings(t.ground, e, sp)
		}
	case *collectionType:
		for _, e := range v.([]any) {
			collectStrings(t.ground, e, sp)
		}
	case *mapType:
		for _, e := range v.([]MapEntry) {
			collectStrings(t.key, e.Key, sp)
			collectStrings(t.value, e.Value, sp)
		}
	}
}
