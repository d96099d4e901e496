package skill

import (
	"github.com/skill-lang/skillrt/internal/stream"
	"github.com/skill-lang/skillrt/internal/varint"
)

// Stable SKilL type IDs (spec §3).
const (
	TypeIDConstI8   int32 = 0
	TypeIDConstI16  int32 = 1
	TypeIDConstI32  int32 = 2
	TypeIDConstI64  int32 = 3
	TypeIDConstV64  int32 = 4
	TypeIDAnnotation int32 = 5
	TypeIDBool      int32 = 6
	TypeIDI8        int32 = 7
	TypeIDI16       int32 = 8
	TypeIDI32       int32 = 9
	TypeIDI64       int32 = 10
	TypeIDV64       int32 = 11
	TypeIDF32       int32 = 12
	TypeIDF64       int32 = 13
	TypeIDString    int32 = 14
	TypeIDConstArray int32 = 15
	// 16 is reserved by the format for a type never surfaced to bindings.
	TypeIDVarArray  int32 = 17
	TypeIDList      int32 = 18
	TypeIDSet       int32 = 19
	TypeIDMap       int32 = 20

	// FirstPoolTypeID is the first type ID assigned to a user pool.
	FirstPoolTypeID int32 = 32
)

// FieldType is the uniform encoder/decoder for one SKilL field type (spec
// §4.1). Rather than a generic FieldType[T] dispatched through unchecked
// downcasts (Design Notes §9's description of the original's erasure
// problem), this operates on boxed `any` values: Go's interface{} already
// gives FieldDeclaration a single non-generic type to hold regardless of
// the field's value type, with no unsafe cast anywhere in the dispatch
// path. Generated, schema-specific bindings are expected to wrap a
// FieldType with a typed accessor at their own boundary.
type FieldType interface {
	// TypeID is this field type's stable catalogue ID.
	TypeID() int32
	// ReadSingleField decodes one value.
	ReadSingleField(r *stream.Reader) (any, error)
	// WriteSingleField encodes one value.
	WriteSingleField(v any, w *stream.Writer) error
	// SingleOffset returns the exact byte count WriteSingleField(v) emits.
	SingleOffset(v any) int
	// CalculateOffset sums SingleOffset over a collection of values.
	CalculateOffset(vs []any) int
}

func calculateOffset(t FieldType, vs []any) int {
	n := 0
	for _, v := range vs {
		n += t.SingleOffset(v)
	}
	return n
}

// --- Fixed-width primitives -------------------------------------------------

type i8Type struct{}

func (i8Type) TypeID() int32 { return TypeIDI8 }
func (i8Type) ReadSingleField(r *stream.Reader) (any, error) { return r.I8() }
func (i8Type) WriteSingleField(v any, w *stream.Writer) error { return w.I8(v.(int8)) }
func (i8Type) SingleOffset(any) int { return 1 }
func (t i8Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// I8 is the i8 field type singleton.
var I8 FieldType = i8Type{}

type i16Type struct{}

func (i16Type) TypeID() int32 { return TypeIDI16 }
func (i16Type) ReadSingleField(r *stream.Reader) (any, error) { return r.I16() }
func (i16Type) WriteSingleField(v any, w *stream.Writer) error { return w.I16(v.(int16)) }
func (i16Type) SingleOffset(any) int { return 2 }
func (t i16Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// I16 is the i16 field type singleton.
var I16 FieldType = i16Type{}

type i32Type struct{}

func (i32Type) TypeID() int32 { return TypeIDI32 }
func (i32Type) ReadSingleField(r *stream.Reader) (any, error) { return r.I32() }
func (i32Type) WriteSingleField(v any, w *stream.Writer) error { return w.I32(v.(int32)) }
func (i32Type) SingleOffset(any) int { return 4 }
func (t i32Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// I32 is the i32 field type singleton.
var I32 FieldType = i32Type{}

type i64Type struct{}

func (i64Type) TypeID() int32 { return TypeIDI64 }
func (i64Type) ReadSingleField(r *stream.Reader) (any, error) { return r.I64() }
func (i64Type) WriteSingleField(v any, w *stream.Writer) error { return w.I64(v.(int64)) }
func (i64Type) SingleOffset(any) int { return 8 }
func (t i64Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// I64 is the i64 field type singleton.
var I64 FieldType = i64Type{}

type f32Type struct{}

func (f32Type) TypeID() int32 { return TypeIDF32 }
func (f32Type) ReadSingleField(r *stream.Reader) (any, error) { return r.F32() }
func (f32Type) WriteSingleField(v any, w *stream.Writer) error { return w.F32(v.(float32)) }
func (f32Type) SingleOffset(any) int { return 4 }
func (t f32Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// F32 is the f32 field type singleton.
var F32 FieldType = f32Type{}

type f64Type struct{}

func (f64Type) TypeID() int32 { return TypeIDF64 }
func (f64Type) ReadSingleField(r *stream.Reader) (any, error) { return r.F64() }
func (f64Type) WriteSingleField(v any, w *stream.Writer) error { return w.F64(v.(float64)) }
func (f64Type) SingleOffset(any) int { return 8 }
func (t f64Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// F64 is the f64 field type singleton.
var F64 FieldType = f64Type{}

type boolType struct{}

func (boolType) TypeID() int32 { return TypeIDBool }
func (boolType) ReadSingleField(r *stream.Reader) (any, error) { return r.Bool() }
func (boolType) WriteSingleField(v any, w *stream.Writer) error { return w.Bool(v.(bool)) }
func (boolType) SingleOffset(any) int { return 1 }
func (t boolType) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// Bool is the bool field type singleton.
var Bool FieldType = boolType{}

type v64Type struct{}

func (v64Type) TypeID() int32 { return TypeIDV64 }
func (v64Type) ReadSingleField(r *stream.Reader) (any, error) { return r.V64() }
func (v64Type) WriteSingleField(v any, w *stream.Writer) error { return w.V64(v.(int64)) }
func (v64Type) SingleOffset(v any) int { return varint.Len(v.(int64)) }
func (t v64Type) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// V64 is the v64 field type singleton.
var V64 FieldType = v64Type{}
