package skill

import "github.com/skill-lang/skillrt/internal/stream"

// constantType wraps a baked-in value: ReadSingleField consumes no bytes
// and always returns the stored value, WriteSingleField emits nothing (the
// value lives in the schema stream, not the field data, spec §4.1). Two
// constant field types are equal iff their value and underlying type ID
// match.
type constantType struct {
	typeID int32
	value  any
}

func (c *constantType) TypeID() int32 { return c.typeID }
func (c *constantType) ReadSingleField(*stream.Reader) (any, error) { return c.value, nil }
func (c *constantType) WriteSingleField(any, *stream.Writer) error { return nil }
func (c *constantType) SingleOffset(any) int { return 0 }
func (c *constantType) CalculateOffset([]any) int { return 0 }

// Value returns the baked-in constant value.
func (c *constantType) Value() any { return c.value }

// Equal reports whether two constant field types carry the same type ID
// and value.
func (c *constantType) Equal(other *constantType) bool {
	return other != nil && c.typeID == other.typeID && c.value == other.value
}

// NewConstantI8 creates a constant field type over an i8 value.
func NewConstantI8(v int8) FieldType { return &constantType{TypeIDConstI8, v} }

// NewConstantI16 creates a constant field type over an i16 value.
func NewConstantI16(v int16) FieldType { return &constantType{TypeIDConstI16, v} }

// NewConstantI32 creates a constant field type over an i32 value.
func NewConstantI32(v int32) FieldType { return &constantType{TypeIDConstI32, v} }

// NewConstantI64 creates a constant field type over an i64 value.
func NewConstantI64(v int64) FieldType { return &constantType{TypeIDConstI64, v} }

// NewConstantV64 creates a constant field type over a v64 value.
func NewConstantV64(v int64) FieldType { return &constantType{TypeIDConstV64, v} }
