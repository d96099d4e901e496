package skill

import (
	"github.com/skill-lang/skillrt/internal/stream"
	"github.com/skill-lang/skillrt/internal/varint"
)

// Ref is the decoded form of an annotation or typed reference field value:
// the target pool's absolute type ID and the referent's skill ID. A nil
// `any` (not a zero Ref) represents the null reference, matching spec
// §4.1's "Null ⇒ (0,0)" / "single zero byte for null" encodings.
type Ref struct {
	TypeID int32
	ID     SkillID
}

// annotationType implements the polymorphic annotation field (spec §4.1,
// type ID 5): a (typeIDorZero, skillID) pair of v64s, where typeIDorZero is
// the target pool's typeID-31.
type annotationType struct{}

func (annotationType) TypeID() int32 { return TypeIDAnnotation }

func (annotationType) ReadSingleField(r *stream.Reader) (any, error) {
	tid, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "annotation type id")
	}
	if tid == 0 {
		// Null annotation still consumes the skillID v64 (always (0,0)).
		if _, err := r.V64(); err != nil {
			return nil, wrapIO(err, "annotation skill id")
		}
		return nil, nil
	}
	sid, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "annotation skill id")
	}
	return Ref{TypeID: int32(tid) + 31, ID: SkillID(sid)}, nil
}

func (annotationType) WriteSingleField(v any, w *stream.Writer) error {
	if v == nil {
		if err := w.V64(0); err != nil {
			return err
		}
		return w.V64(0)
	}
	ref := v.(Ref)
	if err := w.V64(int64(ref.TypeID - 31)); err != nil {
		return err
	}
	return w.V64(int64(ref.ID))
}

func (annotationType) SingleOffset(v any) int {
	if v == nil {
		return varint.Len(0) + varint.Len(0)
	}
	ref := v.(Ref)
	return varint.Len(int64(ref.TypeID-31)) + varint.Len(int64(ref.ID))
}

func (t annotationType) CalculateOffset(vs []any) int { return calculateOffset(t, vs) }

// Annotation is the annotation field type singleton.
var Annotation FieldType = annotationType{}

// referenceType implements a typed reference to a specific pool P (spec
// §4.1, type ID = P's typeID): a v64 skillID, with 0 (a single zero byte)
// meaning null.
type referenceType struct {
	poolTypeID int32
}

// NewReferenceType creates a reference field type bound to the given
// target pool's type ID.
func NewReferenceType(poolTypeID int32) FieldType { return &referenceType{poolTypeID} }

func (r *referenceType) TypeID() int32 { return r.poolTypeID }

func (r *referenceType) ReadSingleField(in *stream.Reader) (any, error) {
	sid, err := in.V64()
	if err != nil {
		return nil, wrapIO(err, "reference skill id")
	}
	if sid == 0 {
		return nil, nil
	}
	return Ref{TypeID: r.poolTypeID, ID: SkillID(sid)}, nil
}

func (r *referenceType) WriteSingleField(v any, w *stream.Writer) error {
	if v == nil {
		return w.V64(0)
	}
	return w.V64(int64(v.(Ref).ID))
}

func (r *referenceType) SingleOffset(v any) int {
	if v == nil {
		return varint.Len(0)
	}
	return varint.Len(int64(v.(Ref).ID))
}

func (r *referenceType) CalculateOffset(vs []any) int { return calculateOffset(r, vs) }

// stringType implements the string field (spec §4.1, type ID 14): a v64
// stringID resolved against the owning state's StringPool, with 0 meaning
// null. Binding the FieldType to a concrete *StringPool keeps the
// ReadSingleField/WriteSingleField contract uniform (they still just
// consume/produce one logical value) while letting values be real Go
// strings rather than raw IDs the caller would have to resolve themselves.
type stringType struct {
	pool *StringPool
}

// NewStringType creates a string field type resolved against pool.
func NewStringType(pool *StringPool) FieldType { return &stringType{pool} }

func (s *stringType) TypeID() int32 { return TypeIDString }

func (s *stringType) ReadSingleField(r *stream.Reader) (any, error) {
	id, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "string id")
	}
	if id == 0 {
		return nil, nil
	}
	str, ok := s.pool.Get(id)
	if !ok {
		return nil, newErr(KindInvalidPoolIndex, "string id %d out of range", id)
	}
	return str, nil
}

func (s *stringType) WriteSingleField(v any, w *stream.Writer) error {
	if v == nil {
		return w.V64(0)
	}
	return w.V64(s.pool.IDOf(v.(string)))
}

func (s *stringType) SingleOffset(v any) int {
	if v == nil {
		return varint.Len(0)
	}
	return varint.Len(s.pool.IDOf(v.(string)))
}

func (s *stringType) CalculateOffset(vs []any) int { return calculateOffset(s, vs) }
