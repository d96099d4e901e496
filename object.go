package skill

import "sync"

// SkillID identifies the lifecycle state of a SkillObject: Unassigned
// (newly created, not yet flushed), Deleted, or Live with a 1-based index
// into its base pool's backing array (spec §3: "skillID is the index+1
// into its base pool's backing array").
type SkillID int64

const (
	// Unassigned marks an object made via Pool.Make but not yet written.
	Unassigned SkillID = -1
	// Deleted marks an object removed via Pool.Delete.
	Deleted SkillID = 0
)

// Live reports whether this ID denotes a live instance (n > 0).
func (id SkillID) Live() bool { return id > 0 }

// Index returns the 0-based index into the base pool's backing array for a
// live ID. Callers must check Live() first.
func (id SkillID) Index() int { return int(id) - 1 }

// SkillObject is the generic instance interface every pool element
// implements, whether it is a schema-generated typed struct or the
// fallback SubType used for instances of unknown pools encountered during
// parse (spec §3, §9 "Unknown-type subtypes").
type SkillObject interface {
	// SkillID returns the current lifecycle ID of this object.
	SkillID() SkillID
	// setSkillID is called only by the owning pool during make/flush/delete
	// bookkeeping; it is unexported so external code cannot violate the
	// invariant that basePool.data[skillID-1] == this object.
	setSkillID(SkillID)
	// TypeName returns the interned name of this object's exact (static)
	// pool, for introspection and error messages.
	TypeName() string
}

// baseObject is embedded by both SubType and any generated concrete type
// that wants the default SkillID bookkeeping, mirroring the teacher's
// pattern of a small embeddable header struct (tdp/dynamic.Message) that
// generated/compiled types build on.
//
// Design Notes §9 calls out a stray `new Thread()` in the original base
// object constructor as dead code not to be replicated; there is
// deliberately no such thing here.
type baseObject struct {
	id       SkillID
	typeName string
}

func (o *baseObject) SkillID() SkillID       { return o.id }
func (o *baseObject) setSkillID(id SkillID)  { o.id = id }
func (o *baseObject) TypeName() string       { return o.typeName }

// SubType is the generic instance used for pools of a type the reader's
// schema binding does not know about (spec §3). It stores raw per-field
// values keyed by field name so the instance round-trips losslessly even
// though its fields cannot be accessed by a typed accessor (SPEC_FULL.md
// §E.4 extends this with Field/Fields for inspection).
type SubType struct {
	baseObject
	pool   *StoragePool
	mu     sync.Mutex
	values map[string]any
}

// NewSubType constructs a SubType bound to pool, used by the parser's
// allocateInstances step (spec §4.5.3) when it encounters an unknown pool.
func NewSubType(pool *StoragePool) *SubType {
	st := &SubType{pool: pool, values: make(map[string]any)}
	st.id = Unassigned
	if pool != nil {
		st.typeName = pool.name
	}
	return st
}

// Field returns the raw value stored for a named field, and whether it was
// present (SPEC_FULL.md §E.4).
func (s *SubType) Field(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

// SetField stores a raw value for a named field; used by field decode jobs
// when writing into an unknown-type instance. Guarded by a mutex since
// distinct fields of the same instance may be decoded by concurrent jobs
// (spec §5 parallel field decode).
func (s *SubType) SetField(name string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

// Fields returns the set of field names currently populated on this
// instance, for introspection of unknown types.
func (s *SubType) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	return names
}
