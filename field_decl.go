package skill

import (
	"sync"

	"github.com/skill-lang/skillrt/internal/stream"
)

// Chunk is a file-level span holding one field's payload for one block
// (spec §3 Chunks). SimpleChunk covers one contiguous run of base indices;
// BulkChunk implicitly covers all existing blocks of the owning pool's
// first blockCount blocks, used when a field first appears in a pool that
// already has multiple blocks.
type Chunk interface {
	// Span returns the absolute byte range [begin, end) this chunk occupies
	// in the file.
	Span() (begin, end int)
	isChunk()
}

// SimpleChunk covers count instances at base indices [bpo, bpo+count).
type SimpleChunk struct {
	Begin, End int
	BPO, Count int
}

func (c SimpleChunk) Span() (int, int) { return c.Begin, c.End }
func (SimpleChunk) isChunk()           {}

// BulkChunk implicitly covers all existing blocks of the owning pool's
// first BlockCount blocks.
type BulkChunk struct {
	Begin, End      int
	TotalCount      int
	BlockCount      int
}

func (c BulkChunk) Span() (int, int) { return c.Begin, c.End }
func (BulkChunk) isChunk()           {}

// Restriction is a per-field predicate evaluated against every non-deleted
// instance of a field's owner after parse (spec §4.4 Restrictions).
type Restriction func(obj SkillObject, value any) error

// FieldDeclaration is a field's storage, type, and dispatch contract (spec
// §3 FieldDeclaration<T,Obj>, §4.4).
//
// The original parameterizes FieldDeclaration<T,Obj> generically and the
// generic StoragePool<T,B> holds a vector of them per owner; here
// FieldDeclaration is a single non-generic type whose storage is either
// direct Get/Set closures over SkillObject (the common case, for a
// generated binding's typed field) or a distributed map (spec's
// "DistributedField" strategy) when no closure is supplied — see
// NewDirectField / NewDistributedField. This sidesteps the same erasure
// problem field_type.go discusses, the same way: via closures instead of
// a parallel generic hierarchy.
type FieldDeclaration struct {
	fieldType Type
	name      string
	index     int // positive: data field; <= 0: auto field, stored at -index
	owner     *StoragePool
	restrictions []Restriction
	dataChunks   []Chunk

	// direct field storage: a generated binding supplies get/set closures
	// that read/write its own struct field directly.
	get func(obj SkillObject) any
	set func(obj SkillObject, v any)

	// distributed field storage (spec §4.4 "Distributed fields"): used
	// when no get/set closures are supplied, e.g. for fields discovered on
	// SubType instances of an unknown pool.
	distMu  sync.Mutex
	data    map[SkillObject]any
	newData map[SkillObject]any

	lazy    bool
	loaded  bool
	loadErr error
}

// Type is an alias kept distinct from FieldType so FieldDeclaration.Type()
// reads naturally; every FieldDeclaration's type is a FieldType value
// (spec: "FieldDeclaration.type (may be refined during parse,
// monotonically)").
type Type = FieldType

// NewDirectField creates a field declaration backed by direct struct
// access via get/set closures, the common case for a generated binding's
// typed field.
func NewDirectField(name string, t FieldType, get func(SkillObject) any, set func(SkillObject, any)) *FieldDeclaration {
	return &FieldDeclaration{name: name, fieldType: t, get: get, set: set}
}

// NewDistributedField creates a field declaration backed by a side map
// keyed by object identity (spec §4.4 Distributed fields), for fields with
// no generated accessor — e.g. fields discovered on SubType instances.
func NewDistributedField(name string, t FieldType) *FieldDeclaration {
	return &FieldDeclaration{
		name:      name,
		fieldType: t,
		data:      make(map[SkillObject]any),
		newData:   make(map[SkillObject]any),
	}
}

// Name returns the field's interned name.
func (f *FieldDeclaration) Name() string { return f.name }

// Index returns the field's index: positive for data fields, <= 0 for auto
// fields (stored at position -index in the owner's autoFields vector).
func (f *FieldDeclaration) Index() int { return f.index }

// Owner returns the pool this field belongs to.
func (f *FieldDeclaration) Owner() *StoragePool { return f.owner }

// FieldType returns the field's current (possibly refined) type.
func (f *FieldDeclaration) FieldType() FieldType { return f.fieldType }

// RefineType implements spec §9's "exactly one refinement, from a
// placeholder to the concrete StoragePool once the target type is
// created": it is only valid to call this once, from a placeholder type to
// a concrete one, and a second call panics to enforce the invariant that
// retyping is not arbitrary.
func (f *FieldDeclaration) RefineType(concrete FieldType) {
	if f.fieldType != nil {
		if _, isPlaceholder := f.fieldType.(*placeholderType); !isPlaceholder {
			panic("skillrt: field type already refined once; arbitrary retyping is forbidden")
		}
	}
	f.fieldType = concrete
}

// placeholderType marks a field whose target pool type is not yet created
// during parse (spec §4.5 step 4, §9 "Type refinement during parse").
type placeholderType struct{ typeID int32 }

func (p *placeholderType) TypeID() int32                                      { return p.typeID }
func (p *placeholderType) ReadSingleField(*stream.Reader) (any, error)        { panic("skillrt: read through unrefined placeholder field type") }
func (p *placeholderType) WriteSingleField(any, *stream.Writer) error        { panic("skillrt: write through unrefined placeholder field type") }
func (p *placeholderType) SingleOffset(any) int                               { panic("skillrt: offset through unrefined placeholder field type") }
func (p *placeholderType) CalculateOffset([]any) int                          { panic("skillrt: offset through unrefined placeholder field type") }

// NewPlaceholderType creates a not-yet-resolved forward reference to a pool
// typeID encountered before that pool's declaration.
func NewPlaceholderType(typeID int32) FieldType { return &placeholderType{typeID} }

// AddRestriction attaches a predicate to be checked against every
// non-deleted instance after parse (spec §4.4 Restrictions).
func (f *FieldDeclaration) AddRestriction(r Restriction) {
	f.restrictions = append(f.restrictions, r)
}

// CheckRestrictions runs every restriction against every non-deleted
// instance of the owner pool, returning the first violation (spec §4.4).
func (f *FieldDeclaration) CheckRestrictions() error {
	if len(f.restrictions) == 0 || f.owner == nil {
		return nil
	}
	var err error
	for obj := range f.owner.Iterator() {
		if obj.SkillID() == Deleted {
			continue
		}
		v := f.Get(obj)
		for _, r := range f.restrictions {
			if rerr := r(obj, v); rerr != nil {
				return &SkillError{Kind: KindRestrictionViolation, Message: rerr.Error(), Offset: -1}
			}
		}
	}
	return err
}

// MarkLazy marks this field as lazily decoded: chunks are not read until
// EnsureLoaded is called (spec §4.4 Lazy fields).
func (f *FieldDeclaration) MarkLazy() { f.lazy = true }

// IsLazy reports whether this field defers chunk decoding.
func (f *FieldDeclaration) IsLazy() bool { return f.lazy }

// EnsureLoaded forces decoding of this field's chunks if it hasn't
// happened yet; it must be called before string collection during
// serialization (spec §4.4).
func (f *FieldDeclaration) EnsureLoaded(src []byte) error {
	if !f.lazy || f.loaded {
		return f.loadErr
	}
	f.loaded = true
	f.loadErr = f.decodeAllChunks(src)
	return f.loadErr
}

// Get returns the current value of this field on obj, routing to direct
// storage or the distributed map depending on how the field was
// constructed, and on the object's lifecycle (spec §4.4 "get/set route by
// skillID == -1").
func (f *FieldDeclaration) Get(obj SkillObject) any {
	if f.get != nil {
		return f.get(obj)
	}
	f.distMu.Lock()
	defer f.distMu.Unlock()
	if obj.SkillID() == Unassigned {
		return f.newData[obj]
	}
	return f.data[obj]
}

// Set stores v as this field's value on obj. For a *SubType (spec §3
// "Unknown-type subtypes") it also mirrors v into the object's own
// SetField, so a genuinely-parsed unknown-type instance is inspectable via
// SubType.Field directly, not just through FieldDeclaration.Get (spec
// SPEC_FULL.md §E.4).
func (f *FieldDeclaration) Set(obj SkillObject, v any) {
	if f.set != nil {
		f.set(obj, v)
		return
	}
	f.distMu.Lock()
	if obj.SkillID() == Unassigned {
		f.newData[obj] = v
	} else {
		f.data[obj] = v
	}
	f.distMu.Unlock()
	if st, ok := obj.(*SubType); ok {
		st.SetField(f.name, v)
	}
}

// Compress merges newData into data ahead of a full write (spec §4.4
// Distributed fields: "compress() merges newData into data before a full
// write").
func (f *FieldDeclaration) Compress() {
	if f.data == nil {
		return
	}
	f.distMu.Lock()
	defer f.distMu.Unlock()
	for k, v := range f.newData {
		f.data[k] = v
	}
	f.newData = make(map[SkillObject]any)
}

// --- Read/write/offset dispatch (spec §4.4 rsc/rbc/osc/obc/wsc/wbc) --------

// ReadSimpleChunk reads values for the count instances at base indices
// [bpo,bpo+count) into this field on the owner pool (spec §4.4 rsc).
func (f *FieldDeclaration) ReadSimpleChunk(r *stream.Reader, bpo, count int) error {
	data := *f.owner.base.data
	for i := 0; i < count; i++ {
		v, err := f.fieldType.ReadSingleField(r)
		if err != nil {
			return err
		}
		obj := data[bpo+i]
		if obj != nil {
			f.Set(obj, v)
		}
	}
	return nil
}

// ReadBulkChunk reads a bulk chunk by delegating to ReadSimpleChunk once
// per existing block of the owner pool's first blockCount blocks (spec
// §4.4 rbc default implementation).
func (f *FieldDeclaration) ReadBulkChunk(r *stream.Reader, blockCount int) error {
	blocks := f.owner.blocks
	if blockCount > len(blocks) {
		blockCount = len(blocks)
	}
	for i := 0; i < blockCount; i++ {
		b := blocks[i]
		if err := f.ReadSimpleChunk(r, b.BPO, b.StaticCount); err != nil {
			return err
		}
	}
	return nil
}

// OffsetSimpleChunk accumulates into *offset the byte count for values in
// [bpo,bpo+count) (spec §4.4 osc). Callers must zero *offset first.
func (f *FieldDeclaration) OffsetSimpleChunk(offset *int, bpo, count int) {
	data := *f.owner.base.data
	for i := 0; i < count; i++ {
		obj := data[bpo+i]
		if obj == nil {
			continue
		}
		*offset += f.fieldType.SingleOffset(f.Get(obj))
	}
}

// OffsetBulkChunk defers to OffsetSimpleChunk per block (spec §4.4 obc).
func (f *FieldDeclaration) OffsetBulkChunk(offset *int, blockCount int) {
	blocks := f.owner.blocks
	if blockCount > len(blocks) {
		blockCount = len(blocks)
	}
	for i := 0; i < blockCount; i++ {
		b := blocks[i]
		f.OffsetSimpleChunk(offset, b.BPO, b.StaticCount)
	}
}

// WriteSimpleChunk writes values for [bpo,bpo+count) (spec §4.4 wsc).
func (f *FieldDeclaration) WriteSimpleChunk(w *stream.Writer, bpo, count int) error {
	data := *f.owner.base.data
	for i := 0; i < count; i++ {
		obj := data[bpo+i]
		if obj == nil {
			continue
		}
		if err := f.fieldType.WriteSingleField(f.Get(obj), w); err != nil {
			return err
		}
	}
	return nil
}

// WriteBulkChunk defers to WriteSimpleChunk per block (spec §4.4 wbc).
func (f *FieldDeclaration) WriteBulkChunk(w *stream.Writer, blockCount int) error {
	blocks := f.owner.blocks
	if blockCount > len(blocks) {
		blockCount = len(blocks)
	}
	for i := 0; i < blockCount; i++ {
		b := blocks[i]
		if err := f.WriteSimpleChunk(w, b.BPO, b.StaticCount); err != nil {
			return err
		}
	}
	return nil
}

func (f *FieldDeclaration) decodeAllChunks(src []byte) error {
	for _, c := range f.dataChunks {
		if err := f.DecodeJob(c, src)(); err != nil {
			return err
		}
	}
	return nil
}

// AppendChunk attaches a freshly-parsed chunk to this field's chunk list
// (spec §4.5 step 4/5).
func (f *FieldDeclaration) AppendChunk(c Chunk) {
	f.dataChunks = append(f.dataChunks, c)
}

// Chunks returns the field's chunk list.
func (f *FieldDeclaration) Chunks() []Chunk { return f.dataChunks }

// DecodeJob is one parallel field-chunk decode task (spec §4.4 finish():
// "For each chunk, submit one parallel job that... invokes rbc or rsc...
// verifies EOF for non-lazy fields").
func (f *FieldDeclaration) DecodeJob(c Chunk, src []byte) func() error {
	return func() error {
		begin, end := c.Span()
		r := stream.NewReader(src[begin:end])
		var err error
		switch chunk := c.(type) {
		case SimpleChunk:
			err = f.ReadSimpleChunk(r, chunk.BPO, chunk.Count)
		case BulkChunk:
			err = f.ReadBulkChunk(r, chunk.BlockCount)
		}
		if err != nil {
			return err
		}
		if !r.EOF() {
			return newErrAt(KindPoolSizeMismatch, begin, "field %q chunk left %d residual bytes", f.name, r.Len())
		}
		return nil
	}
}

// DecodeJobs returns one DecodeJob per chunk, unless the field is lazy (in
// which case decoding is deferred to EnsureLoaded and no jobs are
// produced).
func (f *FieldDeclaration) DecodeJobs(src []byte) []func() error {
	if f.lazy {
		return nil
	}
	jobs := make([]func() error, 0, len(f.dataChunks))
	for _, c := range f.dataChunks {
		jobs = append(jobs, f.DecodeJob(c, src))
	}
	return jobs
}
