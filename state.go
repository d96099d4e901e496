package skill

import (
	"github.com/skill-lang/skillrt/internal/stream"
)

// magic identifies a SKilL file; version is this runtime's format
// revision. Spec §6 notes the exact header bytes are defined by the SKilL
// reference manual (external, §1's out-of-scope FileStream boundary); this
// runtime picks a concrete value so it can validate and round-trip its own
// files (DESIGN.md records this as an Open Question resolution, since the
// byte grammar itself is not reproduced in spec.md).
var magic = [4]byte{'S', 'K', 'I', 'L'}

const formatVersion = 1

// Stats is a snapshot of a parsed or written file's shape, the ambient
// observability surface SPEC_FULL.md §A.3 adds in place of the teacher's
// internal/debug bytecode tracer (not applicable here: there is no VM to
// trace).
type Stats struct {
	Pools       int
	Strings     int
	Blocks      int
	BytesRead   int
	BytesWritten int
}

// SkillState is the top-level API surface (spec §6): the parsed/under
// construction object graph, its type forest, its string pool, and the
// read/write/append/close operations a generated binding builds on.
type SkillState struct {
	cfg *config
	fs  stream.FileStream
	src []byte

	pools    []*StoragePool
	byTypeID map[int32]*StoragePool
	byName   map[string]*StoragePool
	strings  *StringPool

	nextTypeID int32
	allocators map[string]func() SkillObject

	stats Stats
}

// NewState creates an empty state for building a file from scratch (spec
// §3 Lifecycles: "Pools: created during file parse or via generated `new
// State()`").
func NewState(opts ...Option) *SkillState {
	return &SkillState{
		cfg:        applyOptions(opts),
		byTypeID:   make(map[int32]*StoragePool),
		byName:     make(map[string]*StoragePool),
		strings:    NewStringPool(),
		nextTypeID: FirstPoolTypeID,
		allocators: make(map[string]func() SkillObject),
	}
}

// RegisterAllocator installs the constructor a future pool named name
// should use for Make and for parser-side instance allocation — the
// substitute this runtime offers for the generated, per-schema allocator
// spec §4.5 step 3 describes ("typed objects produced by the generated
// allocator"), since code generation itself is out of scope (spec §1).
func (s *SkillState) RegisterAllocator(name string, f func() SkillObject) {
	s.allocators[name] = f
}

// NewPool declares a new pool named name, either as a base pool (super ==
// nil) or as a direct subtype of super.
func (s *SkillState) NewPool(name string, super *StoragePool) *StoragePool {
	typeID := s.nextTypeID
	s.nextTypeID++

	var p *StoragePool
	if super == nil {
		p = NewBasePool(name, typeID)
	} else {
		p = super.NewSubPool(name, typeID)
	}
	if f, ok := s.allocators[name]; ok {
		p.SetAllocator(f)
	} else {
		p.SetAllocator(func() SkillObject { return NewSubType(p) })
	}
	s.pools = append(s.pools, p)
	s.byTypeID[typeID] = p
	s.byName[name] = p
	return p
}

// Types returns every pool in the state, in typeID (declaration) order.
func (s *SkillState) Types() []*StoragePool { return s.pools }

// Pool looks up a pool by its absolute type ID.
func (s *SkillState) Pool(typeID int32) (*StoragePool, bool) {
	p, ok := s.byTypeID[typeID]
	return p, ok
}

// PoolByName looks up a pool by its interned name.
func (s *SkillState) PoolByName(name string) (*StoragePool, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Strings returns the state's string pool.
func (s *SkillState) Strings() *StringPool { return s.strings }

// Stats returns a snapshot of the current file shape.
func (s *SkillState) Stats() Stats {
	st := s.stats
	st.Pools = len(s.pools)
	blocks := 0
	for _, p := range s.pools {
		blocks += len(p.blocks)
	}
	st.Blocks = blocks
	st.Strings = s.strings.Count()
	return st
}

// Open parses an existing SKilL file at path into a new SkillState.
func Open(path string, opts ...Option) (*SkillState, error) {
	s := NewState(opts...)
	fs, err := s.cfg.opener(path, false)
	if err != nil {
		return nil, err
	}
	s.fs = fs
	src, err := fs.Bytes()
	if err != nil {
		_ = fs.Close()
		return nil, err
	}
	s.src = src
	s.stats.BytesRead = len(src)
	if len(src) == 0 {
		return s, nil
	}
	if err := s.parseAll(); err != nil {
		_ = fs.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the backing file stream.
func (s *SkillState) Close() error {
	if s.fs == nil {
		return nil
	}
	return s.fs.Close()
}
