package skill

import "sort"

// Block records one file block's contribution to a pool (spec §3 "Block
// invariants"): bpo is the absolute index into the base pool's backing
// array where this block's static instances begin; dynamicCount includes
// subtype instances written as part of the same block, staticCount counts
// only instances whose dynamic type is exactly this pool's type.
type Block struct {
	BPO          int
	DynamicCount int
	StaticCount  int
}

// StoragePool is the non-generic pool type (spec §3 StoragePool<T,B>,
// Design Notes §9's "AnyPool"): a node in the type forest, sharing one
// contiguous backing array with every other pool in its base hierarchy.
//
// The original's StoragePool<T,B> is collapsed here to a single concrete
// Go type whose backing array element type is the SkillObject interface,
// rather than a pair of generic parameters threaded through unchecked
// downcasts. Typed, per-schema access (what the generic T parameter was
// for) is layered on top by the thin generic Pool[T] wrapper below — this
// *is* Design Notes §9's "non-generic pool interface carries operations
// that do not mention T... the typed façade is a thin wrapper", just with
// StoragePool itself playing the AnyPool role directly instead of through
// a separate interface, since Go's interface satisfaction already gives
// every caller the non-generic view for free.
type StoragePool struct {
	name                string
	typeID              int32
	super               *StoragePool
	base                *StoragePool
	typeHierarchyHeight int
	next                *StoragePool

	data *[]SkillObject // shared with every pool in this base hierarchy

	blocks              []Block
	newObjects          []SkillObject
	staticDataInstances int
	deletedCount        int

	fixed      bool
	cachedSize int

	dataFields []*FieldDeclaration // index >= 1
	autoFields []*FieldDeclaration // index <= 0, stored at position -index

	subPools []*StoragePool // direct children, in declaration order

	newFunc func() SkillObject // set by a generated binding; nil for a purely generic pool
}

// NewBasePool creates a new root pool: the start of a type hierarchy,
// owning a fresh backing array.
func NewBasePool(name string, typeID int32) *StoragePool {
	data := make([]SkillObject, 0)
	p := &StoragePool{name: name, typeID: typeID, data: &data}
	p.base = p
	return p
}

// NewSubPool creates a pool for a direct subtype of p, sharing p's base
// hierarchy's backing array.
func (p *StoragePool) NewSubPool(name string, typeID int32) *StoragePool {
	sub := &StoragePool{
		name:                name,
		typeID:              typeID,
		super:               p,
		base:                p.base,
		typeHierarchyHeight: p.typeHierarchyHeight + 1,
		data:                p.base.data,
	}
	p.subPools = append(p.subPools, sub)
	return sub
}

// SetAllocator installs the constructor a generated binding uses for Make;
// a pool with no allocator rejects Make (spec §4.2 "make() on a generic
// pool fails (reflective creation disallowed)").
func (p *StoragePool) SetAllocator(f func() SkillObject) { p.newFunc = f }

// Name returns the pool's interned type name.
func (p *StoragePool) Name() string { return p.name }

// TypeID returns this pool's stable type ID.
func (p *StoragePool) TypeID() int32 { return p.typeID }

// SuperPool returns the direct parent pool, or nil iff p is a base pool.
func (p *StoragePool) SuperPool() *StoragePool { return p.super }

// BasePool returns the root of p's type hierarchy (p itself, if p is the
// base).
func (p *StoragePool) BasePool() *StoragePool { return p.base }

// TypeHierarchyHeight returns p's depth below its base pool (0 for the
// base itself).
func (p *StoragePool) TypeHierarchyHeight() int { return p.typeHierarchyHeight }

// NextPool returns the next pool in weak type order within this base
// hierarchy, or nil at the end (spec §3 "Weak type order").
func (p *StoragePool) NextPool() *StoragePool { return p.next }

// SubPools returns the direct children of p in declaration order.
func (p *StoragePool) SubPools() []*StoragePool { return p.subPools }

// Blocks returns the per-file-block bookkeeping records for this pool.
func (p *StoragePool) Blocks() []Block { return p.blocks }

// Fixed reports whether structural mutation of this pool is currently
// disallowed (spec §4.2 Fix/unfix).
func (p *StoragePool) Fixed() bool { return p.fixed }

// DataFields returns the pool's data field declarations (index >= 1).
func (p *StoragePool) DataFields() []*FieldDeclaration { return p.dataFields }

// AutoFields returns the pool's auto field declarations (index <= 0).
func (p *StoragePool) AutoFields() []*FieldDeclaration { return p.autoFields }

// AddField appends a newly-encountered data field declaration to this
// pool, assigning it the next positive index (spec §4.5 step 4).
func (p *StoragePool) AddField(f *FieldDeclaration) {
	f.owner = p
	f.index = len(p.dataFields) + 1
	p.dataFields = append(p.dataFields, f)
}

// AddKnownField registers a field statically, as a generated binding's
// addKnownField would (spec §6 API surface), using the same indexing as
// AddField.
func (p *StoragePool) AddKnownField(f *FieldDeclaration) { p.AddField(f) }

// FieldByName finds a data field declaration by name, used when a parsed
// block reuses a field that already exists (spec §4.5 step 4: "if new,
// create a field... else match by name").
func (p *StoragePool) FieldByName(name string) (*FieldDeclaration, bool) {
	for _, f := range p.dataFields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// GetByID returns the instance with the given ID from this pool's base
// array, or (nil, false) if out of range or unassigned/deleted. O(1) (spec
// §4.2 getByID).
func (p *StoragePool) GetByID(id SkillID) (SkillObject, bool) {
	if !id.Live() {
		return nil, false
	}
	idx := id.Index()
	data := *p.base.data
	if idx < 0 || idx >= len(data) {
		return nil, false
	}
	obj := data[idx]
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// Size returns the number of non-deleted live+new instances of this pool's
// type and all subtypes (spec §4.2 size). O(1) once fixed.
func (p *StoragePool) Size() int {
	if p.fixed {
		return p.cachedSize
	}
	n := p.StaticSize() - p.deletedCount
	for _, sub := range p.subPools {
		n += sub.Size()
	}
	return n
}

// StaticSize returns staticDataInstances + len(newObjects) (spec §4.2).
func (p *StoragePool) StaticSize() int {
	return p.staticDataInstances + len(p.newObjects)
}

// DeletedCount returns the number of instances marked deleted since the
// last compress.
func (p *StoragePool) DeletedCount() int { return p.deletedCount }

// NewObjects returns the instances created in memory since the last flush.
func (p *StoragePool) NewObjects() []SkillObject { return p.newObjects }

// Add registers a newly constructed instance with this pool (spec §4.2
// add): fails if the pool is fixed.
func (p *StoragePool) Add(obj SkillObject) error {
	if p.fixed {
		return newErr(KindPoolFixed, "cannot add to fixed pool %q", p.name)
	}
	obj.setSkillID(Unassigned)
	p.newObjects = append(p.newObjects, obj)
	return nil
}

// Make constructs and registers a new default-initialized instance using
// the allocator a generated binding installed via SetAllocator. A purely
// generic pool (no allocator) rejects Make, per spec §4.2.
func (p *StoragePool) Make() (SkillObject, error) {
	if p.newFunc == nil {
		return nil, newErr(KindPoolFixed, "pool %q has no allocator: reflective creation disallowed", p.name)
	}
	obj := p.newFunc()
	if err := p.Add(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete marks obj deleted; idempotent (spec §4.2 delete). The instance's
// base-array slot is retained until the next compress.
func (p *StoragePool) Delete(obj SkillObject) {
	if obj.SkillID() == Deleted {
		return
	}
	obj.setSkillID(Deleted)
	p.deletedCount++
}

// updateAfterCompress resets transient bookkeeping once a full rewrite has
// folded every live instance (existing and new) of this pool into a
// single fresh block; newObjects and pending deletions are both cleared
// since they are now permanent block data (spec §4.6 compress).
func (p *StoragePool) updateAfterCompress(staticCount int) {
	p.staticDataInstances = staticCount
	p.newObjects = nil
	p.deletedCount = 0
}

// updateAfterPrepareAppend folds this round's newObjects into permanent
// static storage after a successful incremental append (spec §4.6
// append).
func (p *StoragePool) updateAfterPrepareAppend() {
	p.staticDataInstances += len(p.newObjects)
	p.newObjects = nil
}

// fix sets cachedSize on p and propagates dynamic sizes to ancestors;
// callers must process a full hierarchy in reverse-typeID order so
// children are already cached before their parent reads them (spec §4.2
// "fixed(pools)").
func (p *StoragePool) fix() {
	p.cachedSize = p.StaticSize() - p.deletedCount
	for _, sub := range p.subPools {
		p.cachedSize += sub.cachedSize
	}
	p.fixed = true
}

func (p *StoragePool) unfix() {
	p.fixed = false
}

// Fix fixes every pool in pools, processing them in reverse type-ID order
// so each pool's subtypes are already fixed before it computes its own
// cachedSize (spec §4.2 Fix/unfix).
func Fix(pools []*StoragePool) {
	ordered := append([]*StoragePool(nil), pools...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].typeID > ordered[j].typeID })
	for _, p := range ordered {
		p.fix()
	}
}

// Unfix clears the fixed flag on every pool in pools.
func Unfix(pools []*StoragePool) {
	for _, p := range pools {
		p.unfix()
	}
}

// Iterator walks all blocks of this pool and its subtypes in weak type
// order, then all newObjects across the hierarchy (spec §4.2 iterator()).
func (p *StoragePool) Iterator() func(yield func(SkillObject) bool) {
	return func(yield func(SkillObject) bool) {
		data := *p.base.data
		for cur := p; cur != nil; cur = cur.next {
			if !isDescendantOrSelf(p, cur) {
				break
			}
			for _, b := range cur.blocks {
				for i := 0; i < b.StaticCount; i++ {
					obj := data[b.BPO+i]
					if obj != nil && obj.SkillID().Live() {
						if !yield(obj) {
							return
						}
					}
				}
			}
		}
		for cur := p; cur != nil; cur = cur.next {
			if !isDescendantOrSelf(p, cur) {
				break
			}
			for _, obj := range cur.newObjects {
				if !yield(obj) {
					return
				}
			}
		}
	}
}

// isDescendantOrSelf reports whether cur is p or a (transitive) subtype of
// p, using typeHierarchyHeight plus the weak-type-order contiguity
// invariant: since establishNextPools lays the forest out in DFS
// pre-order, p's descendants are exactly the maximal run starting at p
// whose height stays strictly greater than p's, once cur != p.
func isDescendantOrSelf(p, cur *StoragePool) bool {
	if cur == p {
		return true
	}
	return cur.typeHierarchyHeight > p.typeHierarchyHeight
}

// TypeOrderIterator iterates in pool-weak-type order and, per pool, yields
// existing instances then new objects (spec §4.2 typeOrderIterator()),
// unlike Iterator which groups all existing instances across the whole
// subtree before any new object.
func (p *StoragePool) TypeOrderIterator() func(yield func(SkillObject) bool) {
	return func(yield func(SkillObject) bool) {
		data := *p.base.data
		for cur := p; cur != nil; cur = cur.next {
			if !isDescendantOrSelf(p, cur) {
				break
			}
			for _, b := range cur.blocks {
				for i := 0; i < b.StaticCount; i++ {
					obj := data[b.BPO+i]
					if obj != nil && obj.SkillID().Live() {
						if !yield(obj) {
							return
						}
					}
				}
			}
			for _, obj := range cur.newObjects {
				if !yield(obj) {
					return
				}
			}
		}
	}
}

// EstablishNextPools computes NextPool for every pool reachable from pools
// so that, within each base hierarchy, iteration yields depth-first
// pre-order (spec §4.2 establishNextPools): P.nextPool is the next pool in
// the hierarchy's DFS pre-order, or nil at the end of that hierarchy.
//
// The reference algorithm described by spec §4.2 is a single reverse
// sweep over the type list maintaining a per-base-index "last unlinked
// descendant" map. That sweep is equivalent to — but harder to verify by
// inspection than — directly walking each base hierarchy's child lists
// (already maintained by NewSubPool in declaration order) and chaining
// consecutive pre-order visits. Both are O(n) over the full pool forest;
// this implementation takes the directly-verifiable form and records the
// equivalence here rather than the terser reverse-sweep, since it cannot
// be checked by running the test suite before shipping.
func EstablishNextPools(pools []*StoragePool) {
	seen := make(map[*StoragePool]bool, len(pools))
	for _, p := range pools {
		base := p.base
		if seen[base] {
			continue
		}
		seen[base] = true
		order := preorder(base, nil)
		for i, cur := range order {
			if i+1 < len(order) {
				cur.next = order[i+1]
			} else {
				cur.next = nil
			}
		}
	}
}

func preorder(p *StoragePool, into []*StoragePool) []*StoragePool {
	into = append(into, p)
	for _, c := range p.subPools {
		into = preorder(c, into)
	}
	return into
}

// Pool[T] is a thin typed façade over StoragePool for callers (generated
// bindings, or tests) that know their concrete SkillObject type, matching
// Design Notes §9's typed-façade-over-non-generic-core split.
type Pool[T SkillObject] struct {
	*StoragePool
}

// NewPool wraps an existing StoragePool with a typed façade.
func NewPool[T SkillObject](p *StoragePool) Pool[T] { return Pool[T]{p} }

// GetByID returns the typed instance with the given ID.
func (p Pool[T]) GetByID(id SkillID) (T, bool) {
	var zero T
	obj, ok := p.StoragePool.GetByID(id)
	if !ok {
		return zero, false
	}
	t, ok := obj.(T)
	return t, ok
}
