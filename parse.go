package skill

import (
	"context"

	"github.com/skill-lang/skillrt/internal/barrier"
	"github.com/skill-lang/skillrt/internal/stream"
)

// Concrete block wire layout (spec §4.5, §6 — the byte grammar itself is
// defined by the external SKilL reference manual and not reproduced in
// spec.md; this is this runtime's self-consistent concretization, recorded
// as an Open Question resolution in DESIGN.md):
//
//  block        = stringBlock typeSection fieldSection fieldData
//  stringBlock  = v64 count, count x i32 cumulative-end, raw UTF-8 bytes
//  typeSection  = v64 poolCount, poolCount x typeEntry
//  typeEntry    = v64 nameID, u8 isNew,
//                 [isNew: u8 hasSuper, [hasSuper: v64 superTypeID]],
//                 v64 staticCount
//  fieldSection = v64 poolCount, poolCount x poolFields
//  poolFields   = v64 poolTypeID, v64 fieldCount, fieldCount x fieldEntry
//  fieldEntry   = v64 nameID, u8 hasType, [hasType: fieldType tag],
//                 u8 firstChunk, v64 endOffset
//  fieldData    = the concatenated per-field chunk payloads, in the same
//                 order as fieldEntry listings; endOffset is cumulative
//                 from the start of fieldData.
//
// Every block re-lists every pool known so far (staticCount 0 for a pool
// with no new instances this block) and every one of its data fields
// (hasType 0, firstChunk 0 once it has appeared), trading wire size for a
// format where reader and writer share one simple, uniform shape rather
// than sparse per-block deltas.
func (s *SkillState) parseAll() error {
	r := stream.NewReader(s.src)

	hdr, err := r.Bytes(4)
	if err != nil {
		return wrapIO(err, "file magic")
	}
	if hdr[0] != magic[0] || hdr[1] != magic[1] || hdr[2] != magic[2] || hdr[3] != magic[3] {
		return newErrAt(KindBadMagic, 0, "not a SKilL file")
	}
	ver, err := r.I8()
	if err != nil {
		return wrapIO(err, "file version")
	}
	if ver != formatVersion {
		return newErrAt(KindBadMagic, 4, "unsupported format version %d", ver)
	}

	var jobs []barrier.Job
	for !r.EOF() {
		if err := s.parseBlock(r, &jobs); err != nil {
			return err
		}
	}

	EstablishNextPools(s.pools)

	if err := barrier.Run(context.Background(), s.cfg.parallelism, jobs); err != nil {
		return err
	}

	if s.cfg.checkRestrictions {
		if err := s.CheckRestrictions(); err != nil {
			return err
		}
	}
	return nil
}

// CheckRestrictions runs every field's restrictions against every
// non-deleted instance of its owner pool, returning the first violation
// (spec §4.4 Restrictions). parseAll calls this once after decode unless
// WithRestrictionChecks(false) was given; it is also exported so a caller
// can re-check after attaching restrictions to an already-parsed state.
func (s *SkillState) CheckRestrictions() error {
	for _, p := range s.pools {
		for _, f := range p.dataFields {
			if err := f.CheckRestrictions(); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveGroundType maps a bare field-type ID (one that fell through to
// readFieldTypeTag's default case) to its FieldType value. Pool-reference
// IDs resolve unconditionally to a *referenceType bound to that ID: unlike
// the teacher's compiled tdp descriptors, referenceType carries only the
// numeric ID, not a pointer to the target StoragePool, so it never needs
// the target pool to exist yet — this runtime has no forward-reference
// problem to solve with FieldDeclaration's placeholderType/RefineType
// machinery (kept as general API, unused by this parser).
func (s *SkillState) resolveGroundType(id int32) FieldType {
	switch id {
	case TypeIDAnnotation:
		return Annotation
	case TypeIDBool:
		return Bool
	case TypeIDI8:
		return I8
	case TypeIDI16:
		return I16
	case TypeIDI32:
		return I32
	case TypeIDI64:
		return I64
	case TypeIDV64:
		return V64
	case TypeIDF32:
		return F32
	case TypeIDF64:
		return F64
	case TypeIDString:
		return NewStringType(s.strings)
	default:
		return NewReferenceType(id)
	}
}

type typeSectionEntry struct {
	pool        *StoragePool
	staticCount int
}

func (s *SkillState) parseBlock(r *stream.Reader, jobs *[]barrier.Job) error {
	if err := s.strings.AppendBlockPositions(r, s.src, 0); err != nil {
		return err
	}

	entries, err := s.parseTypeSection(r)
	if err != nil {
		return err
	}

	staticCountByType := make(map[int32]int, len(entries))
	for _, e := range entries {
		staticCountByType[e.pool.typeID] = e.staticCount
	}

	// allocateInstances (spec §4.5 step 3): grow each pool's shared base
	// array by its static count for this block, assigning dense skillIDs,
	// then record the block's bookkeeping (bpo/staticCount/dynamicCount).
	for _, e := range entries {
		p := e.pool
		bpo := len(*p.base.data)
		for i := 0; i < e.staticCount; i++ {
			obj := p.newFunc()
			obj.setSkillID(SkillID(bpo + i + 1))
			*p.base.data = append(*p.base.data, obj)
		}
		p.staticDataInstances += e.staticCount
		p.blocks = append(p.blocks, Block{
			BPO:          bpo,
			StaticCount:  e.staticCount,
			DynamicCount: dynamicCountThisBlock(p, staticCountByType),
		})
	}

	listings, err := s.parseFieldSection(r)
	if err != nil {
		return err
	}

	fieldDataStart := r.Pos()
	prevEnd := int64(0)
	for _, l := range listings {
		begin := fieldDataStart + int(prevEnd)
		end := fieldDataStart + int(l.endOffset)
		prevEnd = l.endOffset

		b := l.field.owner.blocks[len(l.field.owner.blocks)-1]
		if l.firstChunk {
			if len(l.field.owner.blocks) > 1 {
				blocks := l.field.owner.blocks
				total := 0
				for _, bl := range blocks {
					total += bl.StaticCount
				}
				l.field.AppendChunk(BulkChunk{Begin: begin, End: end, BlockCount: len(blocks), TotalCount: total})
			} else {
				l.field.AppendChunk(SimpleChunk{Begin: begin, End: end, BPO: b.BPO, Count: b.StaticCount})
			}
		} else {
			l.field.AppendChunk(SimpleChunk{Begin: begin, End: end, BPO: b.BPO, Count: b.StaticCount})
		}
	}
	if err := r.Seek(fieldDataStart + int(prevEnd)); err != nil {
		return wrapIO(err, "field data section")
	}

	for _, l := range listings {
		chunks := l.field.Chunks()
		*jobs = append(*jobs, barrier.Job(l.field.DecodeJob(chunks[len(chunks)-1], s.src)))
	}
	return nil
}

func dynamicCountThisBlock(p *StoragePool, staticCountByType map[int32]int) int {
	n := staticCountByType[p.typeID]
	for _, sub := range p.subPools {
		n += dynamicCountThisBlock(sub, staticCountByType)
	}
	return n
}

func (s *SkillState) parseTypeSection(r *stream.Reader) ([]typeSectionEntry, error) {
	count, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "type section count")
	}
	entries := make([]typeSectionEntry, 0, count)
	for i := int64(0); i < count; i++ {
		nameID, err := r.V64()
		if err != nil {
			return nil, wrapIO(err, "type name id")
		}
		name, _ := s.strings.Get(nameID)

		isNew, err := r.I8()
		if err != nil {
			return nil, wrapIO(err, "type isNew flag")
		}

		var pool *StoragePool
		if isNew != 0 {
			var super *StoragePool
			hasSuper, err := r.I8()
			if err != nil {
				return nil, wrapIO(err, "type hasSuper flag")
			}
			if hasSuper != 0 {
				superID, err := r.V64()
				if err != nil {
					return nil, wrapIO(err, "type super id")
				}
				var ok bool
				super, ok = s.byTypeID[int32(superID)]
				if !ok {
					return nil, newErrAt(KindInvalidPoolIndex, r.Pos(), "type %q declares unknown super type %d", name, superID)
				}
			}
			pool = s.NewPool(name, super)
		} else {
			existing, ok := s.byName[name]
			if !ok {
				return nil, newErrAt(KindInvalidPoolIndex, r.Pos(), "type section references unknown existing type %q", name)
			}
			pool = existing
		}

		staticCount, err := r.V64()
		if err != nil {
			return nil, wrapIO(err, "type static count")
		}
		entries = append(entries, typeSectionEntry{pool: pool, staticCount: int(staticCount)})
	}
	return entries, nil
}

type fieldListing struct {
	field     *FieldDeclaration
	firstChunk bool
	endOffset int64
}

func (s *SkillState) parseFieldSection(r *stream.Reader) ([]fieldListing, error) {
	poolCount, err := r.V64()
	if err != nil {
		return nil, wrapIO(err, "field section pool count")
	}

	var listings []fieldListing
	for i := int64(0); i < poolCount; i++ {
		poolTypeID, err := r.V64()
		if err != nil {
			return nil, wrapIO(err, "field section pool id")
		}
		p, ok := s.byTypeID[int32(poolTypeID)]
		if !ok {
			return nil, newErrAt(KindInvalidPoolIndex, r.Pos(), "field section references unknown pool %d", poolTypeID)
		}

		fieldCount, err := r.V64()
		if err != nil {
			return nil, wrapIO(err, "field section field count")
		}
		for j := int64(0); j < fieldCount; j++ {
			nameID, err := r.V64()
			if err != nil {
				return nil, wrapIO(err, "field name id")
			}
			name, _ := s.strings.Get(nameID)

			hasType, err := r.I8()
			if err != nil {
				return nil, wrapIO(err, "field hasType flag")
			}

			var fd *FieldDeclaration
			if hasType != 0 {
				ft, err := readFieldTypeTag(r, s.resolveGroundType)
				if err != nil {
					return nil, err
				}
				fd = NewDistributedField(name, ft)
				p.AddField(fd)
			} else {
				existing, ok := p.FieldByName(name)
				if !ok {
					return nil, newErrAt(KindInvalidPoolIndex, r.Pos(), "unknown existing field %q on pool %q", name, p.name)
				}
				fd = existing
			}

			firstChunkByte, err := r.I8()
			if err != nil {
				return nil, wrapIO(err, "field firstChunk flag")
			}
			endOffset, err := r.V64()
			if err != nil {
				return nil, wrapIO(err, "field end offset")
			}
			listings = append(listings, fieldListing{field: fd, firstChunk: firstChunkByte != 0, endOffset: endOffset})
		}
	}
	return listings, nil
}
