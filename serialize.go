package skill

import (
	"context"

	"github.com/skill-lang/skillrt/internal/barrier"
	"github.com/skill-lang/skillrt/internal/stream"
	"github.com/skill-lang/skillrt/internal/varint"
)

// blockPlan is one pool's contribution to the single block a serialize
// call is about to emit: a contiguous span of the base hierarchy's shared
// backing array, and whether the type section must declare this pool as
// newly created (spec §4.6).
type blockPlan struct {
	pool  *StoragePool
	isNew bool
	bpo   int
	count int
}

// fieldListingOut is one field section entry this serialize call is about
// to write, alongside the decisions parseBlock would make reading it back:
// hasType/firstChunk and whether its chunk is a bulk-covering-all-blocks
// chunk or a simple one covering just this new block.
type fieldListingOut struct {
	pool       *StoragePool
	field      *FieldDeclaration
	firstChunk bool
	bulk       bool
}

// Write performs a full rewrite (spec §4.6 "compress" mode): every live
// instance, across every pool, is renumbered into one dense block and the
// entire file at path is replaced. Used for a state's first flush, or any
// time a caller wants deleted instances actually reclaimed (spec §4.2
// delete only marks a slot; compress is what removes it).
func (s *SkillState) Write(path string) error {
	if err := s.prepareForWrite(); err != nil {
		return err
	}
	plans := s.compress()

	fs, err := s.cfg.opener(path, true)
	if err != nil {
		return err
	}
	if err := s.writeBlockTo(fs, 0, plans); err != nil {
		_ = fs.Close()
		return err
	}

	if s.fs != nil {
		_ = s.fs.Close()
	}
	s.fs = fs
	s.src, err = fs.Bytes()
	if err != nil {
		return err
	}
	s.stats.BytesWritten = len(s.src)
	return nil
}

// Append performs an incremental write (spec §4.6 "append" mode): only
// newly created instances and newly introduced field data are emitted as
// one additional block at the end of the currently open file. Append
// requires the state to have been opened from a real path (s.fs != nil)
// and refuses to run if any pool has pending deletions, since reclaiming a
// deleted slot requires the full block renumbering Write performs.
func (s *SkillState) Append() error {
	if s.fs == nil {
		return newErr(KindIO, "Append requires a state opened via Open; use Write for a new file")
	}
	for _, p := range s.pools {
		if p.deletedCount > 0 {
			return newErr(KindPoolFixed, "pool %q has pending deletions; use Write to compress them away before appending", p.name)
		}
	}
	if err := s.prepareForWrite(); err != nil {
		return err
	}

	plans := s.appendPlans()
	priorSize := len(s.src)
	if err := s.writeBlockTo(s.fs, priorSize, plans); err != nil {
		return err
	}
	var err error
	s.src, err = s.fs.Bytes()
	if err != nil {
		return err
	}
	s.stats.BytesWritten = len(s.src)

	for _, pl := range plans {
		pl.pool.updateAfterPrepareAppend()
	}
	return nil
}

func (s *SkillState) prepareForWrite() error {
	for _, p := range s.pools {
		for _, f := range p.dataFields {
			if err := f.EnsureLoaded(s.src); err != nil {
				return err
			}
			f.Compress()
		}
	}
	return nil
}

// writeBlockTo sizes and writes one new block (preceded by the file header
// when atStart == 0) directly into fs, growing it
// via Truncate to exactly the right size before writing a single byte —
// matching spec §4.6's "offsets are computed before any bytes are
// written, so the writer never grows".
func (s *SkillState) writeBlockTo(fs stream.FileStream, atStart int, plans []blockPlan) error {
	headerSize := 0
	if atStart == 0 {
		headerSize = len(magic) + 1
	}

	for _, pl := range plans {
		pl.pool.blocks = append(pl.pool.blocks, Block{BPO: pl.bpo, StaticCount: pl.count})
	}
	staticCountByType := make(map[int32]int, len(plans))
	for _, pl := range plans {
		staticCountByType[pl.pool.typeID] = pl.count
	}
	for _, pl := range plans {
		pl.pool.blocks[len(pl.pool.blocks)-1].DynamicCount = dynamicCountThisBlock(pl.pool, staticCountByType)
	}

	// Register every pool/field name and every live string field value
	// with the string pool before sizing it (spec §4.6 "gather strings").
	for _, pl := range plans {
		s.strings.Add(pl.pool.name)
		data := *pl.pool.base.data
		for _, f := range pl.pool.dataFields {
			s.strings.Add(f.name)
			// A field's first chunk covers every block so far (see the
			// bulk decision below); later chunks cover only the new block.
			blocks := pl.pool.blocks[len(pl.pool.blocks)-1:]
			if len(f.dataChunks) == 0 {
				blocks = pl.pool.blocks
			}
			for _, b := range blocks {
				for i := 0; i < b.StaticCount; i++ {
					obj := data[b.BPO+i]
					if obj == nil {
						continue
					}
					collectStrings(f.fieldType, f.Get(obj), s.strings)
				}
			}
		}
	}

	var strs []string
	if atStart == 0 {
		strs = s.strings.prepareFull()
	} else {
		strs = s.strings.prepareDelta()
	}
	stringSize := sizeOfStringBlock(strs)

	var listings []fieldListingOut
	for _, pl := range plans {
		for _, f := range pl.pool.dataFields {
			firstChunk := len(f.dataChunks) == 0
			bulk := firstChunk && len(pl.pool.blocks) > 1
			listings = append(listings, fieldListingOut{pool: pl.pool, field: f, firstChunk: firstChunk, bulk: bulk})
		}
	}

	// Per-field cumulative data offsets (spec §4.4 osc/obc), computed
	// before any bytes are written.
	endOffsets := make([]int64, len(listings))
	cum := 0
	for i, l := range listings {
		b := l.pool.blocks[len(l.pool.blocks)-1]
		if l.bulk {
			l.field.OffsetBulkChunk(&cum, len(l.pool.blocks))
		} else {
			l.field.OffsetSimpleChunk(&cum, b.BPO, b.StaticCount)
		}
		endOffsets[i] = int64(cum)
	}
	fieldDataSize := cum

	typeSectionSize := sizeOfTypeSection(s, plans)
	fieldSectionSize := sizeOfFieldSection(s, plans, listings, endOffsets)

	blockSize := stringSize + typeSectionSize + fieldSectionSize + fieldDataSize
	out, err := fs.Truncate(int64(atStart + headerSize + blockSize))
	if err != nil {
		return err
	}

	w := stream.NewWriter(out[atStart:])
	if headerSize > 0 {
		if err := writeHeader(w); err != nil {
			return err
		}
	}
	if err := writeStringBlock(w, strs); err != nil {
		return err
	}
	if err := writeTypeSection(w, s, plans); err != nil {
		return err
	}
	if err := writeFieldSection(w, s, plans, listings, endOffsets); err != nil {
		return err
	}

	fieldDataStart := atStart + headerSize + stringSize + typeSectionSize + fieldSectionSize
	var jobs []barrier.Job
	prev := int64(0)
	for i, l := range listings {
		begin := fieldDataStart + int(prev)
		end := fieldDataStart + int(endOffsets[i])
		prev = endOffsets[i]

		l := l
		wr := stream.NewWriter(out[begin:end])
		b := l.pool.blocks[len(l.pool.blocks)-1]
		jobs = append(jobs, func() error {
			if l.bulk {
				return l.field.WriteBulkChunk(wr, len(l.pool.blocks))
			}
			return l.field.WriteSimpleChunk(wr, b.BPO, b.StaticCount)
		})
	}
	if err := barrier.Run(context.Background(), s.cfg.parallelism, jobs); err != nil {
		return err
	}

	for i, l := range listings {
		begin := fieldDataStart + int(endOffsetsPrev(endOffsets, i))
		end := fieldDataStart + int(endOffsets[i])
		if l.bulk {
			l.field.AppendChunk(BulkChunk{Begin: begin, End: end, BlockCount: len(l.pool.blocks)})
		} else {
			b := l.pool.blocks[len(l.pool.blocks)-1]
			l.field.AppendChunk(SimpleChunk{Begin: begin, End: end, BPO: b.BPO, Count: b.StaticCount})
		}
	}
	return nil
}

func endOffsetsPrev(endOffsets []int64, i int) int64 {
	if i == 0 {
		return 0
	}
	return endOffsets[i-1]
}

func writeHeader(w *stream.Writer) error {
	if err := w.Bytes(magic[:]); err != nil {
		return err
	}
	return w.I8(formatVersion)
}

func sizeOfTypeSection(s *SkillState, plans []blockPlan) int {
	n := varint.Len(int64(len(plans)))
	for _, pl := range plans {
		n += varint.Len(s.strings.IDOf(pl.pool.name))
		n++ // isNew byte
		if pl.isNew {
			n++ // hasSuper byte
			if pl.pool.super != nil {
				n += varint.Len(int64(pl.pool.super.typeID))
			}
		}
		n += varint.Len(int64(pl.count))
	}
	return n
}

func writeTypeSection(w *stream.Writer, s *SkillState, plans []blockPlan) error {
	if err := w.V64(int64(len(plans))); err != nil {
		return err
	}
	for _, pl := range plans {
		if err := w.V64(s.strings.IDOf(pl.pool.name)); err != nil {
			return err
		}
		isNew := int8(0)
		if pl.isNew {
			isNew = 1
		}
		if err := w.I8(isNew); err != nil {
			return err
		}
		if pl.isNew {
			hasSuper := int8(0)
			if pl.pool.super != nil {
				hasSuper = 1
			}
			if err := w.I8(hasSuper); err != nil {
				return err
			}
			if pl.pool.super != nil {
				if err := w.V64(int64(pl.pool.super.typeID)); err != nil {
					return err
				}
			}
		}
		if err := w.V64(int64(pl.count)); err != nil {
			return err
		}
	}
	return nil
}

func sizeOfFieldSection(s *SkillState, plans []blockPlan, listings []fieldListingOut, endOffsets []int64) int {
	n := varint.Len(int64(len(plans)))
	i := 0
	for _, pl := range plans {
		n += varint.Len(int64(pl.pool.typeID))
		n += varint.Len(int64(len(pl.pool.dataFields)))
		for range pl.pool.dataFields {
			l := listings[i]
			n += varint.Len(s.strings.IDOf(l.field.name))
			n++ // hasType
			if l.firstChunk {
				n += sizeFieldTypeTag(l.field.fieldType)
			}
			n++ // firstChunk
			n += varint.Len(endOffsets[i])
			i++
		}
	}
	return n
}

// writeFieldSection mirrors sizeOfFieldSection's traversal exactly (every
// pool in plans gets an entry, even one with zero data fields) so the
// buffer it writes into is exactly as large as computed.
func writeFieldSection(w *stream.Writer, s *SkillState, plans []blockPlan, listings []fieldListingOut, endOffsets []int64) error {
	if err := w.V64(int64(len(plans))); err != nil {
		return err
	}
	i := 0
	for _, pl := range plans {
		if err := w.V64(int64(pl.pool.typeID)); err != nil {
			return err
		}
		if err := w.V64(int64(len(pl.pool.dataFields))); err != nil {
			return err
		}
		for range pl.pool.dataFields {
			l := listings[i]
			if err := w.V64(s.strings.IDOf(l.field.name)); err != nil {
				return err
			}
			hasType := int8(0)
			if l.firstChunk {
				hasType = 1
			}
			if err := w.I8(hasType); err != nil {
				return err
			}
			if l.firstChunk {
				if err := writeFieldTypeTag(w, l.field.fieldType); err != nil {
					return err
				}
			}
			firstChunk := int8(0)
			if l.firstChunk {
				firstChunk = 1
			}
			if err := w.I8(firstChunk); err != nil {
				return err
			}
			if err := w.V64(endOffsets[i]); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}

// compress renumbers every live instance (existing and newly made) of
// every base hierarchy into one dense run per pool, replacing each base
// hierarchy's shared backing array and discarding every field's prior
// chunk bookkeeping — the whole file is being rewritten, so prior byte
// offsets are meaningless (spec §4.6 compress / §4.2 "compress reclaims
// deleted slots").
func (s *SkillState) compress() []blockPlan {
	EstablishNextPools(s.pools)

	type span struct {
		pool     *StoragePool
		bpo, cnt int
	}

	var plans []blockPlan
	seen := make(map[*StoragePool]bool)
	for _, p := range s.pools {
		base := p.base
		if seen[base] {
			continue
		}
		seen[base] = true

		var out []SkillObject
		var spans []span
		for cur := base; cur != nil; cur = cur.next {
			start := len(out)
			data := *cur.data
			for _, b := range cur.blocks {
				for i := 0; i < b.StaticCount; i++ {
					obj := data[b.BPO+i]
					if obj != nil && obj.SkillID().Live() {
						out = append(out, obj)
					}
				}
			}
			for _, obj := range cur.newObjects {
				if obj.SkillID() == Deleted {
					continue
				}
				out = append(out, obj)
			}
			spans = append(spans, span{pool: cur, bpo: start, cnt: len(out) - start})
		}
		for i, obj := range out {
			obj.setSkillID(SkillID(i + 1))
		}
		*base.data = out

		for _, sp := range spans {
			sp.pool.blocks = nil
			sp.pool.updateAfterCompress(sp.cnt)
			for _, f := range sp.pool.dataFields {
				f.dataChunks = nil
			}
			plans = append(plans, blockPlan{pool: sp.pool, isNew: true, bpo: sp.bpo, count: sp.cnt})
		}
	}
	return plans
}

// appendPlans grows each base hierarchy's backing array by exactly its
// newObjects, without touching any existing instance's position or ID.
func (s *SkillState) appendPlans() []blockPlan {
	EstablishNextPools(s.pools)

	plans := make([]blockPlan, 0, len(s.pools))
	for _, p := range s.pools {
		bpo := len(*p.base.data)
		count := len(p.newObjects)
		for i, obj := range p.newObjects {
			obj.setSkillID(SkillID(bpo + i + 1))
		}
		*p.base.data = append(*p.base.data, p.newObjects...)
		plans = append(plans, blockPlan{pool: p, isNew: len(p.blocks) == 0, bpo: bpo, count: count})
	}
	return plans
}
