package bin

// refsetIndexStrideV16 and refsetIndexStrideV17 are the two fixed record
// sizes of the RefsetIndex segment: cache version "17" adds a per-refset
// `langs:u32` column that "16" lacks.
const (
	refsetIndexStrideV16 = 28
	refsetIndexStrideV17 = 32
)

// RefsetEntry is one decoded record of the RefsetIndex segment.
type RefsetEntry struct {
	Definition Offset // concept offset of the defining concept
	Filename   Offset // string offset
	ByRef      Offset // offset into a members-by-reference sorted view
	ByName     Offset // offset into a members-by-name sorted view
	FieldTypes Offset
	Name       Offset // string offset
	FieldNames Offset
	Langs      Offset // only present when the segment is language-aware (cache v17)
	HasLangs   bool
}

// RefsetIndex is the fixed-stride refset-index segment, addressed by
// record index (0..Count), not byte offset - the only segment with that
// convention.
type RefsetIndex struct {
	buf      []byte
	hasLangs bool
}

// NewRefsetIndex wraps an existing immutable buffer for reading. hasLangs
// must reflect the container's cache version (v17 = true, v16 = false).
func NewRefsetIndex(buf []byte, hasLangs bool) *RefsetIndex {
	return &RefsetIndex{buf: buf, hasLangs: hasLangs}
}

func (x *RefsetIndex) stride() int {
	if x.hasLangs {
		return refsetIndexStrideV17
	}
	return refsetIndexStrideV16
}

// Bytes returns the backing buffer.
func (x *RefsetIndex) Bytes() []byte { return x.buf }

// Count returns the number of refset-index records.
func (x *RefsetIndex) Count() int { return len(x.buf) / x.stride() }

// Add appends a record and returns its record index (not byte offset).
func (x *RefsetIndex) Add(rec RefsetEntry) int {
	idx := x.Count()
	stride := x.stride()
	b := make([]byte, stride)
	le.PutUint32(b[0:4], rec.Definition)
	le.PutUint32(b[4:8], rec.Filename)
	le.PutUint32(b[8:12], rec.ByRef)
	le.PutUint32(b[12:16], rec.ByName)
	le.PutUint32(b[16:20], rec.FieldTypes)
	le.PutUint32(b[20:24], rec.Name)
	le.PutUint32(b[24:28], rec.FieldNames)
	if x.hasLangs {
		le.PutUint32(b[28:32], rec.Langs)
	}
	x.buf = append(x.buf, b...)
	return idx
}

// Get decodes the record at index i.
func (x *RefsetIndex) Get(i int) (RefsetEntry, error) {
	stride := x.stride()
	off := i * stride
	if off < 0 || off+stride > len(x.buf) {
		return RefsetEntry{}, ErrOutOfRange
	}
	b := x.buf[off : off+stride]
	rec := RefsetEntry{
		Definition: le.Uint32(b[0:4]),
		Filename:   le.Uint32(b[4:8]),
		ByRef:      le.Uint32(b[8:12]),
		ByName:     le.Uint32(b[12:16]),
		FieldTypes: le.Uint32(b[16:20]),
		Name:       le.Uint32(b[20:24]),
		FieldNames: le.Uint32(b[24:28]),
	}
	if x.hasLangs {
		rec.Langs = le.Uint32(b[28:32])
		rec.HasLangs = true
	}
	return rec, nil
}
