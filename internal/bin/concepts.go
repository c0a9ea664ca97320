package bin

// conceptStride is the fixed 56-byte record size of the Concepts segment,
// sorted ascending by id.
const conceptStride = 56

// status/primitiveness bit layout of Concept.Flags: the low nibble encodes
// status (0 = active), bit 4 (0x10) marks a primitive (vs. fully defined)
// concept.
const (
	statusMask    = 0x0F
	primitiveBit  = 0x10
)

// Concepts is the fixed-stride concept segment.
type Concepts struct {
	buf []byte
}

// NewConcepts wraps an existing immutable buffer for reading.
func NewConcepts(buf []byte) *Concepts { return &Concepts{buf: buf} }

// Bytes returns the backing buffer.
func (c *Concepts) Bytes() []byte { return c.buf }

// Count returns the number of records in the segment.
func (c *Concepts) Count() int { return len(c.buf) / conceptStride }

// Concept is one decoded record of the Concepts segment.
type Concept struct {
	ID              uint64
	Flags           uint8
	Parents         Offset
	Descriptions    Offset
	Inbounds        Offset
	Outbounds       Offset
	Closure         Offset
	Depth           uint8
	Stems           Offset
	Date            uint16
	Module          Offset
	Status          Offset
	Refsets         Offset
	NormalForm      Offset
	InactiveParents Offset
}

// IsActive reports whether the low nibble of Flags is zero.
func (c Concept) IsActive() bool { return c.Flags&statusMask == 0 }

// IsPrimitive reports whether bit 4 of Flags is set.
func (c Concept) IsPrimitive() bool { return c.Flags&primitiveBit != 0 }

func encodeConcept(rec Concept) [conceptStride]byte {
	var b [conceptStride]byte
	le.PutUint64(b[0:8], rec.ID)
	b[8] = rec.Flags
	le.PutUint32(b[9:13], rec.Parents)
	le.PutUint32(b[13:17], rec.Descriptions)
	le.PutUint32(b[17:21], rec.Inbounds)
	le.PutUint32(b[21:25], rec.Outbounds)
	le.PutUint32(b[25:29], rec.Closure)
	b[29] = rec.Depth
	le.PutUint32(b[30:34], rec.Stems)
	le.PutUint16(b[34:36], rec.Date)
	le.PutUint32(b[36:40], rec.Module)
	le.PutUint32(b[40:44], rec.Status)
	le.PutUint32(b[44:48], rec.Refsets)
	le.PutUint32(b[48:52], rec.NormalForm)
	le.PutUint32(b[52:56], rec.InactiveParents)
	return b
}

func decodeConcept(b []byte) Concept {
	return Concept{
		ID:              le.Uint64(b[0:8]),
		Flags:           b[8],
		Parents:         le.Uint32(b[9:13]),
		Descriptions:    le.Uint32(b[13:17]),
		Inbounds:        le.Uint32(b[17:21]),
		Outbounds:       le.Uint32(b[21:25]),
		Closure:         le.Uint32(b[25:29]),
		Depth:           b[29],
		Stems:           le.Uint32(b[30:34]),
		Date:            le.Uint16(b[34:36]),
		Module:          le.Uint32(b[36:40]),
		Status:          le.Uint32(b[40:44]),
		Refsets:         le.Uint32(b[44:48]),
		NormalForm:      le.Uint32(b[48:52]),
		InactiveParents: le.Uint32(b[52:56]),
	}
}

// Add appends a concept record; the loader must append in ascending id
// order to preserve the binary-search invariant.
func (c *Concepts) Add(rec Concept) Offset {
	off := Offset(len(c.buf))
	b := encodeConcept(rec)
	c.buf = append(c.buf, b[:]...)
	return off
}

// Get decodes the record at off. off must be a multiple of 56.
func (c *Concepts) Get(off Offset) (Concept, error) {
	if off%conceptStride != 0 {
		return Concept{}, ErrMisalignedOffset
	}
	if int(off)+conceptStride > len(c.buf) {
		return Concept{}, ErrOutOfRange
	}
	return decodeConcept(c.buf[off : off+conceptStride]), nil
}

// GetByIndex decodes the i'th record (0-based), for full-table iteration.
func (c *Concepts) GetByIndex(i int) (Concept, error) {
	return c.Get(Offset(i * conceptStride))
}

// OffsetOf returns the byte offset of the i'th record.
func (c *Concepts) OffsetOf(i int) Offset { return Offset(i * conceptStride) }

// Find performs a lower-bound binary search for id. If found is true, off
// is the record's byte offset. If found is false, off is the byte offset
// at which a record with this id would be inserted (used only by the
// loader; readers must treat a miss as a miss regardless of off).
func (c *Concepts) Find(id uint64) (off Offset, found bool) {
	n := c.Count()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		rec := decodeConcept(c.buf[mid*conceptStride : mid*conceptStride+conceptStride])
		if rec.ID < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	insertionOff := Offset(lo * conceptStride)
	if lo < n {
		rec := decodeConcept(c.buf[lo*conceptStride : lo*conceptStride+conceptStride])
		if rec.ID == id {
			return insertionOff, true
		}
	}
	return insertionOff, false
}
