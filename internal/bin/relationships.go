package bin

// relationshipStride is the fixed 40-byte record size of the Relationships
// segment.
const relationshipStride = 40

// Relationships is the fixed-stride relationship segment.
type Relationships struct {
	buf []byte
}

// NewRelationships wraps an existing immutable buffer for reading.
func NewRelationships(buf []byte) *Relationships { return &Relationships{buf: buf} }

// Bytes returns the backing buffer.
func (r *Relationships) Bytes() []byte { return r.buf }

// Count returns the number of records in the segment.
func (r *Relationships) Count() int { return len(r.buf) / relationshipStride }

// Relationship is one decoded record of the Relationships segment.
type Relationship struct {
	Source   Offset // concept offset of the source concept
	Target   Offset // concept offset of the target concept
	Type     Offset // concept offset of the relationship type
	Module   Offset
	Kind     Offset
	Modifier Offset
	Date     uint16
	Active   bool
	Defining bool
	Group    int32
	ID       uint64
}

// Add appends a relationship record and returns its offset.
func (r *Relationships) Add(rec Relationship) Offset {
	off := Offset(len(r.buf))
	var b [relationshipStride]byte
	le.PutUint32(b[0:4], rec.Source)
	le.PutUint32(b[4:8], rec.Target)
	le.PutUint32(b[8:12], rec.Type)
	le.PutUint32(b[12:16], rec.Module)
	le.PutUint32(b[16:20], rec.Kind)
	le.PutUint32(b[20:24], rec.Modifier)
	le.PutUint16(b[24:26], rec.Date)
	if rec.Active {
		b[26] = 1
	}
	if rec.Defining {
		b[27] = 1
	}
	le.PutUint32(b[28:32], uint32(rec.Group))
	le.PutUint64(b[32:40], rec.ID)
	r.buf = append(r.buf, b[:]...)
	return off
}

// Get decodes the record at off. off must be a multiple of 40.
func (r *Relationships) Get(off Offset) (Relationship, error) {
	if off%relationshipStride != 0 {
		return Relationship{}, ErrMisalignedOffset
	}
	if int(off)+relationshipStride > len(r.buf) {
		return Relationship{}, ErrOutOfRange
	}
	b := r.buf[off : off+relationshipStride]
	return Relationship{
		Source:   le.Uint32(b[0:4]),
		Target:   le.Uint32(b[4:8]),
		Type:     le.Uint32(b[8:12]),
		Module:   le.Uint32(b[12:16]),
		Kind:     le.Uint32(b[16:20]),
		Modifier: le.Uint32(b[20:24]),
		Date:     le.Uint16(b[24:26]),
		Active:   b[26] != 0,
		Defining: b[27] != 0,
		Group:    int32(le.Uint32(b[28:32])),
		ID:       le.Uint64(b[32:40]),
	}, nil
}
