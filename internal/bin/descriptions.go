package bin

// descriptionStride is the fixed 40-byte record size of the Descriptions
// segment.
const descriptionStride = 40

// Descriptions is the fixed-stride description segment.
type Descriptions struct {
	buf []byte
}

// NewDescriptions wraps an existing immutable buffer for reading.
func NewDescriptions(buf []byte) *Descriptions { return &Descriptions{buf: buf} }

// Bytes returns the backing buffer.
func (d *Descriptions) Bytes() []byte { return d.buf }

// Count returns the number of records in the segment.
func (d *Descriptions) Count() int { return len(d.buf) / descriptionStride }

// Description is one decoded record of the Descriptions segment.
type Description struct {
	StrOff      Offset
	Active      bool
	ID          uint64
	ConceptIx   Offset
	ModuleIx    Offset
	KindIx      Offset
	Caps        uint32
	Date        uint16
	Lang        uint8
	RefsetsOff  Offset
	ValuesetOff Offset
}

// Add appends a description record and returns its offset.
func (d *Descriptions) Add(rec Description) Offset {
	off := Offset(len(d.buf))
	var b [descriptionStride]byte
	le.PutUint32(b[0:4], rec.StrOff)
	if rec.Active {
		b[4] = 1
	}
	le.PutUint64(b[5:13], rec.ID)
	le.PutUint32(b[13:17], rec.ConceptIx)
	le.PutUint32(b[17:21], rec.ModuleIx)
	le.PutUint32(b[21:25], rec.KindIx)
	le.PutUint32(b[25:29], rec.Caps)
	le.PutUint16(b[29:31], rec.Date)
	b[31] = rec.Lang
	le.PutUint32(b[32:36], rec.RefsetsOff)
	le.PutUint32(b[36:40], rec.ValuesetOff)
	d.buf = append(d.buf, b[:]...)
	return off
}

// Get decodes the record at off. off must be a multiple of 40 -
// misalignment is a programmer bug and fails fast.
func (d *Descriptions) Get(off Offset) (Description, error) {
	if off%descriptionStride != 0 {
		return Description{}, ErrMisalignedOffset
	}
	if int(off)+descriptionStride > len(d.buf) {
		return Description{}, ErrOutOfRange
	}
	b := d.buf[off : off+descriptionStride]
	return Description{
		StrOff:      le.Uint32(b[0:4]),
		Active:      b[4] != 0,
		ID:          le.Uint64(b[5:13]),
		ConceptIx:   le.Uint32(b[13:17]),
		ModuleIx:    le.Uint32(b[17:21]),
		KindIx:      le.Uint32(b[21:25]),
		Caps:        le.Uint32(b[25:29]),
		Date:        le.Uint16(b[29:31]),
		Lang:        b[31],
		RefsetsOff:  le.Uint32(b[32:36]),
		ValuesetOff: le.Uint32(b[36:40]),
	}, nil
}
