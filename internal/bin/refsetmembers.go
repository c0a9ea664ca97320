package bin

// RefsetMember is one decoded membership record. GUID/Module/Date are only
// populated when the record's segment was written with IDs (ids_flag=1).
type RefsetMember struct {
	HasID  bool
	GUID   [16]byte
	Module Offset
	Date   uint16
	Kind   uint8
	Ref    Offset // concept offset of the referenced member
	Values Offset // offset into References (typed extra column values) or 0
}

// memberSize returns the on-disk size of one member record given whether
// the segment carries ids: 9 bytes without, 31 bytes with (16+4+2+9).
func memberSize(hasID bool) int {
	if hasID {
		return 31
	}
	return 9
}

// RefsetMembers is the variable-length reference-set membership segment:
// `count:u32, ids_flag:u8`, then `count` fixed-size member records.
type RefsetMembers struct {
	buf []byte
}

// NewRefsetMembers wraps an existing immutable buffer for reading.
func NewRefsetMembers(buf []byte) *RefsetMembers { return &RefsetMembers{buf: buf} }

// Bytes returns the backing buffer.
func (m *RefsetMembers) Bytes() []byte { return m.buf }

// Add writes a membership list at the current append position and returns
// its offset. hasID controls the per-record layout for the whole list;
// offset 0 is the "absent" sentinel, so an empty segment is padded with
// one empty list before the first real one.
func (m *RefsetMembers) Add(hasID bool, members []RefsetMember) Offset {
	if len(m.buf) == 0 {
		m.buf = append(m.buf, 0, 0, 0, 0, 0)
	}
	off := Offset(len(m.buf))
	var hdr [5]byte
	le.PutUint32(hdr[0:4], uint32(len(members)))
	if hasID {
		hdr[4] = 1
	}
	m.buf = append(m.buf, hdr[:]...)
	for _, rec := range members {
		if hasID {
			m.buf = append(m.buf, rec.GUID[:]...)
			var b [6]byte
			le.PutUint32(b[0:4], rec.Module)
			le.PutUint16(b[4:6], rec.Date)
			m.buf = append(m.buf, b[:]...)
		}
		var b [9]byte
		b[0] = rec.Kind
		le.PutUint32(b[1:5], rec.Ref)
		le.PutUint32(b[5:9], rec.Values)
		m.buf = append(m.buf, b[:]...)
	}
	return off
}

// Get returns the member list at off, or nil if off is the "absent"
// sentinel.
func (m *RefsetMembers) Get(off Offset) ([]RefsetMember, error) {
	if off == 0 || off == NoRef {
		return nil, nil
	}
	if int(off)+5 > len(m.buf) {
		return nil, ErrOutOfRange
	}
	count := int(le.Uint32(m.buf[off : off+4]))
	hasID := m.buf[off+4] != 0
	pos := int(off) + 5
	stride := memberSize(hasID)
	out := make([]RefsetMember, count)
	for i := 0; i < count; i++ {
		if pos+stride > len(m.buf) {
			return nil, ErrOutOfRange
		}
		rec := RefsetMember{HasID: hasID}
		p := pos
		if hasID {
			copy(rec.GUID[:], m.buf[p:p+16])
			p += 16
			rec.Module = le.Uint32(m.buf[p : p+4])
			p += 4
			rec.Date = le.Uint16(m.buf[p : p+2])
			p += 2
		}
		rec.Kind = m.buf[p]
		rec.Ref = le.Uint32(m.buf[p+1 : p+5])
		rec.Values = le.Uint32(m.buf[p+5 : p+9])
		out[i] = rec
		pos += stride
	}
	return out, nil
}
