package bin

// References is the variable-length `count:u32, refs:u32[count]` segment
// used for concept parent/descendant/closure lists, stem postings lists and
// refset-member reference arrays.
type References struct {
	buf []byte
}

// NewReferences wraps an existing immutable buffer for reading.
func NewReferences(buf []byte) *References {
	return &References{buf: buf}
}

// Bytes returns the backing buffer.
func (r *References) Bytes() []byte { return r.buf }

// Add writes count then ids, returning the record's offset. Offset 0 is
// the "absent" sentinel, so an empty segment is padded with one empty
// record before the first real one.
func (r *References) Add(ids []uint32) Offset {
	if len(r.buf) == 0 {
		r.buf = append(r.buf, 0, 0, 0, 0)
	}
	off := Offset(len(r.buf))
	var hdr [4]byte
	le.PutUint32(hdr[:], uint32(len(ids)))
	r.buf = append(r.buf, hdr[:]...)
	for _, id := range ids {
		var b [4]byte
		le.PutUint32(b[:], id)
		r.buf = append(r.buf, b[:]...)
	}
	return off
}

// Get returns the ids stored at off, or nil if off is the "absent" or
// "no list" sentinel.
func (r *References) Get(off Offset) ([]uint32, error) {
	if off == 0 || off == NoRef {
		return nil, nil
	}
	if int(off)+4 > len(r.buf) {
		return nil, ErrOutOfRange
	}
	n := int(le.Uint32(r.buf[off : off+4]))
	start := int(off) + 4
	end := start + 4*n
	if end > len(r.buf) {
		return nil, ErrOutOfRange
	}
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = le.Uint32(r.buf[start+4*i : start+4*i+4])
	}
	return out, nil
}

// Contains reports whether id is present in the sorted reference list at
// off, via binary search. The list must be sorted ascending; closure and
// is-a membership arrays are built sorted by the loader.
func (r *References) Contains(off Offset, id uint32) (bool, error) {
	ids, err := r.Get(off)
	if err != nil {
		return false, err
	}
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := (lo + hi) / 2
		if ids[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(ids) && ids[lo] == id, nil
}
