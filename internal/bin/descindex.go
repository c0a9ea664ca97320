package bin

// descIndexStride is the fixed 12-byte record size of the description
// index segment: id:u64, desc_off:u32, sorted ascending by id.
const descIndexStride = 12

// DescriptionIndex maps description id to the byte offset of its record in
// the Descriptions segment, sorted by id to support binary search.
type DescriptionIndex struct {
	buf []byte
}

// NewDescriptionIndex wraps an existing immutable buffer for reading.
func NewDescriptionIndex(buf []byte) *DescriptionIndex { return &DescriptionIndex{buf: buf} }

// Bytes returns the backing buffer.
func (x *DescriptionIndex) Bytes() []byte { return x.buf }

// Count returns the number of index entries.
func (x *DescriptionIndex) Count() int { return len(x.buf) / descIndexStride }

func (x *DescriptionIndex) entry(i int) (uint64, Offset) {
	b := x.buf[i*descIndexStride : i*descIndexStride+descIndexStride]
	return le.Uint64(b[0:8]), le.Uint32(b[8:12])
}

// Add appends an index entry; entries must be appended in ascending id
// order by the loader.
func (x *DescriptionIndex) Add(id uint64, descOff Offset) Offset {
	off := Offset(len(x.buf))
	var b [descIndexStride]byte
	le.PutUint64(b[0:8], id)
	le.PutUint32(b[8:12], descOff)
	x.buf = append(x.buf, b[:]...)
	return off
}

// Find performs a binary search for id, returning the description offset
// and whether it was found.
func (x *DescriptionIndex) Find(id uint64) (descOff Offset, found bool) {
	n := x.Count()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		eid, _ := x.entry(mid)
		if eid < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n {
		eid, off := x.entry(lo)
		if eid == id {
			return off, true
		}
	}
	return 0, false
}
