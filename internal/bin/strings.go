package bin

// Strings is the length-prefixed UTF-8 string segment: `len:u16,
// bytes:u8[len]` records, appended back to back. Offsets returned by Add
// are stable and monotonically increasing.
type Strings struct {
	buf []byte
}

// NewStrings wraps an existing immutable buffer (e.g. loaded from a
// container) for reading. The returned segment can also be appended to if
// further building is required.
func NewStrings(buf []byte) *Strings {
	return &Strings{buf: buf}
}

// Len returns the size in bytes of the backing buffer.
func (s *Strings) Len() int { return len(s.buf) }

// Bytes returns the backing buffer, for serialisation.
func (s *Strings) Bytes() []byte { return s.buf }

// Add appends a string and returns the offset at which it was written.
func (s *Strings) Add(str string) (Offset, error) {
	if len(str) > 0xFFFF {
		return 0, ErrValueTooLarge
	}
	off := Offset(len(s.buf))
	var hdr [2]byte
	le.PutUint16(hdr[:], uint16(len(str)))
	s.buf = append(s.buf, hdr[:]...)
	s.buf = append(s.buf, str...)
	return off, nil
}

// Get returns the string stored at off.
func (s *Strings) Get(off Offset) (string, error) {
	if int(off)+2 > len(s.buf) {
		return "", ErrOutOfRange
	}
	n := int(le.Uint16(s.buf[off : off+2]))
	start := int(off) + 2
	if start+n > len(s.buf) {
		return "", ErrOutOfRange
	}
	return string(s.buf[start : start+n]), nil
}
