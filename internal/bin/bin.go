// Package bin provides typed, offset-addressed views over packed byte
// buffers: the segment primitives of the SNOMED CT binary store.
//
// Every segment is a pair of types - a Reader over an immutable slice and a
// Writer appending to a build-time buffer - so a reader can never
// accidentally mutate the buffer it is examining. Writers return the byte
// Offset at which a record was written; that offset is the cross-segment
// pointer used by every other segment to refer back into this one.
package bin

import (
	"encoding/binary"
	"errors"
)

// Offset is a byte offset into the owning segment. Offset 0 conventionally
// means "absent" on optional fields; NoRef means "no list" on reference
// fields.
type Offset = uint32

// NoRef is the sentinel written into a `refs`-style field to mean "no list".
const NoRef uint32 = 0xFFFFFFFF

var (
	// ErrValueTooLarge is returned by Strings.Add when the encoded UTF-8
	// form of a string does not fit in a u16 length prefix.
	ErrValueTooLarge = errors.New("bin: value too large for u16 length prefix")
	// ErrMisalignedOffset is returned by any fixed-stride reader given an
	// offset that is not a multiple of the segment's record size.
	ErrMisalignedOffset = errors.New("bin: misaligned offset")
	// ErrOutOfRange is returned when an offset or index falls outside the
	// bounds of the segment's backing buffer.
	ErrOutOfRange = errors.New("bin: offset out of range")
)

var le = binary.LittleEndian
