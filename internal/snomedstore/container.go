package snomedstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Cache versions understood by the loader. "17" carries a per-refset
// `langs:u32` column in the RefsetIndex segment that "16" lacks.
const (
	CacheVersion16 = "16"
	CacheVersion17 = "17"
)

// container type tags for the envelope's tagged scalar encoding, inherited
// from the originating runtime's typed-array serialisation.
const (
	tagInt8   = 2
	tagInt16  = 3
	tagInt32  = 4
	tagString = 6 // 1-byte length prefix
)

var le = binary.LittleEndian

// envelopeReader decodes the container's tagged scalar and
// length-prefixed segment encoding.
type envelopeReader struct {
	r   *bufio.Reader
	err error
}

func newEnvelopeReader(r io.Reader) *envelopeReader {
	return &envelopeReader{r: bufio.NewReader(r)}
}

func (e *envelopeReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *envelopeReader) readByte() byte {
	if e.err != nil {
		return 0
	}
	b, err := e.r.ReadByte()
	if err != nil {
		e.fail(err)
		return 0
	}
	return b
}

func (e *envelopeReader) readN(n int) []byte {
	if e.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(e.r, buf); err != nil {
		e.fail(err)
		return nil
	}
	return buf
}

// readString reads a tagged string: the tag must be tagString (type 6 = a
// single-byte length prefix). Any other tag is rejected rather than
// silently truncated or mis-parsed, per the loader's "reject unknown cache
// versions / tag bytes" design note.
func (e *envelopeReader) readString() string {
	tag := e.readByte()
	if e.err != nil {
		return ""
	}
	if tag != tagString {
		e.fail(fmt.Errorf("snomedstore: unsupported string type tag %d (only 1-byte-length tag %d is supported)", tag, tagString))
		return ""
	}
	n := e.readByte()
	b := e.readN(int(n))
	return string(b)
}

// readTaggedInt reads a tagged scalar integer (tag 2/3/4 = i8/i16/i32).
func (e *envelopeReader) readTaggedInt() int32 {
	tag := e.readByte()
	if e.err != nil {
		return 0
	}
	switch tag {
	case tagInt8:
		return int32(int8(e.readByte()))
	case tagInt16:
		b := e.readN(2)
		if e.err != nil {
			return 0
		}
		return int32(int16(le.Uint16(b)))
	case tagInt32:
		b := e.readN(4)
		if e.err != nil {
			return 0
		}
		return int32(le.Uint32(b))
	default:
		e.fail(fmt.Errorf("snomedstore: unsupported scalar type tag %d", tag))
		return 0
	}
}

// readSegment reads a length-prefixed byte segment: `i32 length,
// bytes[length]`, untagged.
func (e *envelopeReader) readSegment() []byte {
	lenBuf := e.readN(4)
	if e.err != nil {
		return nil
	}
	n := int32(le.Uint32(lenBuf))
	if n < 0 {
		e.fail(fmt.Errorf("snomedstore: negative segment length %d", n))
		return nil
	}
	return e.readN(int(n))
}

// readRootList reads `count:i32, id:u64[count]`.
func (e *envelopeReader) readRootList() []uint64 {
	countBuf := e.readN(4)
	if e.err != nil {
		return nil
	}
	n := int32(le.Uint32(countBuf))
	if n < 0 {
		e.fail(fmt.Errorf("snomedstore: negative root-list count %d", n))
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		b := e.readN(8)
		if e.err != nil {
			return nil
		}
		out[i] = le.Uint64(b)
	}
	return out
}

// envelope is the fully decoded container envelope, prior to being wrapped
// as segment readers.
type envelope struct {
	cacheVersion    string
	versionURI      string
	versionDate     string
	strings         []byte
	refs            []byte
	desc            []byte
	words           []byte
	stems           []byte
	concept         []byte
	rel             []byte
	refSetIndex     []byte
	refSetMembers   []byte
	descRef         []byte
	isAIndex        int32
	inactiveRoots   []uint64
	activeRoots     []uint64
	defaultLanguage int32
}

// decodeEnvelope parses the container envelope in its fixed field order.
func decodeEnvelope(r io.Reader) (*envelope, error) {
	e := newEnvelopeReader(r)
	env := &envelope{cacheVersion: e.readString()}
	if e.err == nil && env.cacheVersion != CacheVersion16 && env.cacheVersion != CacheVersion17 {
		return nil, fmt.Errorf("snomedstore: %w: cache version %q", ErrStoreCorrupt, env.cacheVersion)
	}
	env.versionURI = e.readString()
	env.versionDate = e.readString()
	if e.err != nil {
		return nil, e.err
	}
	env.strings = e.readSegment()
	env.refs = e.readSegment()
	env.desc = e.readSegment()
	env.words = e.readSegment()
	env.stems = e.readSegment()
	env.concept = e.readSegment()
	env.rel = e.readSegment()
	env.refSetIndex = e.readSegment()
	env.refSetMembers = e.readSegment()
	env.descRef = e.readSegment()
	env.isAIndex = e.readTaggedInt()
	env.inactiveRoots = e.readRootList()
	env.activeRoots = e.readRootList()
	env.defaultLanguage = e.readTaggedInt()
	if e.err != nil {
		return nil, fmt.Errorf("snomedstore: %w: %v", ErrStoreCorrupt, e.err)
	}
	return env, nil
}

// edition and version are parsed from the 5th and 7th path segments of the
// version URI, e.g. http://snomed.info/sct/900000000000207008/version/20230131.
func parseVersionURI(uri string) (edition, version string) {
	parts := strings.Split(strings.Trim(uri, "/"), "/")
	get := func(i int) string {
		if i >= 0 && i < len(parts) {
			return parts[i]
		}
		return ""
	}
	return get(4), get(6)
}

// isTestingURI reports whether the version URI path contains the
// "/xsct/" extension-specific test segment.
func isTestingURI(uri string) bool {
	return strings.Contains(uri, "/xsct/")
}
