package snomedstore

import (
	"bytes"
	"encoding/binary"

	"github.com/wardle/go-terminology/internal/bin"
)

// buildTestEnvelope hand-assembles a tiny but structurally valid container
// envelope for unit tests: two concepts in an IS-A chain
// ("Clinical finding" <- "Diabetes mellitus"), one description each, and no
// relationships/refsets (not exercised by the store-level tests).
//
// Concepts are appended in id order (73211009 then 404684003) so
// Concepts.Find's binary-search invariant holds; their fixed 56-byte
// stride makes their offsets (0 and 56) predictable ahead of time.
func buildTestEnvelope() []byte {
	const diabOff bin.Offset = 0
	const rootOff bin.Offset = 56

	strs := bin.NewStrings(nil)
	rootStr, _ := strs.Add("Clinical finding")
	diabStr, _ := strs.Add("Diabetes mellitus")

	descs := bin.NewDescriptions(nil)
	rootDescOff := descs.Add(bin.Description{StrOff: rootStr, Active: true, ID: 1, Lang: 1})
	diabDescOff := descs.Add(bin.Description{StrOff: diabStr, Active: true, ID: 2, Lang: 1})

	descIdx := bin.NewDescriptionIndex(nil)
	descIdx.Add(1, rootDescOff)
	descIdx.Add(2, diabDescOff)

	refs := bin.NewReferences(nil)
	rootClosureOff := refs.Add([]uint32{uint32(diabOff)})
	rootDescsOff := refs.Add([]uint32{uint32(rootDescOff)})
	diabParentsOff := refs.Add([]uint32{uint32(rootOff)})
	diabDescsOff := refs.Add([]uint32{uint32(diabDescOff)})

	concepts := bin.NewConcepts(nil)
	concepts.Add(bin.Concept{ID: 73211009, Flags: 0, Parents: diabParentsOff, Closure: bin.NoRef, Descriptions: diabDescsOff})
	concepts.Add(bin.Concept{ID: 404684003, Flags: 0, Closure: rootClosureOff, Descriptions: rootDescsOff, Parents: bin.NoRef})

	refsetIdx := bin.NewRefsetIndex(nil, false)
	refsetMembers := bin.NewRefsetMembers(nil)
	rels := bin.NewRelationships(nil)

	var buf bytes.Buffer
	writeString(&buf, "16")
	writeString(&buf, "http://snomed.info/sct/900000000000207008/version/20230131")
	writeString(&buf, "20230131")
	writeSegment(&buf, strs.Bytes())
	writeSegment(&buf, refs.Bytes())
	writeSegment(&buf, descs.Bytes())
	writeSegment(&buf, nil) // words
	writeSegment(&buf, nil) // stems
	writeSegment(&buf, concepts.Bytes())
	writeSegment(&buf, rels.Bytes())
	writeSegment(&buf, refsetIdx.Bytes())
	writeSegment(&buf, refsetMembers.Bytes())
	writeSegment(&buf, descIdx.Bytes())
	writeTaggedInt32(&buf, 0)                // isAIndex
	writeRootList(&buf, nil)                 // inactive roots
	writeRootList(&buf, []uint64{404684003}) // active roots
	writeTaggedInt32(&buf, 1)                // default language
	return buf.Bytes()
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte(tagString)
	buf.WriteByte(byte(len(s)))
	buf.WriteString(s)
}

func writeSegment(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func writeTaggedInt32(buf *bytes.Buffer, v int32) {
	buf.WriteByte(tagInt32)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeRootList(buf *bytes.Buffer, ids []uint64) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(ids)))
	buf.Write(n[:])
	for _, id := range ids {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], id)
		buf.Write(b[:])
	}
}
