// Package storetest builds small in-memory SNOMED stores for tests,
// computing the derived segment content (closure arrays, inbound and
// outbound relationship lists, description indexes) that the production
// loader reads pre-computed from a container.
package storetest

import (
	"sort"

	"github.com/wardle/go-terminology/internal/bin"
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// IsA is the SNOMED CT "is a" relationship-type concept, registered in
// every built store.
const IsA uint64 = 116680003

// Desc declares one description of a concept under construction.
type Desc struct {
	Term     string
	Lang     uint8
	Inactive bool
}

type conceptSpec struct {
	id        uint64
	primitive bool
	inactive  bool
	parents   []uint64
	descs     []Desc
}

type relSpec struct {
	source, typ, target uint64
	group               int32
}

type refsetSpec struct {
	definition uint64
	members    []uint64
}

// Builder accumulates concepts, relationships and refsets, then derives a
// complete Store.
type Builder struct {
	concepts map[uint64]*conceptSpec
	rels     []relSpec
	refsets  []refsetSpec
}

// NewBuilder returns a Builder pre-seeded with the is-a relationship-type
// concept.
func NewBuilder() *Builder {
	b := &Builder{concepts: make(map[uint64]*conceptSpec)}
	b.AddConcept(IsA, true, nil, Desc{Term: "Is a", Lang: 1})
	return b
}

// AddConcept registers a concept with its parents and descriptions. The
// first description is conventionally the display term.
func (b *Builder) AddConcept(id uint64, primitive bool, parents []uint64, descs ...Desc) {
	b.concepts[id] = &conceptSpec{id: id, primitive: primitive, parents: parents, descs: descs}
}

// AddInactiveConcept registers an inactive concept.
func (b *Builder) AddInactiveConcept(id uint64, parents []uint64, descs ...Desc) {
	b.concepts[id] = &conceptSpec{id: id, inactive: true, parents: parents, descs: descs}
}

// AddRelationship registers an active defining non-is-a relationship.
func (b *Builder) AddRelationship(source, typ, target uint64, group int32) {
	b.rels = append(b.rels, relSpec{source: source, typ: typ, target: target, group: group})
}

// AddRefset registers a reference set with the given defining concept and
// member concepts.
func (b *Builder) AddRefset(definition uint64, members ...uint64) {
	b.refsets = append(b.refsets, refsetSpec{definition: definition, members: members})
}

// Build derives all segments and returns the finished store.
func (b *Builder) Build() *snomedstore.Store {
	ids := make([]uint64, 0, len(b.concepts))
	for id := range b.concepts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	offsets := make(map[uint64]bin.Offset, len(ids))
	for i, id := range ids {
		offsets[id] = bin.Offset(i * 56)
	}

	strs := bin.NewStrings(nil)
	descs := bin.NewDescriptions(nil)
	descIdx := bin.NewDescriptionIndex(nil)
	refs := bin.NewReferences(nil)
	rels := bin.NewRelationships(nil)
	concepts := bin.NewConcepts(nil)
	refsetIdx := bin.NewRefsetIndex(nil, false)
	refsetMembers := bin.NewRefsetMembers(nil)

	// Synthesise is-a relationships from parent declarations and append
	// the explicit defining relationships.
	type builtRel struct {
		rec bin.Relationship
		off bin.Offset
	}
	var built []builtRel
	nextRelID := uint64(100)
	addRel := func(rec bin.Relationship) {
		rec.ID = nextRelID
		nextRelID++
		off := rels.Add(rec)
		built = append(built, builtRel{rec: rec, off: off})
	}
	isaOff := offsets[IsA]
	for _, id := range ids {
		spec := b.concepts[id]
		for _, p := range spec.parents {
			addRel(bin.Relationship{
				Source: offsets[id], Target: offsets[p], Type: isaOff,
				Active: true, Defining: true, Group: 0,
			})
		}
	}
	for _, r := range b.rels {
		addRel(bin.Relationship{
			Source: offsets[r.source], Target: offsets[r.target], Type: offsets[r.typ],
			Active: true, Defining: true, Group: r.group,
		})
	}

	// Transitive descendants per concept via the parent graph.
	childrenOf := make(map[uint64][]uint64)
	for _, id := range ids {
		for _, p := range b.concepts[id].parents {
			childrenOf[p] = append(childrenOf[p], id)
		}
	}
	var descend func(uint64, map[bin.Offset]bool)
	descend = func(id uint64, acc map[bin.Offset]bool) {
		for _, c := range childrenOf[id] {
			if !acc[offsets[c]] {
				acc[offsets[c]] = true
				descend(c, acc)
			}
		}
	}

	nextDescID := uint64(1)
	for _, id := range ids {
		spec := b.concepts[id]

		var descOffs []uint32
		for _, d := range spec.descs {
			strOff, _ := strs.Add(d.Term)
			dOff := descs.Add(bin.Description{
				StrOff: strOff, Active: !d.Inactive, ID: nextDescID,
				ConceptIx: offsets[id], Lang: d.Lang,
			})
			descIdx.Add(nextDescID, dOff)
			nextDescID++
			descOffs = append(descOffs, dOff)
		}

		closure := make(map[bin.Offset]bool)
		descend(id, closure)
		closureOffs := make([]uint32, 0, len(closure))
		for o := range closure {
			closureOffs = append(closureOffs, o)
		}
		sort.Slice(closureOffs, func(i, j int) bool { return closureOffs[i] < closureOffs[j] })

		var parentOffs []uint32
		for _, p := range spec.parents {
			parentOffs = append(parentOffs, offsets[p])
		}

		var inbound, outbound []uint32
		for _, br := range built {
			if br.rec.Target == offsets[id] {
				inbound = append(inbound, br.off)
			}
			if br.rec.Source == offsets[id] {
				outbound = append(outbound, br.off)
			}
		}

		rec := bin.Concept{ID: id}
		if spec.inactive {
			rec.Flags = 1
		}
		if spec.primitive {
			rec.Flags |= 0x10
		}
		rec.Parents = addList(refs, parentOffs)
		rec.Descriptions = addList(refs, descOffs)
		rec.Closure = addList(refs, closureOffs)
		rec.Inbounds = addList(refs, inbound)
		rec.Outbounds = addList(refs, outbound)
		concepts.Add(rec)
	}

	for _, rs := range b.refsets {
		members := make([]bin.RefsetMember, 0, len(rs.members))
		for _, m := range rs.members {
			members = append(members, bin.RefsetMember{Ref: offsets[m]})
		}
		byRef := refsetMembers.Add(false, members)
		nameOff, _ := strs.Add("test refset")
		refsetIdx.Add(bin.RefsetEntry{Definition: offsets[rs.definition], ByRef: byRef, Name: nameOff})
	}

	return &snomedstore.Store{
		CacheVersion:     snomedstore.CacheVersion16,
		VersionURI:       "http://snomed.info/sct/900000000000207008/version/20230131",
		VersionDate:      "20230131",
		Edition:          "900000000000207008",
		Version:          "20230131",
		Strings:          strs,
		Words:            bin.NewWords(nil),
		Stems:            bin.NewStems(nil),
		Refs:             refs,
		Descriptions:     descs,
		DescriptionIndex: descIdx,
		Concepts:         concepts,
		Relationships:    rels,
		RefsetMembers:    refsetMembers,
		RefsetIndex:      refsetIdx,
		IsAIndex:         isaOff,
		ActiveRoots:      []uint64{ids[0]},
		DefaultLanguage:  1,
	}
}

func addList(refs *bin.References, offs []uint32) bin.Offset {
	if len(offs) == 0 {
		return bin.NoRef
	}
	return refs.Add(offs)
}
