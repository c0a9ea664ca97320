// Package snomedstore implements the SNOMED CT binary store: the loader
// for the ten-segment container envelope and the
// concept/description/relationship/refset services built over it.
package snomedstore

import (
	"io"

	"github.com/wardle/go-terminology/internal/bin"
)

// Store is a read-only, fully in-memory SNOMED CT release: ten segments
// reached by cross-segment byte offsets, plus the scalar trailers
// identifying the is-a relationship type and the top-level roots.
type Store struct {
	CacheVersion string
	VersionURI   string
	VersionDate  string
	Edition      string
	Version      string
	IsTesting    bool

	Strings          *bin.Strings
	Words            *bin.Words
	Stems            *bin.Stems
	Refs             *bin.References
	Descriptions     *bin.Descriptions
	DescriptionIndex *bin.DescriptionIndex
	Concepts         *bin.Concepts
	Relationships    *bin.Relationships
	RefsetMembers    *bin.RefsetMembers
	RefsetIndex      *bin.RefsetIndex

	// IsAIndex is the concept offset whose identity is the "is-a"
	// relationship-type concept; all defining-hierarchy relationships use
	// this type.
	IsAIndex uint32

	InactiveRoots []uint64
	ActiveRoots   []uint64

	// DefaultLanguage is a language-refset concept offset, or -1/absent
	// sentinel per the originating runtime's tagged-int encoding.
	DefaultLanguage int32
}

// Load parses a container envelope from r into a read-only Store.
func Load(r io.Reader) (*Store, error) {
	env, err := decodeEnvelope(r)
	if err != nil {
		return nil, err
	}
	edition, version := parseVersionURI(env.versionURI)
	hasLangs := env.cacheVersion == CacheVersion17
	s := &Store{
		CacheVersion:     env.cacheVersion,
		VersionURI:       env.versionURI,
		VersionDate:      env.versionDate,
		Edition:          edition,
		Version:          version,
		IsTesting:        isTestingURI(env.versionURI),
		Strings:          bin.NewStrings(env.strings),
		Refs:             bin.NewReferences(env.refs),
		Descriptions:     bin.NewDescriptions(env.desc),
		Words:            bin.NewWords(env.words),
		Stems:            bin.NewStems(env.stems),
		Concepts:         bin.NewConcepts(env.concept),
		Relationships:    bin.NewRelationships(env.rel),
		RefsetIndex:      bin.NewRefsetIndex(env.refSetIndex, hasLangs),
		RefsetMembers:    bin.NewRefsetMembers(env.refSetMembers),
		DescriptionIndex: bin.NewDescriptionIndex(env.descRef),
		IsAIndex:         uint32(env.isAIndex),
		InactiveRoots:    env.inactiveRoots,
		ActiveRoots:      env.activeRoots,
		DefaultLanguage:  env.defaultLanguage,
	}
	return s, nil
}
