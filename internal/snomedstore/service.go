package snomedstore

import (
	"strings"

	"github.com/wardle/go-terminology/internal/bin"
)

// Service is the SNOMED CT services layer: concept lookup,
// subsumption, description enumeration, search and filter construction,
// all built directly over a Store's segments.
type Service struct {
	store *Store
	cache *conceptCache
}

// NewService builds a services layer over store. A small read-through
// cache for hot concepts sits in front of the binary-search Find - the
// segments are already O(log n), so this is a pure latency optimisation,
// default-sized for a busy server.
func NewService(store *Store) *Service {
	return &Service{store: store, cache: newConceptCache(4096)}
}

// Store returns the underlying binary store.
func (s *Service) Store() *Store { return s.store }

// Find resolves a concept id to its concept offset.
func (s *Service) Find(id uint64) (off bin.Offset, found bool) {
	if off, ok := s.cache.get(id); ok {
		return off, true
	}
	off, found = s.store.Concepts.Find(id)
	if found {
		s.cache.put(id, off)
	}
	return off, found
}

// Concept returns the decoded concept record at off.
func (s *Service) Concept(off bin.Offset) (bin.Concept, error) {
	return s.store.Concepts.Get(off)
}

// IsActive reports whether the concept at off is active: `(flags & 0x0F)
// == 0`.
func (s *Service) IsActive(off bin.Offset) (bool, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return false, err
	}
	return c.IsActive(), nil
}

// IsPrimitive reports whether the concept at off is primitive: `(flags &
// 0x10) != 0`.
func (s *Service) IsPrimitive(off bin.Offset) (bool, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return false, err
	}
	return c.IsPrimitive(), nil
}

// Subsumes reports whether a subsumes b: true iff a == b, or b is in the
// sorted closure array referenced by a's `closure` offset. a == a always
// short-circuits true without touching the closure segment.
//
// Closure (and every other References-backed list on a concept) stores
// concept *offsets*, not concept ids: a References record is a u32[], and
// an SCTID does not fit in 32 bits, so offsets are the only cross-segment
// pointer that can live in these arrays. Ids are used only at the id->
// offset translation boundary (Find, and the public locate-by-code API).
func (s *Service) Subsumes(a, b bin.Offset) (bool, error) {
	if a == b {
		return true, nil
	}
	ac, err := s.store.Concepts.Get(a)
	if err != nil {
		return false, err
	}
	if ac.Closure == 0 || ac.Closure == bin.NoRef {
		return false, nil
	}
	return s.store.Refs.Contains(ac.Closure, b)
}

// Parents returns the concept offsets of the IS-A parents of the concept
// at off, from the stored `parents` reference list.
func (s *Service) Parents(off bin.Offset) ([]bin.Offset, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.Refs.Get(c.Parents)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Children returns the concept offsets of the IS-A children of the concept
// at off: concepts whose `inbounds` list contains an active, defining,
// group-0 is-a relationship targeting off.
func (s *Service) Children(off bin.Offset) ([]bin.Offset, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return nil, err
	}
	inbound, err := s.store.Refs.Get(c.Inbounds)
	if err != nil {
		return nil, err
	}
	out := make([]bin.Offset, 0, len(inbound))
	for _, relOff := range inbound {
		rel, err := s.store.Relationships.Get(relOff)
		if err != nil {
			return nil, err
		}
		if rel.Type == s.store.IsAIndex && rel.Active && rel.Defining && rel.Group == 0 && rel.Target == off {
			out = append(out, rel.Source)
		}
	}
	return out, nil
}

// DisplayName returns the first active description of the concept at off
// whose language matches lang; failing that, the first active
// description; failing that, empty. A concept with no descriptions offset
// has no display name.
func (s *Service) DisplayName(off bin.Offset, lang uint8) (string, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return "", err
	}
	if c.Descriptions == 0 || c.Descriptions == bin.NoRef {
		return "", nil
	}
	descOffs, err := s.store.Refs.Get(c.Descriptions)
	if err != nil {
		return "", err
	}
	var firstActive string
	haveFirstActive := false
	for _, dOff := range descOffs {
		d, err := s.store.Descriptions.Get(dOff)
		if err != nil {
			return "", err
		}
		if !d.Active {
			continue
		}
		str, err := s.store.Strings.Get(d.StrOff)
		if err != nil {
			return "", err
		}
		if !haveFirstActive {
			firstActive = str
			haveFirstActive = true
		}
		if d.Lang == lang {
			return str, nil
		}
	}
	return firstActive, nil
}

// Descriptions returns the decoded, active-or-inactive description records
// of the concept at off.
func (s *Service) Descriptions(off bin.Offset) ([]bin.Description, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return nil, err
	}
	if c.Descriptions == 0 || c.Descriptions == bin.NoRef {
		return nil, nil
	}
	descOffs, err := s.store.Refs.Get(c.Descriptions)
	if err != nil {
		return nil, err
	}
	out := make([]bin.Description, 0, len(descOffs))
	for _, dOff := range descOffs {
		d, err := s.store.Descriptions.Get(dOff)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// normalizeSearchTerm collapses whitespace and lower-cases, the
// normalisation rule shared by expression term validation and free-text
// search matching.
func normalizeSearchTerm(s string) string {
	fields := strings.Fields(s)
	return strings.ToLower(strings.Join(fields, " "))
}
