package snomedstore

import (
	"context"
	"sort"
	"strings"

	"github.com/wardle/go-terminology/internal/bin"
)

// FilterContext holds the populated result of one SNOMED filter primitive:
// a descendant/member/match array plus ordering state used by the ECL
// evaluator and the provider's filter-execution state machine.
type FilterContext struct {
	// Descendants holds concept offsets for an is-a or equality filter.
	Descendants []bin.Offset
	// Matches holds search results, ordered by descending Priority then
	// ascending concept offset for determinism.
	Matches []SearchMatch
}

// SearchMatch is one ranked free-text search hit.
type SearchMatch struct {
	Concept  bin.Offset
	Priority int
}

// Search ranking weights: exact term, term prefix, term contains.
const (
	PriorityExact  = 100
	PriorityPrefix = 50
	PriorityContains = 10
)

// Offsets returns the concept offsets of a search-match filter context, in
// ranked order.
func (f *FilterContext) Offsets() []bin.Offset {
	if f.Matches != nil {
		out := make([]bin.Offset, len(f.Matches))
		for i, m := range f.Matches {
			out[i] = m.Concept
		}
		return out
	}
	return f.Descendants
}

// FilterEquals returns a filter context containing only the single concept
// resolved from id.
func (s *Service) FilterEquals(id uint64) (*FilterContext, error) {
	off, found := s.Find(id)
	if !found {
		return &FilterContext{}, nil
	}
	return &FilterContext{Descendants: []bin.Offset{off}}, nil
}

// FilterIsA returns a filter context containing the descendants of id
// (from its closure array), optionally including id itself.
func (s *Service) FilterIsA(id uint64, includeSelf bool) (*FilterContext, error) {
	off, found := s.Find(id)
	if !found {
		return &FilterContext{}, nil
	}
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return nil, err
	}
	descendants, err := s.store.Refs.Get(c.Closure)
	if err != nil {
		return nil, err
	}
	out := make([]bin.Offset, 0, len(descendants)+1)
	if includeSelf {
		out = append(out, off)
	}
	out = append(out, descendants...)
	return &FilterContext{Descendants: out}, nil
}

// FilterIn returns a filter context containing the members of the
// reference set whose defining concept is refsetID.
func (s *Service) FilterIn(refsetID uint64) (*FilterContext, error) {
	off, found := s.Find(refsetID)
	if !found {
		return &FilterContext{}, nil
	}
	out := make([]bin.Offset, 0)
	for i := 0; i < s.store.RefsetIndex.Count(); i++ {
		entry, err := s.store.RefsetIndex.Get(i)
		if err != nil {
			return nil, err
		}
		if entry.Definition != off {
			continue
		}
		members, err := s.store.RefsetMembers.Get(entry.ByRef)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			out = append(out, m.Ref)
		}
	}
	return &FilterContext{Descendants: out}, nil
}

// SearchFilter performs a ranked free-text search over active (or all, if
// includeInactive) concept descriptions. exact forces only exact-term
// matches. Results are sorted descending by priority, with ties broken by
// ascending concept offset for a stable order; the caller caps the count.
// The scan is unbounded, so ctx is consulted at each concept.
func (s *Service) SearchFilter(ctx context.Context, text string, includeInactive bool, exact bool) (*FilterContext, error) {
	needle := normalizeSearchTerm(text)
	if needle == "" {
		return &FilterContext{}, nil
	}
	best := make(map[bin.Offset]int)
	n := s.store.Concepts.Count()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := s.store.Concepts.GetByIndex(i)
		if err != nil {
			return nil, err
		}
		off := s.store.Concepts.OffsetOf(i)
		if !includeInactive && !c.IsActive() {
			continue
		}
		if c.Descriptions == 0 || c.Descriptions == bin.NoRef {
			continue
		}
		descOffs, err := s.store.Refs.Get(c.Descriptions)
		if err != nil {
			return nil, err
		}
		for _, dOff := range descOffs {
			d, err := s.store.Descriptions.Get(dOff)
			if err != nil {
				return nil, err
			}
			if !includeInactive && !d.Active {
				continue
			}
			term, err := s.store.Strings.Get(d.StrOff)
			if err != nil {
				return nil, err
			}
			normalized := normalizeSearchTerm(term)
			var priority int
			switch {
			case normalized == needle:
				priority = PriorityExact
			case !exact && strings.HasPrefix(normalized, needle):
				priority = PriorityPrefix
			case !exact && strings.Contains(normalized, needle):
				priority = PriorityContains
			default:
				continue
			}
			if priority > best[off] {
				best[off] = priority
			}
		}
	}
	matches := make([]SearchMatch, 0, len(best))
	for off, pri := range best {
		matches = append(matches, SearchMatch{Concept: off, Priority: pri})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].Concept < matches[j].Concept
	})
	return &FilterContext{Matches: matches}, nil
}
