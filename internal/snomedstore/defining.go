package snomedstore

import (
	"github.com/wardle/go-terminology/internal/bin"
)

// DefiningRelationships returns the active, defining, non-is-a outbound
// relationships of the concept at off - the attribute-value pairs of its
// stated definition, used when expanding an expression into normal form.
func (s *Service) DefiningRelationships(off bin.Offset) ([]bin.Relationship, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return nil, err
	}
	outOffs, err := s.store.Refs.Get(c.Outbounds)
	if err != nil {
		return nil, err
	}
	out := make([]bin.Relationship, 0, len(outOffs))
	for _, relOff := range outOffs {
		rel, err := s.store.Relationships.Get(relOff)
		if err != nil {
			return nil, err
		}
		if !rel.Active || !rel.Defining || rel.Type == s.store.IsAIndex {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// ProximalPrimitives returns the nearest primitive supertypes of the
// concept at off: the concept itself if primitive, otherwise the union of
// its parents' proximal primitives with subsumption-redundant members
// removed (a concept subsuming another in the set is dropped in favour of
// the more specific one).
func (s *Service) ProximalPrimitives(off bin.Offset) ([]bin.Offset, error) {
	c, err := s.store.Concepts.Get(off)
	if err != nil {
		return nil, err
	}
	if c.IsPrimitive() {
		return []bin.Offset{off}, nil
	}
	seen := make(map[bin.Offset]bool)
	var walk func(bin.Offset) error
	walk = func(o bin.Offset) error {
		cc, err := s.store.Concepts.Get(o)
		if err != nil {
			return err
		}
		if cc.IsPrimitive() {
			seen[o] = true
			return nil
		}
		parents, err := s.store.Refs.Get(cc.Parents)
		if err != nil {
			return err
		}
		for _, p := range parents {
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(off); err != nil {
		return nil, err
	}
	candidates := make([]bin.Offset, 0, len(seen))
	for o := range seen {
		candidates = append(candidates, o)
	}
	return s.RemoveRedundant(candidates)
}

// RemoveRedundant drops from offs every concept that subsumes another
// member of offs, keeping only the most specific concepts of the set.
func (s *Service) RemoveRedundant(offs []bin.Offset) ([]bin.Offset, error) {
	out := make([]bin.Offset, 0, len(offs))
	for i, a := range offs {
		redundant := false
		for j, b := range offs {
			if i == j {
				continue
			}
			sub, err := s.Subsumes(a, b)
			if err != nil {
				return nil, err
			}
			if sub && a != b {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, a)
		}
	}
	return out, nil
}
