package expression

import (
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// Subsumes reports whether expression a subsumes expression b: both are
// normalised, then every focus concept of a must subsume some focus
// concept of b, and every refinement (grouped or not) of a must be
// matched in b by a refinement whose attribute is subsumed by a's and
// whose value a's value subsumes.
func Subsumes(svc *snomedstore.Service, a, b *Expression) (bool, error) {
	na, err := Normalize(svc, a)
	if err != nil {
		return false, err
	}
	nb, err := Normalize(svc, b)
	if err != nil {
		return false, err
	}
	return normalizedSubsumes(svc, na, nb)
}

// Equivalent reports whether a and b subsume each other.
func Equivalent(svc *snomedstore.Service, a, b *Expression) (bool, error) {
	ab, err := Subsumes(svc, a, b)
	if err != nil || !ab {
		return false, err
	}
	return Subsumes(svc, b, a)
}

func normalizedSubsumes(svc *snomedstore.Service, a, b *Expression) (bool, error) {
	for _, fa := range a.Focus {
		ok, err := focusMatched(svc, fa, b.Focus)
		if err != nil || !ok {
			return false, err
		}
	}
	// b's ungrouped refinements and every one of b's groups are candidate
	// matches for a's refinements; a's top-level refinements may be
	// satisfied anywhere in b.
	for _, ra := range a.Refinements {
		ok, err := refinementMatched(svc, ra, allRefinements(b))
		if err != nil || !ok {
			return false, err
		}
	}
	for _, ga := range a.Groups {
		ok, err := groupMatched(svc, ga, b)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func allRefinements(e *Expression) []*Refinement {
	out := make([]*Refinement, 0, len(e.Refinements))
	out = append(out, e.Refinements...)
	for _, g := range e.Groups {
		out = append(out, g.Refinements...)
	}
	return out
}

func focusMatched(svc *snomedstore.Service, fa *ConceptRef, candidates []*ConceptRef) (bool, error) {
	for _, fb := range candidates {
		if fa.Kind != fb.Kind {
			continue
		}
		if fa.Kind != RefConcept {
			if fa.Literal == fb.Literal {
				return true, nil
			}
			continue
		}
		sub, err := svc.Subsumes(fa.Offset, fb.Offset)
		if err != nil {
			return false, err
		}
		if sub {
			return true, nil
		}
	}
	return false, nil
}

func refinementMatched(svc *snomedstore.Service, ra *Refinement, candidates []*Refinement) (bool, error) {
	for _, rb := range candidates {
		ok, err := refinementSubsumes(svc, ra, rb)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// refinementSubsumes reports whether ra subsumes rb: ra's attribute
// subsumes rb's and ra's value subsumes rb's.
func refinementSubsumes(svc *snomedstore.Service, ra, rb *Refinement) (bool, error) {
	if ra.Attribute.Kind != RefConcept || rb.Attribute.Kind != RefConcept {
		return false, nil
	}
	sub, err := svc.Subsumes(ra.Attribute.Offset, rb.Attribute.Offset)
	if err != nil || !sub {
		return false, err
	}
	return normalizedSubsumes(svc, ra.Value, rb.Value)
}

// groupMatched reports whether some group of b matches ga: every
// refinement of ga subsumes a refinement of that group.
func groupMatched(svc *snomedstore.Service, ga *Group, b *Expression) (bool, error) {
	candidates := make([][]*Refinement, 0, len(b.Groups)+1)
	for _, gb := range b.Groups {
		candidates = append(candidates, gb.Refinements)
	}
	if len(b.Refinements) > 0 {
		candidates = append(candidates, b.Refinements)
	}
	for _, group := range candidates {
		all := true
		for _, ra := range ga.Refinements {
			ok, err := refinementMatched(svc, ra, group)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}
