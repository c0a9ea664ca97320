package expression

import "sort"

// Canonicalize returns a canonical deep copy of e: focus concepts sorted
// by code, refinements within each group sorted by attribute code, groups
// sorted by their first refinement's attribute code, recursively applied
// to nested values. Canonicalisation is idempotent.
func Canonicalize(e *Expression) *Expression {
	out := cloneExpression(e)
	canonicalizeInPlace(out)
	return out
}

func canonicalizeInPlace(e *Expression) {
	sort.SliceStable(e.Focus, func(i, j int) bool { return refLess(e.Focus[i], e.Focus[j]) })
	for _, r := range e.Refinements {
		canonicalizeInPlace(r.Value)
	}
	for _, g := range e.Groups {
		for _, r := range g.Refinements {
			canonicalizeInPlace(r.Value)
		}
		sortRefinements(g.Refinements)
	}
	sortRefinements(e.Refinements)
	sort.SliceStable(e.Groups, func(i, j int) bool {
		gi, gj := e.Groups[i], e.Groups[j]
		if len(gi.Refinements) == 0 {
			return len(gj.Refinements) != 0
		}
		if len(gj.Refinements) == 0 {
			return false
		}
		return refLess(gi.Refinements[0].Attribute, gj.Refinements[0].Attribute)
	})
}

func sortRefinements(rs []*Refinement) {
	sort.SliceStable(rs, func(i, j int) bool { return refLess(rs[i].Attribute, rs[j].Attribute) })
}

// refLess orders concept references by kind, then code, then literal -
// concept codes ascending, with numeric and string literals sorting after
// any concept.
func refLess(a, b *ConceptRef) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Kind == RefConcept {
		return a.Code < b.Code
	}
	return a.Literal < b.Literal
}

func cloneExpression(e *Expression) *Expression {
	if e == nil {
		return nil
	}
	out := &Expression{DefinitionStatus: e.DefinitionStatus}
	for _, f := range e.Focus {
		out.Focus = append(out.Focus, cloneRef(f))
	}
	for _, r := range e.Refinements {
		out.Refinements = append(out.Refinements, cloneRefinement(r))
	}
	for _, g := range e.Groups {
		ng := &Group{}
		for _, r := range g.Refinements {
			ng.Refinements = append(ng.Refinements, cloneRefinement(r))
		}
		out.Groups = append(out.Groups, ng)
	}
	return out
}

func cloneRef(r *ConceptRef) *ConceptRef {
	c := *r
	return &c
}

func cloneRefinement(r *Refinement) *Refinement {
	return &Refinement{Attribute: cloneRef(r.Attribute), Value: cloneExpression(r.Value)}
}
