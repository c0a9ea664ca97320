package expression

import (
	"fmt"

	"github.com/wardle/go-terminology/internal/bin"
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// Normalize expands e into its normal form: every non-primitive focus
// concept is recursively replaced by its proximal primitive supertypes
// plus its defining relationships, grouped by the relationship's group
// field (group 0 becomes top-level refinements), and the result is
// rationalised - subsumption-redundant concepts and refinements are
// merged, as are groups whose attribute names overlap with
// subsumption-comparable values.
//
// See https://confluence.ihtsdotools.org/display/DOCTSG/12.4+Transforming+Expressions+to+Normal+Forms
func Normalize(svc *snomedstore.Service, e *Expression) (*Expression, error) {
	out := cloneExpression(e)
	if err := resolveAll(svc, out); err != nil {
		return nil, err
	}
	if err := normalizeInPlace(svc, out); err != nil {
		return nil, err
	}
	canonicalizeInPlace(out)
	return out, nil
}

// NormalizeConcept returns the normal form of a single pre-coordinated
// concept.
func NormalizeConcept(svc *snomedstore.Service, off bin.Offset) (*Expression, error) {
	c, err := svc.Concept(off)
	if err != nil {
		return nil, err
	}
	e := &Expression{Focus: []*ConceptRef{{Kind: RefConcept, Code: c.ID, Offset: off, Resolved: true}}}
	if err := normalizeInPlace(svc, e); err != nil {
		return nil, err
	}
	return e, nil
}

func resolveAll(svc *snomedstore.Service, e *Expression) error {
	return walkRefs(e, func(ref *ConceptRef) error {
		if ref.Kind != RefConcept || ref.Resolved {
			return nil
		}
		off, found := svc.Find(ref.Code)
		if !found {
			return fmt.Errorf("expression: concept %d not found", ref.Code)
		}
		ref.Offset = off
		ref.Resolved = true
		return nil
	})
}

func normalizeInPlace(svc *snomedstore.Service, e *Expression) error {
	focus := e.Focus
	e.Focus = nil
	for _, f := range focus {
		if f.Kind != RefConcept {
			e.Focus = append(e.Focus, f)
			continue
		}
		if err := expandFocus(svc, e, f); err != nil {
			return err
		}
	}
	for _, r := range e.Refinements {
		if err := normalizeInPlace(svc, r.Value); err != nil {
			return err
		}
	}
	for _, g := range e.Groups {
		for _, r := range g.Refinements {
			if err := normalizeInPlace(svc, r.Value); err != nil {
				return err
			}
		}
	}
	return rationalize(svc, e)
}

// expandFocus appends the normal-form contribution of one focus concept
// onto e: the concept itself if primitive, otherwise its proximal
// primitives as focus concepts and its defining relationships as
// refinements keyed by relationship group.
func expandFocus(svc *snomedstore.Service, e *Expression, f *ConceptRef) error {
	c, err := svc.Concept(f.Offset)
	if err != nil {
		return err
	}
	if c.IsPrimitive() {
		e.Focus = append(e.Focus, f)
		return nil
	}
	primitives, err := svc.ProximalPrimitives(f.Offset)
	if err != nil {
		return err
	}
	for _, p := range primitives {
		pc, err := svc.Concept(p)
		if err != nil {
			return err
		}
		e.Focus = append(e.Focus, &ConceptRef{Kind: RefConcept, Code: pc.ID, Offset: p, Resolved: true})
	}
	rels, err := svc.DefiningRelationships(f.Offset)
	if err != nil {
		return err
	}
	groups := make(map[int32]*Group)
	for _, rel := range rels {
		tc, err := svc.Concept(rel.Type)
		if err != nil {
			return err
		}
		value, err := NormalizeConcept(svc, rel.Target)
		if err != nil {
			return err
		}
		r := &Refinement{
			Attribute: &ConceptRef{Kind: RefConcept, Code: tc.ID, Offset: rel.Type, Resolved: true},
			Value:     value,
		}
		if rel.Group == 0 {
			e.Refinements = append(e.Refinements, r)
			continue
		}
		g := groups[rel.Group]
		if g == nil {
			g = &Group{}
			groups[rel.Group] = g
			e.Groups = append(e.Groups, g)
		}
		g.Refinements = append(g.Refinements, r)
	}
	return nil
}

// rationalize merges subsumption-redundant focus concepts and
// refinements, and merges groups whose attribute names overlap and whose
// values are all subsumption-comparable.
func rationalize(svc *snomedstore.Service, e *Expression) error {
	var err error
	e.Focus, err = dropRedundantFocus(svc, e.Focus)
	if err != nil {
		return err
	}
	e.Refinements, err = mergeRefinements(svc, e.Refinements)
	if err != nil {
		return err
	}
	merged := make([]*Group, 0, len(e.Groups))
	for _, g := range e.Groups {
		g.Refinements, err = mergeRefinements(svc, g.Refinements)
		if err != nil {
			return err
		}
		absorbed := false
		for _, m := range merged {
			ok, err := groupsMergeable(svc, m, g)
			if err != nil {
				return err
			}
			if ok {
				m.Refinements, err = mergeRefinements(svc, append(m.Refinements, g.Refinements...))
				if err != nil {
					return err
				}
				absorbed = true
				break
			}
		}
		if !absorbed {
			merged = append(merged, g)
		}
	}
	e.Groups = merged
	return nil
}

// dropRedundantFocus removes duplicates and any focus concept that
// subsumes another member of the set, keeping the most specific concepts.
func dropRedundantFocus(svc *snomedstore.Service, focus []*ConceptRef) ([]*ConceptRef, error) {
	out := make([]*ConceptRef, 0, len(focus))
	for i, a := range focus {
		if a.Kind != RefConcept {
			out = append(out, a)
			continue
		}
		redundant := false
		for j, b := range focus {
			if i == j || b.Kind != RefConcept {
				continue
			}
			if a.Offset == b.Offset {
				redundant = i > j // keep the first of exact duplicates
				if redundant {
					break
				}
				continue
			}
			sub, err := svc.Subsumes(a.Offset, b.Offset)
			if err != nil {
				return nil, err
			}
			if sub {
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

// mergeRefinements collapses refinements sharing an attribute whose
// values are subsumption-comparable, keeping the more specific value.
func mergeRefinements(svc *snomedstore.Service, rs []*Refinement) ([]*Refinement, error) {
	out := make([]*Refinement, 0, len(rs))
	for _, r := range rs {
		mergedIn := false
		for _, kept := range out {
			if kept.Attribute.Kind != RefConcept || r.Attribute.Kind != RefConcept ||
				kept.Attribute.Code != r.Attribute.Code {
				continue
			}
			rel, err := compareValues(svc, kept.Value, r.Value)
			if err != nil {
				return nil, err
			}
			switch rel {
			case valueEqual, valueFirstMoreSpecific:
				mergedIn = true
			case valueSecondMoreSpecific:
				kept.Value = r.Value
				mergedIn = true
			}
			if mergedIn {
				break
			}
		}
		if !mergedIn {
			out = append(out, r)
		}
	}
	return out, nil
}

type valueRelation int

const (
	valueIncomparable valueRelation = iota
	valueEqual
	valueFirstMoreSpecific
	valueSecondMoreSpecific
)

// compareValues relates two refinement values under subsumption when both
// are single-concept expressions; anything more compound is treated as
// incomparable and both values are kept.
func compareValues(svc *snomedstore.Service, a, b *Expression) (valueRelation, error) {
	if !a.IsPrimitiveFocus() || !b.IsPrimitiveFocus() {
		return valueIncomparable, nil
	}
	fa, fb := a.Focus[0], b.Focus[0]
	if fa.Kind != RefConcept || fb.Kind != RefConcept {
		if fa.Kind == fb.Kind && fa.Literal == fb.Literal {
			return valueEqual, nil
		}
		return valueIncomparable, nil
	}
	if fa.Offset == fb.Offset {
		return valueEqual, nil
	}
	sub, err := svc.Subsumes(fa.Offset, fb.Offset)
	if err != nil {
		return valueIncomparable, err
	}
	if sub {
		return valueSecondMoreSpecific, nil
	}
	sub, err = svc.Subsumes(fb.Offset, fa.Offset)
	if err != nil {
		return valueIncomparable, err
	}
	if sub {
		return valueFirstMoreSpecific, nil
	}
	return valueIncomparable, nil
}

// groupsMergeable reports whether two groups share at least one attribute
// name and every shared attribute's values are subsumption-comparable.
func groupsMergeable(svc *snomedstore.Service, a, b *Group) (bool, error) {
	shared := false
	for _, ra := range a.Refinements {
		for _, rb := range b.Refinements {
			if ra.Attribute.Kind != RefConcept || rb.Attribute.Kind != RefConcept ||
				ra.Attribute.Code != rb.Attribute.Code {
				continue
			}
			shared = true
			rel, err := compareValues(svc, ra.Value, rb.Value)
			if err != nil {
				return false, err
			}
			if rel == valueIncomparable {
				return false, nil
			}
		}
	}
	return shared, nil
}
