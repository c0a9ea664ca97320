package ecl

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wardle/go-terminology/internal/bin"
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// ErrFeatureUnsupported is returned for constraint forms the evaluator
// does not execute: reverse-hierarchy operators, reversed attributes and
// concrete-value comparisons. These parse and validate but cannot be
// evaluated against the binary store.
var ErrFeatureUnsupported = errors.New("ecl: feature unsupported")

// Evaluate reduces a constraint to a filter context over svc. Compound
// operators combine descendant arrays by set union, intersection and
// difference. Wildcard enumeration is expensive: callers cap the result,
// and ctx is consulted at each outer loop so a cancelled request stops
// enumerating.
func Evaluate(ctx context.Context, svc *snomedstore.Service, e ExpressionConstraint) (*snomedstore.FilterContext, error) {
	ev := &evaluator{ctx: ctx, svc: svc}
	set, err := ev.constraint(e)
	if err != nil {
		return nil, err
	}
	return &snomedstore.FilterContext{Descendants: sortedOffsets(set)}, nil
}

type conceptSet map[bin.Offset]struct{}

func sortedOffsets(set conceptSet) []bin.Offset {
	out := make([]bin.Offset, 0, len(set))
	for off := range set {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type evaluator struct {
	ctx context.Context
	svc *snomedstore.Service
}

func (ev *evaluator) constraint(e ExpressionConstraint) (conceptSet, error) {
	switch n := e.(type) {
	case *SimpleExpressionConstraint:
		return ev.sub(n.Sub)
	case *RefinedExpressionConstraint:
		base, err := ev.sub(n.Sub)
		if err != nil {
			return nil, err
		}
		return ev.refine(base, n.Refinement)
	case *CompoundExpressionConstraint:
		return ev.compound(n)
	case *DottedExpressionConstraint:
		return ev.dotted(n)
	}
	return nil, fmt.Errorf("ecl: unknown constraint node %T", e)
}

func (ev *evaluator) compound(n *CompoundExpressionConstraint) (conceptSet, error) {
	result, err := ev.constraint(n.Operands[0])
	if err != nil {
		return nil, err
	}
	for _, operand := range n.Operands[1:] {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		next, err := ev.constraint(operand)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case Conjunction:
			for off := range result {
				if _, ok := next[off]; !ok {
					delete(result, off)
				}
			}
		case Disjunction:
			for off := range next {
				result[off] = struct{}{}
			}
		case Exclusion:
			for off := range next {
				delete(result, off)
			}
		}
	}
	return result, nil
}

// dotted walks attribute values: from the base set, follow defining
// relationships whose type is in each attribute-name set in turn; the
// relationship targets become the next set.
func (ev *evaluator) dotted(n *DottedExpressionConstraint) (conceptSet, error) {
	current, err := ev.constraint(n.Base)
	if err != nil {
		return nil, err
	}
	for _, attr := range n.Attributes {
		nameSet, err := ev.sub(attr)
		if err != nil {
			return nil, err
		}
		next := make(conceptSet)
		for off := range current {
			if err := ev.ctx.Err(); err != nil {
				return nil, err
			}
			rels, err := ev.svc.DefiningRelationships(off)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if _, ok := nameSet[rel.Type]; ok {
					next[rel.Target] = struct{}{}
				}
			}
		}
		current = next
	}
	return current, nil
}

// sub evaluates the focus then applies the hierarchy operator over every
// member. Reverse-hierarchy operators are not executed against the
// binary store.
func (ev *evaluator) sub(sub *SubExpressionConstraint) (conceptSet, error) {
	switch sub.Constraint {
	case ConstraintAncestors, ConstraintAncestorsSelf, ConstraintParents, ConstraintParentsSelf:
		return nil, fmt.Errorf("%w: reverse-hierarchy operator %q", ErrFeatureUnsupported, sub.Constraint.String())
	}
	base, err := ev.focus(sub)
	if err != nil {
		return nil, err
	}
	switch sub.Constraint {
	case ConstraintSelf:
		return base, nil
	case ConstraintDescendants, ConstraintDescendantsSelf:
		out := make(conceptSet)
		if sub.Constraint == ConstraintDescendantsSelf {
			for off := range base {
				out[off] = struct{}{}
			}
		}
		for off := range base {
			if err := ev.ctx.Err(); err != nil {
				return nil, err
			}
			descendants, err := ev.descendants(off)
			if err != nil {
				return nil, err
			}
			for _, d := range descendants {
				out[d] = struct{}{}
			}
		}
		return out, nil
	case ConstraintChildren, ConstraintChildrenSelf:
		out := make(conceptSet)
		if sub.Constraint == ConstraintChildrenSelf {
			for off := range base {
				out[off] = struct{}{}
			}
		}
		for off := range base {
			if err := ev.ctx.Err(); err != nil {
				return nil, err
			}
			children, err := ev.svc.Children(off)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				out[c] = struct{}{}
			}
		}
		return out, nil
	}
	return base, nil
}

func (ev *evaluator) focus(sub *SubExpressionConstraint) (conceptSet, error) {
	switch {
	case sub.Concept != nil:
		off, found := ev.svc.Find(sub.Concept.Code)
		if !found {
			return conceptSet{}, nil
		}
		return conceptSet{off: {}}, nil
	case sub.Wildcard:
		return ev.allActive()
	case sub.MemberOf != nil:
		fc, err := ev.svc.FilterIn(sub.MemberOf.Refset.Code)
		if err != nil {
			return nil, err
		}
		out := make(conceptSet, len(fc.Descendants))
		for _, off := range fc.Descendants {
			out[off] = struct{}{}
		}
		return out, nil
	case sub.Nested != nil:
		return ev.constraint(sub.Nested)
	}
	return nil, fmt.Errorf("ecl: empty focus")
}

func (ev *evaluator) allActive() (conceptSet, error) {
	store := ev.svc.Store()
	n := store.Concepts.Count()
	out := make(conceptSet, n)
	for i := 0; i < n; i++ {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		c, err := store.Concepts.GetByIndex(i)
		if err != nil {
			return nil, err
		}
		if c.IsActive() {
			out[store.Concepts.OffsetOf(i)] = struct{}{}
		}
	}
	return out, nil
}

func (ev *evaluator) descendants(off bin.Offset) ([]bin.Offset, error) {
	c, err := ev.svc.Concept(off)
	if err != nil {
		return nil, err
	}
	return ev.svc.Store().Refs.Get(c.Closure)
}

// refine keeps the members of base satisfying every attribute set and
// every attribute group of r.
func (ev *evaluator) refine(base conceptSet, r *Refinement) (conceptSet, error) {
	out := make(conceptSet)
	for off := range base {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := ev.satisfies(off, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out[off] = struct{}{}
		}
	}
	return out, nil
}

func (ev *evaluator) satisfies(off bin.Offset, r *Refinement) (bool, error) {
	rels, err := ev.svc.DefiningRelationships(off)
	if err != nil {
		return false, err
	}
	for _, set := range r.Sets {
		for _, a := range set.Attributes {
			ok, err := ev.attributeSatisfied(rels, a)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	for _, g := range r.Groups {
		ok, err := ev.groupSatisfied(rels, g)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// attributeSatisfied checks a over any of the concept's defining
// relationships, honouring the attribute's cardinality (default at least
// one matching relationship).
func (ev *evaluator) attributeSatisfied(rels []bin.Relationship, a *Attribute) (bool, error) {
	matches, err := ev.countMatches(rels, a)
	if err != nil {
		return false, err
	}
	return cardinalityOK(a.Cardinality, matches), nil
}

func cardinalityOK(card *Cardinality, n int) bool {
	if card == nil {
		return n >= 1
	}
	if n < card.Min {
		return false
	}
	return card.Unbounded || n <= card.Max
}

func (ev *evaluator) countMatches(rels []bin.Relationship, a *Attribute) (int, error) {
	if a.Reverse {
		return 0, fmt.Errorf("%w: reversed attribute", ErrFeatureUnsupported)
	}
	nameSet, err := ev.sub(a.Name)
	if err != nil {
		return 0, err
	}
	cmp, ok := a.Comparison.(*ExpressionComparison)
	if !ok {
		return 0, fmt.Errorf("%w: concrete-value comparison", ErrFeatureUnsupported)
	}
	valueSet, err := ev.constraint(cmp.Value)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rel := range rels {
		if _, ok := nameSet[rel.Type]; !ok {
			continue
		}
		_, inValue := valueSet[rel.Target]
		if (cmp.Op == OpEquals) == inValue {
			n++
		}
	}
	return n, nil
}

// groupSatisfied requires some relationship group in which every
// attribute of g matches; the group-level cardinality bounds how many
// such groups exist.
func (ev *evaluator) groupSatisfied(rels []bin.Relationship, g *AttributeGroup) (bool, error) {
	byGroup := make(map[int32][]bin.Relationship)
	for _, rel := range rels {
		byGroup[rel.Group] = append(byGroup[rel.Group], rel)
	}
	satisfied := 0
	for _, groupRels := range byGroup {
		all := true
		for _, a := range g.Attributes {
			ok, err := ev.attributeSatisfied(groupRels, a)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			satisfied++
		}
	}
	if g.Cardinality == nil {
		return satisfied >= 1, nil
	}
	return cardinalityOK(g.Cardinality, satisfied), nil
}
