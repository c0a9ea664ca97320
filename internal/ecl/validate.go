package ecl

import (
	"fmt"

	"github.com/wardle/go-terminology/internal/bin"
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// conceptModelAttribute is the root of all relationship-type concepts;
// every attribute name used in a refinement must be one of its
// descendants.
const conceptModelAttribute uint64 = 410662002

// attributeRule pins the base-concept domain and value range of one
// attribute from the built-in concept-model table.
type attributeRule struct {
	domain uint64
	rng    uint64
}

// attributeRules is the built-in domain/range table for well-known
// concept-model attributes.
var attributeRules = map[uint64]attributeRule{
	116676008: {domain: 404684003, rng: 49755003},  // Associated morphology: Clinical finding / Morphologically abnormal structure
	363698007: {domain: 404684003, rng: 123037004}, // Finding site: Clinical finding / Body structure
	246075003: {domain: 404684003, rng: 410607006}, // Causative agent: Clinical finding / Organism
	363701004: {domain: 71388002, rng: 105590001},  // Direct substance: Procedure / Substance
	260686004: {domain: 71388002, rng: 129264002},  // Method: Procedure / Action
}

// ValidationIssue is one accumulated semantic error.
type ValidationIssue struct {
	Code    uint64
	Offset  int
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("at offset %d: %s", v.Offset, v.Message)
}

// Validate checks a parsed constraint against a SNOMED store: every
// concept id must exist, every attribute name must descend from the
// concept-model attribute root, and the built-in domain/range rules are
// enforced for the attributes they cover. Violations accumulate;
// validation is separable from parsing and evaluation.
func Validate(svc *snomedstore.Service, e ExpressionConstraint) []ValidationIssue {
	v := &validator{svc: svc}
	v.constraint(e, nil)
	return v.issues
}

type validator struct {
	svc    *snomedstore.Service
	issues []ValidationIssue
}

func (v *validator) addf(ref *ConceptReference, format string, args ...interface{}) {
	issue := ValidationIssue{Message: fmt.Sprintf(format, args...)}
	if ref != nil {
		issue.Code = ref.Code
		issue.Offset = ref.Start
	}
	v.issues = append(v.issues, issue)
}

// resolve checks existence and returns the concept offset.
func (v *validator) resolve(ref *ConceptReference) (bin.Offset, bool) {
	off, found := v.svc.Find(ref.Code)
	if !found {
		v.addf(ref, "concept %d not found", ref.Code)
	}
	return off, found
}

// constraint walks one expression constraint. focusDomain carries the
// focus concept of the innermost enclosing refined constraint, for
// domain checks on table attributes.
func (v *validator) constraint(e ExpressionConstraint, focusDomain *ConceptReference) {
	switch n := e.(type) {
	case *SimpleExpressionConstraint:
		v.sub(n.Sub)
	case *RefinedExpressionConstraint:
		v.sub(n.Sub)
		v.refinement(n.Refinement, n.Sub.Concept)
	case *CompoundExpressionConstraint:
		for _, op := range n.Operands {
			v.constraint(op, focusDomain)
		}
	case *DottedExpressionConstraint:
		v.constraint(n.Base, focusDomain)
		for _, a := range n.Attributes {
			v.attributeName(a)
		}
	}
}

func (v *validator) sub(sub *SubExpressionConstraint) {
	switch {
	case sub.Concept != nil:
		v.resolve(sub.Concept)
	case sub.MemberOf != nil:
		v.resolve(sub.MemberOf.Refset)
	case sub.Nested != nil:
		v.constraint(sub.Nested, nil)
	}
}

func (v *validator) refinement(r *Refinement, focus *ConceptReference) {
	for _, set := range r.Sets {
		for _, a := range set.Attributes {
			v.attribute(a, focus)
		}
	}
	for _, g := range r.Groups {
		for _, a := range g.Attributes {
			v.attribute(a, focus)
		}
	}
}

func (v *validator) attribute(a *Attribute, focus *ConceptReference) {
	v.attributeName(a.Name)
	ref := a.Name.Concept
	if ref == nil {
		if cmp, ok := a.Comparison.(*ExpressionComparison); ok {
			v.constraint(cmp.Value, nil)
		}
		return
	}
	rule, hasRule := attributeRules[ref.Code]
	if hasRule && focus != nil {
		v.checkWithin(focus, rule.domain, "the domain of attribute %d", ref.Code)
	}
	if cmp, ok := a.Comparison.(*ExpressionComparison); ok {
		v.constraint(cmp.Value, nil)
		if hasRule {
			for _, valueRef := range valueConcepts(cmp.Value) {
				v.checkWithin(valueRef, rule.rng, "the range of attribute %d", ref.Code)
			}
		}
	}
}

// attributeName checks a refinement or dotted attribute name descends
// from the concept-model attribute root.
func (v *validator) attributeName(name *SubExpressionConstraint) {
	ref := name.Concept
	if ref == nil {
		v.sub(name)
		return
	}
	off, found := v.resolve(ref)
	if !found {
		return
	}
	rootOff, found := v.svc.Find(conceptModelAttribute)
	if !found {
		return // store carries no concept model; nothing to enforce
	}
	ok, err := v.svc.Subsumes(rootOff, off)
	if err != nil || !ok {
		v.addf(ref, "%d is not a concept-model attribute (descendant of %d)", ref.Code, conceptModelAttribute)
	}
}

// checkWithin verifies ref descends from (or equals) ancestor.
func (v *validator) checkWithin(ref *ConceptReference, ancestor uint64, what string, args ...interface{}) {
	off, found := v.svc.Find(ref.Code)
	if !found {
		return // existence already reported
	}
	ancOff, found := v.svc.Find(ancestor)
	if !found {
		return
	}
	ok, err := v.svc.Subsumes(ancOff, off)
	if err == nil && !ok {
		v.addf(ref, "%d is outside "+fmt.Sprintf(what, args...)+" (must descend from %d)", ref.Code, ancestor)
	}
}

// valueConcepts collects the concept references an attribute value
// constrains to, for range checking.
func valueConcepts(e ExpressionConstraint) []*ConceptReference {
	var out []*ConceptReference
	switch n := e.(type) {
	case *SimpleExpressionConstraint:
		if n.Sub.Concept != nil {
			out = append(out, n.Sub.Concept)
		}
	case *RefinedExpressionConstraint:
		if n.Sub.Concept != nil {
			out = append(out, n.Sub.Concept)
		}
	case *CompoundExpressionConstraint:
		for _, op := range n.Operands {
			out = append(out, valueConcepts(op)...)
		}
	}
	return out
}
