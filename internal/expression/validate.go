package expression

import (
	"fmt"
	"strings"

	"github.com/wardle/go-terminology/internal/snomedstore"
)

// ValidationError reports a concept reference that failed resolution or
// whose supplied `|term|` matched none of the concept's active
// descriptions.
type ValidationError struct {
	Ref      *ConceptRef
	Message  string
	Accepted []string
}

func (e *ValidationError) Error() string {
	if len(e.Accepted) == 0 {
		return fmt.Sprintf("expression: at offset %d: %s", e.Ref.Start, e.Message)
	}
	return fmt.Sprintf("expression: at offset %d: %s; accepted terms: %s",
		e.Ref.Start, e.Message, strings.Join(e.Accepted, ", "))
}

// Validate resolves every concept reference of e against svc, attaching
// store offsets, and checks every supplied `|term|` against the concept's
// active description strings under whitespace-collapsed, lower-cased
// comparison. Errors are returned for the first failing reference.
func Validate(svc *snomedstore.Service, e *Expression) error {
	return walkRefs(e, func(ref *ConceptRef) error {
		if ref.Kind != RefConcept {
			return nil
		}
		id := snomedstore.Identifier(ref.Code)
		if !id.IsValid() {
			return &ValidationError{Ref: ref,
				Message: fmt.Sprintf("%d fails check-digit validation", ref.Code)}
		}
		if !id.IsConcept() {
			return &ValidationError{Ref: ref,
				Message: fmt.Sprintf("%d is a %s identifier, not a concept identifier", ref.Code, id.ComponentKind())}
		}
		off, found := svc.Find(ref.Code)
		if !found {
			return &ValidationError{Ref: ref,
				Message: fmt.Sprintf("concept %d not found", ref.Code)}
		}
		ref.Offset = off
		ref.Resolved = true
		if !ref.HasTerm {
			return nil
		}
		want := normalizeTerm(ref.Term)
		descs, err := svc.Descriptions(off)
		if err != nil {
			return err
		}
		accepted := make([]string, 0, len(descs))
		for _, d := range descs {
			if !d.Active {
				continue
			}
			term, err := svc.Store().Strings.Get(d.StrOff)
			if err != nil {
				return err
			}
			if normalizeTerm(term) == want {
				return nil
			}
			accepted = append(accepted, term)
		}
		return &ValidationError{Ref: ref,
			Message:  fmt.Sprintf("term %q is not a description of concept %d", ref.Term, ref.Code),
			Accepted: accepted}
	})
}

// normalizeTerm collapses whitespace and lower-cases, the comparison rule
// for supplied terms.
func normalizeTerm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// walkRefs visits every concept reference of e depth-first: focus
// concepts, then ungrouped refinements, then groups, recursing into
// attribute values.
func walkRefs(e *Expression, fn func(*ConceptRef) error) error {
	for _, f := range e.Focus {
		if err := fn(f); err != nil {
			return err
		}
	}
	visit := func(r *Refinement) error {
		if err := fn(r.Attribute); err != nil {
			return err
		}
		return walkRefs(r.Value, fn)
	}
	for _, r := range e.Refinements {
		if err := visit(r); err != nil {
			return err
		}
	}
	for _, g := range e.Groups {
		for _, r := range g.Refinements {
			if err := visit(r); err != nil {
				return err
			}
		}
	}
	return nil
}
