// Package expression implements the SNOMED CT Compositional Grammar:
// parsing, validation, canonicalisation, normal-form expansion and
// subsumption testing between post-coordinated expressions.
package expression

import "github.com/wardle/go-terminology/internal/bin"

// DefinitionStatus is the expression-level qualifier preceding the focus
// concepts: '===' (equivalent to) or '<<<' (subtype of); absent means the
// expression's meaning is simply its focus concepts refined.
type DefinitionStatus int

const (
	DefinitionStatusDefault DefinitionStatus = iota
	DefinitionStatusEquivalentTo
	DefinitionStatusSubtypeOf
)

// RefKind discriminates the three focus forms the grammar admits: a
// concept code, a `#`-prefixed decimal literal, or a quoted string
// literal.
type RefKind int

const (
	RefConcept RefKind = iota
	RefNumber
	RefString
)

// ConceptRef names a SNOMED concept by code, with an optional `|term|`
// and the byte offsets of its occurrence in the source text (for
// diagnostics). Focus and refinement/attribute positions all use this
// type; a value position either resolves to one (a concept reference) or
// recurses into a nested Expression via Refinement.Value. Literal focus
// forms (`#3.5`, `"text"`) carry their raw text in Literal instead of a
// Code.
type ConceptRef struct {
	Kind       RefKind
	Code       uint64
	Literal    string
	Term       string
	HasTerm    bool
	Start, End int
	// Resolved is the concept's store offset once validated against a
	// SnomedStore; zero value (and Resolved==false) before validation.
	Offset   bin.Offset
	Resolved bool
}

// Refinement is one attribute=value pair, `attribute := focus '=' value`.
type Refinement struct {
	Attribute *ConceptRef
	Value     *Expression
}

// Group is a `{ attribute, attribute, ... }` bundle; refinements outside
// any group are the expression's "group 0".
type Group struct {
	Refinements []*Refinement
}

// Expression is one parsed (sub-)expression: `focus { '+' focus } [ ':'
// refinement {',' refinement} ]`. Value positions recurse via this same
// type, since the grammar defines `value := '(' expr ')' | expr`.
type Expression struct {
	DefinitionStatus DefinitionStatus
	Focus            []*ConceptRef
	// Refinements holds ungrouped (ordinary) attribute-value pairs.
	Refinements []*Refinement
	// Groups holds `{...}`-bundled refinement groups.
	Groups []*Group
}

// IsPrimitiveFocus reports whether this is the simplest possible
// expression: a single, unrefined focus concept.
func (e *Expression) IsPrimitiveFocus() bool {
	return len(e.Focus) == 1 && len(e.Refinements) == 0 && len(e.Groups) == 0
}
