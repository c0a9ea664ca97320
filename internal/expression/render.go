package expression

import (
	"strconv"
	"strings"
)

// Render writes e back as compositional-grammar text. Rendering a
// canonicalised expression yields the expression's canonical text form;
// parse(Render(e)) reproduces e structurally.
func Render(e *Expression) string {
	var sb strings.Builder
	renderExpression(&sb, e)
	return sb.String()
}

func renderExpression(sb *strings.Builder, e *Expression) {
	switch e.DefinitionStatus {
	case DefinitionStatusEquivalentTo:
		sb.WriteString("=== ")
	case DefinitionStatusSubtypeOf:
		sb.WriteString("<<< ")
	}
	for i, f := range e.Focus {
		if i > 0 {
			sb.WriteString(" + ")
		}
		renderRef(sb, f)
	}
	if len(e.Refinements) == 0 && len(e.Groups) == 0 {
		return
	}
	sb.WriteString(" : ")
	first := true
	for _, r := range e.Refinements {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		renderRefinement(sb, r)
	}
	for _, g := range e.Groups {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString("{ ")
		for i, r := range g.Refinements {
			if i > 0 {
				sb.WriteString(", ")
			}
			renderRefinement(sb, r)
		}
		sb.WriteString(" }")
	}
}

func renderRefinement(sb *strings.Builder, r *Refinement) {
	renderRef(sb, r.Attribute)
	sb.WriteString(" = ")
	if r.Value.IsPrimitiveFocus() {
		renderRef(sb, r.Value.Focus[0])
		return
	}
	sb.WriteString("( ")
	renderExpression(sb, r.Value)
	sb.WriteString(" )")
}

func renderRef(sb *strings.Builder, r *ConceptRef) {
	switch r.Kind {
	case RefConcept:
		sb.WriteString(strconv.FormatUint(r.Code, 10))
	case RefNumber:
		sb.WriteByte('#')
		sb.WriteString(r.Literal)
	case RefString:
		sb.WriteByte('"')
		sb.WriteString(r.Literal)
		sb.WriteByte('"')
	}
	if r.HasTerm {
		sb.WriteByte('|')
		sb.WriteString(r.Term)
		sb.WriteByte('|')
	}
}
