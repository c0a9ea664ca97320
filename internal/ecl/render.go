package ecl

import (
	"fmt"
	"strconv"
	"strings"
)

// Render writes an AST back as expression-constraint text such that
// Parse(Render(ast)) reproduces ast.
func Render(e ExpressionConstraint) string {
	var sb strings.Builder
	renderConstraint(&sb, e, false)
	return sb.String()
}

func renderConstraint(sb *strings.Builder, e ExpressionConstraint, nested bool) {
	switch n := e.(type) {
	case *SimpleExpressionConstraint:
		renderSub(sb, n.Sub)
	case *RefinedExpressionConstraint:
		renderSub(sb, n.Sub)
		sb.WriteString(" : ")
		renderRefinement(sb, n.Refinement)
	case *CompoundExpressionConstraint:
		if nested {
			sb.WriteString("( ")
		}
		for i, op := range n.Operands {
			if i > 0 {
				sb.WriteString(" " + n.Operator.String() + " ")
			}
			renderConstraint(sb, op, true)
		}
		if nested {
			sb.WriteString(" )")
		}
	case *DottedExpressionConstraint:
		renderConstraint(sb, n.Base, true)
		for _, a := range n.Attributes {
			sb.WriteString(" . ")
			renderSub(sb, a)
		}
	}
}

func renderSub(sb *strings.Builder, sub *SubExpressionConstraint) {
	if op := sub.Constraint.String(); op != "" {
		sb.WriteString(op + " ")
	}
	switch {
	case sub.MemberOf != nil:
		sb.WriteString("^ ")
		renderRef(sb, sub.MemberOf.Refset)
	case sub.Wildcard:
		sb.WriteByte('*')
	case sub.Concept != nil:
		renderRef(sb, sub.Concept)
	case sub.Nested != nil:
		sb.WriteString("( ")
		renderConstraint(sb, sub.Nested, false)
		sb.WriteString(" )")
	}
}

func renderRef(sb *strings.Builder, ref *ConceptReference) {
	sb.WriteString(strconv.FormatUint(ref.Code, 10))
	if ref.HasTerm {
		sb.WriteString(" |" + ref.Term + "|")
	}
}

func renderRefinement(sb *strings.Builder, r *Refinement) {
	first := true
	sep := func() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
	}
	for _, set := range r.Sets {
		for _, a := range set.Attributes {
			sep()
			renderAttribute(sb, a)
		}
	}
	for _, g := range r.Groups {
		sep()
		if g.Cardinality != nil {
			renderCardinality(sb, g.Cardinality)
		}
		sb.WriteString("{ ")
		for i, a := range g.Attributes {
			if i > 0 {
				sb.WriteString(", ")
			}
			renderAttribute(sb, a)
		}
		sb.WriteString(" }")
	}
}

func renderCardinality(sb *strings.Builder, c *Cardinality) {
	if c.Unbounded {
		fmt.Fprintf(sb, "[%d..*] ", c.Min)
		return
	}
	fmt.Fprintf(sb, "[%d..%d] ", c.Min, c.Max)
}

func renderAttribute(sb *strings.Builder, a *Attribute) {
	if a.Cardinality != nil {
		renderCardinality(sb, a.Cardinality)
	}
	if a.Reverse {
		sb.WriteString("R ")
	}
	renderSub(sb, a.Name)
	switch cmp := a.Comparison.(type) {
	case *ExpressionComparison:
		sb.WriteString(" " + cmp.Op.String() + " ")
		if _, ok := cmp.Value.(*SimpleExpressionConstraint); ok {
			renderConstraint(sb, cmp.Value, false)
		} else {
			sb.WriteString("( ")
			renderConstraint(sb, cmp.Value, false)
			sb.WriteString(" )")
		}
	case *NumericComparison:
		sb.WriteString(" " + cmp.Op.String() + " #" + cmp.Value)
	case *StringComparison:
		sb.WriteString(" " + cmp.Op.String() + " \"" + cmp.Value + "\"")
	}
}
