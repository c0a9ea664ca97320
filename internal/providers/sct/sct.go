// Package sct is the SNOMED CT provider: the provider-contract surface
// over the binary store's services, the compositional-grammar expression
// engine and the ECL evaluator.
package sct

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wardle/go-terminology/internal/bin"
	"github.com/wardle/go-terminology/internal/ecl"
	"github.com/wardle/go-terminology/internal/expression"
	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/snomedstore"
)

// SystemURI is the canonical SNOMED CT system URI.
const SystemURI = "http://snomed.info/sct"

// Handle is the SNOMED concept handle: a single concept offset, or a full
// parsed expression for post-coordinated codes.
type Handle struct {
	Offset bin.Offset
	Expr   *expression.Expression
	code   string
}

// HandleCode implements provider.Handle.
func (h *Handle) HandleCode() string { return h.code }

// IsExpression reports whether the handle is post-coordinated.
func (h *Handle) IsExpression() bool { return h.Expr != nil }

// Provider implements the provider contract for one SNOMED edition.
type Provider struct {
	provider.Base
	svc   *snomedstore.Service
	opctx *opcontext.Context
}

var _ provider.Provider = (*Provider)(nil)

// New builds a provider over svc bound to ctx.
func New(svc *snomedstore.Service, ctx *opcontext.Context, supplements []*provider.Supplement) *Provider {
	store := svc.Store()
	return &Provider{
		Base: provider.Base{
			SystemURI:      SystemURI,
			VersionStr:     store.VersionURI,
			NameStr:        "SNOMED CT",
			DescriptionStr: "SNOMED CT " + store.Edition + " edition, version " + store.Version,
			Total:          store.Concepts.Count(),
			CaseSensitive:  false,
			WithParents:    true,
			Supps:          supplements,
		},
		svc:   svc,
		opctx: ctx,
	}
}

// Service exposes the underlying services layer for collaborators that
// compose with SNOMED directly (the ECL endpoint, the expression
// services).
func (p *Provider) Service() *snomedstore.Service { return p.svc }

// Locate resolves a code: a bare SCTID by binary search, anything else as
// a post-coordinated expression. An unknown code returns a nil handle and
// a message; Locate never fails with an error.
func (p *Provider) Locate(code string) (provider.Handle, string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, "empty code"
	}
	if isDigits(code) {
		id, err := snomedstore.ParseAndValidate(code)
		if err != nil {
			return nil, fmt.Sprintf("%s is not a valid SNOMED CT identifier", code)
		}
		off, found := p.svc.Find(uint64(id))
		if !found {
			return nil, fmt.Sprintf("concept %s not found in %s", code, p.VersionStr)
		}
		return &Handle{Offset: off, code: code}, ""
	}
	expr, err := expression.Parse(code)
	if err != nil {
		return nil, err.Error()
	}
	if err := expression.Validate(p.svc, expr); err != nil {
		return nil, err.Error()
	}
	return &Handle{Expr: expr, code: expression.Render(expression.Canonicalize(expr))}, ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Display returns the preferred description for the context's language
// chain, falling back to the store's default language, or the rendered
// canonical form for an expression handle.
func (p *Provider) Display(h provider.Handle, ctx *opcontext.Context) string {
	sh, ok := h.(*Handle)
	if !ok || sh == nil {
		return ""
	}
	if sh.IsExpression() {
		return sh.code
	}
	native, err := p.svc.DisplayName(sh.Offset, uint8(p.svc.Store().DefaultLanguage))
	if err != nil {
		return ""
	}
	return provider.SelectDisplay(ctx, p.Supps, sh.code, native, "")
}

// IsInactive reports the concept's status flag; expressions are never
// inactive.
func (p *Provider) IsInactive(h provider.Handle) bool {
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return false
	}
	active, err := p.svc.IsActive(sh.Offset)
	return err == nil && !active
}

// Status renders the status nibble of the concept's flags.
func (p *Provider) Status(h provider.Handle) string {
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return ""
	}
	if p.IsInactive(h) {
		return "inactive"
	}
	return "active"
}

// Parent returns the first is-a parent's code.
func (p *Provider) Parent(h provider.Handle) string {
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return ""
	}
	parents, err := p.svc.Parents(sh.Offset)
	if err != nil || len(parents) == 0 {
		return ""
	}
	c, err := p.svc.Concept(parents[0])
	if err != nil {
		return ""
	}
	return strconv.FormatUint(c.ID, 10)
}

// Designations collects every active description plus supplement
// overlays. The first active description is marked preferred.
func (p *Provider) Designations(h provider.Handle, ctx *opcontext.Context, d *opcontext.Designations) {
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return
	}
	descs, err := p.svc.Descriptions(sh.Offset)
	if err != nil {
		return
	}
	first := true
	for _, desc := range descs {
		if !desc.Active {
			continue
		}
		term, err := p.svc.Store().Strings.Get(desc.StrOff)
		if err != nil {
			continue
		}
		d.Add(opcontext.Designation{Preferred: first, Value: term})
		first = false
	}
	provider.CollectDesignations(p.Supps, sh.code, d)
}

// Properties exposes the hierarchy and definition-status properties.
func (p *Provider) Properties(h provider.Handle, names []string) []provider.Property {
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return nil
	}
	var props []provider.Property
	if parents, err := p.svc.Parents(sh.Offset); err == nil {
		for _, off := range parents {
			if c, err := p.svc.Concept(off); err == nil {
				props = append(props, provider.Property{Name: "parent", Value: strconv.FormatUint(c.ID, 10), Type: "code"})
			}
		}
	}
	if children, err := p.svc.Children(sh.Offset); err == nil {
		for _, off := range children {
			if c, err := p.svc.Concept(off); err == nil {
				props = append(props, provider.Property{Name: "child", Value: strconv.FormatUint(c.ID, 10), Type: "code"})
			}
		}
	}
	props = append(props, provider.Property{Name: "inactive", Value: strconv.FormatBool(p.IsInactive(h)), Type: "boolean"})
	if primitive, err := p.svc.IsPrimitive(sh.Offset); err == nil {
		props = append(props, provider.Property{Name: "sufficientlyDefined", Value: strconv.FormatBool(!primitive), Type: "boolean"})
	}
	props = append(props, provider.SupplementProperties(p.Supps, sh.code)...)
	return provider.FilterProperties(props, names)
}

// SubsumesTest relates two codes via the transitive closure; when either
// is a post-coordinated expression, expression subsumption is used. An
// invalid expression surfaces as an error rather than a silent
// not-subsumed.
func (p *Provider) SubsumesTest(a, b string) (provider.SubsumptionOutcome, error) {
	ha, msg := p.Locate(a)
	if ha == nil {
		return provider.NotSubsumed, fmt.Errorf("%w: %s", provider.ErrFeatureUnsupported, msg)
	}
	hb, msg := p.Locate(b)
	if hb == nil {
		return provider.NotSubsumed, fmt.Errorf("%w: %s", provider.ErrFeatureUnsupported, msg)
	}
	sa, sb := ha.(*Handle), hb.(*Handle)
	if !sa.IsExpression() && !sb.IsExpression() {
		return p.subsumesConcepts(sa.Offset, sb.Offset)
	}
	ea, err := p.toExpression(sa)
	if err != nil {
		return provider.NotSubsumed, err
	}
	eb, err := p.toExpression(sb)
	if err != nil {
		return provider.NotSubsumed, err
	}
	forward, err := expression.Subsumes(p.svc, ea, eb)
	if err != nil {
		return provider.NotSubsumed, err
	}
	backward, err := expression.Subsumes(p.svc, eb, ea)
	if err != nil {
		return provider.NotSubsumed, err
	}
	return outcome(forward, backward), nil
}

func (p *Provider) subsumesConcepts(a, b bin.Offset) (provider.SubsumptionOutcome, error) {
	forward, err := p.svc.Subsumes(a, b)
	if err != nil {
		return provider.NotSubsumed, err
	}
	backward, err := p.svc.Subsumes(b, a)
	if err != nil {
		return provider.NotSubsumed, err
	}
	return outcome(forward, backward), nil
}

func outcome(forward, backward bool) provider.SubsumptionOutcome {
	switch {
	case forward && backward:
		return provider.Equivalent
	case forward:
		return provider.Subsumes
	case backward:
		return provider.SubsumedBy
	}
	return provider.NotSubsumed
}

func (p *Provider) toExpression(h *Handle) (*expression.Expression, error) {
	if h.IsExpression() {
		return h.Expr, nil
	}
	c, err := p.svc.Concept(h.Offset)
	if err != nil {
		return nil, err
	}
	return expression.Parse(strconv.FormatUint(c.ID, 10))
}

// iterCursor iterates a fixed offset list.
type iterCursor struct {
	offs []bin.Offset
	pos  int
}

// Iterator opens a cursor over h's children, or over every concept when
// h is nil.
func (p *Provider) Iterator(h provider.Handle) provider.Cursor {
	if h == nil {
		n := p.svc.Store().Concepts.Count()
		offs := make([]bin.Offset, n)
		for i := 0; i < n; i++ {
			offs[i] = p.svc.Store().Concepts.OffsetOf(i)
		}
		return &iterCursor{offs: offs}
	}
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return nil
	}
	children, err := p.svc.Children(sh.Offset)
	if err != nil {
		return nil
	}
	return &iterCursor{offs: children}
}

// NextContext advances the cursor.
func (p *Provider) NextContext(c provider.Cursor) provider.Handle {
	cur, ok := c.(*iterCursor)
	if !ok || cur.pos >= len(cur.offs) {
		return nil
	}
	off := cur.offs[cur.pos]
	cur.pos++
	concept, err := p.svc.Concept(off)
	if err != nil {
		return nil
	}
	return &Handle{Offset: off, code: strconv.FormatUint(concept.ID, 10)}
}

// Filter properties understood by the SNOMED store.
func (p *Provider) DoesFilter(prop, op, value string) bool {
	switch prop {
	case "concept", "code":
		switch op {
		case "is-a", "descendent-of", "=", "in":
			return true
		}
	case "constraint", "expression":
		return op == "="
	case "parent", "child":
		return op == "="
	}
	return false
}

// Filter pushes one (property, op, value) filter onto prep.
func (p *Provider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on SNOMED CT", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

// SearchFilter pushes a ranked free-text filter.
func (p *Provider) SearchFilter(prep *provider.Prep, text string, exact bool) error {
	return prep.Push(provider.AppliedFilter{Text: text, Exact: exact})
}

// SpecialFilter handles the implicit value-set forms of the SNOMED URI:
// `isa/[concept]`, `refset/[refset]` and `ecl/[expression]`.
func (p *Provider) SpecialFilter(prep *provider.Prep, name string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s expects one argument", provider.ErrFilterNotSupported, name)
	}
	switch name {
	case "isa":
		return prep.Push(provider.AppliedFilter{Property: "concept", Op: "is-a", Value: args[0]})
	case "refset":
		return prep.Push(provider.AppliedFilter{Property: "concept", Op: "in", Value: args[0]})
	case "ecl":
		return prep.Push(provider.AppliedFilter{Property: "constraint", Op: "=", Value: args[0]})
	}
	return fmt.Errorf("%w: implicit value-set form %q", provider.ErrFilterNotSupported, name)
}

// offsetSet is one executed filter's result: offsets in result order
// (ranked, for search filters) plus a membership set for probes.
type offsetSet struct {
	offs   []bin.Offset
	member map[bin.Offset]struct{}
}

func newOffsetSet(offs []bin.Offset) *offsetSet {
	s := &offsetSet{offs: offs, member: make(map[bin.Offset]struct{}, len(offs))}
	for _, off := range offs {
		s.member[off] = struct{}{}
	}
	return s
}

// ExecuteFilters reduces each composed filter into an offset set,
// preserving search ranking order for iteration.
func (p *Provider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	sets := make([]*provider.FilterSet, 0, len(prep.Filters))
	for _, f := range prep.Filters {
		fc, err := p.executeFilter(f)
		if err != nil {
			return nil, err
		}
		sets = append(sets, provider.NewFilterSet(newOffsetSet(fc.Offsets())))
	}
	if err := prep.MarkExecuted(sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func (p *Provider) executeFilter(f provider.AppliedFilter) (*snomedstore.FilterContext, error) {
	if f.Text != "" {
		return p.svc.SearchFilter(p.opctx.Ctx(), f.Text, false, f.Exact)
	}
	switch f.Property {
	case "constraint", "expression":
		ast, err := ecl.Parse(f.Value)
		if err != nil {
			return nil, err
		}
		if issues := ecl.Validate(p.svc, ast); len(issues) > 0 {
			return nil, fmt.Errorf("ecl: %s", issues[0].String())
		}
		return ecl.Evaluate(p.opctx.Ctx(), p.svc, ast)
	}
	id, err := strconv.ParseUint(f.Value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a concept id", provider.ErrFilterNotSupported, f.Value)
	}
	switch f.Op {
	case "is-a":
		return p.svc.FilterIsA(id, true)
	case "descendent-of":
		return p.svc.FilterIsA(id, false)
	case "=":
		if f.Property == "parent" || f.Property == "child" {
			return p.filterHierarchy(f.Property, id)
		}
		return p.svc.FilterEquals(id)
	case "in":
		return p.svc.FilterIn(id)
	}
	return nil, provider.ErrFilterNotSupported
}

func (p *Provider) filterHierarchy(prop string, id uint64) (*snomedstore.FilterContext, error) {
	off, found := p.svc.Find(id)
	if !found {
		return &snomedstore.FilterContext{}, nil
	}
	var offs []bin.Offset
	var err error
	if prop == "parent" {
		offs, err = p.svc.Children(off)
	} else {
		offs, err = p.svc.Parents(off)
	}
	if err != nil {
		return nil, err
	}
	return &snomedstore.FilterContext{Descendants: offs}, nil
}

func offsetsOf(set *provider.FilterSet) *offsetSet {
	s, _ := set.Payload.(*offsetSet)
	return s
}

// FilterSize returns the set's concept count.
func (p *Provider) FilterSize(set *provider.FilterSet) int {
	if s := offsetsOf(set); s != nil {
		return len(s.offs)
	}
	return 0
}

// FilterMore advances iteration.
func (p *Provider) FilterMore(set *provider.FilterSet) (bool, error) {
	if err := p.opctx.Err(); err != nil {
		return false, errors.Join(provider.ErrOperationCancelled, err)
	}
	return set.Advance(p.FilterSize(set))
}

// FilterConcept returns the concept at the iteration cursor.
func (p *Provider) FilterConcept(set *provider.FilterSet) provider.Handle {
	s := offsetsOf(set)
	if s == nil || set.Pos < 0 || set.Pos >= len(s.offs) {
		return nil
	}
	c, err := p.svc.Concept(s.offs[set.Pos])
	if err != nil {
		return nil
	}
	return &Handle{Offset: s.offs[set.Pos], code: strconv.FormatUint(c.ID, 10)}
}

// FilterLocate resolves code inside the set via the membership set.
func (p *Provider) FilterLocate(set *provider.FilterSet, code string) (provider.Handle, string) {
	if set.Prep() != nil {
		if err := set.Prep().CheckProbe(); err != nil {
			return nil, err.Error()
		}
	}
	h, msg := p.Locate(code)
	if h == nil {
		return nil, msg
	}
	sh := h.(*Handle)
	if sh.IsExpression() {
		return nil, "post-coordinated expressions cannot be located in a filter"
	}
	if s := offsetsOf(set); s != nil {
		if _, ok := s.member[sh.Offset]; ok {
			return sh, ""
		}
	}
	return nil, fmt.Sprintf("concept %s is not in the filtered set", code)
}

// FilterCheck reports whether the handle is in the set.
func (p *Provider) FilterCheck(set *provider.FilterSet, h provider.Handle) (bool, error) {
	if set.Prep() != nil {
		if err := set.Prep().CheckProbe(); err != nil {
			return false, err
		}
	}
	sh, ok := h.(*Handle)
	if !ok || sh.IsExpression() {
		return false, nil
	}
	s := offsetsOf(set)
	if s == nil {
		return false, nil
	}
	_, in := s.member[sh.Offset]
	return in, nil
}
