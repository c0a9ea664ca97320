// Package cpt is the CPT provider: codes may be simple or compound
// (`code:modifier:modifier`), and a compound expression must satisfy the
// modifier-compatibility rules before it resolves.
package cpt

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/providers/relational"
)

// SystemURI is the canonical CPT system URI.
const SystemURI = "http://www.ama-assn.org/go/cpt"

// Factory opens the CPT database once and caches counts and version.
type Factory struct {
	db      *sql.DB
	version string
	count   int
}

// NewFactory wraps an open database handle.
func NewFactory(db *sql.DB) *Factory { return &Factory{db: db} }

// OpenFactory connects to dsn.
func OpenFactory(dsn string) (*Factory, error) {
	db, err := relational.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewFactory(db), nil
}

func (f *Factory) System() string  { return SystemURI }
func (f *Factory) Version() string { return f.version }

func (f *Factory) Load() error {
	if err := f.db.QueryRow("select version from cpt_metadata limit 1").Scan(&f.version); err != nil {
		return fmt.Errorf("cpt: reading version: %w", err)
	}
	var err error
	if f.count, err = relational.CountRows(f.db, "cpt_codes"); err != nil {
		return fmt.Errorf("cpt: counting codes: %w", err)
	}
	return nil
}

func (f *Factory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return &Provider{
		Base: provider.Base{
			SystemURI:      SystemURI,
			VersionStr:     f.version,
			NameStr:        "CPT",
			DescriptionStr: "CPT (Current Procedural Terminology) " + f.version,
			Total:          f.count,
			CaseSensitive:  true,
			Supps:          supplements,
		},
		db:    f.db,
		opctx: ctx,
	}, nil
}

func (f *Factory) Close() error { return f.db.Close() }

// Provider is one request's CPT provider.
type Provider struct {
	provider.Base
	db    *sql.DB
	opctx *opcontext.Context
}

var _ provider.Provider = (*Provider)(nil)

// Handle is the CPT concept handle: the base entry plus validated
// modifiers, carrying the compound code the caller presented.
type Handle struct {
	Entry     Entry
	Modifiers []Entry
	code      string
}

// HandleCode implements provider.Handle.
func (h *Handle) HandleCode() string { return h.code }

const sqlLocate = `select code, kind, descriptor, telemedicine, active from cpt_codes where code = $1`

func (p *Provider) fetch(code string) (Entry, error) {
	var e Entry
	err := p.db.QueryRow(sqlLocate, code).Scan(&e.Code, &e.Kind, &e.Descriptor, &e.Telemedicine, &e.Active)
	return e, err
}

// Locate resolves a simple or compound code, validating modifier
// compatibility. The error text of a failed validation is the located
// message; Locate never fails with an error.
func (p *Provider) Locate(code string) (provider.Handle, string) {
	base, modCodes := SplitExpression(strings.TrimSpace(code))
	entry, err := p.fetch(base)
	if err == sql.ErrNoRows {
		return nil, fmt.Sprintf("CPT code %q not found", base)
	}
	if err != nil {
		return nil, err.Error()
	}
	if entry.Kind != KindCode && entry.Kind != KindCat2 && len(modCodes) > 0 {
		return nil, fmt.Sprintf("%s is a %s and cannot carry modifiers", base, entry.Kind)
	}
	mods := make([]Entry, 0, len(modCodes))
	for _, mc := range modCodes {
		m, err := p.fetch(mc)
		if err == sql.ErrNoRows {
			return nil, fmt.Sprintf("CPT modifier %q not found", mc)
		}
		if err != nil {
			return nil, err.Error()
		}
		mods = append(mods, m)
	}
	if err := ValidateExpression(entry, mods); err != nil {
		return nil, err.Error()
	}
	return &Handle{Entry: entry, Modifiers: mods, code: code}, ""
}

func cptOf(h provider.Handle) *Handle {
	c, _ := h.(*Handle)
	return c
}

// Display joins the base descriptor with the modifier descriptors.
func (p *Provider) Display(h provider.Handle, ctx *opcontext.Context) string {
	c := cptOf(h)
	if c == nil {
		return ""
	}
	parts := []string{c.Entry.Descriptor}
	for _, m := range c.Modifiers {
		parts = append(parts, m.Descriptor)
	}
	return provider.SelectDisplay(ctx, p.Supps, c.Entry.Code, strings.Join(parts, "; "), "en")
}

func (p *Provider) IsInactive(h provider.Handle) bool {
	c := cptOf(h)
	return c != nil && !c.Entry.Active
}

// Properties exposes kind, telemedicine and the modifier list.
func (p *Provider) Properties(h provider.Handle, names []string) []provider.Property {
	c := cptOf(h)
	if c == nil {
		return nil
	}
	props := []provider.Property{
		{Name: "kind", Value: c.Entry.Kind, Type: "string"},
		{Name: "telemedicine", Value: fmt.Sprintf("%t", c.Entry.Telemedicine), Type: "boolean"},
	}
	for _, m := range c.Modifiers {
		props = append(props, provider.Property{Name: "modifier", Value: m.Code, Type: "code"})
	}
	props = append(props, provider.SupplementProperties(p.Supps, c.Entry.Code)...)
	return provider.FilterProperties(props, names)
}

// DoesFilter supports kind and modifier selection.
func (p *Provider) DoesFilter(prop, op, value string) bool {
	switch prop {
	case "kind":
		return op == "="
	case "modifier":
		return op == "=" && (value == "true" || value == "false")
	}
	return false
}

func (p *Provider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on CPT", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

// SearchFilter is an unimplemented path of the source, surfaced rather
// than silently returning empty.
func (p *Provider) SearchFilter(prep *provider.Prep, text string, exact bool) error {
	return fmt.Errorf("%w: text search on CPT", provider.ErrFeatureUnsupported)
}

// BuildQuery translates the composed filters.
func (p *Provider) BuildQuery(filters []provider.AppliedFilter) *relational.Query {
	q := &relational.Query{}
	for _, f := range filters {
		switch f.Property {
		case "kind":
			q.AddWhere(fmt.Sprintf("c.kind = %s", q.Placeholder(f.Value)))
		case "modifier":
			modifierKinds := "('general', 'cat-2-modifier', 'physical-status', 'hcpcs')"
			if f.Value == "true" {
				q.AddWhere("c.kind in " + modifierKinds)
			} else {
				q.AddWhere("c.kind not in " + modifierKinds)
			}
		}
	}
	return q
}

func (p *Provider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	q := p.BuildQuery(prep.Filters)
	keys, err := relational.QueryKeys(p.opctx.Ctx(), p.db, q.SQL("c.code", "cpt_codes c", "c.code"), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("cpt: executing filters: %w", err)
	}
	sets := []*provider.FilterSet{provider.NewFilterSet(keys)}
	if err := prep.MarkExecuted(sets); err != nil {
		return nil, err
	}
	return sets, nil
}

func keysOf(set *provider.FilterSet) *relational.KeySet {
	k, _ := set.Payload.(*relational.KeySet)
	return k
}

func (p *Provider) FilterSize(set *provider.FilterSet) int {
	if k := keysOf(set); k != nil {
		return k.Len()
	}
	return 0
}

func (p *Provider) FilterMore(set *provider.FilterSet) (bool, error) {
	if err := p.opctx.Err(); err != nil {
		return false, provider.ErrOperationCancelled
	}
	k := keysOf(set)
	if k == nil {
		return false, nil
	}
	return set.Advance(k.Len())
}

func (p *Provider) FilterConcept(set *provider.FilterSet) provider.Handle {
	k := keysOf(set)
	if k == nil || set.Pos < 0 || set.Pos >= k.Len() {
		return nil
	}
	h, _ := p.Locate(k.At(set.Pos))
	return h
}

func (p *Provider) FilterLocate(set *provider.FilterSet, code string) (provider.Handle, string) {
	if set.Prep() != nil {
		if err := set.Prep().CheckProbe(); err != nil {
			return nil, err.Error()
		}
	}
	base, _ := SplitExpression(code)
	k := keysOf(set)
	if k == nil || !k.Contains(base) {
		return nil, fmt.Sprintf("CPT code %q is not in the filtered set", code)
	}
	return p.Locate(code)
}

func (p *Provider) FilterCheck(set *provider.FilterSet, h provider.Handle) (bool, error) {
	if set.Prep() != nil {
		if err := set.Prep().CheckProbe(); err != nil {
			return false, err
		}
	}
	c := cptOf(h)
	if c == nil {
		return false, nil
	}
	k := keysOf(set)
	return k != nil && k.Contains(c.Entry.Code), nil
}

// Close releases nothing: the pool belongs to the factory.
func (p *Provider) Close() error { return nil }
