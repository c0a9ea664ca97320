// Package loinc is the LOINC provider over its private relational
// schema: a codes table joined by filter-translated fragments against
// properties, relationships, answer lists and the multiaxial hierarchy.
package loinc

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/providers/relational"
)

// SystemURI is the canonical LOINC system URI.
const SystemURI = "http://loinc.org"

// copyrightPropertyType is the property-type id whose presence marks
// third-party content; `copyright = LOINC` translates to its absence.
const copyrightPropertyType = 9

// classTypes maps the CLASSTYPE column to its display names; filters
// accept either form.
var classTypes = map[string]string{
	"1": "Laboratory class",
	"2": "Clinical class",
	"3": "Claims attachments",
	"4": "Surveys",
}

// ClassTypeNumber translates a CLASSTYPE filter value, numeric or named,
// to the stored number; empty when unknown.
func ClassTypeNumber(value string) string {
	if _, ok := classTypes[value]; ok {
		return value
	}
	for num, name := range classTypes {
		if strings.EqualFold(name, value) {
			return num
		}
	}
	return ""
}

// Factory opens the LOINC database once at startup and caches the small
// lookup tables and counts every provider shares.
type Factory struct {
	db        *sql.DB
	version   string
	count     int
	propTypes map[string]string // property name -> property_type id
	relTypes  map[string]string // relationship name -> rel_type id
	statuses  map[string]string
}

// NewFactory wraps an open database handle.
func NewFactory(db *sql.DB) *Factory {
	return &Factory{db: db}
}

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

// Load caches version, counts and the lookup tables.
func (f *Factory) Load() error {
	if err := f.db.QueryRow("select version from loinc_metadata limit 1").Scan(&f.version); err != nil {
		return fmt.Errorf("loinc: reading version: %w", err)
	}
	var err error
	if f.count, err = relational.CountRows(f.db, "loinc_codes"); err != nil {
		return fmt.Errorf("loinc: counting codes: %w", err)
	}
	if f.propTypes, err = relational.LoadLookup(f.db, "select name, id::text from loinc_property_types"); err != nil {
		return fmt.Errorf("loinc: property types: %w", err)
	}
	if f.relTypes, err = relational.LoadLookup(f.db, "select name, id::text from loinc_relationship_types"); err != nil {
		return fmt.Errorf("loinc: relationship types: %w", err)
	}
	if f.statuses, err = relational.LoadLookup(f.db, "select code, code from loinc_statuses"); err != nil {
		return fmt.Errorf("loinc: statuses: %w", err)
	}
	return nil
}

// Build yields a provider sharing the factory's pool and lookup tables.
func (f *Factory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return &Provider{
		Base: provider.Base{
			SystemURI:      SystemURI,
			VersionStr:     f.version,
			NameStr:        "LOINC",
			DescriptionStr: "LOINC version " + f.version,
			Total:          f.count,
			CaseSensitive:  false,
			WithParents:    true,
			Supps:          supplements,
		},
		db:    f.db,
		f:     f,
		opctx: ctx,
	}, nil
}

// Close closes the shared pool.
func (f *Factory) Close() error { return f.db.Close() }

// Provider is one request's LOINC provider.
type Provider struct {
	provider.Base
	db    *sql.DB
	f     *Factory
	opctx *opcontext.Context
}

var _ provider.Provider = (*Provider)(nil)

const sqlLocate = `select code, display, status, classtype, class from loinc_codes where upper(code) = upper($1)`

// Locate is a single indexed select; the handle pre-materialises the row
// fields.
func (p *Provider) Locate(code string) (provider.Handle, string) {
	var h provider.SQLRowHandle
	var status string
	var classtype int
	err := p.db.QueryRow(sqlLocate, code).Scan(&h.Code, &h.Display, &status, &classtype, &h.Class)
	if err == sql.ErrNoRows {
		return nil, fmt.Sprintf("LOINC code %q not found", code)
	}
	if err != nil {
		return nil, err.Error()
	}
	h.Active = status == "ACTIVE"
	h.Extra = map[string]string{"STATUS": status, "CLASSTYPE": fmt.Sprintf("%d", classtype)}
	return &h, ""
}

func rowOf(h provider.Handle) *provider.SQLRowHandle {
	r, _ := h.(*provider.SQLRowHandle)
	return r
}

// Display returns the long common name, supplement overlays permitting.
func (p *Provider) Display(h provider.Handle, ctx *opcontext.Context) string {
	r := rowOf(h)
	if r == nil {
		return ""
	}
	return provider.SelectDisplay(ctx, p.Supps, r.Code, r.Display, "en")
}

func (p *Provider) IsInactive(h provider.Handle) bool {
	r := rowOf(h)
	return r != nil && !r.Active
}

func (p *Provider) Status(h provider.Handle) string {
	if r := rowOf(h); r != nil {
		return r.Extra["STATUS"]
	}
	return ""
}

// Designations merges the display with the SHORTNAME and CONSUMER_NAME
// properties and any supplement contributions.
func (p *Provider) Designations(h provider.Handle, ctx *opcontext.Context, d *opcontext.Designations) {
	r := rowOf(h)
	if r == nil {
		return
	}
	d.Add(opcontext.Designation{Preferred: true, Language: "en", Value: r.Display})
	for _, prop := range p.Properties(h, []string{"SHORTNAME", "CONSUMER_NAME"}) {
		d.Add(opcontext.Designation{Language: "en", Value: prop.Value})
	}
	provider.CollectDesignations(p.Supps, r.Code, d)
}

const sqlProperties = `select t.name, p.value from loinc_properties p
	join loinc_property_types t on t.id = p.property_type
	where p.code = $1`

// Properties reads the code's property rows, optionally restricted.
func (p *Provider) Properties(h provider.Handle, names []string) []provider.Property {
	r := rowOf(h)
	if r == nil {
		return nil
	}
	rows, err := p.db.Query(sqlProperties, r.Code)
	if err != nil {
		return nil
	}
	defer rows.Close()
	props := []provider.Property{
		{Name: "STATUS", Value: r.Extra["STATUS"], Type: "string"},
		{Name: "CLASSTYPE", Value: r.Extra["CLASSTYPE"], Type: "string"},
		{Name: "CLASS", Value: r.Class, Type: "string"},
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			break
		}
		props = append(props, provider.Property{Name: name, Value: value, Type: "string"})
	}
	props = append(props, provider.SupplementProperties(p.Supps, r.Code)...)
	return provider.FilterProperties(props, names)
}

// Parent returns the first multiaxial hierarchy parent.
func (p *Provider) Parent(h provider.Handle) string {
	r := rowOf(h)
	if r == nil {
		return ""
	}
	var parent string
	err := p.db.QueryRow("select parent from loinc_hierarchy where child = $1 limit 1", r.Code).Scan(&parent)
	if err != nil {
		return ""
	}
	return parent
}

// DoesFilter enumerates the supported (prop, op, value) triples.
func (p *Provider) DoesFilter(prop, op, value string) bool {
	switch prop {
	case "STATUS":
		return op == "="
	case "CLASSTYPE":
		return op == "=" && ClassTypeNumber(value) != ""
	case "LIST":
		return op == "="
	case "answers-for":
		return op == "="
	case "copyright":
		return op == "=" && (value == "LOINC" || value == "3rdParty")
	case "concept", "code":
		switch op {
		case "is-a", "descendent-of", "=", "in":
			return true
		}
		return false
	}
	if _, ok := p.f.relTypes[prop]; ok {
		return op == "=" || op == "in" || op == "exists" || op == "regex"
	}
	if _, ok := p.f.propTypes[prop]; ok {
		return op == "=" || op == "in" || op == "exists" || op == "regex"
	}
	return false
}

// Filter pushes one filter onto prep after a support check.
func (p *Provider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on LOINC", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

// SearchFilter pushes a text filter over display and shortname.
func (p *Provider) SearchFilter(prep *provider.Prep, text string, exact bool) error {
	return prep.Push(provider.AppliedFilter{Text: text, Exact: exact})
}

// BuildQuery translates the composed filters into one {joins, where,
// params} statement over loinc_codes.
func (p *Provider) BuildQuery(filters []provider.AppliedFilter) *relational.Query {
	q := &relational.Query{}
	for i, f := range filters {
		alias := fmt.Sprintf("f%d", i)
		switch {
		case f.Text != "":
			if f.Exact {
				q.AddWhere(fmt.Sprintf("upper(c.display) = upper(%s)", q.Placeholder(f.Text)))
			} else {
				q.AddWhere(fmt.Sprintf("c.display ilike %s", q.Placeholder("%"+f.Text+"%")))
			}
		case f.Property == "STATUS":
			q.AddWhere(fmt.Sprintf("c.status = %s", q.Placeholder(f.Value)))
		case f.Property == "CLASSTYPE":
			q.AddWhere(fmt.Sprintf("c.classtype = %s::int", q.Placeholder(ClassTypeNumber(f.Value))))
		case f.Property == "LIST":
			q.AddJoin(fmt.Sprintf("join loinc_list_members %s on %s.code = c.code", alias, alias))
			q.AddWhere(fmt.Sprintf("%s.list_code = %s", alias, q.Placeholder(f.Value)))
		case f.Property == "answers-for":
			q.AddJoin(fmt.Sprintf("join loinc_answers %s on %s.code = c.code", alias, alias))
			q.AddWhere(fmt.Sprintf("%s.answers_for = %s", alias, q.Placeholder(f.Value)))
		case f.Property == "copyright":
			sub := fmt.Sprintf("exists (select 1 from loinc_properties cp where cp.code = c.code and cp.property_type = %d)", copyrightPropertyType)
			if f.Value == "LOINC" {
				q.AddWhere("not " + sub)
			} else {
				q.AddWhere(sub)
			}
		case f.Property == "concept" || f.Property == "code":
			p.hierarchyClause(q, f)
		default:
			if relType, ok := p.f.relTypes[f.Property]; ok {
				q.AddJoin(fmt.Sprintf("join loinc_relationships %s on %s.code = c.code and %s.rel_type = %s",
					alias, alias, alias, q.Placeholder(relType)))
				addValueClause(q, alias+".target", f)
				continue
			}
			if propType, ok := p.f.propTypes[f.Property]; ok {
				q.AddJoin(fmt.Sprintf("join loinc_properties %s on %s.code = c.code and %s.property_type = %s::int",
					alias, alias, alias, q.Placeholder(propType)))
				addValueClause(q, alias+".value", f)
			}
		}
	}
	return q
}

// hierarchyClause translates the concept/code pseudo-property kept as a
// VSAC workaround: equality, refset-style `in`, and hierarchy walks over
// the multiaxial table via a recursive CTE.
func (p *Provider) hierarchyClause(q *relational.Query, f provider.AppliedFilter) {
	switch f.Op {
	case "=":
		q.AddWhere(fmt.Sprintf("c.code = %s", q.Placeholder(f.Value)))
	case "in":
		codes := strings.Split(f.Value, ",")
		placeholders := make([]string, len(codes))
		for i, code := range codes {
			placeholders[i] = q.Placeholder(strings.TrimSpace(code))
		}
		q.AddWhere("c.code in (" + strings.Join(placeholders, ", ") + ")")
	case "is-a", "descendent-of":
		cte := fmt.Sprintf(`c.code in (with recursive h(code) as (
			select %s::text
			union
			select hy.child from loinc_hierarchy hy join h on hy.parent = h.code
		) select code from h)`, q.Placeholder(f.Value))
		if f.Op == "descendent-of" {
			cte += fmt.Sprintf(" and c.code <> %s", q.Placeholder(f.Value))
		}
		q.AddWhere(cte)
	}
}

func addValueClause(q *relational.Query, column string, f provider.AppliedFilter) {
	switch f.Op {
	case "=":
		q.AddWhere(fmt.Sprintf("%s = %s", column, q.Placeholder(f.Value)))
	case "in":
		vals := strings.Split(f.Value, ",")
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			placeholders[i] = q.Placeholder(strings.TrimSpace(v))
		}
		q.AddWhere(fmt.Sprintf("%s in (%s)", column, strings.Join(placeholders, ", ")))
	case "exists":
		if f.Value == "false" {
			q.AddWhere(fmt.Sprintf("%s is null", column))
		} else {
			q.AddWhere(fmt.Sprintf("%s is not null", column))
		}
	case "regex":
		q.AddWhere(fmt.Sprintf("%s ~ %s", column, q.Placeholder(f.Value)))
	}
}

// ExecuteFilters composes all filters into one statement and
// materialises a pre-sorted key array so FilterLocate becomes a
// membership probe rather than a full scan.
func (p *Provider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	q := p.BuildQuery(prep.Filters)
	keys, err := relational.QueryKeys(p.opctx.Ctx(), p.db, q.SQL("c.code", "loinc_codes c", "c.code"), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("loinc: executing filters: %w", err)
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
	k := keysOf(set)
	if k == nil || !k.Contains(strings.ToUpper(code)) && !k.Contains(code) {
		return nil, fmt.Sprintf("LOINC code %q is not in the filtered set", code)
	}
	return p.Locate(code)
}

func (p *Provider) FilterCheck(set *provider.FilterSet, h provider.Handle) (bool, error) {
	if set.Prep() != nil {
		if err := set.Prep().CheckProbe(); err != nil {
			return false, err
		}
	}
	r := rowOf(h)
	if r == nil {
		return false, nil
	}
	k := keysOf(set)
	return k != nil && k.Contains(r.Code), nil
}

// Close releases nothing: the pool belongs to the factory.
func (p *Provider) Close() error { return nil }
