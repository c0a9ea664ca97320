// Package rxnorm is the RxNorm provider over the RRF-derived relational
// schema: rxnconso concepts, rxnrel relationships, rxnsty semantic types
// and the rxnstems table backing stemmed text search, where each search
// stem joins its own rxnstems alias.
package rxnorm

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/blevesearch/go-porterstemmer"
	_ "github.com/lib/pq"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/providers/relational"
)

// SystemURI is the canonical RxNorm system URI. The NCI variant shares
// this provider with a different URI and source vocabulary restriction.
const SystemURI = "http://www.nlm.nih.gov/research/umls/rxnorm"

// Stems lower-cases, splits and Porter-stems a search phrase, the same
// normalisation the rxnstems table rows were built with.
func Stems(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		stem := string(porterstemmer.StemWithoutLowerCasing([]rune(f)))
		if stem != "" && !seen[stem] {
			seen[stem] = true
			out = append(out, stem)
		}
	}
	return out
}

// Factory opens the RxNorm database once, caching version, counts and
// the term-type, semantic-type, source and relationship lookup tables.
type Factory struct {
	db      *sql.DB
	version string
	count   int
	ttys    map[string]string
	stys    map[string]string
	sabs    map[string]string
	rels    map[string]string
	relas   map[string]string
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
	if err := f.db.QueryRow("select version from rxnorm_metadata limit 1").Scan(&f.version); err != nil {
		return fmt.Errorf("rxnorm: reading version: %w", err)
	}
	var err error
	if f.count, err = relational.CountRows(f.db, "rxnconso where sab = 'RXNORM'"); err != nil {
		return fmt.Errorf("rxnorm: counting concepts: %w", err)
	}
	loads := []struct {
		dst   *map[string]string
		query string
	}{
		{&f.ttys, "select distinct tty, tty from rxnconso"},
		{&f.stys, "select distinct sty, sty from rxnsty"},
		{&f.sabs, "select distinct sab, sab from rxnconso"},
		{&f.rels, "select distinct rel, rel from rxnrel where rel is not null"},
		{&f.relas, "select distinct rela, rela from rxnrel where rela is not null"},
	}
	for _, l := range loads {
		if *l.dst, err = relational.LoadLookup(f.db, l.query); err != nil {
			return fmt.Errorf("rxnorm: %w", err)
		}
	}
	return nil
}

func (f *Factory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return &Provider{
		Base: provider.Base{
			SystemURI:      SystemURI,
			VersionStr:     f.version,
			NameStr:        "RxNorm",
			DescriptionStr: "RxNorm release " + f.version,
			Total:          f.count,
			CaseSensitive:  false,
			Supps:          supplements,
		},
		db:    f.db,
		f:     f,
		opctx: ctx,
	}, nil
}

func (f *Factory) Close() error { return f.db.Close() }

// Provider is one request's RxNorm provider.
type Provider struct {
	provider.Base
	db    *sql.DB
	f     *Factory
	opctx *opcontext.Context
}

var _ provider.Provider = (*Provider)(nil)

const sqlLocate = `select rxcui, str, tty, suppress from rxnconso
	where rxcui = $1 and sab = 'RXNORM' order by tty = 'SCD' desc, rxaui limit 1`

// Locate resolves an RXCUI to its preferred RXNORM atom.
func (p *Provider) Locate(code string) (provider.Handle, string) {
	var h provider.SQLRowHandle
	var tty, suppress string
	err := p.db.QueryRow(sqlLocate, code).Scan(&h.Code, &h.Display, &tty, &suppress)
	if err == sql.ErrNoRows {
		return nil, fmt.Sprintf("RxNorm concept %q not found", code)
	}
	if err != nil {
		return nil, err.Error()
	}
	h.Active = suppress != "Y" && suppress != "O"
	h.Extra = map[string]string{"tty": tty}
	return &h, ""
}

func rowOf(h provider.Handle) *provider.SQLRowHandle {
	r, _ := h.(*provider.SQLRowHandle)
	return r
}

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

// Designations collects every RXNORM atom string of the concept.
func (p *Provider) Designations(h provider.Handle, ctx *opcontext.Context, d *opcontext.Designations) {
	r := rowOf(h)
	if r == nil {
		return
	}
	rows, err := p.db.Query("select str, tty from rxnconso where rxcui = $1 and sab = 'RXNORM' order by rxaui", r.Code)
	if err != nil {
		return
	}
	defer rows.Close()
	first := true
	for rows.Next() {
		var str, tty string
		if err := rows.Scan(&str, &tty); err != nil {
			break
		}
		d.Add(opcontext.Designation{Preferred: first, Language: "en", Use: opcontext.Use{Code: tty}, Value: str})
		first = false
	}
	provider.CollectDesignations(p.Supps, r.Code, d)
}

// Properties exposes TTY and the semantic types.
func (p *Provider) Properties(h provider.Handle, names []string) []provider.Property {
	r := rowOf(h)
	if r == nil {
		return nil
	}
	props := []provider.Property{{Name: "TTY", Value: r.Extra["tty"], Type: "string"}}
	rows, err := p.db.Query("select sty from rxnsty where rxcui = $1", r.Code)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var sty string
			if err := rows.Scan(&sty); err != nil {
				break
			}
			props = append(props, provider.Property{Name: "STY", Value: sty, Type: "string"})
		}
	}
	props = append(props, provider.SupplementProperties(p.Supps, r.Code)...)
	return provider.FilterProperties(props, names)
}

// DoesFilter supports TTY, STY and SAB equality/in, and per-REL/per-RELA
// equality whose target is a `CUI:` or `AUI:` reference.
func (p *Provider) DoesFilter(prop, op, value string) bool {
	switch prop {
	case "TTY":
		return op == "=" || op == "in"
	case "STY", "SAB":
		return op == "=" || op == "in"
	}
	_, isRel := p.f.rels[prop]
	_, isRela := p.f.relas[prop]
	if isRel || isRela {
		return op == "=" && (strings.HasPrefix(value, "CUI:") || strings.HasPrefix(value, "AUI:"))
	}
	return false
}

func (p *Provider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on RxNorm", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

func (p *Provider) SearchFilter(prep *provider.Prep, text string, exact bool) error {
	return prep.Push(provider.AppliedFilter{Text: text, Exact: exact})
}

// BuildQuery translates the composed filters into one statement over the
// RXNORM atoms. Each text-search stem joins its own rxnstems alias.
func (p *Provider) BuildQuery(filters []provider.AppliedFilter) *relational.Query {
	q := &relational.Query{}
	q.AddWhere("c.sab = 'RXNORM'")
	for i, f := range filters {
		alias := fmt.Sprintf("f%d", i)
		switch {
		case f.Text != "":
			for j, stem := range Stems(f.Text) {
				sa := fmt.Sprintf("%ss%d", alias, j)
				q.AddJoin(fmt.Sprintf("join rxnstems %s on %s.cui = c.rxcui and %s.stem = %s",
					sa, sa, sa, q.Placeholder(stem)))
			}
		case f.Property == "TTY":
			addInClause(q, "c.tty", f)
		case f.Property == "STY":
			q.AddJoin(fmt.Sprintf("join rxnsty %s on %s.rxcui = c.rxcui", alias, alias))
			addInClause(q, alias+".sty", f)
		case f.Property == "SAB":
			match := "= " + q.Placeholder(f.Value)
			if f.Op == "in" {
				vals := strings.Split(f.Value, ",")
				placeholders := make([]string, len(vals))
				for j, v := range vals {
					placeholders[j] = q.Placeholder(strings.TrimSpace(v))
				}
				match = fmt.Sprintf("in (%s)", strings.Join(placeholders, ", "))
			}
			q.AddWhere(fmt.Sprintf("exists (select 1 from rxnconso %s where %s.rxcui = c.rxcui and %s.sab %s)",
				alias, alias, alias, match))
		default: // REL or RELA
			column := "rela"
			if _, isRel := p.f.rels[f.Property]; isRel {
				column = "rel"
			}
			target, targetColumn := strings.TrimPrefix(f.Value, "CUI:"), "rxcui2"
			if strings.HasPrefix(f.Value, "AUI:") {
				target, targetColumn = strings.TrimPrefix(f.Value, "AUI:"), "rxaui2"
			}
			q.AddJoin(fmt.Sprintf("join rxnrel %s on %s.rxcui1 = c.rxcui and %s.%s = %s and %s.%s = %s",
				alias, alias, alias, column, q.Placeholder(f.Property), alias, targetColumn, q.Placeholder(target)))
		}
	}
	return q
}

func addInClause(q *relational.Query, column string, f provider.AppliedFilter) {
	if f.Op == "=" {
		q.AddWhere(fmt.Sprintf("%s = %s", column, q.Placeholder(f.Value)))
		return
	}
	vals := strings.Split(f.Value, ",")
	placeholders := make([]string, len(vals))
	for i, v := range vals {
		placeholders[i] = q.Placeholder(strings.TrimSpace(v))
	}
	q.AddWhere(fmt.Sprintf("%s in (%s)", column, strings.Join(placeholders, ", ")))
}

func (p *Provider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	q := p.BuildQuery(prep.Filters)
	keys, err := relational.QueryKeys(p.opctx.Ctx(), p.db,
		q.SQL("distinct c.rxcui", "rxnconso c", "c.rxcui"), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("rxnorm: executing filters: %w", err)
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
	if k == nil || !k.Contains(code) {
		return nil, fmt.Sprintf("RxNorm concept %q is not in the filtered set", code)
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
