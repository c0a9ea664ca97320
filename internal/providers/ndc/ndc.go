// Package ndc is the NDC (National Drug Code) provider. Packages carry
// both the 10-digit hyphenated and the 11-digit non-hyphenated form of
// their code; locate matches either form and the handle keeps the form
// the caller presented.
package ndc

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/providers/relational"
)

// SystemURI is the canonical NDC system URI.
const SystemURI = "http://hl7.org/fhir/sid/ndc"

// Normalize11 converts a 10-digit hyphenated package code (4-4-2, 5-3-2
// or 5-4-1 segments) to its 11-digit non-hyphenated form by
// zero-padding the short segment to 5-4-2. A code in neither form
// returns ok=false.
func Normalize11(code string) (string, bool) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		if len(code) == 11 && isDigits(code) {
			return code, true
		}
		return "", false
	}
	for _, p := range parts {
		if !isDigits(p) {
			return "", false
		}
	}
	l, p, k := parts[0], parts[1], parts[2]
	switch {
	case len(l) == 4 && len(p) == 4 && len(k) == 2:
		l = "0" + l
	case len(l) == 5 && len(p) == 3 && len(k) == 2:
		p = "0" + p
	case len(l) == 5 && len(p) == 4 && len(k) == 1:
		k = "0" + k
	case len(l) == 5 && len(p) == 4 && len(k) == 2:
		// already fully padded, hyphenated
	default:
		return "", false
	}
	return l + p + k, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Factory opens the NDC database once and caches counts and version.
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
	if err := f.db.QueryRow("select version from ndc_metadata limit 1").Scan(&f.version); err != nil {
		return fmt.Errorf("ndc: reading version: %w", err)
	}
	packages, err := relational.CountRows(f.db, "ndc_packages")
	if err != nil {
		return fmt.Errorf("ndc: counting packages: %w", err)
	}
	products, err := relational.CountRows(f.db, "ndc_products")
	if err != nil {
		return fmt.Errorf("ndc: counting products: %w", err)
	}
	f.count = packages + products
	return nil
}

func (f *Factory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return &Provider{
		Base: provider.Base{
			SystemURI:      SystemURI,
			VersionStr:     f.version,
			NameStr:        "NDC",
			DescriptionStr: "National Drug Codes, release " + f.version,
			Total:          f.count,
			CaseSensitive:  false,
			Supps:          supplements,
		},
		db:    f.db,
		opctx: ctx,
	}, nil
}

func (f *Factory) Close() error { return f.db.Close() }

// Provider is one request's NDC provider.
type Provider struct {
	provider.Base
	db    *sql.DB
	opctx *opcontext.Context
}

var _ provider.Provider = (*Provider)(nil)

const (
	sqlLocatePackage = `select code10, code11, product_code, display, active from ndc_packages
		where code10 = $1 or code11 = $2`
	sqlLocateProduct = `select code, display, active from ndc_products where code = $1`
)

// Locate resolves a package by either of its two code forms, falling
// back to product codes. The handle's code equals the queried form.
func (p *Provider) Locate(code string) (provider.Handle, string) {
	code = strings.TrimSpace(code)
	code11, _ := Normalize11(code)
	var h provider.SQLRowHandle
	var code10, code11Stored, productCode string
	err := p.db.QueryRow(sqlLocatePackage, code, code11).Scan(&code10, &code11Stored, &productCode, &h.Display, &h.Active)
	switch {
	case err == nil:
		h.Code = code // the queried form, per the dual-form contract
		h.Domain = "package"
		h.Extra = map[string]string{"code10": code10, "code11": code11Stored, "product": productCode}
		return &h, ""
	case err != sql.ErrNoRows:
		return nil, err.Error()
	}
	err = p.db.QueryRow(sqlLocateProduct, code).Scan(&h.Code, &h.Display, &h.Active)
	if err == sql.ErrNoRows {
		return nil, fmt.Sprintf("NDC code %q not found as package or product", code)
	}
	if err != nil {
		return nil, err.Error()
	}
	h.Domain = "product"
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

// Properties exposes the alternate code forms and owning product.
func (p *Provider) Properties(h provider.Handle, names []string) []provider.Property {
	r := rowOf(h)
	if r == nil {
		return nil
	}
	props := []provider.Property{{Name: "code-type", Value: r.Domain, Type: "string"}}
	if r.Domain == "package" {
		props = append(props,
			provider.Property{Name: "code10", Value: r.Extra["code10"], Type: "code"},
			provider.Property{Name: "code11", Value: r.Extra["code11"], Type: "code"},
			provider.Property{Name: "product", Value: r.Extra["product"], Type: "code"})
	}
	props = append(props, provider.SupplementProperties(p.Supps, r.Code)...)
	return provider.FilterProperties(props, names)
}

// DoesFilter supports the code-type filter.
func (p *Provider) DoesFilter(prop, op, value string) bool {
	if prop != "code-type" || op != "=" {
		return false
	}
	switch value {
	case "10-digit", "11-digit", "product":
		return true
	}
	return false
}

func (p *Provider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on NDC", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

func (p *Provider) SearchFilter(prep *provider.Prep, text string, exact bool) error {
	return prep.Push(provider.AppliedFilter{Text: text, Exact: exact})
}

// ExecuteFilters materialises the matching code keys: code10 or code11
// for the package code-types, the product table otherwise.
func (p *Provider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	column, from := "code11", "ndc_packages"
	var where []string
	var params []interface{}
	for _, f := range prep.Filters {
		switch {
		case f.Text != "":
			params = append(params, "%"+f.Text+"%")
			where = append(where, fmt.Sprintf("display ilike $%d", len(params)))
		case f.Property == "code-type":
			switch f.Value {
			case "10-digit":
				column = "code10"
			case "11-digit":
				column = "code11"
			case "product":
				column, from = "code", "ndc_products"
			}
		}
	}
	query := "select " + column + " from " + from
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by " + column
	keys, err := relational.QueryKeys(p.opctx.Ctx(), p.db, query, params...)
	if err != nil {
		return nil, fmt.Errorf("ndc: executing filters: %w", err)
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
	code11, _ := Normalize11(code)
	if k == nil || !k.Contains(code) && !k.Contains(code11) {
		return nil, fmt.Sprintf("NDC code %q is not in the filtered set", code)
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
	if k == nil {
		return false, nil
	}
	if k.Contains(r.Code) {
		return true, nil
	}
	return k.Contains(r.Extra["code10"]) || k.Contains(r.Extra["code11"]), nil
}

// Close releases nothing: the pool belongs to the factory.
func (p *Provider) Close() error { return nil }
