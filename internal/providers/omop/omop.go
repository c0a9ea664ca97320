// Package omop is the OMOP standardized-vocabularies provider over the
// CDM vocabulary tables. Concepts are keyed by OMOP concept id;
// translations walk "Maps to" relationships and render targets in FHIR
// system URIs via the fixed vocabulary-id mapping table.
package omop

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
	"github.com/wardle/go-terminology/internal/providers/relational"
)

// SystemURI is the system URI under which OMOP concept ids are served.
const SystemURI = "https://fhir-terminology.ohdsi.org"

// vocabularyURIs is the fixed OMOP vocabulary-id to FHIR system URI
// mapping.
var vocabularyURIs = map[string]string{
	"SNOMED":   "http://snomed.info/sct",
	"LOINC":    "http://loinc.org",
	"RxNorm":   "http://www.nlm.nih.gov/research/umls/rxnorm",
	"CPT4":     "http://www.ama-assn.org/go/cpt",
	"NDC":      "http://hl7.org/fhir/sid/ndc",
	"ICD9CM":   "http://hl7.org/fhir/sid/icd-9-cm",
	"ICD10CM":  "http://hl7.org/fhir/sid/icd-10-cm",
	"ICD10":    "http://hl7.org/fhir/sid/icd-10",
	"HCPCS":    "http://www.cms.gov/Medicare/Coding/HCPCSReleaseCodeSets",
	"ATC":      "http://www.whocc.no/atc",
	"UCUM":     "http://unitsofmeasure.org",
	"Gender":   "http://hl7.org/fhir/administrative-gender",
}

// VocabularyURI maps an OMOP vocabulary id to its FHIR system URI.
func VocabularyURI(vocabularyID string) (string, bool) {
	uri, ok := vocabularyURIs[vocabularyID]
	return uri, ok
}

// VocabularyID maps a FHIR system URI back to its OMOP vocabulary id.
func VocabularyID(uri string) (string, bool) {
	for id, u := range vocabularyURIs {
		if u == uri {
			return id, true
		}
	}
	return "", false
}

// Factory opens the OMOP database once, caching the version, counts and
// domain list.
type Factory struct {
	db      *sql.DB
	version string
	count   int
	domains map[string]string
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
	if err := f.db.QueryRow("select vocabulary_version from vocabulary where vocabulary_id = 'None'").Scan(&f.version); err != nil {
		return fmt.Errorf("omop: reading version: %w", err)
	}
	var err error
	if f.count, err = relational.CountRows(f.db, "concept"); err != nil {
		return fmt.Errorf("omop: counting concepts: %w", err)
	}
	if f.domains, err = relational.LoadLookup(f.db, "select domain_id, domain_name from domain"); err != nil {
		return fmt.Errorf("omop: domains: %w", err)
	}
	return nil
}

func (f *Factory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return &Provider{
		Base: provider.Base{
			SystemURI:      SystemURI,
			VersionStr:     f.version,
			NameStr:        "OMOP",
			DescriptionStr: "OMOP standardized vocabularies " + f.version,
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

// Provider is one request's OMOP provider.
type Provider struct {
	provider.Base
	db    *sql.DB
	f     *Factory
	opctx *opcontext.Context
}

var _ provider.Provider = (*Provider)(nil)

const sqlLocate = `select concept_id::text, concept_name, domain_id, concept_class_id, vocabulary_id,
	coalesce(standard_concept, ''), coalesce(invalid_reason, '')
	from concept where concept_id = $1::bigint`

// Locate resolves an OMOP concept id; the handle pre-materialises
// domain, class and vocabulary.
func (p *Provider) Locate(code string) (provider.Handle, string) {
	var h provider.SQLRowHandle
	var standard, invalid string
	err := p.db.QueryRow(sqlLocate, code).Scan(&h.Code, &h.Display, &h.Domain, &h.Class, &h.Vocabulary, &standard, &invalid)
	if err == sql.ErrNoRows {
		return nil, fmt.Sprintf("OMOP concept %q not found", code)
	}
	if err != nil {
		return nil, err.Error()
	}
	h.Active = invalid == ""
	h.Extra = map[string]string{"standard_concept": standard}
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

// Properties exposes domain, class, vocabulary and standard-concept
// status.
func (p *Provider) Properties(h provider.Handle, names []string) []provider.Property {
	r := rowOf(h)
	if r == nil {
		return nil
	}
	props := []provider.Property{
		{Name: "domain", Value: r.Domain, Type: "string"},
		{Name: "concept-class", Value: r.Class, Type: "string"},
		{Name: "vocabulary", Value: r.Vocabulary, Type: "string"},
		{Name: "standard-concept", Value: r.Extra["standard_concept"], Type: "string"},
	}
	props = append(props, provider.SupplementProperties(p.Supps, r.Code)...)
	return provider.FilterProperties(props, names)
}

// DoesFilter supports domain and vocabulary restriction.
func (p *Provider) DoesFilter(prop, op, value string) bool {
	switch prop {
	case "domain":
		_, ok := p.f.domains[value]
		return op == "=" && ok
	case "vocabulary":
		return op == "="
	}
	return false
}

func (p *Provider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on OMOP", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

// SearchFilter is an unimplemented path of the source, surfaced rather
// than silently returning empty.
func (p *Provider) SearchFilter(prep *provider.Prep, text string, exact bool) error {
	return fmt.Errorf("%w: text search on OMOP", provider.ErrFeatureUnsupported)
}

// BuildQuery translates the composed filters. A domain filter restricts
// to standard concepts of the named domain.
func (p *Provider) BuildQuery(filters []provider.AppliedFilter) *relational.Query {
	q := &relational.Query{}
	for _, f := range filters {
		switch f.Property {
		case "domain":
			q.AddWhere("c.standard_concept = 'S'")
			q.AddWhere(fmt.Sprintf("c.domain_id = %s", q.Placeholder(f.Value)))
		case "vocabulary":
			q.AddWhere(fmt.Sprintf("c.vocabulary_id = %s", q.Placeholder(f.Value)))
		}
	}
	return q
}

func (p *Provider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	q := p.BuildQuery(prep.Filters)
	keys, err := relational.QueryKeys(p.opctx.Ctx(), p.db,
		q.SQL("c.concept_id::text", "concept c", "c.concept_id"), q.Params...)
	if err != nil {
		return nil, fmt.Errorf("omop: executing filters: %w", err)
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
		return nil, fmt.Sprintf("OMOP concept %q is not in the filtered set", code)
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

const sqlTranslations = `select t.concept_code, t.concept_name, t.vocabulary_id
	from concept_relationship r
	join concept t on t.concept_id = r.concept_id_2
	where r.concept_id_1 = $1::bigint and r.relationship_id = 'Maps to'`

// Translations materialises the "Maps to" targets of coding in
// targetSystem, each rendered as an equivalent mapping.
func (p *Provider) Translations(coding provider.Coding, targetSystem string) ([]provider.Translation, error) {
	targetVocab, ok := VocabularyID(targetSystem)
	if !ok && targetSystem != "" {
		return nil, fmt.Errorf("omop: no vocabulary mapping for system %s", targetSystem)
	}
	rows, err := p.db.Query(sqlTranslations, coding.Code)
	if err != nil {
		return nil, fmt.Errorf("omop: translations: %w", err)
	}
	defer rows.Close()
	var out []provider.Translation
	for rows.Next() {
		var code, display, vocab string
		if err := rows.Scan(&code, &display, &vocab); err != nil {
			return nil, err
		}
		if targetVocab != "" && vocab != targetVocab {
			continue
		}
		uri, ok := VocabularyURI(vocab)
		if !ok {
			continue
		}
		out = append(out, provider.Translation{
			URI:          uri,
			Code:         code,
			Display:      display,
			Relationship: "equivalent",
			Map:          "Maps to",
		})
	}
	return out, rows.Err()
}

// Close releases nothing: the pool belongs to the factory.
func (p *Provider) Close() error { return nil }
