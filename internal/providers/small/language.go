package small

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// LanguageSystem is the BCP 47 language-tag code system identifier.
const LanguageSystem = "urn:ietf:bcp:47"

// langParts are the tag components the exists filters may name.
var langParts = map[string]bool{
	"language": true, "ext-lang": true, "script": true, "region": true,
	"variant": true, "extension": true, "private-use": true,
}

// LanguageHandle is a parsed BCP 47 tag with its components split out
// for the exists filters.
type LanguageHandle struct {
	code  string
	Parts map[string]string
}

// HandleCode implements provider.Handle.
func (h *LanguageHandle) HandleCode() string { return h.code }

// parseTag splits a tag into its named components via the language
// definitions table of golang.org/x/text.
func parseTag(code string) (*LanguageHandle, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("%q is not a valid BCP 47 language tag", code)
	}
	h := &LanguageHandle{code: code, Parts: make(map[string]string)}
	if base, conf := tag.Base(); conf != language.No {
		h.Parts["language"] = base.String()
	}
	if script, conf := tag.Script(); conf > language.Low {
		h.Parts["script"] = script.String()
	}
	if region, conf := tag.Region(); conf > language.Low && region.IsCountry() {
		h.Parts["region"] = region.String()
	}
	for _, piece := range strings.Split(code, "-")[1:] {
		switch {
		case len(piece) >= 5 && len(piece) <= 8 || len(piece) == 4 && piece[0] >= '0' && piece[0] <= '9':
			h.Parts["variant"] = piece
		case piece == "x":
			h.Parts["private-use"] = piece
		case len(piece) == 1:
			h.Parts["extension"] = piece
		case len(piece) == 3 && h.Parts["ext-lang"] == "" && strings.ToLower(piece) == piece:
			h.Parts["ext-lang"] = piece
		}
	}
	return h, nil
}

// LanguageProvider parses BCP 47 tags; the grammar-based value set is not
// enumerable, so expansion over it reports filters-not-closed.
type LanguageProvider struct {
	provider.Base
}

var _ provider.Provider = (*LanguageProvider)(nil)

// NewLanguageProvider builds the provider.
func NewLanguageProvider(supplements []*provider.Supplement) *LanguageProvider {
	return &LanguageProvider{Base: provider.Base{
		SystemURI:      LanguageSystem,
		NameStr:        "IETF language tags",
		DescriptionStr: "Language tags (BCP 47)",
		Total:          -1,
		CaseSensitive:  false,
		NotClosed:      true,
		Supps:          supplements,
	}}
}

// Locate parses the tag.
func (p *LanguageProvider) Locate(code string) (provider.Handle, string) {
	h, err := parseTag(code)
	if err != nil {
		return nil, err.Error()
	}
	return h, ""
}

// Display renders the tag's self-describing display.
func (p *LanguageProvider) Display(h provider.Handle, ctx *opcontext.Context) string {
	lh, ok := h.(*LanguageHandle)
	if !ok {
		return ""
	}
	native := provider.SelectDisplay(ctx, p.Supps, lh.code, "", "")
	if native != "" {
		return native
	}
	return lh.code
}

// DoesFilter supports only `{part} exists true|false`.
func (p *LanguageProvider) DoesFilter(prop, op, value string) bool {
	return langParts[prop] && op == "exists" && (value == "true" || value == "false")
}

func (p *LanguageProvider) Filter(prep *provider.Prep, prop, op, value string) error {
	if !p.DoesFilter(prop, op, value) {
		return fmt.Errorf("%w: %s %s %s on BCP 47", provider.ErrFilterNotSupported, prop, op, value)
	}
	return prep.Push(provider.AppliedFilter{Property: prop, Op: op, Value: value})
}

// ExecuteFilters finalises the predicates; the set can only be probed,
// never iterated - the grammar admits infinitely many tags.
func (p *LanguageProvider) ExecuteFilters(prep *provider.Prep) ([]*provider.FilterSet, error) {
	filters := make([]provider.AppliedFilter, len(prep.Filters))
	copy(filters, prep.Filters)
	sets := []*provider.FilterSet{provider.NewFilterSet(filters)}
	if err := prep.MarkExecuted(sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// FilterMore reports filters-not-closed: consumers must not attempt
// expansion.
func (p *LanguageProvider) FilterMore(set *provider.FilterSet) (bool, error) {
	return false, provider.ErrFiltersNotClosed
}

// FilterLocate parses the code and checks it against the predicates.
func (p *LanguageProvider) FilterLocate(set *provider.FilterSet, code string) (provider.Handle, string) {
	h, msg := p.Locate(code)
	if h == nil {
		return nil, msg
	}
	ok, err := p.FilterCheck(set, h)
	if err != nil {
		return nil, err.Error()
	}
	if !ok {
		return nil, fmt.Sprintf("%q does not satisfy the language-tag filters", code)
	}
	return h, ""
}

// FilterCheck evaluates the exists predicates against the parsed tag.
func (p *LanguageProvider) FilterCheck(set *provider.FilterSet, h provider.Handle) (bool, error) {
	lh, ok := h.(*LanguageHandle)
	if !ok {
		return false, nil
	}
	filters, _ := set.Payload.([]provider.AppliedFilter)
	for _, f := range filters {
		_, present := lh.Parts[f.Property]
		if present != (f.Value == "true") {
			return false, nil
		}
	}
	return true, nil
}

// LanguageFactory registers the provider.
type LanguageFactory struct{}

func (LanguageFactory) System() string  { return LanguageSystem }
func (LanguageFactory) Version() string { return "" }
func (LanguageFactory) Load() error     { return nil }
func (LanguageFactory) Close() error    { return nil }
func (LanguageFactory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return NewLanguageProvider(supplements), nil
}
