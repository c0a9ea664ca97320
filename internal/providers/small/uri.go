// Package small holds the in-memory providers for the little code
// systems: RFC 3986 URIs, BCP 13 MIME types, BCP 47 language tags, the
// USPS state table and the remote-validated HGVS nomenclature.
package small

import (
	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// URISystem is the URI code system identifier.
const URISystem = "urn:ietf:rfc:3986"

// URIProvider accepts any string as a code; displays come only from
// supplements.
type URIProvider struct {
	provider.Base
}

var _ provider.Provider = (*URIProvider)(nil)

// NewURIProvider builds the provider.
func NewURIProvider(supplements []*provider.Supplement) *URIProvider {
	return &URIProvider{Base: provider.Base{
		SystemURI:      URISystem,
		NameStr:        "URI",
		DescriptionStr: "Uniform resource identifiers (RFC 3986)",
		Total:          -1,
		CaseSensitive:  true,
		NotClosed:      true,
		Supps:          supplements,
	}}
}

// Locate accepts any string.
func (p *URIProvider) Locate(code string) (provider.Handle, string) {
	return provider.StringHandle(code), ""
}

// Display comes only from supplements.
func (p *URIProvider) Display(h provider.Handle, ctx *opcontext.Context) string {
	if h == nil {
		return ""
	}
	return provider.SelectDisplay(ctx, p.Supps, h.HandleCode(), "", "")
}

// URIFactory registers the provider.
type URIFactory struct{}

func (URIFactory) System() string  { return URISystem }
func (URIFactory) Version() string { return "" }
func (URIFactory) Load() error     { return nil }
func (URIFactory) Close() error    { return nil }
func (URIFactory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return NewURIProvider(supplements), nil
}
