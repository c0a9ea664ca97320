package small

import (
	"fmt"
	"strings"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// MIMESystem is the BCP 13 media-type code system identifier.
const MIMESystem = "urn:ietf:bcp:13"

// MIMEProvider validates `type/subtype` codes, stripping any parameters;
// the value set is grammar-based and not enumerable.
type MIMEProvider struct {
	provider.Base
}

var _ provider.Provider = (*MIMEProvider)(nil)

// NewMIMEProvider builds the provider.
func NewMIMEProvider(supplements []*provider.Supplement) *MIMEProvider {
	return &MIMEProvider{Base: provider.Base{
		SystemURI:      MIMESystem,
		NameStr:        "MIME types",
		DescriptionStr: "Media types (BCP 13)",
		Total:          -1,
		CaseSensitive:  false,
		NotClosed:      true,
		Supps:          supplements,
	}}
}

// mimeTypes are the registered top-level media types.
var mimeTypes = map[string]bool{
	"application": true, "audio": true, "font": true, "example": true,
	"image": true, "message": true, "model": true, "multipart": true,
	"text": true, "video": true,
}

// Locate validates the `type/subtype` form, stripping parameters.
func (p *MIMEProvider) Locate(code string) (provider.Handle, string) {
	stripped := code
	if i := strings.IndexByte(stripped, ';'); i >= 0 {
		stripped = strings.TrimSpace(stripped[:i])
	}
	parts := strings.SplitN(stripped, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Sprintf("%q is not a valid media type (type/subtype)", code)
	}
	if !mimeTypes[strings.ToLower(parts[0])] {
		return nil, fmt.Sprintf("%q is not a registered top-level media type", parts[0])
	}
	return provider.StringHandle(stripped), ""
}

// Display: media types carry no displays.
func (p *MIMEProvider) Display(h provider.Handle, ctx *opcontext.Context) string {
	return ""
}

// MIMEFactory registers the provider.
type MIMEFactory struct{}

func (MIMEFactory) System() string  { return MIMESystem }
func (MIMEFactory) Version() string { return "" }
func (MIMEFactory) Load() error     { return nil }
func (MIMEFactory) Close() error    { return nil }
func (MIMEFactory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return NewMIMEProvider(supplements), nil
}
