package small

import (
	"fmt"
	"sort"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// USStatesSystem is the USPS state-code system identifier.
const USStatesSystem = "https://www.usps.com/"

// usStates is the static USPS two-letter table: the fifty states, the
// district and the territories.
var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
	"DC": "District of Columbia",
	"AS": "American Samoa", "FM": "Federated States of Micronesia", "GU": "Guam",
	"MH": "Marshall Islands", "MP": "Northern Mariana Islands", "PW": "Palau",
	"PR": "Puerto Rico", "VI": "Virgin Islands",
}

// USStatesProvider is the static 59-row USPS table with case-sensitive
// code lookup.
type USStatesProvider struct {
	provider.Base
	codes []string
}

var _ provider.Provider = (*USStatesProvider)(nil)

// NewUSStatesProvider builds the provider.
func NewUSStatesProvider(supplements []*provider.Supplement) *USStatesProvider {
	codes := make([]string, 0, len(usStates))
	for code := range usStates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return &USStatesProvider{
		Base: provider.Base{
			SystemURI:      USStatesSystem,
			NameStr:        "USPS state codes",
			DescriptionStr: "United States Postal Service two-letter state and possession abbreviations",
			Total:          len(usStates),
			CaseSensitive:  true,
			Supps:          supplements,
		},
		codes: codes,
	}
}

// Locate is a case-sensitive table lookup.
func (p *USStatesProvider) Locate(code string) (provider.Handle, string) {
	if _, ok := usStates[code]; !ok {
		return nil, fmt.Sprintf("%q is not a USPS state code", code)
	}
	return provider.StringHandle(code), ""
}

// Display returns the state name.
func (p *USStatesProvider) Display(h provider.Handle, ctx *opcontext.Context) string {
	if h == nil {
		return ""
	}
	return provider.SelectDisplay(ctx, p.Supps, h.HandleCode(), usStates[h.HandleCode()], "en")
}

type stateCursor struct{ pos int }

// Iterator enumerates the whole table in code order.
func (p *USStatesProvider) Iterator(h provider.Handle) provider.Cursor {
	if h != nil {
		return nil // flat system: no children to iterate
	}
	return &stateCursor{}
}

func (p *USStatesProvider) NextContext(c provider.Cursor) provider.Handle {
	cur, ok := c.(*stateCursor)
	if !ok || cur.pos >= len(p.codes) {
		return nil
	}
	code := p.codes[cur.pos]
	cur.pos++
	return provider.StringHandle(code)
}

// USStatesFactory registers the provider.
type USStatesFactory struct{}

func (USStatesFactory) System() string  { return USStatesSystem }
func (USStatesFactory) Version() string { return "" }
func (USStatesFactory) Load() error     { return nil }
func (USStatesFactory) Close() error    { return nil }
func (USStatesFactory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return NewUSStatesProvider(supplements), nil
}
