package small

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/resty.v1"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// HGVSSystem is the HGVS variant-nomenclature system identifier.
const HGVSSystem = "http://varnomen.hgvs.org"

// hgvsTimeout is the hard timeout on the remote validation call.
const hgvsTimeout = 5 * time.Second

// parameters is the minimal FHIR Parameters shape the remote
// $validate-code call returns.
type parameters struct {
	Parameter []struct {
		Name         string `json:"name"`
		ValueBoolean *bool  `json:"valueBoolean,omitempty"`
		ValueString  string `json:"valueString,omitempty"`
	} `json:"parameter"`
}

func (p *parameters) bool(name string) (bool, bool) {
	for _, param := range p.Parameter {
		if param.Name == name && param.ValueBoolean != nil {
			return *param.ValueBoolean, true
		}
	}
	return false, false
}

func (p *parameters) str(name string) string {
	for _, param := range p.Parameter {
		if param.Name == name {
			return param.ValueString
		}
	}
	return ""
}

// HGVSProvider delegates locate to a remote $validate-code endpoint; no
// iteration, no filtering.
type HGVSProvider struct {
	provider.Base
	endpoint string
	client   *resty.Client
}

var _ provider.Provider = (*HGVSProvider)(nil)

// NewHGVSProvider builds the provider against endpoint.
func NewHGVSProvider(endpoint string, supplements []*provider.Supplement) *HGVSProvider {
	return &HGVSProvider{
		Base: provider.Base{
			SystemURI:      HGVSSystem,
			NameStr:        "HGVS",
			DescriptionStr: "Human Genome Variation Society nomenclature (remote validation)",
			Total:          -1,
			CaseSensitive:  true,
			NotClosed:      true,
			Supps:          supplements,
		},
		endpoint: endpoint,
		client:   resty.New().SetTimeout(hgvsTimeout),
	}
}

// Locate validates code remotely. The transport call is retried once on
// failure; a second failure surfaces as the locate message.
func (p *HGVSProvider) Locate(code string) (provider.Handle, string) {
	var resp *resty.Response
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err = p.client.R().
			SetQueryParam("system", HGVSSystem).
			SetQueryParam("code", code).
			SetHeader("Accept", "application/fhir+json").
			Get(p.endpoint)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Sprintf("HGVS validation of %q failed: %v", code, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Sprintf("HGVS validation of %q failed with status %d", code, resp.StatusCode())
	}
	var params parameters
	if err := json.Unmarshal(resp.Body(), &params); err != nil {
		return nil, fmt.Sprintf("HGVS validation of %q returned an unreadable response: %v", code, err)
	}
	result, ok := params.bool("result")
	if !ok {
		return nil, fmt.Sprintf("HGVS validation of %q returned no result", code)
	}
	if !result {
		msg := params.str("message")
		if msg == "" {
			msg = fmt.Sprintf("%q is not a valid HGVS expression", code)
		}
		return nil, msg
	}
	return provider.StringHandle(code), ""
}

// Display echoes the validated expression; HGVS carries no displays
// beyond the code itself.
func (p *HGVSProvider) Display(h provider.Handle, ctx *opcontext.Context) string {
	if h == nil {
		return ""
	}
	return provider.SelectDisplay(ctx, p.Supps, h.HandleCode(), h.HandleCode(), "")
}

// HGVSFactory registers the provider against a configured endpoint.
type HGVSFactory struct {
	Endpoint string
}

func (f HGVSFactory) System() string  { return HGVSSystem }
func (f HGVSFactory) Version() string { return "" }
func (f HGVSFactory) Load() error     { return nil }
func (f HGVSFactory) Close() error    { return nil }
func (f HGVSFactory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	return NewHGVSProvider(f.Endpoint, supplements), nil
}
