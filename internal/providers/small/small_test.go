package small

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

func TestURIAcceptsAnything(t *testing.T) {
	p := NewURIProvider(nil)
	h, msg := p.Locate("http://example.org/whatever#fragment")
	require.NotNil(t, h, msg)
	assert.Equal(t, "", p.Display(h, opcontext.Background()))
	assert.True(t, p.IsNotClosed())
}

func TestURIDisplayFromSupplement(t *testing.T) {
	supp := &provider.Supplement{
		URL: URISystem,
		Concepts: map[string]provider.SupplementConcept{
			"http://example.org": {Display: "Example site", Language: "en"},
		},
	}
	f := URIFactory{}
	built, err := f.Build(opcontext.Background(), []*provider.Supplement{supp})
	require.NoError(t, err)
	h, _ := built.Locate("http://example.org")
	ctx := opcontext.Background()
	ctx.SetDisplayLanguages("en")
	assert.Equal(t, "Example site", built.Display(h, ctx))
}

func TestMIMEValidation(t *testing.T) {
	p := NewMIMEProvider(nil)
	h, msg := p.Locate("text/plain")
	require.NotNil(t, h, msg)
	assert.Equal(t, "text/plain", h.HandleCode())

	// parameters are stripped
	h, _ = p.Locate("text/plain; charset=utf-8")
	require.NotNil(t, h)
	assert.Equal(t, "text/plain", h.HandleCode())

	h, msg = p.Locate("notamimetype")
	assert.Nil(t, h)
	assert.Contains(t, msg, "not a valid media type")

	h, _ = p.Locate("bogus/subtype")
	assert.Nil(t, h)
}

func TestLanguageTagParsing(t *testing.T) {
	p := NewLanguageProvider(nil)
	h, msg := p.Locate("en-GB")
	require.NotNil(t, h, msg)
	lh := h.(*LanguageHandle)
	assert.Equal(t, "en", lh.Parts["language"])
	assert.Equal(t, "GB", lh.Parts["region"])

	h, msg = p.Locate("!!")
	assert.Nil(t, h)
	assert.Contains(t, msg, "not a valid BCP 47")
}

func TestLanguageExistsFilters(t *testing.T) {
	p := NewLanguageProvider(nil)
	assert.True(t, p.DoesFilter("region", "exists", "true"))
	assert.False(t, p.DoesFilter("region", "=", "GB"))

	prep := p.GetPrepContext(false)
	require.NoError(t, p.Filter(prep, "region", "exists", "true"))
	sets, err := p.ExecuteFilters(prep)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	h, msg := p.FilterLocate(sets[0], "en-GB")
	require.NotNil(t, h, msg)
	miss, msg := p.FilterLocate(sets[0], "en")
	assert.Nil(t, miss)
	assert.Contains(t, msg, "does not satisfy")

	// grammar-based set cannot be iterated
	_, err = p.FilterMore(sets[0])
	require.ErrorIs(t, err, provider.ErrFiltersNotClosed)
}

func TestUSStatesLookupIsCaseSensitive(t *testing.T) {
	p := NewUSStatesProvider(nil)
	assert.Equal(t, 59, p.TotalCount())

	h, msg := p.Locate("WI")
	require.NotNil(t, h, msg)
	assert.Equal(t, "Wisconsin", p.Display(h, opcontext.Background()))

	h, _ = p.Locate("wi")
	assert.Nil(t, h)
}

func TestUSStatesIteration(t *testing.T) {
	p := NewUSStatesProvider(nil)
	cur := p.Iterator(nil)
	require.NotNil(t, cur)
	n := 0
	for h := p.NextContext(cur); h != nil; h = p.NextContext(cur) {
		n++
	}
	assert.Equal(t, 59, n)
}

func TestHGVSRemoteValidation(t *testing.T) {
	valid := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HGVSSystem, r.URL.Query().Get("system"))
		result := map[string]interface{}{
			"resourceType": "Parameters",
			"parameter": []map[string]interface{}{
				{"name": "result", "valueBoolean": valid},
				{"name": "message", "valueString": "invalid variant"},
			},
		}
		_ = json.NewEncoder(w).Encode(result)
	}))
	defer srv.Close()

	p := NewHGVSProvider(srv.URL, nil)
	h, msg := p.Locate("NM_000059.3:c.1521_1523delCTT")
	require.NotNil(t, h, msg)
	assert.Equal(t, "NM_000059.3:c.1521_1523delCTT", p.Display(h, opcontext.Background()))

	valid = false
	h, msg = p.Locate("not-a-variant")
	assert.Nil(t, h)
	assert.Equal(t, "invalid variant", msg)
}
