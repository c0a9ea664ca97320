package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/providers/sct"
	"github.com/wardle/go-terminology/internal/registry"
	"github.com/wardle/go-terminology/internal/snomedstore/storetest"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	b := storetest.NewBuilder()
	b.AddConcept(404684003, true, nil, storetest.Desc{Term: "Clinical finding", Lang: 1})
	b.AddConcept(64572001, true, []uint64{404684003}, storetest.Desc{Term: "Disease", Lang: 1})
	b.AddConcept(73211009, true, []uint64{64572001}, storetest.Desc{Term: "Diabetes mellitus", Lang: 1})
	b.AddConcept(44054006, true, []uint64{73211009}, storetest.Desc{Term: "Diabetes mellitus type 2", Lang: 1})
	reg := registry.New()
	require.NoError(t, reg.Register(sct.NewFactory(b.Build())))
	srv := httptest.NewServer(New(reg).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]interface{}
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestLookup(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/CodeSystem/$lookup?system=http://snomed.info/sct&code=73211009")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Diabetes mellitus", body["display"])
	assert.Equal(t, "SNOMED CT", body["name"])
}

func TestLookupMiss(t *testing.T) {
	srv := testServer(t)
	status, _ := get(t, srv.URL+"/CodeSystem/$lookup?system=http://snomed.info/sct&code=19829001")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestValidateCode(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/CodeSystem/$validate-code?system=http://snomed.info/sct&code=44054006")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["result"])

	status, body = get(t, srv.URL+"/CodeSystem/$validate-code?system=http://snomed.info/sct&code=19829001")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["result"])
	assert.Contains(t, body["message"], "not found")
}

func TestSubsumes(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/CodeSystem/$subsumes?system=http://snomed.info/sct&codeA=73211009&codeB=44054006")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "subsumes", body["outcome"])
}

func TestExpandWithTextFilter(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/ValueSet/$expand?url=http://snomed.info/sct&filter=diabetes%20mellitus")
	require.Equal(t, http.StatusOK, status)
	contains := body["contains"].([]interface{})
	require.Len(t, contains, 2)
	// the exact term match ranks above the prefix match
	first := contains[0].(map[string]interface{})
	assert.Equal(t, "73211009", first["code"])
}

func TestUnknownSystem(t *testing.T) {
	srv := testServer(t)
	status, _ := get(t, srv.URL+"/CodeSystem/$lookup?system=http://example.org/none&code=x")
	assert.Equal(t, http.StatusBadRequest, status)
}
