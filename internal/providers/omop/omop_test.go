package omop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/provider"
)

func testProvider() *Provider {
	return &Provider{f: &Factory{domains: map[string]string{
		"Condition": "Condition",
		"Drug":      "Drug",
	}}}
}

func TestVocabularyMapping(t *testing.T) {
	uri, ok := VocabularyURI("SNOMED")
	require.True(t, ok)
	assert.Equal(t, "http://snomed.info/sct", uri)

	id, ok := VocabularyID("http://loinc.org")
	require.True(t, ok)
	assert.Equal(t, "LOINC", id)

	_, ok = VocabularyURI("NOT_A_VOCAB")
	assert.False(t, ok)
}

func TestDoesFilterDomain(t *testing.T) {
	p := testProvider()
	assert.True(t, p.DoesFilter("domain", "=", "Condition"))
	assert.False(t, p.DoesFilter("domain", "=", "NotADomain"))
	assert.True(t, p.DoesFilter("vocabulary", "=", "SNOMED"))
	assert.False(t, p.DoesFilter("domain", "in", "Condition"))
}

func TestBuildQueryDomainRestrictsToStandard(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Property: "domain", Op: "=", Value: "Condition"}})
	sql := q.SQL("c.concept_id::text", "concept c", "")
	assert.Contains(t, sql, "c.standard_concept = 'S'")
	assert.Contains(t, sql, "c.domain_id = $1")
	assert.Equal(t, []interface{}{"Condition"}, q.Params)
}

func TestSearchFilterUnsupported(t *testing.T) {
	p := testProvider()
	prep := p.GetPrepContext(false)
	err := p.SearchFilter(prep, "aspirin", false)
	require.ErrorIs(t, err, provider.ErrFeatureUnsupported)
}
