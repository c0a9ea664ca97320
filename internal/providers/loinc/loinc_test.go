package loinc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/provider"
)

func testProvider() *Provider {
	f := &Factory{
		version:   "2.77",
		count:     10,
		propTypes: map[string]string{"SHORTNAME": "3", "CONSUMER_NAME": "4"},
		relTypes:  map[string]string{"COMPONENT": "1", "SCALE_TYP": "2"},
		statuses:  map[string]string{"ACTIVE": "ACTIVE"},
	}
	return &Provider{f: f}
}

func TestClassTypeMapping(t *testing.T) {
	assert.Equal(t, "1", ClassTypeNumber("1"))
	assert.Equal(t, "1", ClassTypeNumber("Laboratory class"))
	assert.Equal(t, "4", ClassTypeNumber("surveys"))
	assert.Equal(t, "", ClassTypeNumber("unknown"))
}

func TestDoesFilter(t *testing.T) {
	p := testProvider()
	assert.True(t, p.DoesFilter("STATUS", "=", "ACTIVE"))
	assert.True(t, p.DoesFilter("CLASSTYPE", "=", "1"))
	assert.False(t, p.DoesFilter("CLASSTYPE", "=", "9"))
	assert.True(t, p.DoesFilter("copyright", "=", "LOINC"))
	assert.True(t, p.DoesFilter("copyright", "=", "3rdParty"))
	assert.False(t, p.DoesFilter("copyright", "=", "other"))
	assert.True(t, p.DoesFilter("concept", "is-a", "LP31755-9"))
	assert.True(t, p.DoesFilter("code", "in", "1234-5,5678-9"))
	assert.True(t, p.DoesFilter("COMPONENT", "regex", ".*gluco.*"))
	assert.True(t, p.DoesFilter("SHORTNAME", "exists", "true"))
	assert.False(t, p.DoesFilter("NOT_A_PROPERTY", "=", "x"))
}

func TestBuildQueryComposesOneStatement(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{
		{Property: "STATUS", Op: "=", Value: "ACTIVE"},
		{Property: "CLASSTYPE", Op: "=", Value: "1"},
		{Property: "COMPONENT", Op: "=", Value: "LP14082-9"},
	})
	sql := q.SQL("c.code", "loinc_codes c", "c.code")
	assert.Contains(t, sql, "c.status = $1")
	assert.Contains(t, sql, "c.classtype = $2::int")
	assert.Contains(t, sql, "join loinc_relationships f2")
	require.Len(t, q.Params, 4) // status, classtype, rel type id, target
	assert.Equal(t, "ACTIVE", q.Params[0])
}

func TestBuildQueryCopyright(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Property: "copyright", Op: "=", Value: "LOINC"}})
	assert.Contains(t, q.SQL("c.code", "loinc_codes c", ""), "not exists")

	q = p.BuildQuery([]provider.AppliedFilter{{Property: "copyright", Op: "=", Value: "3rdParty"}})
	sql := q.SQL("c.code", "loinc_codes c", "")
	assert.Contains(t, sql, "exists")
	assert.NotContains(t, sql, "not exists")
}

func TestBuildQueryHierarchy(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Property: "concept", Op: "is-a", Value: "LP31755-9"}})
	sql := q.SQL("c.code", "loinc_codes c", "")
	assert.Contains(t, sql, "with recursive")
	assert.Equal(t, []interface{}{"LP31755-9"}, q.Params)

	q = p.BuildQuery([]provider.AppliedFilter{{Property: "concept", Op: "descendent-of", Value: "LP31755-9"}})
	assert.Contains(t, q.SQL("c.code", "loinc_codes c", ""), "c.code <> $2")
}

func TestBuildQueryTextSearch(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Text: "glucose", Exact: false}})
	assert.Contains(t, q.SQL("c.code", "loinc_codes c", ""), "ilike")
	assert.Equal(t, "%glucose%", q.Params[0])
}

func TestFilterRejectsUnsupported(t *testing.T) {
	p := testProvider()
	prep := p.GetPrepContext(false)
	err := p.Filter(prep, "NOT_A_PROPERTY", "=", "x")
	require.ErrorIs(t, err, provider.ErrFilterNotSupported)
}
