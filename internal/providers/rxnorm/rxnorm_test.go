package rxnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/provider"
)

func testProvider() *Provider {
	return &Provider{f: &Factory{
		ttys:  map[string]string{"SCD": "SCD", "IN": "IN"},
		stys:  map[string]string{"Clinical Drug": "Clinical Drug"},
		sabs:  map[string]string{"RXNORM": "RXNORM", "MTHSPL": "MTHSPL"},
		rels:  map[string]string{"RB": "RB", "RO": "RO"},
		relas: map[string]string{"has_ingredient": "has_ingredient"},
	}}
}

func TestStems(t *testing.T) {
	stems := Stems("Oral Tablets")
	require.Len(t, stems, 2)
	assert.Equal(t, "oral", stems[0])
	assert.Equal(t, "tablet", stems[1])

	// duplicates collapse
	assert.Len(t, Stems("tablet tablets"), 1)
}

func TestDoesFilter(t *testing.T) {
	p := testProvider()
	assert.True(t, p.DoesFilter("TTY", "=", "SCD"))
	assert.True(t, p.DoesFilter("TTY", "in", "SCD,IN"))
	assert.True(t, p.DoesFilter("STY", "=", "Clinical Drug"))
	assert.True(t, p.DoesFilter("SAB", "=", "MTHSPL"))
	assert.True(t, p.DoesFilter("RO", "=", "CUI:123"))
	assert.True(t, p.DoesFilter("has_ingredient", "=", "AUI:456"))
	assert.False(t, p.DoesFilter("RO", "=", "123")) // target must be CUI:/AUI:
	assert.False(t, p.DoesFilter("unknown", "=", "x"))
}

func TestBuildQueryJoinsOneStemAliasPerStem(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Text: "oral tablet"}})
	sql := q.SQL("distinct c.rxcui", "rxnconso c", "c.rxcui")
	assert.Contains(t, sql, "join rxnstems f0s0")
	assert.Contains(t, sql, "join rxnstems f0s1")
	assert.Equal(t, []interface{}{"oral", "tablet"}, q.Params)
}

func TestBuildQueryRelTarget(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Property: "has_ingredient", Op: "=", Value: "CUI:1191"}})
	sql := q.SQL("distinct c.rxcui", "rxnconso c", "")
	assert.Contains(t, sql, "join rxnrel f0")
	assert.Contains(t, sql, "f0.rela = $1")
	assert.Contains(t, sql, "f0.rxcui2 = $2")
	assert.Equal(t, []interface{}{"has_ingredient", "1191"}, q.Params)
}

func TestBuildQueryTTYIn(t *testing.T) {
	p := testProvider()
	q := p.BuildQuery([]provider.AppliedFilter{{Property: "TTY", Op: "in", Value: "SCD, IN"}})
	assert.Contains(t, q.SQL("c.rxcui", "rxnconso c", ""), "c.tty in ($1, $2)")
	assert.Equal(t, []interface{}{"SCD", "IN"}, q.Params)
}

func TestFilterRejectsUnsupported(t *testing.T) {
	p := testProvider()
	prep := p.GetPrepContext(false)
	require.ErrorIs(t, p.Filter(prep, "DOSE", "=", "x"), provider.ErrFilterNotSupported)
}
