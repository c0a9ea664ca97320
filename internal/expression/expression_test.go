package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/snomedstore"
	"github.com/wardle/go-terminology/internal/snomedstore/storetest"
)

const (
	clinicalFinding  = 404684003
	disease          = 64572001
	bodyStructure    = 123037004
	lungStructure    = 39607008
	morphAbnormal    = 49755003
	inflammation     = 23583003
	conceptModelAttr = 410662002
	findingSite      = 363698007
	assocMorphology  = 116676008
	pneumonia        = 233604007
)

// testService builds a small clinical-finding hierarchy with one fully
// defined concept (pneumonia) whose definition carries a grouped finding
// site and associated morphology.
func testService(t *testing.T) *snomedstore.Service {
	t.Helper()
	b := storetest.NewBuilder()
	b.AddConcept(clinicalFinding, true, nil, storetest.Desc{Term: "Clinical finding", Lang: 1})
	b.AddConcept(disease, true, []uint64{clinicalFinding}, storetest.Desc{Term: "Disease", Lang: 1})
	b.AddConcept(bodyStructure, true, nil, storetest.Desc{Term: "Body structure", Lang: 1})
	b.AddConcept(lungStructure, true, []uint64{bodyStructure}, storetest.Desc{Term: "Lung structure", Lang: 1})
	b.AddConcept(morphAbnormal, true, []uint64{bodyStructure}, storetest.Desc{Term: "Morphologically abnormal structure", Lang: 1})
	b.AddConcept(inflammation, true, []uint64{morphAbnormal}, storetest.Desc{Term: "Inflammation", Lang: 1})
	b.AddConcept(conceptModelAttr, true, nil, storetest.Desc{Term: "Concept model attribute", Lang: 1})
	b.AddConcept(findingSite, true, []uint64{conceptModelAttr}, storetest.Desc{Term: "Finding site", Lang: 1})
	b.AddConcept(assocMorphology, true, []uint64{conceptModelAttr}, storetest.Desc{Term: "Associated morphology", Lang: 1})
	b.AddConcept(pneumonia, false, []uint64{disease}, storetest.Desc{Term: "Pneumonia", Lang: 1})
	b.AddRelationship(pneumonia, findingSite, lungStructure, 1)
	b.AddRelationship(pneumonia, assocMorphology, inflammation, 1)
	return snomedstore.NewService(b.Build())
}

func TestParseSimple(t *testing.T) {
	e, err := Parse("64572001 |Disease|")
	require.NoError(t, err)
	require.Len(t, e.Focus, 1)
	assert.Equal(t, uint64(disease), e.Focus[0].Code)
	assert.Equal(t, "Disease", e.Focus[0].Term)
	assert.True(t, e.IsPrimitiveFocus())
}

func TestParseRefined(t *testing.T) {
	src := "64572001|Disease|:{363698007|Finding site|=39607008|Lung structure|,116676008|Associated morphology|=23583003|Inflammation|}"
	e, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, e.Focus, 1)
	require.Len(t, e.Groups, 1)
	require.Len(t, e.Groups[0].Refinements, 2)
	assert.Equal(t, uint64(findingSite), e.Groups[0].Refinements[0].Attribute.Code)
	assert.Equal(t, uint64(lungStructure), e.Groups[0].Refinements[0].Value.Focus[0].Code)
}

func TestParseDefinitionStatus(t *testing.T) {
	e, err := Parse("=== 64572001")
	require.NoError(t, err)
	assert.Equal(t, DefinitionStatusEquivalentTo, e.DefinitionStatus)
	e, err = Parse("<<< 64572001")
	require.NoError(t, err)
	assert.Equal(t, DefinitionStatusSubtypeOf, e.DefinitionStatus)
}

func TestParseLiterals(t *testing.T) {
	e, err := Parse("64572001 : 363698007 = #3.5")
	require.NoError(t, err)
	require.Len(t, e.Refinements, 1)
	v := e.Refinements[0].Value.Focus[0]
	assert.Equal(t, RefNumber, v.Kind)
	assert.Equal(t, "3.5", v.Literal)

	e, err = Parse(`64572001 : 363698007 = "free text"`)
	require.NoError(t, err)
	assert.Equal(t, RefString, e.Refinements[0].Value.Focus[0].Kind)
	assert.Equal(t, "free text", e.Refinements[0].Value.Focus[0].Literal)
}

func TestParseNested(t *testing.T) {
	e, err := Parse("64572001 : 363698007 = ( 39607008 : 116676008 = 23583003 )")
	require.NoError(t, err)
	inner := e.Refinements[0].Value
	require.Len(t, inner.Refinements, 1)
	assert.Equal(t, uint64(inflammation), inner.Refinements[0].Value.Focus[0].Code)
}

func TestParseErrorOffsets(t *testing.T) {
	_, err := Parse("64572001 :")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 10, pe.Offset)
	assert.NotEmpty(t, pe.Expected)
}

func TestCanonicalSortsAndIsIdempotent(t *testing.T) {
	src := "64572001:{116676008=23583003,363698007=39607008}"
	e, err := Parse(src)
	require.NoError(t, err)
	c1 := Canonicalize(e)
	// attribute 116676008 sorts before 363698007
	assert.Equal(t, uint64(assocMorphology), c1.Groups[0].Refinements[0].Attribute.Code)
	c2 := Canonicalize(c1)
	assert.Equal(t, Render(c1), Render(c2))
}

func TestRenderRoundTrip(t *testing.T) {
	src := "=== 64572001 |Disease| : { 363698007 = 39607008, 116676008 = 23583003 }"
	e, err := Parse(src)
	require.NoError(t, err)
	e2, err := Parse(Render(e))
	require.NoError(t, err)
	assert.Equal(t, Render(e), Render(e2))
}

func TestValidateResolves(t *testing.T) {
	svc := testService(t)
	e, err := Parse("64572001 |Disease|")
	require.NoError(t, err)
	require.NoError(t, Validate(svc, e))
	assert.True(t, e.Focus[0].Resolved)
}

func TestValidateRejectsWrongTerm(t *testing.T) {
	svc := testService(t)
	e, err := Parse("64572001 |Not a disease term|")
	require.NoError(t, err)
	err = Validate(svc, e)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Accepted, "Disease")
}

func TestValidateRejectsUnknownConcept(t *testing.T) {
	svc := testService(t)
	// 44054006 is a well-formed concept id absent from the test store.
	e, err := Parse("44054006")
	require.NoError(t, err)
	assert.Error(t, Validate(svc, e))
}

func TestNormalizeExpandsFullyDefined(t *testing.T) {
	svc := testService(t)
	e, err := Parse("233604007 |Pneumonia|")
	require.NoError(t, err)
	n, err := Normalize(svc, e)
	require.NoError(t, err)
	require.Len(t, n.Focus, 1)
	assert.Equal(t, uint64(disease), n.Focus[0].Code)
	require.Len(t, n.Groups, 1)
	require.Len(t, n.Groups[0].Refinements, 2)
}

func TestNormalizeKeepsPrimitive(t *testing.T) {
	svc := testService(t)
	e, err := Parse("64572001")
	require.NoError(t, err)
	n, err := Normalize(svc, e)
	require.NoError(t, err)
	require.Len(t, n.Focus, 1)
	assert.Equal(t, uint64(disease), n.Focus[0].Code)
	assert.Empty(t, n.Refinements)
	assert.Empty(t, n.Groups)
}

func TestNormalizeMergesRedundantFocus(t *testing.T) {
	svc := testService(t)
	e, err := Parse("404684003 + 64572001")
	require.NoError(t, err)
	n, err := Normalize(svc, e)
	require.NoError(t, err)
	// clinical finding subsumes disease so only disease survives
	require.Len(t, n.Focus, 1)
	assert.Equal(t, uint64(disease), n.Focus[0].Code)
}

func TestSubsumesExpression(t *testing.T) {
	svc := testService(t)
	general, err := Parse("64572001 |Disease|")
	require.NoError(t, err)
	specific, err := Parse("233604007 |Pneumonia|")
	require.NoError(t, err)

	sub, err := Subsumes(svc, general, specific)
	require.NoError(t, err)
	assert.True(t, sub)

	sub, err = Subsumes(svc, specific, general)
	require.NoError(t, err)
	assert.False(t, sub)
}

func TestSubsumesRefinedExpression(t *testing.T) {
	svc := testService(t)
	a, err := Parse("64572001 : { 116676008 = 23583003 }")
	require.NoError(t, err)
	b, err := Parse("64572001 : { 363698007 = 39607008, 116676008 = 23583003 }")
	require.NoError(t, err)

	sub, err := Subsumes(svc, a, b)
	require.NoError(t, err)
	assert.True(t, sub)

	sub, err = Subsumes(svc, b, a)
	require.NoError(t, err)
	assert.False(t, sub)
}

func TestEquivalentAfterNormalisation(t *testing.T) {
	svc := testService(t)
	a, err := Parse("233604007")
	require.NoError(t, err)
	b, err := Parse("64572001 : { 363698007 = 39607008, 116676008 = 23583003 }")
	require.NoError(t, err)
	eq, err := Equivalent(svc, a, b)
	require.NoError(t, err)
	assert.True(t, eq)
}
