package ecl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/snomedstore"
	"github.com/wardle/go-terminology/internal/snomedstore/storetest"
)

const (
	clinicalFinding  = 404684003
	disease          = 64572001
	diabetes         = 73211009
	diabetesType2    = 44054006
	bodyStructure    = 123037004
	lungStructure    = 39607008
	morphAbnormal    = 49755003
	inflammation     = 23583003
	conceptModelAttr = 410662002
	findingSite      = 363698007
	assocMorphology  = 116676008
	pneumonia        = 233604007
	testRefset       = 723264001
)

func testService(t *testing.T) *snomedstore.Service {
	t.Helper()
	b := storetest.NewBuilder()
	b.AddConcept(clinicalFinding, true, nil, storetest.Desc{Term: "Clinical finding", Lang: 1})
	b.AddConcept(disease, true, []uint64{clinicalFinding}, storetest.Desc{Term: "Disease", Lang: 1})
	b.AddConcept(diabetes, true, []uint64{disease}, storetest.Desc{Term: "Diabetes mellitus", Lang: 1})
	b.AddConcept(diabetesType2, true, []uint64{diabetes}, storetest.Desc{Term: "Diabetes mellitus type 2", Lang: 1})
	b.AddConcept(bodyStructure, true, nil, storetest.Desc{Term: "Body structure", Lang: 1})
	b.AddConcept(lungStructure, true, []uint64{bodyStructure}, storetest.Desc{Term: "Lung structure", Lang: 1})
	b.AddConcept(morphAbnormal, true, []uint64{bodyStructure}, storetest.Desc{Term: "Morphologically abnormal structure", Lang: 1})
	b.AddConcept(inflammation, true, []uint64{morphAbnormal}, storetest.Desc{Term: "Inflammation", Lang: 1})
	b.AddConcept(conceptModelAttr, true, nil, storetest.Desc{Term: "Concept model attribute", Lang: 1})
	b.AddConcept(findingSite, true, []uint64{conceptModelAttr}, storetest.Desc{Term: "Finding site", Lang: 1})
	b.AddConcept(assocMorphology, true, []uint64{conceptModelAttr}, storetest.Desc{Term: "Associated morphology", Lang: 1})
	b.AddConcept(pneumonia, false, []uint64{disease}, storetest.Desc{Term: "Pneumonia", Lang: 1})
	b.AddConcept(testRefset, true, nil, storetest.Desc{Term: "Example refset", Lang: 1})
	b.AddRelationship(pneumonia, findingSite, lungStructure, 1)
	b.AddRelationship(pneumonia, assocMorphology, inflammation, 1)
	b.AddRefset(testRefset, diabetes, pneumonia)
	return snomedstore.NewService(b.Build())
}

func offsetsOf(t *testing.T, svc *snomedstore.Service, ids ...uint64) map[uint64]uint32 {
	t.Helper()
	out := make(map[uint64]uint32, len(ids))
	for _, id := range ids {
		off, found := svc.Find(id)
		require.True(t, found, "concept %d missing from test store", id)
		out[id] = off
	}
	return out
}

func eval(t *testing.T, svc *snomedstore.Service, src string) []uint32 {
	t.Helper()
	ast, err := Parse(src)
	require.NoError(t, err)
	fc, err := Evaluate(context.Background(), svc, ast)
	require.NoError(t, err)
	return fc.Descendants
}

func TestLexDecimalVsDottedAttribute(t *testing.T) {
	toks, err := Lex("404684003 . 363698007")
	require.NoError(t, err)
	require.Len(t, toks, 4) // id, '.', id, EOF
	assert.Equal(t, TokenSctID, toks[0].Kind)
	assert.Equal(t, TokenDot, toks[1].Kind)
	assert.Equal(t, TokenSctID, toks[2].Kind)

	// digits immediately followed by '.' and another digit lex as one
	// decimal, not a dotted attribute
	toks, err = Lex("404684003.363698007")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, TokenDecimal, toks[0].Kind)

	toks, err = Lex("3.5")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, TokenDecimal, toks[0].Kind)
	assert.Equal(t, "3.5", toks[0].Text)
}

func TestParseSimpleConstraint(t *testing.T) {
	ast, err := Parse("<< 404684003 |Clinical finding|")
	require.NoError(t, err)
	simple, ok := ast.(*SimpleExpressionConstraint)
	require.True(t, ok)
	assert.Equal(t, ConstraintDescendantsSelf, simple.Sub.Constraint)
	assert.Equal(t, uint64(clinicalFinding), simple.Sub.Concept.Code)
}

func TestParseCompoundPrecedence(t *testing.T) {
	ast, err := Parse("<< 19829001 AND << 301867009 MINUS 444 OR 555")
	require.NoError(t, err)
	// left-associative: ((a AND b) MINUS c) OR d
	or, ok := ast.(*CompoundExpressionConstraint)
	require.True(t, ok)
	assert.Equal(t, Disjunction, or.Operator)
	minus, ok := or.Operands[0].(*CompoundExpressionConstraint)
	require.True(t, ok)
	assert.Equal(t, Exclusion, minus.Operator)
}

func TestParseRefinementAndGroups(t *testing.T) {
	ast, err := Parse("<< 404684003 : { [1..1] 363698007 = << 123037004 }, 116676008 = << 49755003")
	require.NoError(t, err)
	refined, ok := ast.(*RefinedExpressionConstraint)
	require.True(t, ok)
	require.Len(t, refined.Refinement.Groups, 1)
	require.Len(t, refined.Refinement.Sets, 1)
	g := refined.Refinement.Groups[0]
	require.Len(t, g.Attributes, 1)
	require.NotNil(t, g.Attributes[0].Cardinality)
	assert.Equal(t, 1, g.Attributes[0].Cardinality.Min)
}

func TestParseNumericAndStringComparisons(t *testing.T) {
	ast, err := Parse("<< 373873005 : 1142135004 = #20")
	require.NoError(t, err)
	refined := ast.(*RefinedExpressionConstraint)
	num, ok := refined.Refinement.Sets[0].Attributes[0].Comparison.(*NumericComparison)
	require.True(t, ok)
	assert.Equal(t, "20", num.Value)
	assert.False(t, num.Decimal)

	ast, err = Parse(`<< 373873005 : 999 != "tablet"`)
	require.NoError(t, err)
	refined = ast.(*RefinedExpressionConstraint)
	str, ok := refined.Refinement.Sets[0].Attributes[0].Comparison.(*StringComparison)
	require.True(t, ok)
	assert.Equal(t, OpNotEquals, str.Op)
}

func TestRenderRoundTrip(t *testing.T) {
	for _, src := range []string{
		"<< 404684003",
		"< 404684003 AND << 64572001",
		"<< 404684003 : { 363698007 = << 123037004 }",
		"^ 723264001",
		"* MINUS << 64572001",
		"404684003 . 363698007",
	} {
		ast, err := Parse(src)
		require.NoError(t, err, src)
		again, err := Parse(Render(ast))
		require.NoError(t, err, Render(ast))
		assert.Equal(t, Render(ast), Render(again), src)
	}
}

func TestEvaluateDescendants(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, disease, diabetes, diabetesType2, pneumonia)
	got := eval(t, svc, "< 64572001")
	assert.ElementsMatch(t, []uint32{offs[diabetes], offs[diabetesType2], offs[pneumonia]}, got)

	got = eval(t, svc, "<< 64572001")
	assert.ElementsMatch(t, []uint32{offs[disease], offs[diabetes], offs[diabetesType2], offs[pneumonia]}, got)
}

func TestEvaluateChildrenDistinctFromDescendants(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, diabetes, pneumonia)
	got := eval(t, svc, "<! 64572001")
	assert.ElementsMatch(t, []uint32{offs[diabetes], offs[pneumonia]}, got)
}

func TestEvaluateCompoundIntersection(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, diabetes, diabetesType2)
	got := eval(t, svc, "<< 64572001 AND << 73211009")
	assert.ElementsMatch(t, []uint32{offs[diabetes], offs[diabetesType2]}, got)
}

func TestEvaluateExclusion(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, disease, pneumonia)
	got := eval(t, svc, "<< 64572001 MINUS << 73211009")
	assert.ElementsMatch(t, []uint32{offs[disease], offs[pneumonia]}, got)
}

func TestEvaluateMemberOf(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, diabetes, pneumonia)
	got := eval(t, svc, "^ 723264001")
	assert.ElementsMatch(t, []uint32{offs[diabetes], offs[pneumonia]}, got)
}

func TestEvaluateRefined(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, pneumonia)
	got := eval(t, svc, "<< 404684003 : 363698007 = << 123037004")
	assert.ElementsMatch(t, []uint32{offs[pneumonia]}, got)

	got = eval(t, svc, "<< 404684003 : { 363698007 = << 123037004, 116676008 = << 49755003 }")
	assert.ElementsMatch(t, []uint32{offs[pneumonia]}, got)
}

func TestEvaluateDotted(t *testing.T) {
	svc := testService(t)
	offs := offsetsOf(t, svc, lungStructure)
	got := eval(t, svc, "233604007 . 363698007")
	assert.ElementsMatch(t, []uint32{offs[lungStructure]}, got)
}

func TestEvaluateWildcardMinus(t *testing.T) {
	svc := testService(t)
	got := eval(t, svc, "* MINUS * ")
	assert.Empty(t, got)
}

func TestEvaluateReverseUnsupported(t *testing.T) {
	svc := testService(t)
	ast, err := Parse("> 73211009")
	require.NoError(t, err)
	_, err = Evaluate(context.Background(), svc, ast)
	require.ErrorIs(t, err, ErrFeatureUnsupported)
}

func TestEvaluateCancellation(t *testing.T) {
	svc := testService(t)
	ast, err := Parse("*")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Evaluate(ctx, svc, ast)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	svc := testService(t)
	ast, err := Parse("<< 404684003 : 363698007 = << 123037004")
	require.NoError(t, err)
	assert.Empty(t, Validate(svc, ast))
}

func TestValidateRejectsUnknownConcept(t *testing.T) {
	svc := testService(t)
	ast, err := Parse("<< 999999")
	require.NoError(t, err)
	issues := Validate(svc, ast)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "not found")
}

func TestValidateRejectsNonAttribute(t *testing.T) {
	svc := testService(t)
	// disease is not a descendant of the concept-model attribute root
	ast, err := Parse("<< 404684003 : 64572001 = << 123037004")
	require.NoError(t, err)
	issues := Validate(svc, ast)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Message, "concept-model attribute")
}

func TestValidateEnforcesRange(t *testing.T) {
	svc := testService(t)
	// associated morphology's range is morphologically abnormal structure;
	// lung structure is outside it
	ast, err := Parse("404684003 : 116676008 = 39607008")
	require.NoError(t, err)
	issues := Validate(svc, ast)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[len(issues)-1].Message, "range")
}
