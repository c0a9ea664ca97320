package reqparams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/opcontext"
)

func TestParseRecognisedParameters(t *testing.T) {
	p, err := Parse(map[string][]string{
		"system-version":       {"http://loinc.org|2.77"},
		"check-system-version": {"http://snomed.info/sct|http://snomed.info/sct/900000000000207008/version/20230131"},
		"displayLanguage":      {"en-GB"},
		"designation":          {"display", "definition"},
		"property":             {"inactive"},
		"activeOnly":           {"true"},
		"includeDesignations":  {},
		"filter":               {"diab"},
		"count":                {"20"},
		"offset":               {"40"},
		"no-cache":             {"true"},
		"x-custom":             {"passes through"},
	})
	require.NoError(t, err)

	require.Len(t, p.VersionRules, 2)
	assert.Equal(t, opcontext.VersionDefault, ruleFor(p, "http://loinc.org").Mode)
	assert.Equal(t, opcontext.VersionCheck, ruleFor(p, "http://snomed.info/sct").Mode)

	assert.Equal(t, "en-GB", p.DisplayLanguage)
	assert.Equal(t, []string{"display", "definition"}, p.Designations)
	assert.True(t, p.ActiveOnly)
	assert.True(t, p.IncludeDesignations) // bare flag means true
	assert.Equal(t, "diab", p.Filter)
	assert.Equal(t, 20, p.Count)
	assert.Equal(t, 40, p.Offset)
	assert.True(t, p.NoCache)
	assert.Equal(t, []string{"passes through"}, p.Passthrough["x-custom"])
}

func ruleFor(p *Params, system string) opcontext.VersionRule {
	for _, r := range p.VersionRules {
		if r.System == system {
			return r
		}
	}
	return opcontext.VersionRule{}
}

func TestParseRejectsMalformedVersionRule(t *testing.T) {
	_, err := Parse(map[string][]string{"system-version": {"no-separator"}})
	require.Error(t, err)
}

func TestParseRejectsNegativeCount(t *testing.T) {
	_, err := Parse(map[string][]string{"count": {"-1"}})
	require.Error(t, err)
}

func TestApplyRegistersOnContext(t *testing.T) {
	p, err := Parse(map[string][]string{
		"displayLanguage": {"de"},
		"system-version":  {"http://loinc.org|2.77"},
	})
	require.NoError(t, err)
	ctx := opcontext.Background()
	p.Apply(ctx)
	assert.True(t, ctx.LanguageMatches("de-AT"))
	v, err := ctx.ResolveVersion("http://loinc.org", "")
	require.NoError(t, err)
	assert.Equal(t, "2.77", v)
}
