package opcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageMatchesCollapsesRegion(t *testing.T) {
	ctx := Background()
	ctx.SetDisplayLanguages("en-GB")
	assert.True(t, ctx.LanguageMatches("en"))
	assert.True(t, ctx.LanguageMatches("en-US"))
	assert.False(t, ctx.LanguageMatches("de"))
}

func TestDisplayLanguageChainFallsBackToHTTP(t *testing.T) {
	ctx := Background()
	ctx.SetHTTPLanguages("de-DE, fr;q=0.8")
	chain := ctx.DisplayLanguages()
	require.Len(t, chain, 2)
	assert.True(t, ctx.LanguageMatches("de"))

	ctx.SetDisplayLanguages("nl")
	assert.False(t, ctx.LanguageMatches("de"))
	assert.True(t, ctx.LanguageMatches("nl-BE"))
}

func TestResolveVersionRules(t *testing.T) {
	ctx := Background()
	ctx.AddVersionRule(VersionRule{System: "http://loinc.org", Version: "2.77", Mode: VersionDefault})

	v, err := ctx.ResolveVersion("http://loinc.org", "")
	require.NoError(t, err)
	assert.Equal(t, "2.77", v)

	v, err = ctx.ResolveVersion("http://loinc.org", "2.76")
	require.NoError(t, err)
	assert.Equal(t, "2.76", v)

	ctx.AddVersionRule(VersionRule{System: "http://loinc.org", Version: "2.77", Mode: VersionCheck})
	_, err = ctx.ResolveVersion("http://loinc.org", "2.76")
	require.Error(t, err)

	ctx.AddVersionRule(VersionRule{System: "http://loinc.org", Version: "2.77", Mode: VersionOverride})
	v, err = ctx.ResolveVersion("http://loinc.org", "2.76")
	require.NoError(t, err)
	assert.Equal(t, "2.77", v)
}

func TestDesignationsDedupe(t *testing.T) {
	d := NewDesignations()
	d.AddDisplay("en", "Diabetes mellitus")
	d.Add(Designation{Language: "en", Value: "Diabetes mellitus"}) // duplicate, not preferred
	d.Add(Designation{Language: "en", Value: "DM"})
	d.Add(Designation{Language: "de", Value: "Diabetes mellitus"})

	list := d.List()
	require.Len(t, list, 3)
	assert.True(t, list[0].Preferred)
}

func TestDesignationsPreferredUpgrade(t *testing.T) {
	d := NewDesignations()
	d.Add(Designation{Language: "en", Value: "Lung"})
	d.Add(Designation{Preferred: true, Language: "en", Value: "Lung"})
	list := d.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Preferred)
}

func TestTranslatorFallsBackToKey(t *testing.T) {
	tr := NewTranslator(map[string]string{"code-not-found": "code %s was not found"})
	assert.Equal(t, "code X was not found", tr.Translate("code-not-found", "X"))
	assert.Equal(t, "unknown-key", tr.Translate("unknown-key"))
}
