package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/opcontext"
	"github.com/wardle/go-terminology/internal/provider"
)

// fakeFactory yields nil providers; registry tests only exercise
// selection and lifecycle.
type fakeFactory struct {
	system  string
	version string
	loaded  bool
	closed  bool
	built   int
}

func (f *fakeFactory) System() string  { return f.system }
func (f *fakeFactory) Version() string { return f.version }
func (f *fakeFactory) Load() error     { f.loaded = true; return nil }
func (f *fakeFactory) Close() error    { f.closed = true; return nil }
func (f *fakeFactory) Build(ctx *opcontext.Context, supplements []*provider.Supplement) (provider.Provider, error) {
	f.built++
	return nil, nil
}

const sct = "http://snomed.info/sct"

func TestRegisterRejectsDuplicateVersion(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeFactory{system: sct, version: "a/version/20230131"}))
	err := r.Register(&fakeFactory{system: sct, version: "a/version/20230131"})
	require.ErrorIs(t, err, ErrDuplicateVersion)
}

func TestRegisterLoadsFactory(t *testing.T) {
	r := New()
	f := &fakeFactory{system: sct, version: "v1"}
	require.NoError(t, r.Register(f))
	assert.True(t, f.loaded)
}

func TestSelectExactVersion(t *testing.T) {
	r := New()
	f1 := &fakeFactory{system: sct, version: sct + "/900000000000207008/version/20230131"}
	f2 := &fakeFactory{system: sct, version: sct + "/900000000000207008/version/20230731"}
	require.NoError(t, r.Register(f1))
	require.NoError(t, r.Register(f2))

	_, err := r.Provider(opcontext.Background(), sct, sct+"/900000000000207008/version/20230731")
	require.NoError(t, err)
	assert.Equal(t, 1, f2.built)
	assert.Equal(t, 0, f1.built)
}

func TestSelectMoreDetailedVariant(t *testing.T) {
	r := New()
	f := &fakeFactory{system: sct, version: sct + "/900000000000207008/version/20230131"}
	require.NoError(t, r.Register(f))

	// edition URI without a /version/ segment still selects the factory
	_, err := r.Provider(opcontext.Background(), sct, sct+"/900000000000207008")
	require.NoError(t, err)
	assert.Equal(t, 1, f.built)
}

func TestSelectSemverMajorMinor(t *testing.T) {
	r := New()
	f := &fakeFactory{system: "http://loinc.org", version: "2.77.1"}
	require.NoError(t, r.Register(f))
	_, err := r.Provider(opcontext.Background(), "http://loinc.org", "2.77.4")
	require.NoError(t, err)
	assert.Equal(t, 1, f.built)
}

func TestSelectDefaultVersionRule(t *testing.T) {
	r := New()
	f1 := &fakeFactory{system: "http://loinc.org", version: "2.76"}
	f2 := &fakeFactory{system: "http://loinc.org", version: "2.77"}
	require.NoError(t, r.Register(f1))
	require.NoError(t, r.Register(f2))

	ctx := opcontext.Background()
	ctx.AddVersionRule(opcontext.VersionRule{System: "http://loinc.org", Version: "2.77", Mode: opcontext.VersionDefault})
	_, err := r.Provider(ctx, "http://loinc.org", "")
	require.NoError(t, err)
	assert.Equal(t, 1, f2.built)
	assert.Equal(t, 0, f1.built)
}

func TestSelectFactoryOwnDefault(t *testing.T) {
	r := New()
	f := &fakeFactory{system: "urn:ietf:bcp:13", version: ""}
	require.NoError(t, r.Register(f))
	_, err := r.Provider(opcontext.Background(), "urn:ietf:bcp:13", "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.built)
}

func TestUnknownSystem(t *testing.T) {
	r := New()
	_, err := r.Provider(opcontext.Background(), "http://example.org/none", "")
	require.ErrorIs(t, err, ErrNoFactory)
}

func TestCheckRuleFailsSelection(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeFactory{system: "http://loinc.org", version: "2.76"}))
	ctx := opcontext.Background()
	ctx.AddVersionRule(opcontext.VersionRule{System: "http://loinc.org", Version: "2.77", Mode: opcontext.VersionCheck})
	_, err := r.Provider(ctx, "http://loinc.org", "2.76")
	require.Error(t, err)
}

func TestUseCountAndClose(t *testing.T) {
	r := New()
	f := &fakeFactory{system: sct, version: "v"}
	require.NoError(t, r.Register(f))
	_, err := r.Provider(opcontext.Background(), sct, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.UseCount(sct, "v"))
	require.NoError(t, r.Close())
	assert.True(t, f.closed)
}

func TestExternalPackages(t *testing.T) {
	RegisterExternal("test-pack", func(tr *opcontext.Translator) []Factory {
		return []Factory{&fakeFactory{system: "http://example.org/ext", version: "1.0"}}
	})
	r := New()
	require.NoError(t, r.LoadExternal([]string{"test-pack"}, opcontext.NewTranslator(nil)))
	_, err := r.Provider(opcontext.Background(), "http://example.org/ext", "1.0")
	require.NoError(t, err)

	require.Error(t, r.LoadExternal([]string{"missing"}, opcontext.NewTranslator(nil)))
}
