package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOINC_DSN=postgres://localhost/loinc\n"), 0o600))
	cfgJSON := `{
		"snomed": ["/data/sct.cache"],
		"databases": {"http://loinc.org": "${LOINC_DSN}"},
		"defaultVersions": {"http://loinc.org": "2.77"},
		"externalPackages": ["acme-terminology"]
	}`
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(cfgJSON), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/sct.cache"}, cfg.SnomedContainers)
	assert.Equal(t, "postgres://localhost/loinc", cfg.Databases["http://loinc.org"])
	assert.Equal(t, "2.77", cfg.DefaultVersions["http://loinc.org"])
	assert.Equal(t, []string{"acme-terminology"}, cfg.ExternalPackages)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}
