package snomedstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesEnvelope(t *testing.T) {
	s, err := Load(bytes.NewReader(buildTestEnvelope()))
	require.NoError(t, err)
	assert.Equal(t, "16", s.CacheVersion)
	assert.Equal(t, "900000000000207008", s.Edition)
	assert.Equal(t, "20230131", s.Version)
	assert.False(t, s.IsTesting)
	assert.Equal(t, []uint64{404684003}, s.ActiveRoots)
}

func TestLoadRejectsUnknownCacheVersion(t *testing.T) {
	var buf bytes.Buffer
	writeString(&buf, "99")
	_, err := Load(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreCorrupt)
}

func TestLoadRejectsUnsupportedStringTag(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(2) // tagInt8, not a string tag
	buf.WriteByte(0)
	_, err := Load(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
}

func TestParseVersionURI(t *testing.T) {
	edition, version := parseVersionURI("http://snomed.info/sct/900000000000207008/version/20230131")
	assert.Equal(t, "900000000000207008", edition)
	assert.Equal(t, "20230131", version)
}

func TestIsTestingURI(t *testing.T) {
	assert.True(t, isTestingURI("http://snomed.info/xsct/999000011000000103/version/20230131"))
	assert.False(t, isTestingURI("http://snomed.info/sct/900000000000207008/version/20230131"))
}
