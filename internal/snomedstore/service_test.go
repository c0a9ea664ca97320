package snomedstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := Load(bytes.NewReader(buildTestEnvelope()))
	require.NoError(t, err)
	return NewService(s)
}

func TestServiceFindAndConcept(t *testing.T) {
	svc := newTestService(t)
	off, found := svc.Find(73211009)
	require.True(t, found)
	c, err := svc.Concept(off)
	require.NoError(t, err)
	assert.EqualValues(t, 73211009, c.ID)

	_, found = svc.Find(999999999)
	assert.False(t, found)
}

func TestServiceDisplayName(t *testing.T) {
	svc := newTestService(t)
	off, _ := svc.Find(73211009)
	name, err := svc.DisplayName(off, 1)
	require.NoError(t, err)
	assert.Equal(t, "Diabetes mellitus", name)
}

func TestServiceSubsumesSelfWithoutClosureLookup(t *testing.T) {
	svc := newTestService(t)
	off, _ := svc.Find(73211009)
	ok, err := svc.Subsumes(off, off)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceSubsumesViaClosure(t *testing.T) {
	svc := newTestService(t)
	root, _ := svc.Find(404684003)
	diabetes, _ := svc.Find(73211009)
	ok, err := svc.Subsumes(root, diabetes)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Subsumes(diabetes, root)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceParents(t *testing.T) {
	svc := newTestService(t)
	root, _ := svc.Find(404684003)
	diabetes, _ := svc.Find(73211009)
	parents, err := svc.Parents(diabetes)
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, root, parents[0])
}

func TestFilterEqualsAndIsA(t *testing.T) {
	svc := newTestService(t)
	fc, err := svc.FilterEquals(73211009)
	require.NoError(t, err)
	assert.Len(t, fc.Offsets(), 1)

	fc, err = svc.FilterIsA(404684003, true)
	require.NoError(t, err)
	assert.Len(t, fc.Offsets(), 2) // root + diabetes

	fc, err = svc.FilterIsA(404684003, false)
	require.NoError(t, err)
	assert.Len(t, fc.Offsets(), 1)
}

func TestSearchFilterRanking(t *testing.T) {
	svc := newTestService(t)
	fc, err := svc.SearchFilter(context.Background(), "Diabetes mellitus", false, false)
	require.NoError(t, err)
	require.NotEmpty(t, fc.Matches)
	assert.Equal(t, PriorityExact, fc.Matches[0].Priority)

	fc, err = svc.SearchFilter(context.Background(), "diabet", false, false)
	require.NoError(t, err)
	require.NotEmpty(t, fc.Matches)
	assert.Equal(t, PriorityPrefix, fc.Matches[0].Priority)

	fc, err = svc.SearchFilter(context.Background(), "mellitus", false, true)
	require.NoError(t, err)
	assert.Empty(t, fc.Matches) // exact=true forbids a contains-only match
}
