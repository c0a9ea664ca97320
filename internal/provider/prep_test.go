package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepLifecycle(t *testing.T) {
	p := NewPrep(true)
	assert.Equal(t, StatePrep, p.State)

	require.NoError(t, p.Push(AppliedFilter{Property: "STATUS", Op: "=", Value: "ACTIVE"}))
	assert.Equal(t, StateBuilding, p.State)
	require.NoError(t, p.Push(AppliedFilter{Text: "chest", Exact: false}))

	set := NewFilterSet([]string{"a", "b"})
	require.NoError(t, p.MarkExecuted([]*FilterSet{set}))
	assert.Equal(t, StateExecuted, p.State)

	// once Executed, no more filters may be added
	err := p.Push(AppliedFilter{Property: "x"})
	require.ErrorIs(t, err, ErrFilterLifecycle)

	more, err := set.Advance(2)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, StateIterating, p.State)
	assert.Equal(t, 0, set.Pos)

	more, err = set.Advance(2)
	require.NoError(t, err)
	assert.True(t, more)
	more, err = set.Advance(2)
	require.NoError(t, err)
	assert.False(t, more)

	p.Finish()
	assert.Equal(t, StateFinished, p.State)
	_, err = set.Advance(2)
	require.ErrorIs(t, err, ErrFilterLifecycle)
}

func TestPrepProbeOnlyWhenExecuted(t *testing.T) {
	p := NewPrep(false)
	require.ErrorIs(t, p.CheckProbe(), ErrFilterLifecycle)
	require.NoError(t, p.MarkExecuted(nil))
	require.NoError(t, p.CheckProbe())
	require.NoError(t, p.BeginIteration())
	require.ErrorIs(t, p.CheckProbe(), ErrFilterLifecycle)
}

func TestExecuteTwiceIsIllegal(t *testing.T) {
	p := NewPrep(false)
	require.NoError(t, p.MarkExecuted(nil))
	require.ErrorIs(t, p.MarkExecuted(nil), ErrFilterLifecycle)
}
