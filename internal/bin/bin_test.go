package bin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringsRoundTrip(t *testing.T) {
	s := NewStrings(nil)
	off1, err := s.Add("Diabetes mellitus")
	require.NoError(t, err)
	off2, err := s.Add("")
	require.NoError(t, err)
	got1, err := s.Get(off1)
	require.NoError(t, err)
	assert.Equal(t, "Diabetes mellitus", got1)
	got2, err := s.Get(off2)
	require.NoError(t, err)
	assert.Equal(t, "", got2)
	assert.Greater(t, off2, off1)
}

func TestStringsTooLarge(t *testing.T) {
	s := NewStrings(nil)
	big := make([]byte, 0x10000)
	_, err := s.Add(string(big))
	assert.ErrorIs(t, err, ErrValueTooLarge)
}

func TestReferencesSentinels(t *testing.T) {
	r := NewReferences(nil)
	got, err := r.Get(0)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = r.Get(NoRef)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReferencesContains(t *testing.T) {
	r := NewReferences(nil)
	off := r.Add([]uint32{3, 7, 9, 100})
	ok, err := r.Contains(off, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Contains(off, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConceptsFindBinarySearch(t *testing.T) {
	c := NewConcepts(nil)
	ids := []uint64{10, 20, 30, 1000000, 73211009}
	for _, id := range ids {
		c.Add(Concept{ID: id})
	}
	for _, id := range ids {
		off, found := c.Find(id)
		require.True(t, found)
		rec, err := c.Get(off)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
	}
	_, found := c.Find(999)
	assert.False(t, found)
}

func TestConceptFlags(t *testing.T) {
	active := Concept{Flags: 0x10} // primitive, active
	assert.True(t, active.IsActive())
	assert.True(t, active.IsPrimitive())
	retired := Concept{Flags: 0x01}
	assert.False(t, retired.IsActive())
	assert.False(t, retired.IsPrimitive())
}

func TestDescriptionsMisalignedOffset(t *testing.T) {
	d := NewDescriptions(nil)
	d.Add(Description{ID: 1})
	_, err := d.Get(1)
	assert.ErrorIs(t, err, ErrMisalignedOffset)
}

func TestDescriptionIndexFind(t *testing.T) {
	x := NewDescriptionIndex(nil)
	x.Add(100, 0)
	x.Add(200, 40)
	x.Add(300, 80)
	off, found := x.Find(200)
	require.True(t, found)
	assert.EqualValues(t, 40, off)
	_, found = x.Find(250)
	assert.False(t, found)
}

func TestRefsetMembersRoundTripWithAndWithoutIDs(t *testing.T) {
	m := NewRefsetMembers(nil)
	offNoID := m.Add(false, []RefsetMember{{Kind: 1, Ref: 5, Values: 0}})
	offWithID := m.Add(true, []RefsetMember{{HasID: true, Module: 9, Date: 20200101 % 65536, Kind: 1, Ref: 7}})
	got, err := m.Get(offNoID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].HasID)
	assert.EqualValues(t, 5, got[0].Ref)

	got, err = m.Get(offWithID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasID)
	assert.EqualValues(t, 7, got[0].Ref)
	assert.EqualValues(t, 9, got[0].Module)
}

func TestRefsetIndexLanguageAwareStride(t *testing.T) {
	v16 := NewRefsetIndex(nil, false)
	v16.Add(RefsetEntry{Definition: 1, Name: 2})
	v17 := NewRefsetIndex(nil, true)
	idx := v17.Add(RefsetEntry{Definition: 1, Name: 2, Langs: 99})
	rec, err := v17.Get(idx)
	require.NoError(t, err)
	assert.True(t, rec.HasLangs)
	assert.EqualValues(t, 99, rec.Langs)
	assert.Equal(t, refsetIndexStrideV16, len(v16.Bytes()))
	assert.Equal(t, refsetIndexStrideV17, len(v17.Bytes()))
}
