package ndc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardle/go-terminology/internal/provider"
)

func TestNormalize11(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0002-3227-30", "00002322730", true},  // 4-4-2
		{"50242-040-62", "50242004062", true},  // 5-3-2
		{"60575-4112-1", "60575411201", true},  // 5-4-1
		{"00002-3227-30", "00002322730", true}, // already padded, hyphenated
		{"00002322730", "00002322730", true},   // 11-digit plain
		{"0002322730", "", false},              // 10 digits without hyphens is ambiguous
		{"0002-3227", "", false},
		{"0002-3227-3x", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize11(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestDoesFilterCodeType(t *testing.T) {
	p := &Provider{}
	assert.True(t, p.DoesFilter("code-type", "=", "10-digit"))
	assert.True(t, p.DoesFilter("code-type", "=", "11-digit"))
	assert.True(t, p.DoesFilter("code-type", "=", "product"))
	assert.False(t, p.DoesFilter("code-type", "=", "12-digit"))
	assert.False(t, p.DoesFilter("code-type", "in", "product"))
}

func TestFilterRejectsUnsupported(t *testing.T) {
	p := &Provider{}
	prep := p.GetPrepContext(false)
	err := p.Filter(prep, "strength", "=", "10mg")
	require.ErrorIs(t, err, provider.ErrFilterNotSupported)
}
