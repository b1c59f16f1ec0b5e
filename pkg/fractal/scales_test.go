package fractal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateScales(t *testing.T) {
	tests := []struct {
		name   string
		maxExp int
		minExp int
		n      int
		want   []int
	}{
		{"powers of two", 6, 1, 6, []int{64, 32, 16, 8, 4, 2}},
		{"fractional exponents", 6, 1, 7, []int{64, 35, 20, 11, 6, 3, 2}},
		{"dense sampling dedupes", 2, 0, 20, []int{4, 3, 2, 1}},
		{"single sample", 5, 1, 1, []int{32}},
		{"equal bounds", 3, 3, 4, []int{8}},
		{"half exponents", 3, 0, 7, []int{8, 5, 4, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateScales(tt.maxExp, tt.minExp, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateScalesStrictlyDescending(t *testing.T) {
	got, err := GenerateScales(9, 0, 100)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 512, got[0])
	assert.Equal(t, 1, got[len(got)-1])
	assert.Contains(t, got, 256)
	assert.Contains(t, got, 480)
	assert.NotContains(t, got, 255)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i], got[i-1])
	}
}

func TestGenerateScalesErrors(t *testing.T) {
	_, err := GenerateScales(4, 1, 0)
	assert.Error(t, err)

	_, err = GenerateScales(4, -1, 3)
	assert.Error(t, err)

	_, err = GenerateScales(1, 4, 3)
	assert.Error(t, err)
}

func TestDefaultMaxExponent(t *testing.T) {
	assert.Equal(t, 6, DefaultMaxExponent(64))
	assert.Equal(t, 6, DefaultMaxExponent(100))
	assert.Equal(t, 0, DefaultMaxExponent(1))
	assert.Equal(t, 0, DefaultMaxExponent(0))
}
