package estimate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatRatePricing_Price(t *testing.T) {
	p := NewFlatRatePricing()

	tests := []struct {
		name string
		km   float64
		want float64
	}{
		{"round distance", 120.00, 60.00},
		{"scenario distance", 42.20, 21.10},
		{"odd distance", 10.5, 5.25},
		{"one kilometer", 1, 0.5},
		{"long trip", 2731.5, 1365.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Price(tt.km)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := p.Price(tt.km)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestFlatRatePricing_RejectsNonPositive(t *testing.T) {
	p := NewFlatRatePricing()
	for _, km := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := p.Price(km)
		assert.Error(t, err, "km=%v", km)
	}
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "21,10", FormatBRL(21.10))
	assert.Equal(t, "0,50", FormatBRL(0.5))
	assert.Equal(t, "1.234,56", FormatBRL(1234.56))
	assert.Equal(t, "1.234.567,80", FormatBRL(1234567.8))
}
