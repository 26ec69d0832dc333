package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCacheKey_Quantization(t *testing.T) {
	a := NewCacheKey(12.97160, 77.59460)
	b := NewCacheKey(12.97161, 77.59461)

	assert.Equal(t, a, b)
	assert.Equal(t, "12.9716,77.5946", a.String())
}

func TestNewCacheKey_DistinctBeyondPrecision(t *testing.T) {
	a := NewCacheKey(12.9716, 77.5946)
	b := NewCacheKey(12.9717, 77.5946)

	assert.NotEqual(t, a, b)
}

func TestNewCacheKey_Rounding(t *testing.T) {
	assert.Equal(t, "12.9717,77.5945", NewCacheKey(12.97166, 77.59454).String())
	assert.Equal(t, "-33.8688,151.2093", NewCacheKey(-33.86882, 151.20929).String())
}

func TestNewCacheKey_NegativeZero(t *testing.T) {
	a := NewCacheKey(-0.00001, 0.00001)
	b := NewCacheKey(0, 0)

	assert.Equal(t, b, a)
	assert.Equal(t, "0.0000,0.0000", a.String())
}

func TestAttribution(t *testing.T) {
	assert.Equal(t, "© OpenStreetMap contributors", Attribution())
	assert.Equal(t, "Geocoding data © OpenStreetMap contributors, licensed under ODbL", DetailedAttribution())
}
