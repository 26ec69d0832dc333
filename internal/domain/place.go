package domain

import (
	"math"
	"strconv"
)

// keyScale rounds coordinates to four decimal places.
const keyScale = 1e4

// PlaceResult is a resolved, human-readable place for a coordinate.
type PlaceResult struct {
	PlaceName        string `json:"placeName"`
	FormattedAddress string `json:"formattedAddress,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	Country          string `json:"country,omitempty"`
}

// CacheKey is a coordinate pair quantized to four decimal places.
type CacheKey struct {
	Lat float64
	Lng float64
}

// NewCacheKey quantizes a coordinate pair.
func NewCacheKey(lat, lng float64) CacheKey {
	return CacheKey{Lat: quantize(lat), Lng: quantize(lng)}
}

// String renders the key as "lat,lng" with exactly four decimals.
func (k CacheKey) String() string {
	return strconv.FormatFloat(k.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(k.Lng, 'f', 4, 64)
}

func quantize(v float64) float64 {
	r := math.Round(v*keyScale) / keyScale
	if r == 0 {
		// Collapse -0 so both signs share a key string.
		return 0
	}
	return r
}

const (
	attribution         = "© OpenStreetMap contributors"
	detailedAttribution = "Geocoding data © OpenStreetMap contributors, licensed under ODbL"
)

// Attribution returns the short provider attribution.
func Attribution() string { return attribution }

// DetailedAttribution returns the attribution including the data license.
func DetailedAttribution() string { return detailedAttribution }
