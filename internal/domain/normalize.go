package domain

import (
	"strconv"
	"strings"
)

// Normalize converts a raw provider response into a PlaceResult. The place
// name follows a fixed precedence; see the package documentation.
func Normalize(lat, lng float64, raw RawResponse) (PlaceResult, error) {
	if raw == nil {
		return PlaceResult{}, ErrNotFound
	}
	in, ok := raw.normalizationInput()
	if !ok {
		return PlaceResult{}, ErrNotFound
	}

	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.Country = strings.TrimSpace(in.Country)
	in.FormattedAddress = strings.TrimSpace(in.FormattedAddress)

	return PlaceResult{
		PlaceName:        placeName(lat, lng, in),
		FormattedAddress: in.FormattedAddress,
		City:             in.City,
		State:            in.State,
		Country:          in.Country,
	}, nil
}

func placeName(lat, lng float64, in addressFields) string {
	switch {
	case in.City != "" && in.State != "":
		return in.City + ", " + in.State
	case in.City != "":
		return in.City
	case in.State != "":
		return in.State
	case in.Country != "":
		return in.Country
	case in.FormattedAddress != "":
		return in.FormattedAddress
	default:
		return formatCoord(lat) + ", " + formatCoord(lng)
	}
}

// formatCoord renders a coordinate with the fewest digits that round-trip.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
