package domain

import "context"

// Transport performs one exchange with the reverse-geocoding provider.
type Transport interface {
	// Name labels the transport in logs and metrics.
	Name() string

	// Fetch requests place details for a coordinate. Failures are returned as
	// *TransportError (or *ThrottledError for 429/403).
	Fetch(ctx context.Context, lat, lng float64) (RawResponse, error)
}

// PlaceResolver turns coordinates into a place. A nil result with a nil error
// means the coordinate could not be resolved.
type PlaceResolver interface {
	Resolve(ctx context.Context, lat, lng float64) (*PlaceResult, error)
}
