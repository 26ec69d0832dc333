// Package domain models reverse-geocoding results for citizen issue reports.
//
// # Data Source
//
// Place data comes from the OpenStreetMap Nominatim reverse endpoint, reached
// either through a general geocoding client or by a direct HTTP request. The
// two paths return differently shaped payloads, represented here as the
// [RawResponse] variants [ClientAddress] and [NominatimReverse].
//
// # Coordinate Quantization
//
// Lookups are grouped by [CacheKey], the coordinate pair rounded to four
// decimal places (roughly 11 m at the equator):
//
//	(12.97160, 77.59460) → "12.9716,77.5946"
//	(12.97161, 77.59461) → "12.9716,77.5946"
//
// # Place Name Precedence
//
// [Normalize] derives the display name from the first available rule:
//
//	city + state  → "Pune, MH"
//	city          → "Pune"
//	state         → "MH"
//	country       → "India"
//	display name  → "Shivajinagar, Pune, Maharashtra, 411005, India"
//	otherwise     → "18.5308, 73.8475"
//
// A response that reports no match at all yields [ErrNotFound].
//
// # Geotags
//
// Intake reports carry their location as a "lat,lng" geotag string. See
// [ParseGeotag] for the accepted forms and range checks.
//
// # Attribution
//
// Nominatim data is licensed under the ODbL and must be attributed wherever
// a resolved place is displayed. See [Attribution].
package domain
