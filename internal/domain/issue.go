package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Geo source values recorded on enriched reports.
const (
	GeoSourceResolved   = "resolved"
	GeoSourceUnresolved = "unresolved"
	GeoSourceInvalid    = "invalid"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo is a WGS-84 latitude/longitude pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IssueReport is an intake report as published by the issue API, plus the
// place enrichment added here.
type IssueReport struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description"`
	Type        string    `json:"type,omitempty"`
	Geotag      string    `json:"geotag"`
	ImageURLs   []string  `json:"imageUrls,omitempty"`
	AudioURL    string    `json:"audio,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Status      string    `json:"status,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Enrichment fields.
	Geo       *Geo         `json:"geo,omitempty"`
	Place     *PlaceResult `json:"place,omitempty"`
	GeoSource string       `json:"geo_source,omitempty"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseIssueReport decodes a source message into an IssueReport.
func ParseIssueReport(raw RawEvent) (IssueReport, error) {
	var report IssueReport
	if err := json.Unmarshal(raw.Value, &report); err != nil {
		return IssueReport{}, fmt.Errorf("parse issue report: %w", err)
	}
	if report.ID == "" {
		report.ID = string(raw.Key)
	}
	if report.ID == "" {
		return IssueReport{}, errors.New("parse issue report: missing id")
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = raw.Timestamp
	}
	return report, nil
}

// SerializeIssueReport marshals an enriched report for the sink topic.
func SerializeIssueReport(report IssueReport) (OutputEvent, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize issue report: %w", err)
	}
	return OutputEvent{
		Key:   []byte(report.ID),
		Value: data,
		Headers: map[string]string{
			"geo_source": report.GeoSource,
		},
	}, nil
}

// ParseGeotag parses a "lat,lng" geotag. Whitespace around either part is
// ignored; a semicolon is accepted as the separator. Latitude must lie in
// [-90, 90] and longitude in [-180, 180].
func ParseGeotag(s string) (Geo, error) {
	s = strings.TrimSpace(s)
	sep := ","
	if !strings.Contains(s, sep) {
		sep = ";"
	}
	latStr, lngStr, ok := strings.Cut(s, sep)
	if !ok {
		return Geo{}, fmt.Errorf("geotag %q: expected \"lat,lng\"", s)
	}

	lat, err := parseCoord(latStr)
	if err != nil {
		return Geo{}, fmt.Errorf("geotag %q: latitude: %w", s, err)
	}
	lng, err := parseCoord(lngStr)
	if err != nil {
		return Geo{}, fmt.Errorf("geotag %q: longitude: %w", s, err)
	}

	if err := ValidateCoordinates(lat, lng); err != nil {
		return Geo{}, fmt.Errorf("geotag %q: %w", s, err)
	}
	return Geo{Lat: lat, Lng: lng}, nil
}

// ValidateCoordinates checks that both values are finite and within WGS-84 ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinates (%v, %v) are not finite", lat, lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}
