package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlace resolves the report's geotag and attaches the place. A
// missing resolver leaves the report untouched. Invalid geotags and
// unresolvable coordinates are recorded in GeoSource rather than failing
// (graceful degradation). Only resolver internal errors are returned.
func EnrichWithPlace(ctx context.Context, report IssueReport, resolver PlaceResolver, logger *slog.Logger) (IssueReport, error) {
	if resolver == nil {
		return report, nil
	}

	geo, err := ParseGeotag(report.Geotag)
	if err != nil {
		logger.Warn("invalid geotag, skipping geocoding",
			"issue_id", report.ID,
			"geotag", report.Geotag,
			"error", err,
		)
		report.GeoSource = GeoSourceInvalid
		return report, nil
	}
	report.Geo = &geo

	place, err := resolver.Resolve(ctx, geo.Lat, geo.Lng)
	if err != nil {
		return report, err
	}
	if place == nil {
		report.GeoSource = GeoSourceUnresolved
		return report, nil
	}

	report.Place = place
	report.GeoSource = GeoSourceResolved
	return report, nil
}
