package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock resolver ---

type mockResolver struct {
	result  *PlaceResult
	err     error
	calls   int
	lastLat float64
	lastLng float64
}

func (m *mockResolver) Resolve(_ context.Context, lat, lng float64) (*PlaceResult, error) {
	m.calls++
	m.lastLat, m.lastLng = lat, lng
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichWithPlace_NilResolver(t *testing.T) {
	report := IssueReport{ID: "iss-1", Geotag: "18.5204,73.8567"}

	result, err := EnrichWithPlace(context.Background(), report, nil, discardLogger())
	require.NoError(t, err)

	assert.Empty(t, result.GeoSource)
	assert.Nil(t, result.Place)
	assert.Nil(t, result.Geo)
}

func TestEnrichWithPlace_Resolved(t *testing.T) {
	res := &mockResolver{result: &PlaceResult{PlaceName: "Pune, Maharashtra", City: "Pune", State: "Maharashtra"}}
	report := IssueReport{ID: "iss-2", Geotag: "18.5204, 73.8567"}

	result, err := EnrichWithPlace(context.Background(), report, res, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, GeoSourceResolved, result.GeoSource)
	require.NotNil(t, result.Place)
	assert.Equal(t, "Pune, Maharashtra", result.Place.PlaceName)
	require.NotNil(t, result.Geo)
	assert.Equal(t, 18.5204, result.Geo.Lat)
	assert.Equal(t, 73.8567, result.Geo.Lng)
	assert.Equal(t, 1, res.calls)
	assert.Equal(t, 18.5204, res.lastLat)
	assert.Equal(t, 73.8567, res.lastLng)
}

func TestEnrichWithPlace_Unresolved(t *testing.T) {
	res := &mockResolver{}
	report := IssueReport{ID: "iss-3", Geotag: "0.5,-30.25"}

	result, err := EnrichWithPlace(context.Background(), report, res, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, GeoSourceUnresolved, result.GeoSource)
	assert.Nil(t, result.Place)
	assert.NotNil(t, result.Geo, "parsed coordinates are kept")
}

func TestEnrichWithPlace_InvalidGeotag_GracefulDegradation(t *testing.T) {
	res := &mockResolver{}
	report := IssueReport{ID: "iss-4", Geotag: "somewhere near the park"}

	result, err := EnrichWithPlace(context.Background(), report, res, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, GeoSourceInvalid, result.GeoSource)
	assert.Equal(t, 0, res.calls)
}

func TestEnrichWithPlace_InternalErrorPropagates(t *testing.T) {
	internal := &InternalError{Op: "cache", Err: errors.New("corrupt entry")}
	res := &mockResolver{err: internal}
	report := IssueReport{ID: "iss-5", Geotag: "10,10"}

	_, err := EnrichWithPlace(context.Background(), report, res, discardLogger())
	require.Error(t, err)

	var ie *InternalError
	assert.ErrorAs(t, err, &ie)
}
