package geocoder

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/issue-geocoder-service/internal/adapter/nominatim"
	"github.com/couchcryptid/issue-geocoder-service/internal/observability"
	"github.com/couchcryptid/issue-geocoder-service/internal/ratelimit"
)

const (
	primaryAgent  = "issue-geocoder-service/primary-test"
	fallbackAgent = "issue-geocoder-service/fallback-test"
)

// upstream is a Nominatim stand-in that answers every request the same way
// and counts requests per User-Agent.
type upstream struct {
	status int
	body   string

	mu   sync.Mutex
	hits map[string]int
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.hits[r.Header.Get("User-Agent")]++
	u.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(u.status)
	_, _ = w.Write([]byte(u.body))
}

func (u *upstream) count(agent string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[agent]
}

func newUpstreamService(t *testing.T, status int, body string) (*Service, *upstream, *clockwork.FakeClock, *observability.Metrics) {
	t.Helper()
	u := &upstream{status: status, body: body, hits: make(map[string]int)}
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClockAt(epoch)
	metrics := observability.NewMetricsForTesting()
	svc := New(
		nominatim.NewProvider(srv.URL, primaryAgent, 2*time.Second),
		nominatim.NewClient(srv.URL, fallbackAgent, 2*time.Second),
		ratelimit.New(time.Second, clock),
		metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(clock),
	)
	return svc, u, clock, metrics
}

func TestResolve_UnusableUpstreamAnswersFallBackAndCacheNegative(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty array", status: http.StatusOK, body: `[]`},
		{name: "empty object", status: http.StatusOK, body: `{}`},
		{name: "empty body", status: http.StatusOK, body: ``},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, u, _, metrics := newUpstreamService(t, tt.status, tt.body)

			p, err := svc.Resolve(context.Background(), 12.9716, 77.5946)
			require.NoError(t, err)
			assert.Nil(t, p, "no place name is invented from coordinates")

			assert.Equal(t, 1, u.count(primaryAgent))
			assert.Equal(t, 1, u.count(fallbackAgent), "primary failure falls through to the fallback")
			assert.Zero(t, u.count("geo-golang/1.0"))

			p, err = svc.Resolve(context.Background(), 12.9716, 77.5946)
			require.NoError(t, err)
			assert.Nil(t, p)
			assert.Equal(t, 1, u.count(primaryAgent), "second call served from the negative entry")
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("negative_hit")), 0)
			assert.InDelta(t, 0, testutil.ToFloat64(metrics.GeocodeThrottled), 0)
		})
	}
}

func TestResolve_ThrottledUpstreamWithEmptyBodyCoolsDown(t *testing.T) {
	svc, u, clock, metrics := newUpstreamService(t, http.StatusTooManyRequests, ``)
	ctx := waitCtx(t)

	done := resolveAsync(context.Background(), svc, 12.9716, 77.5946)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case <-done:
		t.Fatal("throttled resolve returned before the cooldown")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(DefaultThrottleCooldown)
	r := await(t, done)
	require.NoError(t, r.err)
	assert.Nil(t, r.place)

	assert.Equal(t, 1, u.count(primaryAgent))
	assert.Equal(t, 1, u.count(fallbackAgent))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeRequests.WithLabelValues(nominatim.PrimaryName, "throttled")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeThrottled), 0)
	assert.Equal(t, 1, svc.CacheStats().Size)
}
