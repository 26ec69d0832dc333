// Package geocoder resolves coordinates to place names. It owns the cache,
// the provider rate gate, and the primary/fallback transport sequence.
package geocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/issue-geocoder-service/internal/cache"
	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
	"github.com/couchcryptid/issue-geocoder-service/internal/observability"
	"github.com/couchcryptid/issue-geocoder-service/internal/ratelimit"
)

// DefaultThrottleCooldown is the extra delay after the provider answers 429 or 403.
const DefaultThrottleCooldown = 5 * time.Second

// Resolution outcomes recorded in metrics.
const (
	outcomeResolved   = "resolved"
	outcomeUnresolved = "unresolved"
	outcomeCancelled  = "cancelled"
)

// Service is the reverse-geocoding orchestrator. It is safe for concurrent
// use. Concurrent calls for the same uncached coordinate are not coalesced;
// each passes the rate gate and reaches the provider.
type Service struct {
	primary  domain.Transport
	fallback domain.Transport
	limiter  *ratelimit.Limiter
	store    *cache.Store
	clock    clockwork.Clock
	cooldown time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for the throttle cooldown and request timing.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCooldown overrides DefaultThrottleCooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithStore supplies the cache store, e.g. to share one across services in tests.
func WithStore(st *cache.Store) Option {
	return func(s *Service) { s.store = st }
}

// New creates a Service. primary is tried first on every cache miss and
// fallback only when primary fails.
func New(primary, fallback domain.Transport, limiter *ratelimit.Limiter, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		primary:  primary,
		fallback: fallback,
		limiter:  limiter,
		cooldown: DefaultThrottleCooldown,
		metrics:  metrics,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.store == nil {
		s.store = cache.NewStore()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(ratelimit.DefaultInterval, s.clock)
	}
	return s
}

// Resolve returns the place for a coordinate, or nil when it cannot be
// resolved. Provider failures are logged and cached as negative results; the
// error return is reserved for *domain.InternalError. A ctx cancelled before
// the provider answers yields nil and leaves the cache untouched.
func (s *Service) Resolve(ctx context.Context, lat, lng float64) (*domain.PlaceResult, error) {
	key := domain.NewCacheKey(lat, lng)

	if entry, ok := s.store.Get(key); ok {
		if entry.Negative() {
			s.metrics.GeocodeCache.WithLabelValues("negative_hit").Inc()
			return nil, nil
		}
		if entry.Place.PlaceName == "" {
			return nil, &domain.InternalError{
				Op:  "cache lookup",
				Err: fmt.Errorf("entry %s holds a place without a name", key),
			}
		}
		s.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return entry.Place, nil
	}
	s.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	waited, err := s.limiter.Acquire(ctx)
	s.metrics.RateLimitWait.Observe(waited.Seconds())
	if err != nil {
		s.logger.Debug("rate gate abandoned", "key", key.String(), "error", err)
		s.metrics.GeocodeResolutions.WithLabelValues(outcomeCancelled).Inc()
		return nil, nil
	}

	place, throttled, err := s.lookup(ctx, lat, lng)
	if err != nil && !errors.Is(err, domain.ErrNotFound) && ctx.Err() != nil {
		s.logger.Debug("resolution cancelled", "key", key.String(), "error", err)
		s.metrics.GeocodeResolutions.WithLabelValues(outcomeCancelled).Inc()
		return nil, nil
	}

	switch {
	case err == nil:
		s.store.Put(key, cache.Entry{Place: place})
		s.metrics.GeocodeResolutions.WithLabelValues(outcomeResolved).Inc()
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Info("no results for coordinate", "key", key.String())
		s.store.Put(key, cache.Entry{})
		s.metrics.GeocodeResolutions.WithLabelValues(outcomeUnresolved).Inc()
	default:
		s.logger.Warn("reverse geocoding failed", "key", key.String(), "error", err)
		s.store.Put(key, cache.Entry{})
		s.metrics.GeocodeResolutions.WithLabelValues(outcomeUnresolved).Inc()
	}
	s.metrics.CacheEntries.Set(float64(s.store.Len()))

	if throttled {
		s.coolDown(ctx, key)
	}

	return place, nil
}

// lookup runs the primary transport, then the fallback if the primary
// fails, and normalizes the first successful response. throttled reports
// whether any attempt hit 429 or 403.
func (s *Service) lookup(ctx context.Context, lat, lng float64) (*domain.PlaceResult, bool, error) {
	raw, err := s.fetch(ctx, s.primary, lat, lng)
	throttled := domain.IsThrottled(err)
	if err != nil {
		s.logger.Warn("primary transport failed, trying fallback", "transport", s.primary.Name(), "error", err)

		raw, err = s.fetch(ctx, s.fallback, lat, lng)
		throttled = throttled || domain.IsThrottled(err)
		if err != nil {
			return nil, throttled, err
		}
	}

	place, err := domain.Normalize(lat, lng, raw)
	if err != nil {
		return nil, throttled, err
	}
	return &place, throttled, nil
}

func (s *Service) fetch(ctx context.Context, t domain.Transport, lat, lng float64) (domain.RawResponse, error) {
	start := s.clock.Now()
	raw, err := t.Fetch(ctx, lat, lng)
	s.metrics.GeocodeAPIDuration.WithLabelValues(t.Name()).Observe(s.clock.Since(start).Seconds())

	switch {
	case err == nil:
		s.metrics.GeocodeRequests.WithLabelValues(t.Name(), "success").Inc()
	case domain.IsThrottled(err):
		s.metrics.GeocodeRequests.WithLabelValues(t.Name(), "throttled").Inc()
	default:
		s.metrics.GeocodeRequests.WithLabelValues(t.Name(), "error").Inc()
	}
	return raw, err
}

// coolDown holds the caller for the throttle cooldown. It does not retry.
func (s *Service) coolDown(ctx context.Context, key domain.CacheKey) {
	s.metrics.GeocodeThrottled.Inc()
	s.logger.Warn("provider throttled, cooling down", "key", key.String(), "cooldown", s.cooldown)
	if s.cooldown <= 0 {
		return
	}

	timer := s.clock.NewTimer(s.cooldown)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.Chan():
	}
}

// Attribution returns the short provider attribution.
func (s *Service) Attribution() string { return domain.Attribution() }

// DetailedAttribution returns the attribution including the data license.
func (s *Service) DetailedAttribution() string { return domain.DetailedAttribution() }

// CacheStats describes the cache contents.
func (s *Service) CacheStats() cache.Stats { return s.store.Stats() }

// ClearCache drops every cached resolution, positive and negative.
func (s *Service) ClearCache() {
	s.store.Clear()
	s.metrics.CacheEntries.Set(0)
	s.logger.Info("geocode cache cleared")
}
