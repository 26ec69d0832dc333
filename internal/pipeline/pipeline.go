package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
	"github.com/couchcryptid/issue-geocoder-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into an output event.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 5 * time.Second

	// DegradedAfter is the number of consecutive failed cycles after which
	// CheckReadiness reports the pipeline as unhealthy.
	DegradedAfter = 3

	noGeoSource = "none"
)

// Pipeline consumes issue reports, attaches a place to each, and publishes
// them to the sink topic.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	batchSize   int

	running atomic.Bool

	mu       sync.Mutex
	failures int
	lastErr  error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for backoff and batch timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness fails when Run is not executing or when the last
// DegradedAfter cycles all failed. A single failed cycle is tolerated.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.running.Load() {
		return errors.New("enrichment pipeline is not running")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures >= DegradedAfter {
		return fmt.Errorf("enrichment pipeline failed %d consecutive batches: %w", p.failures, p.lastErr)
	}
	return nil
}

// Run executes the enrichment loop until ctx is cancelled. A failed cycle
// is retried after an exponential backoff (200ms doubling to 5s).
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.running.Store(true)
	p.metrics.PipelineRunning.Set(1)
	defer func() {
		p.running.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := minBackoff
	for ctx.Err() == nil {
		err := p.cycle(ctx)
		if ctx.Err() != nil {
			break
		}
		p.recordCycle(err)
		if err == nil {
			backoff = minBackoff
			continue
		}

		p.logger.Error("batch failed", "error", err, "retry_in", backoff)
		if !p.sleep(ctx, backoff) {
			break
		}
		backoff = min(backoff*2, maxBackoff)
	}

	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// enriched is the part of a batch that made it through the transformer.
type enriched struct {
	events   []domain.OutputEvent
	raws     []domain.RawEvent
	outcomes map[string]int
	skipped  int
}

// cycle runs one extract-enrich-load pass. Poison messages are committed and
// skipped; enriched messages are committed only after the sink accepts them.
func (p *Pipeline) cycle(ctx context.Context) error {
	start := p.clock.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("extract batch: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	out := p.enrich(ctx, batch)
	if len(out.events) > 0 {
		if err := p.loader.LoadBatch(ctx, out.events); err != nil {
			return fmt.Errorf("load batch of %d: %w", len(out.events), err)
		}
		p.metrics.MessagesProduced.Add(float64(len(out.events)))
		for _, raw := range out.raws {
			p.commit(ctx, raw)
		}
	}

	for source, n := range out.outcomes {
		p.metrics.EnrichOutcomes.WithLabelValues(source).Add(float64(n))
	}
	p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Info("batch enriched",
		"size", len(batch),
		"resolved", out.outcomes[domain.GeoSourceResolved],
		"unresolved", out.outcomes[domain.GeoSourceUnresolved],
		"invalid", out.outcomes[domain.GeoSourceInvalid],
		"skipped", out.skipped,
	)
	return nil
}

func (p *Pipeline) enrich(ctx context.Context, batch []domain.RawEvent) enriched {
	out := enriched{
		events:   make([]domain.OutputEvent, 0, len(batch)),
		raws:     make([]domain.RawEvent, 0, len(batch)),
		outcomes: make(map[string]int, 3),
	}
	for _, raw := range batch {
		ev, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("enrich failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.EnrichErrors.Inc()
			p.commit(ctx, raw)
			out.skipped++
			continue
		}
		source := ev.Headers["geo_source"]
		if source == "" {
			source = noGeoSource
		}
		out.outcomes[source]++
		out.events = append(out.events, ev)
		out.raws = append(out.raws, raw)
	}
	return out
}

func (p *Pipeline) recordCycle(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.failures, p.lastErr = 0, nil
		return
	}
	p.failures++
	p.lastErr = err
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// sleep waits d on the pipeline clock. It returns false if ctx ended first.
func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
