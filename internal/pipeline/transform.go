package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

// IssueEnricher implements Transformer: it parses an issue report, attaches
// the resolved place, and serializes the result for the sink topic.
type IssueEnricher struct {
	resolver domain.PlaceResolver
	logger   *slog.Logger
}

// NewTransformer creates an IssueEnricher. Pass a nil resolver to forward
// reports without geocoding.
func NewTransformer(resolver domain.PlaceResolver, logger *slog.Logger) *IssueEnricher {
	return &IssueEnricher{
		resolver: resolver,
		logger:   logger,
	}
}

func (t *IssueEnricher) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	report, err := domain.ParseIssueReport(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	report, err = domain.EnrichWithPlace(ctx, report, t.resolver, t.logger)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	return domain.SerializeIssueReport(report)
}
