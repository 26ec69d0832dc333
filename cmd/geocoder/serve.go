package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/issue-geocoder-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/issue-geocoder-service/internal/adapter/kafka"
	"github.com/couchcryptid/issue-geocoder-service/internal/config"
	"github.com/couchcryptid/issue-geocoder-service/internal/observability"
	"github.com/couchcryptid/issue-geocoder-service/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when KAFKA_ENABLED=true, the enrichment pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	svc := buildService(cfg, metrics, logger)

	logger.Info("geocoder configured",
		"nominatim", cfg.NominatimBaseURL,
		"min_interval", cfg.MinRequestInterval,
		"timeout", cfg.GeocoderTimeout,
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		reader       *kafkaadapter.Reader
		writer       *kafkaadapter.Writer
		pipelineDone = make(chan struct{})
	)

	// With the pipeline disabled the API is ready as soon as it listens.
	var ready httpadapter.ReadinessChecker = httpadapter.ReadinessFunc(func(context.Context) error { return nil })

	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, pipeline.NewTransformer(svc, logger), writer, logger, metrics, cfg.BatchSize)
		ready = p

		go func() {
			defer close(pipelineDone)
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		close(pipelineDone)
		logger.Info("kafka enrichment pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before the shutdown timeout")
	}
	closeKafka(reader, writer, logger)

	logger.Info("shutdown complete")
	return nil
}

func closeKafka(reader *kafkaadapter.Reader, writer *kafkaadapter.Writer, logger *slog.Logger) {
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
}
