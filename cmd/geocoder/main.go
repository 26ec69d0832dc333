// Command geocoder runs the issue geocoding service and offers one-off
// reverse lookups from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/issue-geocoder-service/internal/adapter/nominatim"
	"github.com/couchcryptid/issue-geocoder-service/internal/config"
	"github.com/couchcryptid/issue-geocoder-service/internal/geocoder"
	"github.com/couchcryptid/issue-geocoder-service/internal/observability"
	"github.com/couchcryptid/issue-geocoder-service/internal/ratelimit"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "geocoder:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geocoder",
		Short:         "Reverse-geocode issue report coordinates via Nominatim",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newReverseCmd())
	return root
}

// buildService wires the transports, rate gate, and cache into a resolver.
func buildService(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *geocoder.Service {
	primary := nominatim.NewProvider(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.GeocoderTimeout)
	fallback := nominatim.NewClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.GeocoderTimeout)
	limiter := ratelimit.New(cfg.MinRequestInterval, nil)

	return geocoder.New(primary, fallback, limiter, metrics, logger,
		geocoder.WithCooldown(cfg.ThrottleCooldown),
	)
}
