package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/issue-geocoder-service/internal/config"
	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
	"github.com/couchcryptid/issue-geocoder-service/internal/observability"
)

func newReverseCmd() *cobra.Command {
	var (
		lat, lng float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "Resolve one coordinate to a place name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := domain.ValidateCoordinates(lat, lng); err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(cfg)
			svc := buildService(cfg, observability.NewMetrics(), logger)

			place, err := svc.Resolve(cmd.Context(), lat, lng)
			if err != nil {
				return err
			}
			if place == nil {
				logger.Debug("coordinate unresolved", "lat", lat, "lng", lng)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeReverseJSON(out, place, svc.Attribution())
			}
			renderPlace(out, lat, lng, place, svc.Attribution())
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude in decimal degrees")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}

func writeReverseJSON(w io.Writer, place *domain.PlaceResult, attribution string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Place       *domain.PlaceResult `json:"place"`
		Attribution string              `json:"attribution"`
	}{place, attribution})
}

func renderPlace(w io.Writer, lat, lng float64, place *domain.PlaceResult, attribution string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(domain.NewCacheKey(lat, lng).String())
	t.AppendHeader(table.Row{"Field", "Value"})

	if place == nil {
		t.AppendRow(table.Row{"Place", "(unresolved)"})
	} else {
		t.AppendRows([]table.Row{
			{"Place", place.PlaceName},
			{"City", place.City},
			{"State", place.State},
			{"Country", place.Country},
			{"Address", place.FormattedAddress},
		})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Attribution", attribution})
	t.Render()
}
