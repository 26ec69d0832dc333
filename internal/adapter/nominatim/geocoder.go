package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	geo "github.com/codingsince1985/geo-golang"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

// osmGeocoder is a geo.Geocoder for Nominatim that, unlike geo-golang's
// bundled OpenStreetMap client, sends the application's User-Agent and
// reports the upstream status on failure.
type osmGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ geo.Geocoder = (*osmGeocoder)(nil)

type osmAddress struct {
	HouseNumber   string `json:"house_number"`
	Road          string `json:"road"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	County        string `json:"county"`
	StateDistrict string `json:"state_district"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
}

type osmReverse struct {
	DisplayName string     `json:"display_name"`
	Address     osmAddress `json:"address"`
	Error       string     `json:"error"`
}

type osmPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// ReverseGeocode returns nil, nil when Nominatim has no match.
func (g *osmGeocoder) ReverseGeocode(lat, lng float64) (*geo.Address, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lng, 'f', -1, 64)},
		"addressdetails": {"1"},
	}
	var body osmReverse
	if err := g.get(context.Background(), "/reverse", params, &body); err != nil {
		return nil, err
	}
	if body.Error != "" {
		return nil, nil
	}

	a := body.Address
	city := firstNonEmpty(a.City, a.Town, a.Village)
	return &geo.Address{
		FormattedAddress: body.DisplayName,
		HouseNumber:      a.HouseNumber,
		Street:           a.Road,
		Suburb:           firstNonEmpty(a.Suburb, a.Neighbourhood),
		Postcode:         a.Postcode,
		City:             city,
		County:           a.County,
		State:            firstNonEmpty(a.State, a.StateDistrict),
		Country:          a.Country,
		CountryCode:      a.CountryCode,
	}, nil
}

// Geocode resolves a free-form query to its best match, or nil, nil.
func (g *osmGeocoder) Geocode(address string) (*geo.Location, error) {
	params := url.Values{
		"format": {"jsonv2"},
		"q":      {address},
		"limit":  {"1"},
	}
	var places []osmPlace
	if err := g.get(context.Background(), "/search", params, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, domain.NewTransportError(PrimaryName, http.StatusBadGateway, fmt.Errorf("parse lat: %w", err))
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, domain.NewTransportError(PrimaryName, http.StatusBadGateway, fmt.Errorf("parse lon: %w", err))
	}
	return &geo.Location{Lat: lat, Lng: lng}, nil
}

func (g *osmGeocoder) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NewTransportError(PrimaryName, http.StatusInternalServerError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.NewTransportError(PrimaryName, statusForError(err), fmt.Errorf("%s request: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.NewTransportError(PrimaryName, resp.StatusCode, fmt.Errorf("nominatim API error: %s", body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewTransportError(PrimaryName, http.StatusBadGateway, fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
