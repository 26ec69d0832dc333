// Package nominatim implements the reverse-geocoding transports against an
// OpenStreetMap Nominatim deployment.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

// DefaultTimeout bounds a single provider exchange.
const DefaultTimeout = 10 * time.Second

// FallbackName labels the direct HTTP transport in logs and metrics.
const FallbackName = "fallback"

// maxErrorBody caps how much of a non-2xx body is kept for the error message.
const maxErrorBody = 512

// Client is the fallback transport: a direct request to Nominatim's /reverse
// endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Nominatim reverse client. baseURL has no trailing
// slash; userAgent identifies the application per the Nominatim usage policy.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name implements domain.Transport.
func (c *Client) Name() string { return FallbackName }

// Fetch implements domain.Transport.
func (c *Client) Fetch(ctx context.Context, lat, lng float64) (domain.RawResponse, error) {
	params := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lng, 'f', -1, 64)},
		"addressdetails": {"1"},
	}
	fullURL := c.baseURL + "/reverse?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, domain.NewTransportError(FallbackName, http.StatusInternalServerError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(FallbackName, statusForError(err), fmt.Errorf("reverse request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, domain.NewTransportError(FallbackName, resp.StatusCode, fmt.Errorf("nominatim API error: %s", body))
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.NewTransportError(FallbackName, http.StatusBadGateway, fmt.Errorf("decode response: %w", err))
	}

	return body.toDomain(), nil
}

// statusForError maps a failed exchange to a gateway status: timeouts are
// 504, everything else 502.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// Nominatim /reverse response types.

type reverseResponse struct {
	PlaceID     int64   `json:"place_id"`
	DisplayName string  `json:"display_name"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Country     string  `json:"country"`
	Address     address `json:"address"`
	Error       string  `json:"error"`
}

type address struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Hamlet       string `json:"hamlet"`
	Municipality string `json:"municipality"`
	County       string `json:"county"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
}

func (r reverseResponse) toDomain() domain.NominatimReverse {
	return domain.NominatimReverse{
		PlaceID:     r.PlaceID,
		DisplayName: r.DisplayName,
		City:        r.City,
		State:       r.State,
		Country:     r.Country,
		Address: domain.NominatimAddress{
			City:         r.Address.City,
			Town:         r.Address.Town,
			Village:      r.Address.Village,
			Hamlet:       r.Address.Hamlet,
			Municipality: r.Address.Municipality,
			County:       r.Address.County,
			State:        r.Address.State,
			Postcode:     r.Address.Postcode,
			Country:      r.Address.Country,
			CountryCode:  r.Address.CountryCode,
		},
		Error: r.Error,
	}
}
