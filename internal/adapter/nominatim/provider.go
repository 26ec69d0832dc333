package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	geo "github.com/codingsince1985/geo-golang"

	"github.com/couchcryptid/issue-geocoder-service/internal/domain"
)

// PrimaryName labels the geocoding-client transport in logs and metrics.
const PrimaryName = "primary"

// Provider is the primary transport. It delegates to a general geocoding
// client behind the geo.Geocoder interface.
type Provider struct {
	geocoder geo.Geocoder
	timeout  time.Duration
}

// NewProvider creates the primary transport against the Nominatim instance
// at baseURL. userAgent identifies the application per the Nominatim usage
// policy.
func NewProvider(baseURL, userAgent string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g := &osmGeocoder{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
	return NewProviderWithGeocoder(g, timeout)
}

// NewProviderWithGeocoder wraps an arbitrary geo.Geocoder.
func NewProviderWithGeocoder(g geo.Geocoder, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Provider{geocoder: g, timeout: timeout}
}

// Name implements domain.Transport.
func (p *Provider) Name() string { return PrimaryName }

type reverseResult struct {
	addr *geo.Address
	err  error
}

// Fetch implements domain.Transport. The geocoding client takes no context,
// so the call runs in its own goroutine and is abandoned if ctx or the
// per-call timeout ends first.
func (p *Provider) Fetch(ctx context.Context, lat, lng float64) (domain.RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan reverseResult, 1)
	go func() {
		addr, err := p.geocoder.ReverseGeocode(lat, lng)
		done <- reverseResult{addr: addr, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.NewTransportError(PrimaryName, http.StatusGatewayTimeout, fmt.Errorf("reverse geocode: %w", ctx.Err()))
	case res := <-done:
		if res.err != nil {
			var te *domain.TransportError
			if errors.As(res.err, &te) {
				return nil, res.err
			}
			code := http.StatusBadGateway
			if errors.Is(res.err, geo.ErrTimeout) {
				code = http.StatusGatewayTimeout
			}
			return nil, domain.NewTransportError(PrimaryName, code, fmt.Errorf("reverse geocode: %w", res.err))
		}
		if isEmptyAddress(res.addr) {
			// Some clients decode "[]", "{}" or an empty body as success.
			return nil, domain.NewTransportError(PrimaryName, http.StatusBadGateway, errEmptyAddress)
		}
		return toClientAddress(res.addr), nil
	}
}

var errEmptyAddress = errors.New("reverse geocode: client returned an empty address")

func isEmptyAddress(a *geo.Address) bool {
	return a != nil && a.FormattedAddress == "" && a.City == "" && a.State == "" && a.Country == ""
}

func toClientAddress(a *geo.Address) domain.ClientAddress {
	if a == nil {
		return domain.ClientAddress{}
	}
	return domain.ClientAddress{
		Found:            true,
		FormattedAddress: a.FormattedAddress,
		Street:           a.Street,
		HouseNumber:      a.HouseNumber,
		Suburb:           a.Suburb,
		Postcode:         a.Postcode,
		City:             a.City,
		County:           a.County,
		State:            a.State,
		StateCode:        a.StateCode,
		Country:          a.Country,
		CountryCode:      a.CountryCode,
	}
}
