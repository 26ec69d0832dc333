package domain

// RawResponse is the loosely structured answer from one transport. It is a
// closed union: the only variants are ClientAddress and NominatimReverse.
type RawResponse interface {
	// normalizationInput maps the variant onto the common fields. ok is
	// false when the provider reported no match.
	normalizationInput() (in addressFields, ok bool)
}

type addressFields struct {
	City             string
	State            string
	Country          string
	FormattedAddress string
}

// ClientAddress is the result shape of the general geocoding client.
type ClientAddress struct {
	// Found is false when the client returned no address.
	Found            bool
	FormattedAddress string
	Street           string
	HouseNumber      string
	Suburb           string
	Postcode         string
	City             string
	County           string
	State            string
	StateCode        string
	Country          string
	CountryCode      string
}

func (a ClientAddress) normalizationInput() (addressFields, bool) {
	if !a.Found {
		return addressFields{}, false
	}
	return addressFields{
		City:             a.City,
		State:            a.State,
		Country:          a.Country,
		FormattedAddress: a.FormattedAddress,
	}, true
}

// NominatimReverse is the body of a direct /reverse request. Nominatim nests
// locality fields under "address"; some deployments also flatten them.
type NominatimReverse struct {
	PlaceID     int64
	DisplayName string
	City        string
	State       string
	Country     string
	Address     NominatimAddress
	// Error is set when Nominatim answers {"error": "Unable to geocode"}.
	Error string
}

// NominatimAddress holds the addressdetails=1 breakdown.
type NominatimAddress struct {
	City         string
	Town         string
	Village      string
	Hamlet       string
	Municipality string
	County       string
	State        string
	Postcode     string
	Country      string
	CountryCode  string
}

func (n NominatimReverse) normalizationInput() (addressFields, bool) {
	if n.Error != "" {
		return addressFields{}, false
	}
	in := addressFields{
		City:             firstNonEmpty(n.City, n.Address.City, n.Address.Town, n.Address.Village, n.Address.Hamlet, n.Address.Municipality),
		State:            firstNonEmpty(n.State, n.Address.State),
		Country:          firstNonEmpty(n.Country, n.Address.Country),
		FormattedAddress: n.DisplayName,
	}
	if n.PlaceID == 0 && in == (addressFields{}) && n.Address == (NominatimAddress{}) {
		return addressFields{}, false
	}
	return in, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
