package rescache

import "context"

// Precision classifies how reliable a geocoded coordinate pair is.
type Precision string

const (
	PrecisionRooftop      Precision = "ROOFTOP"
	PrecisionNeighborhood Precision = "NEIGHBORHOOD"
	PrecisionCity         Precision = "CITY"
	PrecisionNoCertainty  Precision = "NO_CERTAINTY"
)

// AddressData is what an AddressProvider resolves a postal code to. UF
// (state) is the only field the spec marks required; the rest are
// best-effort.
type AddressData struct {
	Localidade string
	UF         string
	Logradouro string
	Bairro     string
	Lat        float64
	Lon        float64
	Precision  Precision
}

// Coordinates is what a GeocodingProvider resolves a query to.
type Coordinates struct {
	Lat       float64
	Lon       float64
	Precision Precision
}

// StructuredQuery is the structured-search input accepted by
// GeocodingProvider.SearchStructured.
type StructuredQuery struct {
	Street  string
	City    string
	State   string
	Country string
}

// AddressProvider resolves a Brazilian postal code (CEP) to an address.
// fetch_address(cep, cancel) -> AddressData | null, per spec §6.
type AddressProvider interface {
	Provider[*AddressData]
	FetchAddress(ctx context.Context, cep string) (*AddressData, error)
}

// GeocodingProvider resolves a free-text or structured query to
// coordinates, per spec §6.
type GeocodingProvider interface {
	Provider[*Coordinates]
	Search(ctx context.Context, query string) (*Coordinates, error)
	SearchStructured(ctx context.Context, q StructuredQuery) (*Coordinates, error)
}
