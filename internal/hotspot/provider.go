package hotspot

import "context"

// Query identifies the area to search for hotspots
type Query struct {
	FarmID   string
	Lat      float64
	Lng      float64
	BufferKm float64
}

// Provider queries an external hotspot detection source.
// Implementations make a single attempt and return an error on any failure.
type Provider interface {
	Query(ctx context.Context, q Query) (ProviderResponse, error)
}
