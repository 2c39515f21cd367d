package conditions

import (
	"context"
	"time"
)

// WeatherProvider abstracts an hourly weather statistics source (e.g. Open-Meteo).
type WeatherProvider interface {
	Name() string
	FetchDaily(ctx context.Context, lat, lon float64, day time.Time) (WeatherSummary, error)
}

// VegetationProvider abstracts a satellite imagery compute service able to
// return the mean vegetation index over a polygon.
type VegetationProvider interface {
	Name() string
	FetchNDVI(ctx context.Context, polygon Polygon, day time.Time) (VegetationSummary, error)
}

// HealthReporter is implemented by providers that expose their resilience state.
type HealthReporter interface {
	Health() ProviderStatus
}

// StatusStore is the contract the in-memory health store must satisfy.
type StatusStore interface {
	SaveStatus(status ProviderStatus)
	GetLatest(provider string) (ProviderStatus, error)
	GetRange(provider string, from, to time.Time) ([]ProviderStatus, error)
}
