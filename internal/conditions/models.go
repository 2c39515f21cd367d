package conditions

import (
	"time"
)

// DateLayout is the only accepted layout for a query date.
const DateLayout = "2006-01-02"

// Point is a single polygon vertex in GeoJSON order: longitude first.
type Point [2]float64

// Lon returns the longitude of the point.
func (p Point) Lon() float64 { return p[0] }

// Lat returns the latitude of the point.
func (p Point) Lat() float64 { return p[1] }

// Polygon is an ordered ring of at least MinPolygonPoints vertices.
// The ring does not need to repeat its first vertex; the imagery
// provider closes it.
type Polygon []Point

// Query is a validated conditions request.
type Query struct {
	Polygon Polygon
	Date    time.Time // UTC midnight of the requested day
}

// Anchor returns the point used for point-sampled weather.
func (q Query) Anchor() Point {
	return q.Polygon[0]
}

// WeatherSummary holds the daily scalars reduced from an hourly series.
type WeatherSummary struct {
	MeanTemperatureC float64 `json:"mean_temperature_2m_C"`
	MeanHumidityPct  float64 `json:"mean_humidity_2m_%"`
	MeanWindSpeedMS  float64 `json:"mean_wind_speed_10m_m_s"`
	SumET0Mm         float64 `json:"sum_et0_mm"`
}

// VegetationSummary holds the spatial mean of the vegetation index.
type VegetationSummary struct {
	NDVIMean float64 `json:"ndvi_mean"`
}

// Conditions is the merged result returned to callers. Field order
// is fixed so repeated requests render identical bodies.
type Conditions struct {
	MeanTemperatureC float64 `json:"mean_temperature_2m_C"`
	MeanHumidityPct  float64 `json:"mean_humidity_2m_%"`
	MeanWindSpeedMS  float64 `json:"mean_wind_speed_10m_m_s"`
	SumET0Mm         float64 `json:"sum_et0_mm"`
	NDVIMean         float64 `json:"ndvi_mean"`
}

// ProviderStatus is a sampled health reading of an upstream provider.
type ProviderStatus struct {
	Provider  string    `json:"provider"`
	State     string    `json:"state"`
	CheckedAt time.Time `json:"checkedAt"` // always UTC
}
