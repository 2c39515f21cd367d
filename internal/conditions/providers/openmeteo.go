package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/field-conditions/internal/conditions"
)

// DefaultOpenMeteoURL is the public Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

var openMeteoHourly = []string{
	"temperature_2m",
	"relativehumidity_2m",
	"wind_speed_10m",
	"et0_fao_evapotranspiration",
}

// OpenMeteoProvider implements the conditions.WeatherProvider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider. An empty baseURL selects the public API.
func NewOpenMeteoProvider(client *http.Client, baseURL string, bo BackoffConfig) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: bo,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Health returns the current circuit breaker state.
func (p *OpenMeteoProvider) Health() conditions.ProviderStatus {
	return breakerStatus(p.name, p.circuit)
}

// FetchDaily requests the hourly series for the UTC day containing day at
// the given point and reduces them to daily scalars.
func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, lat, lon float64, day time.Time) (conditions.WeatherSummary, error) {
	date := day.UTC().Format(conditions.DateLayout)

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("hourly", strings.Join(openMeteoHourly, ","))
		values.Set("wind_speed_unit", "ms")
		// One UTC day: [date T00:00:00Z, date T23:59:59Z].
		values.Set("start_date", date)
		values.Set("end_date", date)
		values.Set("timezone", "GMT")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return conditions.WeatherSummary{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return conditions.WeatherSummary{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Hourly == nil {
		return conditions.WeatherSummary{}, fmt.Errorf("%w: hourly", conditions.ErrMissingSeries)
	}

	series := conditions.HourlySeries{}
	targets := []*[]float64{&series.Temperature, &series.Humidity, &series.WindSpeed, &series.ET0}
	for i, name := range openMeteoHourly {
		raw, ok := payload.Hourly[name]
		if !ok {
			continue
		}
		var points []*float64
		if err := json.Unmarshal(raw, &points); err != nil {
			return conditions.WeatherSummary{}, fmt.Errorf("decode %s: %w", name, err)
		}
		values, err := denseDay(name, points)
		if err != nil {
			return conditions.WeatherSummary{}, err
		}
		*targets[i] = values
	}

	return conditions.ReduceHourly(series)
}

// denseDay keeps the first day of values and rejects gaps within it.
func denseDay(name string, raw []*float64) ([]float64, error) {
	if len(raw) > conditions.HoursPerDay {
		raw = raw[:conditions.HoursPerDay]
	}
	values := make([]float64, len(raw))
	for i, v := range raw {
		if v == nil {
			return nil, fmt.Errorf("%s: missing value at hour %d", name, i)
		}
		values[i] = *v
	}
	return values, nil
}
