package conditions

import (
	"errors"
	"fmt"
)

// HoursPerDay is the number of hourly samples reduced into one day.
const HoursPerDay = 24

var (
	// ErrMissingSeries is returned when a required hourly series is absent.
	ErrMissingSeries = errors.New("hourly series missing")
	// ErrEmptySeries is returned when a required hourly series has no values.
	ErrEmptySeries = errors.New("hourly series empty")
)

// HourlySeries is the per-hour data for one day at one point. A nil
// series means the provider did not return it.
type HourlySeries struct {
	Temperature []float64
	Humidity    []float64
	WindSpeed   []float64
	ET0         []float64
}

// ReduceHourly converts hourly series into daily scalars. Only the first
// HoursPerDay values of each series are used. Temperature, humidity and
// wind speed are averaged; evapotranspiration is summed. A missing ET0
// series counts as zeros.
func ReduceHourly(s HourlySeries) (WeatherSummary, error) {
	temp, err := mean("temperature_2m", s.Temperature)
	if err != nil {
		return WeatherSummary{}, err
	}
	humidity, err := mean("relativehumidity_2m", s.Humidity)
	if err != nil {
		return WeatherSummary{}, err
	}
	wind, err := mean("wind_speed_10m", s.WindSpeed)
	if err != nil {
		return WeatherSummary{}, err
	}

	et0 := s.ET0
	if et0 == nil {
		et0 = make([]float64, HoursPerDay)
	}

	return WeatherSummary{
		MeanTemperatureC: temp,
		MeanHumidityPct:  humidity,
		MeanWindSpeedMS:  wind,
		SumET0Mm:         sum(firstDay(et0)),
	}, nil
}

func mean(name string, values []float64) (float64, error) {
	if values == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingSeries, name)
	}
	values = firstDay(values)
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptySeries, name)
	}
	return sum(values) / float64(len(values)), nil
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func firstDay(values []float64) []float64 {
	if len(values) > HoursPerDay {
		return values[:HoursPerDay]
	}
	return values
}
