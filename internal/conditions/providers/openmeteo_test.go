package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/field-conditions/internal/conditions"
)

var testBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func hourlyJSON(name string, start, step float64, n int) string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = fmt.Sprintf("%g", start+step*float64(i))
	}
	return fmt.Sprintf("%q: [%s]", name, strings.Join(vals, ","))
}

func openMeteoBody(withET0 bool) string {
	fields := []string{
		`"time": ["2024-06-01T00:00"]`,
		hourlyJSON("temperature_2m", 10, 0.5, 24),
		hourlyJSON("relativehumidity_2m", 40, 1, 24),
		hourlyJSON("wind_speed_10m", 2, 0.1, 24),
	}
	if withET0 {
		fields = append(fields, hourlyJSON("et0_fao_evapotranspiration", 0.25, 0, 24))
	}
	return `{"latitude": 20.0, "longitude": 10.0, "hourly": {` + strings.Join(fields, ",") + `}}`
}

var june1 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestOpenMeteoFetchDaily(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, openMeteoBody(true))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, testBackoff)
	got, err := p.FetchDaily(context.Background(), 20.5, 10.25, june1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"latitude=20.5",
		"longitude=10.25",
		"start_date=2024-06-01",
		"end_date=2024-06-01",
		"timezone=GMT",
		"wind_speed_unit=ms",
		"hourly=temperature_2m%2Crelativehumidity_2m%2Cwind_speed_10m%2Cet0_fao_evapotranspiration",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}

	if math.Abs(got.MeanTemperatureC-15.75) > 1e-9 {
		t.Errorf("MeanTemperatureC = %v, want 15.75", got.MeanTemperatureC)
	}
	if math.Abs(got.MeanHumidityPct-51.5) > 1e-9 {
		t.Errorf("MeanHumidityPct = %v, want 51.5", got.MeanHumidityPct)
	}
	if math.Abs(got.MeanWindSpeedMS-3.15) > 1e-9 {
		t.Errorf("MeanWindSpeedMS = %v, want 3.15", got.MeanWindSpeedMS)
	}
	if math.Abs(got.SumET0Mm-6) > 1e-9 {
		t.Errorf("SumET0Mm = %v, want 6", got.SumET0Mm)
	}
}

func TestOpenMeteoMissingET0(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, openMeteoBody(false))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, testBackoff)
	got, err := p.FetchDaily(context.Background(), 20, 10, june1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SumET0Mm != 0 {
		t.Errorf("SumET0Mm = %v, want 0", got.SumET0Mm)
	}
}

func TestOpenMeteoClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": true, "reason": "Parameter 'start_date' is out of allowed range"}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, testBackoff)
	got, err := p.FetchDaily(context.Background(), 20, 10, june1)

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if !strings.Contains(err.Error(), "out of allowed range") {
		t.Errorf("error %q does not carry upstream reason", err)
	}
	if got != (conditions.WeatherSummary{}) {
		t.Errorf("expected empty summary, got %+v", got)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}
}

func TestOpenMeteoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, openMeteoBody(true))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, testBackoff)
	if _, err := p.FetchDaily(context.Background(), 20, 10, june1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("upstream called %d times, want 3", n)
	}
}

func TestOpenMeteoGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, testBackoff)
	_, err := p.FetchDaily(context.Background(), 20, 10, june1)

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 StatusError, got %v", err)
	}
	if n := calls.Load(); n != int32(testBackoff.MaxRetries+1) {
		t.Errorf("upstream called %d times, want %d", n, testBackoff.MaxRetries+1)
	}
}

func TestOpenMeteoMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `<html>`, "decode response"},
		{"no hourly block", `{"latitude": 1.0}`, "hourly"},
		{"missing temperature", `{"hourly": {` + hourlyJSON("relativehumidity_2m", 1, 0, 24) + `,` + hourlyJSON("wind_speed_10m", 1, 0, 24) + `}}`, "temperature_2m"},
		{"null hour", `{"hourly": {"temperature_2m": [1.0, null], ` + hourlyJSON("relativehumidity_2m", 1, 0, 24) + `,` + hourlyJSON("wind_speed_10m", 1, 0, 24) + `}}`, "missing value at hour 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			p := NewOpenMeteoProvider(srv.Client(), srv.URL, testBackoff)
			_, err := p.FetchDaily(context.Background(), 20, 10, june1)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestOpenMeteoHealth(t *testing.T) {
	p := NewOpenMeteoProvider(http.DefaultClient, "", testBackoff)
	st := p.Health()
	if st.Provider != "openmeteo" || st.State != "closed" {
		t.Errorf("unexpected health %+v", st)
	}
	if p.baseURL != DefaultOpenMeteoURL {
		t.Errorf("baseURL = %q, want default", p.baseURL)
	}
}
