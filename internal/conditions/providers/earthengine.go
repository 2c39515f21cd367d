package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/field-conditions/internal/common"
	"github.com/i474232898/field-conditions/internal/conditions"
)

var (
	// ErrNoScene is returned when no image intersects the polygon in the window.
	ErrNoScene = errors.New("no scene found")
	// ErrUndefinedIndex is returned when the region reduction yields no value,
	// e.g. every pixel inside the polygon is masked.
	ErrUndefinedIndex = errors.New("vegetation index undefined over polygon")
)

// Messages the platform reports when the sorted collection was empty and
// the first image therefore did not exist.
var emptyCollectionHints = []string{
	"Parameter 'input' is required",
	"Parameter 'image' is required",
	"collection is empty",
	"Empty date ranges",
}

// EarthEngineConfig controls the scene search and index reduction.
type EarthEngineConfig struct {
	Collection    string
	CloudProperty string
	NIRBand       string
	RedBand       string
	Scale         float64
	MaxPixels     float64
	Backoff       BackoffConfig
}

// DefaultEarthEngineConfig selects Sentinel-2 at 10 m.
func DefaultEarthEngineConfig() EarthEngineConfig {
	return EarthEngineConfig{
		Collection:    "COPERNICUS/S2",
		CloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
		NIRBand:       "B8",
		RedBand:       "B4",
		Scale:         10,
		MaxPixels:     1e9,
		Backoff:       DefaultBackoff,
	}
}

// EarthEngineProvider implements the conditions.VegetationProvider interface
// on top of the Earth Engine value:compute API.
type EarthEngineProvider struct {
	name    string
	session *Session
	cfg     EarthEngineConfig
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewEarthEngineProvider(client *http.Client, session *Session, cfg EarthEngineConfig) *EarthEngineProvider {
	return &EarthEngineProvider{
		name:    "earthengine",
		session: session,
		cfg:     cfg,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		circuit: newCircuitBreaker("earthengine"),
	}
}

func (p *EarthEngineProvider) Name() string {
	return p.name
}

// Health returns the current circuit breaker state.
func (p *EarthEngineProvider) Health() conditions.ProviderStatus {
	return breakerStatus(p.name, p.circuit)
}

// FetchNDVI computes the mean NDVI over polygon from the least cloudy
// scene captured within one day either side of day.
func (p *EarthEngineProvider) FetchNDVI(ctx context.Context, polygon conditions.Polygon, day time.Time) (conditions.VegetationSummary, error) {
	if err := p.session.Ensure(ctx); err != nil {
		return conditions.VegetationSummary{}, err
	}

	start, end := searchWindow(day)
	body, err := json.Marshal(computeRequest{Expression: p.ndviExpression(polygon, start, end)})
	if err != nil {
		return conditions.VegetationSummary{}, fmt.Errorf("encode expression: %w", err)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.session.endpoint("value:compute"), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if err := p.session.authorize(req); err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			p.session.Invalidate()
		}
		if errors.As(err, &se) && common.HasAny(se.Body, emptyCollectionHints...) {
			return conditions.VegetationSummary{}, fmt.Errorf("%w for polygon between %s and %s",
				ErrNoScene, start.Format(conditions.DateLayout), end.Format(conditions.DateLayout))
		}
		return conditions.VegetationSummary{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Result *float64 `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return conditions.VegetationSummary{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Result == nil {
		return conditions.VegetationSummary{}, ErrUndefinedIndex
	}

	return conditions.VegetationSummary{NDVIMean: *payload.Result}, nil
}

// searchWindow returns [day-1, day+1] at UTC midnight.
func searchWindow(day time.Time) (time.Time, time.Time) {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -1), d.AddDate(0, 0, 1)
}

type computeRequest struct {
	Expression expression `json:"expression"`
}

type expression struct {
	Result string          `json:"result"`
	Values map[string]node `json:"values"`
}

// node is one value of the serialized computation graph.
type node map[string]interface{}

func constant(v interface{}) node {
	return node{"constantValue": v}
}

func invoke(function string, args map[string]node) node {
	return node{"functionInvocationValue": map[string]interface{}{
		"functionName": function,
		"arguments":    args,
	}}
}

// ndviExpression builds:
//
//	collection.filterBounds(poly).filterDate(start, end).sort(cloud).first()
//	  .normalizedDifference([nir, red]).rename("NDVI").clip(poly)
//	  .reduceRegion(mean, poly, scale, maxPixels).get("NDVI")
func (p *EarthEngineProvider) ndviExpression(polygon conditions.Polygon, start, end time.Time) expression {
	ring := make([][2]float64, len(polygon))
	for i, pt := range polygon {
		ring[i] = [2]float64(pt)
	}
	geometry := invoke("GeometryConstructors.Polygon", map[string]node{
		"coordinates": constant([][][2]float64{ring}),
		"evenOdd":     constant(true),
	})

	images := invoke("ImageCollection.load", map[string]node{
		"id": constant(p.cfg.Collection),
	})
	images = invoke("Collection.filter", map[string]node{
		"collection": images,
		"filter": invoke("Filter.intersects", map[string]node{
			"leftField":  constant(".all"),
			"rightValue": geometry,
		}),
	})
	// The range end is exclusive on the platform.
	images = invoke("Collection.filter", map[string]node{
		"collection": images,
		"filter": invoke("Filter.dateRangeContains", map[string]node{
			"leftValue": invoke("DateRange", map[string]node{
				"start": invoke("Date", map[string]node{"value": constant(start.Format(conditions.DateLayout))}),
				"end":   invoke("Date", map[string]node{"value": constant(end.Format(conditions.DateLayout))}),
			}),
			"rightField": constant("system:time_start"),
		}),
	})
	images = invoke("Collection.limit", map[string]node{
		"collection": images,
		"key":        constant(p.cfg.CloudProperty),
		"ascending":  constant(true),
	})
	scene := invoke("Collection.first", map[string]node{"collection": images})

	index := invoke("Image.normalizedDifference", map[string]node{
		"input":     scene,
		"bandNames": constant([]string{p.cfg.NIRBand, p.cfg.RedBand}),
	})
	index = invoke("Image.rename", map[string]node{
		"input": index,
		"names": constant([]string{"NDVI"}),
	})
	index = invoke("Image.clip", map[string]node{
		"input":    index,
		"geometry": geometry,
	})

	stats := invoke("Image.reduceRegion", map[string]node{
		"image":     index,
		"reducer":   invoke("Reducer.mean", map[string]node{}),
		"geometry":  geometry,
		"scale":     constant(p.cfg.Scale),
		"maxPixels": constant(p.cfg.MaxPixels),
	})
	mean := invoke("Dictionary.get", map[string]node{
		"dictionary": stats,
		"key":        constant("NDVI"),
	})

	return expression{Result: "0", Values: map[string]node{"0": mean}}
}
