package conditions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/field-conditions/internal/metrics"
)

// Stage names a state of the aggregation pipeline.
type Stage string

const (
	StageValidating         Stage = "validating"
	StageFetchingWeather    Stage = "fetching_weather"
	StageFetchingVegetation Stage = "fetching_vegetation"
	StageMerged             Stage = "merged"
	StageFailed             Stage = "failed"
)

// Outcome is the terminal result of one pipeline run. Errors is empty
// and Data is set only when State is StageMerged.
type Outcome struct {
	State    Stage
	FailedAt Stage
	Errors   []string
	Data     Conditions
}

// OK reports whether the run produced merged data.
func (o Outcome) OK() bool {
	return o.State == StageMerged
}

// Options tunes how the pipeline calls its providers.
type Options struct {
	// WeatherTimeout and VegetationTimeout bound each fetch. Zero means
	// the request context alone applies.
	WeatherTimeout    time.Duration
	VegetationTimeout time.Duration

	// Concurrent runs both fetches in parallel. Weather errors still take
	// precedence over vegetation errors.
	Concurrent bool
}

// Pipeline validates a request, fetches weather and vegetation data and
// merges them into one result.
type Pipeline struct {
	weather    WeatherProvider
	vegetation VegetationProvider
	opts       Options
}

// NewPipeline creates a new Pipeline.
func NewPipeline(weather WeatherProvider, vegetation VegetationProvider, opts Options) *Pipeline {
	return &Pipeline{
		weather:    weather,
		vegetation: vegetation,
		opts:       opts,
	}
}

// Run executes the pipeline for a raw request body. It never panics;
// anything unexpected is reported as a single unhandled error.
func (p *Pipeline) Run(ctx context.Context, body []byte) (out Outcome) {
	stage := StageValidating
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stage", string(stage)).Msg("pipeline panicked")
			out = failed(stage, fmt.Sprintf("unhandled: %v", r))
		}
		metrics.PipelineRunsTotal.WithLabelValues(string(terminal(out))).Inc()
	}()

	q, errs := ParseRequest(body)
	if len(errs) > 0 {
		log.Debug().Strs("errors", errs).Msg("request rejected")
		return failed(StageValidating, errs...)
	}

	if p.opts.Concurrent {
		stage = StageFetchingWeather
		return p.runConcurrent(ctx, q)
	}

	stage = StageFetchingWeather
	w, err := p.fetchWeather(ctx, q)
	if err != nil {
		return failed(StageFetchingWeather, "weather: "+err.Error())
	}

	stage = StageFetchingVegetation
	v, err := p.fetchVegetation(ctx, q)
	if err != nil {
		return failed(StageFetchingVegetation, "vegetation: "+err.Error())
	}

	return Outcome{State: StageMerged, Data: Merge(w, v)}
}

func (p *Pipeline) runConcurrent(ctx context.Context, q Query) Outcome {
	var (
		wg   sync.WaitGroup
		w    WeatherSummary
		v    VegetationSummary
		wErr error
		vErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer recoverInto(&wErr)
		w, wErr = p.fetchWeather(ctx, q)
	}()
	go func() {
		defer wg.Done()
		defer recoverInto(&vErr)
		v, vErr = p.fetchVegetation(ctx, q)
	}()
	wg.Wait()

	if wErr != nil {
		return failed(StageFetchingWeather, "weather: "+wErr.Error())
	}
	if vErr != nil {
		return failed(StageFetchingVegetation, "vegetation: "+vErr.Error())
	}
	return Outcome{State: StageMerged, Data: Merge(w, v)}
}

func (p *Pipeline) fetchWeather(ctx context.Context, q Query) (WeatherSummary, error) {
	ctx, cancel := withTimeout(ctx, p.opts.WeatherTimeout)
	defer cancel()

	anchor := q.Anchor()
	w, err := p.weather.FetchDaily(ctx, anchor.Lat(), anchor.Lon(), q.Date)
	if err != nil {
		log.Warn().Err(err).Str("provider", p.weather.Name()).
			Float64("lat", anchor.Lat()).Float64("lon", anchor.Lon()).
			Str("date", q.Date.Format(DateLayout)).Msg("weather fetch failed")
		return WeatherSummary{}, err
	}
	return w, nil
}

func (p *Pipeline) fetchVegetation(ctx context.Context, q Query) (VegetationSummary, error) {
	ctx, cancel := withTimeout(ctx, p.opts.VegetationTimeout)
	defer cancel()

	v, err := p.vegetation.FetchNDVI(ctx, q.Polygon, q.Date)
	if err != nil {
		log.Warn().Err(err).Str("provider", p.vegetation.Name()).
			Int("points", len(q.Polygon)).
			Str("date", q.Date.Format(DateLayout)).Msg("vegetation fetch failed")
		return VegetationSummary{}, err
	}
	return v, nil
}

// recoverInto converts a panic in a fetch goroutine into err.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("unhandled: %v", r)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func failed(at Stage, errs ...string) Outcome {
	return Outcome{State: StageFailed, FailedAt: at, Errors: errs}
}

func terminal(o Outcome) Stage {
	if o.State == StageFailed {
		return o.FailedAt
	}
	return o.State
}
