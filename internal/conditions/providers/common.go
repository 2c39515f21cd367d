package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/i474232898/field-conditions/internal/conditions"
	"github.com/i474232898/field-conditions/internal/metrics"
)

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 4 << 10

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used when a provider is built without explicit settings.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// StatusError is returned for a non-success upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Body)
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// breakerStatus samples a circuit breaker for the health monitor.
func breakerStatus(provider string, cb *gobreaker.CircuitBreaker) conditions.ProviderStatus {
	return conditions.ProviderStatus{
		Provider:  provider,
		State:     cb.State().String(),
		CheckedAt: time.Now().UTC(),
	}
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Rate limiting and server errors are retried; any other
// non-2xx status is returned immediately as a *StatusError.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}()

	var resp *http.Response
	operation := func() error {
		req, err := buildRequest(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		result, err := cb.Execute(func() (interface{}, error) {
			r, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if r.StatusCode < 200 || r.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
				r.Body.Close()
				return nil, &StatusError{Code: r.StatusCode, Body: string(body)}
			}
			return r, nil
		})
		if err != nil {
			metrics.ProviderCallsTotal.WithLabelValues(provider, outcomeLabel(err)).Inc()

			// If circuit is open, propagate immediately.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %v", errCircuitOpen, err))
			}
			var se *StatusError
			if errors.As(err, &se) && !retryableStatus(se.Code) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		metrics.ProviderCallsTotal.WithLabelValues(provider, "success").Inc()
		r, ok := result.(*http.Response)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected result type from circuit breaker"))
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, newBackOff(ctx, cfg.Backoff)); err != nil {
		return nil, err
	}
	return resp, nil
}

func newBackOff(ctx context.Context, cfg BackoffConfig) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	if cfg.MaxInterval > 0 {
		bo.MaxInterval = cfg.MaxInterval
	}
	// Attempts are bounded by MaxRetries and the context deadline instead.
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.MaxRetries)), ctx)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func outcomeLabel(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.As(err, &se) && se.Code == http.StatusTooManyRequests:
		return "rate_limited"
	case errors.As(err, &se) && se.Code >= 500:
		return "server_error"
	case errors.As(err, &se):
		return "client_error"
	default:
		return "transport_error"
	}
}
