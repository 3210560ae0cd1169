package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-cities/internal/metrics"
	"github.com/i474232898/weather-cities/internal/weather"
)

// HTTPClient is the subset of *http.Client the providers need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BreakerConfig controls the optional circuit breaker in front of a provider.
// An open breaker fails calls fast; requests are never retried.
type BreakerConfig struct {
	Enabled     bool
	Interval    time.Duration
	Timeout     time.Duration
	MaxFailures uint32
}

var (
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

var validate = validator.New()

// statusError is a non-2xx reply from a provider.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", errUnexpected, e.code)
}

func (e *statusError) Is(target error) bool {
	return target == errUnexpected
}

// rejected reports a 4xx reply about the request itself, such as an unknown
// city. Rate limiting is not a rejection.
func (e *statusError) rejected() bool {
	return e.code >= 400 && e.code < 500 && e.code != http.StatusTooManyRequests
}

// countsAsSuccess keeps rejected requests and caller cancellations from
// tripping the breaker; only provider-side failures count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.rejected()
}

func newCircuitBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
	})
}

// buildURL appends an already-escaped path to base and checks that the
// result is an absolute URL.
func buildURL(base, escapedPath string) (string, error) {
	raw := base + escapedPath
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", weather.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute url", weather.ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// doRequest executes a single GET against rawURL and returns the full body.
// A 4xx reply other than 429 wraps weather.ErrDecode. Transport failures,
// 429 and 5xx replies and an open circuit wrap weather.ErrNetwork. There is
// no retry.
func doRequest(
	ctx context.Context,
	client HTTPClient,
	cb *gobreaker.CircuitBreaker,
	rawURL string,
	headers map[string]string,
) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrNetwork, errNoHTTPClient)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrInvalidURL, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	send := func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{code: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return body, nil
	}

	var result interface{}
	if cb != nil {
		result, err = cb.Execute(send)
	} else {
		result, err = send()
	}

	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.rejected() {
			return nil, fmt.Errorf("%w: %w", weather.ErrDecode, err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrNetwork, errCircuitOpen, err)
		}
		return nil, fmt.Errorf("%w: %w", weather.ErrNetwork, err)
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrNetwork)
	}
	return body, nil
}

// observe records the request outcome on m, which may be nil.
func observe(m *metrics.Collector, endpoint string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	m.ObserveRequest(endpoint, outcome, time.Since(start))
}
