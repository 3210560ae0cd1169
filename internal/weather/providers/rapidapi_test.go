package providers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-cities/internal/metrics"
	"github.com/i474232898/weather-cities/internal/weather"
	"github.com/i474232898/weather-cities/internal/weather/providers"
)

const (
	testKey  = "test-key"
	testHost = "open-weather13.p.rapidapi.com"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
	calls  int
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.calls++
	return m.doFunc(req)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker providers.BreakerConfig) *providers.RapidAPIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return providers.NewRapidAPIClient(srv.Client(), providers.RapidAPIConfig{
		APIKey:      testKey,
		Host:        testHost,
		BaseURL:     srv.URL,
		IconBaseURL: srv.URL + "/",
		Breaker:     breaker,
	}, nil)
}

func jsonHandler(t *testing.T, wantPath, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, wantPath, r.URL.EscapedPath())
		assert.Equal(t, testKey, r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, testHost, r.Header.Get("x-rapidapi-host"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, body)
	}
}

func TestFetchCurrentWeather_Paris(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, "/city/paris/FR",
		`{"name":"Paris","main":{"temp":300.0},"weather":[{"icon":"02d"}]}`), providers.BreakerConfig{})

	rec, err := c.FetchCurrentWeather(context.Background(), "paris", "FR")
	require.NoError(t, err)

	assert.Equal(t, weather.CityRecord{
		Name:               "Paris",
		TemperatureDisplay: "149°C",
		IconCode:           "02d",
	}, rec)
	assert.False(t, rec.HasCoordinates())
}

func TestFetchCurrentWeather_WithCoordinates(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, "/city/toronto/CA",
		`{"name":"Toronto","main":{"temp":41},"weather":[{"icon":"01d"}],"coord":{"lat":43.7,"lon":-79.4}}`),
		providers.BreakerConfig{})

	rec, err := c.FetchCurrentWeather(context.Background(), "toronto", "CA")
	require.NoError(t, err)

	assert.Equal(t, "Toronto", rec.Name)
	assert.Equal(t, "5°C", rec.TemperatureDisplay)
	require.True(t, rec.HasCoordinates())
	assert.Equal(t, 43.7, *rec.Latitude)
	assert.Equal(t, -79.4, *rec.Longitude)
}

func TestFetchCurrentWeather_PercentEncodesPath(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, "/city/new%20york/US",
		`{"name":"New York","main":{"temp":32},"weather":[]}`), providers.BreakerConfig{})

	rec, err := c.FetchCurrentWeather(context.Background(), "new york", "US")
	require.NoError(t, err)
	assert.Equal(t, "0°C", rec.TemperatureDisplay)
	assert.Equal(t, weather.DefaultIconCode, rec.IconCode, "empty weather list falls back to the default icon")
}

func TestFetchCurrentWeather_KeepsProviderIcon(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, "/city/oslo/NO",
		`{"name":"Oslo","main":{"temp":32},"weather":[{"icon":""},{"icon":"13d"}]}`), providers.BreakerConfig{})

	rec, err := c.FetchCurrentWeather(context.Background(), "oslo", "NO")
	require.NoError(t, err)
	assert.Equal(t, "", rec.IconCode, "only a missing condition list falls back to the default icon")
}

func TestFetchCurrentWeather_DecodeErrors(t *testing.T) {
	cases := map[string]string{
		"Malformed JSON": `{"name":`,
		"Missing name":   `{"main":{"temp":280},"weather":[{"icon":"01d"}]}`,
		"Missing temp":   `{"name":"Oslo","main":{},"weather":[{"icon":"01d"}]}`,
		"Wrong type":     `{"name":"Oslo","main":{"temp":"warm"}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, jsonHandler(t, "/city/oslo/NO", body), providers.BreakerConfig{})

			rec, err := c.FetchCurrentWeather(context.Background(), "oslo", "NO")
			assert.ErrorIs(t, err, weather.ErrDecode)
			assert.Equal(t, weather.CityRecord{}, rec)
		})
	}
}

func TestFetchCurrentWeather_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"message":"quota exceeded"}`)
	}, providers.BreakerConfig{})

	_, err := c.FetchCurrentWeather(context.Background(), "lviv", "UA")
	assert.ErrorIs(t, err, weather.ErrNetwork)
	assert.NotErrorIs(t, err, weather.ErrDecode)
}

func TestFetchCurrentWeather_TransportFailure(t *testing.T) {
	m := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	c := providers.NewRapidAPIClient(m, providers.RapidAPIConfig{
		APIKey:  testKey,
		Host:    testHost,
		BaseURL: "https://open-weather13.p.rapidapi.com",
	}, nil)

	_, err := c.FetchCurrentWeather(context.Background(), "lviv", "UA")
	assert.ErrorIs(t, err, weather.ErrNetwork)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, m.calls, "requests are never retried")
}

func TestFetchCurrentWeather_InvalidURL(t *testing.T) {
	for _, base := range []string{"://missing-scheme", "relative/path"} {
		t.Run(base, func(t *testing.T) {
			m := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
				t.Fatal("no request expected for an invalid url")
				return nil, nil
			}}
			c := providers.NewRapidAPIClient(m, providers.RapidAPIConfig{BaseURL: base}, nil)

			_, err := c.FetchCurrentWeather(context.Background(), "lviv", "UA")
			assert.ErrorIs(t, err, weather.ErrInvalidURL)
			assert.Zero(t, m.calls)
		})
	}
}

func TestFetchForecast_KeepsMiddaySamples(t *testing.T) {
	body := `{"list":[
		{"dt_txt":"2025-03-20 00:00:00","main":{"temp":270.1},"weather":[{"icon":"01n"}]},
		{"dt_txt":"2025-03-20 12:00:00","main":{"temp":275.4},"weather":[{"icon":"02d"}]},
		{"dt_txt":"2025-03-20 15:00:00","main":{"temp":276.0},"weather":[{"icon":"03d"}]},
		{"dt_txt":"2025-03-21 12:00:00","main":{"temp":278.9},"weather":[]}
	]}`
	c := newTestClient(t, jsonHandler(t, "/city/fivedaysforcast/43.7/-79.4", body), providers.BreakerConfig{})

	entries, err := c.FetchForecast(context.Background(), 43.7, -79.4)
	require.NoError(t, err)

	assert.Equal(t, []weather.ForecastEntry{
		{Timestamp: "2025-03-20 12:00:00", TemperatureKelvin: 275.4, IconCode: "02d"},
		{Timestamp: "2025-03-21 12:00:00", TemperatureKelvin: 278.9, IconCode: weather.DefaultIconCode},
	}, entries)
}

func TestFetchForecast_DecodeErrors(t *testing.T) {
	cases := map[string]string{
		"Missing list":      `{"cod":"200"}`,
		"Entry without ts":  `{"list":[{"main":{"temp":280},"weather":[]}]}`,
		"Entry without tmp": `{"list":[{"dt_txt":"2025-03-20 12:00:00","main":{},"weather":[]}]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, jsonHandler(t, "/city/fivedaysforcast/1/2", body), providers.BreakerConfig{})

			entries, err := c.FetchForecast(context.Background(), 1, 2)
			assert.ErrorIs(t, err, weather.ErrDecode)
			assert.Nil(t, entries)
		})
	}
}

func TestFetchForecast_EmptyList(t *testing.T) {
	c := newTestClient(t, jsonHandler(t, "/city/fivedaysforcast/0.5/10", `{"list":[]}`), providers.BreakerConfig{})

	entries, err := c.FetchForecast(context.Background(), 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchIcon(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/img/wn/10d@2x.png", r.URL.Path)
			assert.Empty(t, r.Header.Get("x-rapidapi-key"), "icon host does not get provider credentials")
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(png)
		}, providers.BreakerConfig{})

		img, err := c.FetchIcon(context.Background(), "10d")
		require.NoError(t, err)
		assert.Equal(t, png, img)
	})

	t.Run("Not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, providers.BreakerConfig{})

		img, err := c.FetchIcon(context.Background(), "zz")
		assert.ErrorIs(t, err, weather.ErrDecode)
		assert.NotErrorIs(t, err, weather.ErrNetwork)
		assert.Nil(t, img)
	})

	t.Run("Empty body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, providers.BreakerConfig{})

		_, err := c.FetchIcon(context.Background(), "01d")
		assert.ErrorIs(t, err, weather.ErrDecode)
	})

	t.Run("Every call refetches", func(t *testing.T) {
		var hits atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write(png)
		}, providers.BreakerConfig{})

		for i := 0; i < 3; i++ {
			_, err := c.FetchIcon(context.Background(), "01d")
			require.NoError(t, err)
		}
		assert.Equal(t, int32(3), hits.Load())
	})
}

func TestRapidAPIClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, providers.BreakerConfig{
		Enabled:     true,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MaxFailures: 2,
	})

	for i := 0; i < 2; i++ {
		_, err := c.FetchCurrentWeather(context.Background(), "kyiv", "UA")
		assert.ErrorIs(t, err, weather.ErrNetwork)
	}

	_, err := c.FetchCurrentWeather(context.Background(), "kyiv", "UA")
	assert.ErrorIs(t, err, weather.ErrNetwork)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), hits.Load(), "open circuit must not reach the provider")
}

func TestFetchCurrentWeather_UnknownCityIsDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"cod":"404","message":"city not found"}`)
	}, providers.BreakerConfig{})

	_, err := c.FetchCurrentWeather(context.Background(), "atlantis", "CA")
	assert.ErrorIs(t, err, weather.ErrDecode)
	assert.NotErrorIs(t, err, weather.ErrNetwork)
}

func TestRapidAPIClient_BreakerIgnoresRejectedRequests(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/city/atlantis/CA" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"cod":"404","message":"city not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"name":"Toronto","main":{"temp":41},"weather":[{"icon":"01d"}]}`)
	}, providers.BreakerConfig{
		Enabled:     true,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MaxFailures: 2,
	})

	for i := 0; i < 5; i++ {
		_, err := c.FetchCurrentWeather(context.Background(), "atlantis", "CA")
		require.ErrorIs(t, err, weather.ErrDecode)
	}

	rec, err := c.FetchCurrentWeather(context.Background(), "toronto", "CA")
	require.NoError(t, err)
	assert.Equal(t, "Toronto", rec.Name)
	assert.Equal(t, int32(6), hits.Load())
}

func TestRapidAPIClient_BreakerIgnoresCancellation(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"name":"Toronto","main":{"temp":41},"weather":[{"icon":"01d"}]}`)
	}, providers.BreakerConfig{
		Enabled:     true,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		MaxFailures: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := c.FetchCurrentWeather(ctx, "toronto", "CA")
		require.ErrorIs(t, err, weather.ErrNetwork)
		assert.NotContains(t, err.Error(), "circuit breaker open")
	}

	_, err := c.FetchCurrentWeather(context.Background(), "toronto", "CA")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRapidAPIClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, "/city/rome/IT",
		`{"name":"Rome","main":{"temp":68},"weather":[{"icon":"01d"}]}`))
	t.Cleanup(srv.Close)

	m := metrics.NewCollector()
	c := providers.NewRapidAPIClient(srv.Client(), providers.RapidAPIConfig{
		APIKey: testKey, Host: testHost, BaseURL: srv.URL,
	}, m)

	rec, err := c.FetchCurrentWeather(context.Background(), "rome", "IT")
	require.NoError(t, err)
	assert.Equal(t, "20°C", rec.TemperatureDisplay)

	out := httptest.NewRecorder()
	m.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, out.Body.String(), `weather_cities_provider_requests_total{endpoint="current",outcome="success"} 1`)
}
