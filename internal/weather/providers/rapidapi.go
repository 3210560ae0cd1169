package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-cities/internal/metrics"
	"github.com/i474232898/weather-cities/internal/weather"
)

const (
	headerAPIKey  = "x-rapidapi-key"
	headerAPIHost = "x-rapidapi-host"

	endpointCurrent  = "current"
	endpointForecast = "forecast"
	endpointIcon     = "icon"
)

// RapidAPIConfig describes the open-weather13 RapidAPI provider and the icon host.
type RapidAPIConfig struct {
	APIKey      string
	Host        string
	BaseURL     string
	IconBaseURL string
	Breaker     BreakerConfig
}

// RapidAPIClient implements weather.Client against the open-weather13 API on
// RapidAPI. Icons are served by a separate host and get their own breaker.
type RapidAPIClient struct {
	name        string
	cfg         RapidAPIConfig
	client      HTTPClient
	circuit     *gobreaker.CircuitBreaker
	iconCircuit *gobreaker.CircuitBreaker
	metrics     *metrics.Collector
}

var _ weather.Client = (*RapidAPIClient)(nil)

func NewRapidAPIClient(client HTTPClient, cfg RapidAPIConfig, m *metrics.Collector) *RapidAPIClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.IconBaseURL = strings.TrimRight(cfg.IconBaseURL, "/")

	return &RapidAPIClient{
		name:        "open-weather13",
		cfg:         cfg,
		client:      client,
		circuit:     newCircuitBreaker("open-weather13", cfg.Breaker),
		iconCircuit: newCircuitBreaker("openweathermap-icons", cfg.Breaker),
		metrics:     m,
	}
}

func (p *RapidAPIClient) Name() string {
	return p.name
}

func (p *RapidAPIClient) headers() map[string]string {
	return map[string]string{
		headerAPIKey:  p.cfg.APIKey,
		headerAPIHost: p.cfg.Host,
	}
}

type condition struct {
	Icon string `json:"icon"`
}

// iconOf returns the first condition's icon as sent, or the default icon
// when the provider lists no conditions.
func iconOf(conditions []condition) string {
	if len(conditions) == 0 {
		return weather.DefaultIconCode
	}
	return conditions[0].Icon
}

type currentPayload struct {
	Name string `json:"name" validate:"required"`
	Main struct {
		Temp *float64 `json:"temp" validate:"required"`
	} `json:"main"`
	Weather []condition `json:"weather"`
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
}

// FetchCurrentWeather resolves a city name and country code to a CityRecord.
func (p *RapidAPIClient) FetchCurrentWeather(ctx context.Context, cityName, countryCode string) (rec weather.CityRecord, err error) {
	start := time.Now()
	defer func() { observe(p.metrics, endpointCurrent, start, err) }()

	path := "/city/" + url.PathEscape(cityName) + "/" + url.PathEscape(countryCode)
	u, err := buildURL(p.cfg.BaseURL, path)
	if err != nil {
		return weather.CityRecord{}, err
	}

	body, err := doRequest(ctx, p.client, p.circuit, u, p.headers())
	if err != nil {
		return weather.CityRecord{}, err
	}

	var payload currentPayload
	if err := decode(body, &payload); err != nil {
		return weather.CityRecord{}, err
	}

	rec = weather.CityRecord{
		Name:               payload.Name,
		TemperatureDisplay: weather.FormatCelsius(*payload.Main.Temp),
		IconCode:           iconOf(payload.Weather),
	}
	if payload.Coord != nil {
		lat, lon := payload.Coord.Lat, payload.Coord.Lon
		rec.Latitude = &lat
		rec.Longitude = &lon
	}
	return rec, nil
}

type forecastPayload struct {
	List []struct {
		DtTxt string `json:"dt_txt" validate:"required"`
		Main  struct {
			Temp *float64 `json:"temp" validate:"required"`
		} `json:"main"`
		Weather []condition `json:"weather"`
	} `json:"list" validate:"required,dive"`
}

// FetchForecast returns the midday samples of the 5-day/3-hour forecast for
// the given coordinates.
func (p *RapidAPIClient) FetchForecast(ctx context.Context, lat, lon float64) (entries []weather.ForecastEntry, err error) {
	start := time.Now()
	defer func() { observe(p.metrics, endpointForecast, start, err) }()

	path := "/city/fivedaysforcast/" + formatCoordinate(lat) + "/" + formatCoordinate(lon)
	u, err := buildURL(p.cfg.BaseURL, path)
	if err != nil {
		return nil, err
	}

	body, err := doRequest(ctx, p.client, p.circuit, u, p.headers())
	if err != nil {
		return nil, err
	}

	var payload forecastPayload
	if err := decode(body, &payload); err != nil {
		return nil, err
	}

	all := make([]weather.ForecastEntry, 0, len(payload.List))
	for _, item := range payload.List {
		all = append(all, weather.ForecastEntry{
			Timestamp:         item.DtTxt,
			TemperatureKelvin: *item.Main.Temp,
			IconCode:          iconOf(item.Weather),
		})
	}

	return weather.FilterMidday(all), nil
}

// FetchIcon downloads the PNG for an icon code. Failures are reported to the
// caller, which is expected to fall back to a placeholder.
func (p *RapidAPIClient) FetchIcon(ctx context.Context, iconCode string) (img []byte, err error) {
	start := time.Now()
	defer func() { observe(p.metrics, endpointIcon, start, err) }()

	u, err := buildURL(p.cfg.IconBaseURL, "/img/wn/"+url.PathEscape(iconCode)+"@2x.png")
	if err != nil {
		return nil, err
	}

	img, err = doRequest(ctx, p.client, p.iconCircuit, u, nil)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("%w: empty icon body for %q", weather.ErrDecode, iconCode)
	}
	return img, nil
}

func decode(body []byte, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrDecode, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrDecode, err)
	}
	return nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
