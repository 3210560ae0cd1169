package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/weather-cities/internal/weather/providers"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
)

var validate = validator.New()

type AppConfig struct {
	RapidAPIKey    string `envconfig:"RAPIDAPI_KEY" required:"true" validate:"required"`
	RapidAPIHost   string `envconfig:"RAPIDAPI_HOST" default:"open-weather13.p.rapidapi.com" validate:"required"`
	WeatherBaseURL string `envconfig:"WEATHER_BASE_URL" default:"https://open-weather13.p.rapidapi.com" validate:"required,url"`
	IconBaseURL    string `envconfig:"ICON_BASE_URL" default:"https://openweathermap.org" validate:"required,url"`
	SuggestBaseURL string `envconfig:"SUGGEST_BASE_URL" default:"http://gd.geobytes.com" validate:"required,url"`

	CitiesFile     string `envconfig:"CITIES_FILE" default:"./data/cities.json"`
	StoreBackend   string `envconfig:"STORE_BACKEND" default:"file" validate:"oneof=file memory"`
	DefaultCountry string `envconfig:"DEFAULT_COUNTRY" default:"CA" validate:"len=2,alpha"`

	// HTTPTimeout bounds each outbound request; 0 leaves it to the transport.
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"0" validate:"gte=0"`

	// RefreshInterval controls how often the saved list is refreshed; 0 disables it.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"15m" validate:"gte=0"`

	BreakerEnabled     bool          `envconfig:"BREAKER_ENABLED" default:"true"`
	BreakerInterval    time.Duration `envconfig:"BREAKER_INTERVAL" default:"1m" validate:"gte=0"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"2m" validate:"gte=0"`
	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"gte=1"`

	Port     string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment with sensible defaults.
// Variables from the given dotenv files (".env" when none are given) are
// applied first; missing files are ignored and never override the process
// environment.
func Load(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) Breaker() providers.BreakerConfig {
	return providers.BreakerConfig{
		Enabled:     c.BreakerEnabled,
		Interval:    c.BreakerInterval,
		Timeout:     c.BreakerTimeout,
		MaxFailures: c.BreakerMaxFailures,
	}
}

func (c *AppConfig) RapidAPI() providers.RapidAPIConfig {
	return providers.RapidAPIConfig{
		APIKey:      c.RapidAPIKey,
		Host:        c.RapidAPIHost,
		BaseURL:     c.WeatherBaseURL,
		IconBaseURL: c.IconBaseURL,
		Breaker:     c.Breaker(),
	}
}

// Address is the listen address for the HTTP server.
func (c *AppConfig) Address() string {
	return ":" + c.Port
}
