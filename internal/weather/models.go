package weather

import (
	"fmt"
	"math"
	"strings"
)

// DefaultIconCode is used when the provider returns no weather conditions.
const DefaultIconCode = "01d"

// CityRecord is one saved city with its last known weather and coordinates.
// Name is the identity of the record and is compared case-sensitively.
type CityRecord struct {
	Name               string   `json:"name"`
	TemperatureDisplay string   `json:"temperatureDisplay"`
	IconCode           string   `json:"iconCode"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (c CityRecord) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// ForecastEntry is one 3-hour forecast sample for a location.
// Timestamp keeps the provider format "YYYY-MM-DD HH:MM:SS".
type ForecastEntry struct {
	Timestamp         string  `json:"timestamp"`
	TemperatureKelvin float64 `json:"temperatureKelvin"`
	IconCode          string  `json:"iconCode"`
}

// Date returns the calendar date part of the timestamp.
func (f ForecastEntry) Date() string {
	date, _, _ := strings.Cut(f.Timestamp, " ")
	return date
}

// CityQuery is a parsed "city[, CC]" search input.
type CityQuery struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// ParseCityQuery splits user input of the form "city[, CC]". The city is
// lowercased and the country uppercased; a missing country falls back to
// defaultCountry.
func ParseCityQuery(input, defaultCountry string) (CityQuery, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return CityQuery{}, fmt.Errorf("%w: empty input", ErrInvalidQuery)
	}

	parts := strings.Split(input, ",")
	q := CityQuery{
		City:    strings.ToLower(strings.TrimSpace(parts[0])),
		Country: strings.ToUpper(strings.TrimSpace(defaultCountry)),
	}
	if len(parts) >= 2 {
		if c := strings.TrimSpace(parts[1]); c != "" {
			q.Country = strings.ToUpper(c)
		}
	}

	if q.City == "" {
		return CityQuery{}, fmt.Errorf("%w: missing city name in %q", ErrInvalidQuery, input)
	}
	if q.Country == "" {
		return CityQuery{}, fmt.Errorf("%w: missing country code in %q", ErrInvalidQuery, input)
	}
	return q, nil
}

// FormatCelsius converts a Fahrenheit reading into the display string
// "{round((F-32)*5/9)}°C". Non-finite readings yield "N/A".
func FormatCelsius(fahrenheit float64) string {
	if math.IsNaN(fahrenheit) || math.IsInf(fahrenheit, 0) {
		return "N/A"
	}
	celsius := math.Round((fahrenheit - 32) * 5 / 9)
	if celsius == 0 {
		// avoid "-0°C"
		celsius = 0
	}
	return fmt.Sprintf("%.0f°C", celsius)
}
