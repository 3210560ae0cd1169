package weather

import (
	"context"
)

// Client abstracts the remote weather provider.
type Client interface {
	FetchCurrentWeather(ctx context.Context, cityName, countryCode string) (CityRecord, error)
	FetchForecast(ctx context.Context, lat, lon float64) ([]ForecastEntry, error)
	FetchIcon(ctx context.Context, iconCode string) ([]byte, error)
}

// Suggester returns city-name completions for a partial query.
type Suggester interface {
	Suggest(ctx context.Context, query string) ([]string, error)
}

// CityStore persists the saved city list as a whole. Save always overwrites
// the previous list. Load returns an empty list when nothing has been saved
// yet, and an ErrPersistence-wrapped error when stored data is unreadable.
//
// Implementations are not required to be safe for concurrent writers; the
// Service serializes access.
type CityStore interface {
	Save(cities []CityRecord) error
	Load() ([]CityRecord, error)
}
