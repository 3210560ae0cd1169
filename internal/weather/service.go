package weather

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-cities/internal/metrics"
)

// Service owns the saved city list and runs the workflows that combine the
// weather client with the city store. It is the single logical writer of the
// store: every load-modify-save sequence runs under mu.
type Service struct {
	mu sync.Mutex

	store          CityStore
	client         Client
	suggester      Suggester
	defaultCountry string
	logger         *zap.Logger
	metrics        *metrics.Collector
}

// RefreshReport summarizes one pass over the saved list.
type RefreshReport struct {
	RunID   string       `json:"runId"`
	Updated int          `json:"updated"`
	Stale   []string     `json:"stale"`
	Cities  []CityRecord `json:"cities"`
}

// NewService creates a new Service. suggester, logger and m may be nil.
func NewService(
	store CityStore,
	client Client,
	suggester Suggester,
	defaultCountry string,
	logger *zap.Logger,
	m *metrics.Collector,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		client:         client,
		suggester:      suggester,
		defaultCountry: defaultCountry,
		logger:         logger,
		metrics:        m,
	}
}

// DefaultCountry is the country code used for refreshes and for queries
// that do not name a country.
func (s *Service) DefaultCountry() string {
	return s.defaultCountry
}

// Cities returns the saved list as stored.
func (s *Service) Cities() ([]CityRecord, error) {
	return s.store.Load()
}

// AddCity resolves a "city[, CC]" query and saves the result. A saved city
// with the same name is replaced in place. Nothing is saved when the lookup
// fails.
func (s *Service) AddCity(ctx context.Context, input string) (CityRecord, error) {
	q, err := ParseCityQuery(input, s.defaultCountry)
	if err != nil {
		return CityRecord{}, err
	}

	rec, err := s.client.FetchCurrentWeather(ctx, q.City, q.Country)
	if err != nil {
		return CityRecord{}, fmt.Errorf("lookup %s/%s: %w", q.City, q.Country, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cities, err := s.store.Load()
	if err != nil {
		return CityRecord{}, err
	}

	if i := indexOf(cities, rec.Name); i >= 0 {
		cities[i] = rec
	} else {
		cities = append(cities, rec)
	}

	if err := s.store.Save(cities); err != nil {
		return CityRecord{}, err
	}

	s.logger.Info("city saved",
		zap.String("city", rec.Name),
		zap.String("country", q.Country),
		zap.Int("total", len(cities)),
	)
	return rec, nil
}

// RemoveCity deletes the city with exactly this name.
func (s *Service) RemoveCity(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cities, err := s.store.Load()
	if err != nil {
		return err
	}

	i := indexOf(cities, name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrCityNotFound, name)
	}
	cities = append(cities[:i], cities[i+1:]...)

	if err := s.store.Save(cities); err != nil {
		return err
	}

	s.logger.Info("city removed", zap.String("city", name), zap.Int("total", len(cities)))
	return nil
}

// Refresh re-fetches current weather for every saved city, one at a time in
// list order, then saves the full resulting list. A city whose lookup fails
// keeps its previous record. Once ctx is done the remaining cities are kept
// as they are and the list is still saved.
func (s *Service) Refresh(ctx context.Context) (RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := RefreshReport{
		RunID: uuid.NewString(),
		Stale: []string{},
	}
	log := s.logger.With(zap.String("run_id", report.RunID))

	saved, err := s.store.Load()
	if err != nil {
		return RefreshReport{}, err
	}

	report.Cities = make([]CityRecord, 0, len(saved))
	for _, city := range saved {
		if ctx.Err() != nil {
			report.Cities = append(report.Cities, city)
			report.Stale = append(report.Stale, city.Name)
			continue
		}

		updated, err := s.client.FetchCurrentWeather(ctx, city.Name, s.defaultCountry)
		if err != nil {
			log.Warn("failed to update weather, keeping stale record",
				zap.String("city", city.Name),
				zap.Error(err),
			)
			report.Cities = append(report.Cities, city)
			report.Stale = append(report.Stale, city.Name)
			continue
		}

		if !updated.HasCoordinates() && city.HasCoordinates() {
			updated.Latitude, updated.Longitude = city.Latitude, city.Longitude
		}
		report.Cities = append(report.Cities, updated)
		report.Updated++
	}

	if err := s.store.Save(report.Cities); err != nil {
		return RefreshReport{}, err
	}
	s.metrics.ObserveRefresh(report.Updated, len(report.Stale))

	log.Info("refresh completed",
		zap.Int("cities", len(report.Cities)),
		zap.Int("updated", report.Updated),
		zap.Int("stale", len(report.Stale)),
	)
	return report, nil
}

// Forecast returns the midday forecast for a saved city. Missing coordinates
// are resolved through a current-weather lookup and written back to the
// saved record first.
func (s *Service) Forecast(ctx context.Context, name string) ([]ForecastEntry, error) {
	cities, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	i := indexOf(cities, name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrCityNotFound, name)
	}

	city := cities[i]
	if !city.HasCoordinates() {
		city, err = s.backfillCoordinates(ctx, city)
		if err != nil {
			return nil, err
		}
	}

	return s.client.FetchForecast(ctx, *city.Latitude, *city.Longitude)
}

func (s *Service) backfillCoordinates(ctx context.Context, city CityRecord) (CityRecord, error) {
	resolved, err := s.client.FetchCurrentWeather(ctx, city.Name, s.defaultCountry)
	if err != nil {
		return CityRecord{}, fmt.Errorf("resolve coordinates for %q: %w", city.Name, err)
	}
	if !resolved.HasCoordinates() {
		return CityRecord{}, fmt.Errorf("%w: no coordinates returned for %q", ErrDecode, city.Name)
	}

	city.Latitude, city.Longitude = resolved.Latitude, resolved.Longitude

	s.mu.Lock()
	defer s.mu.Unlock()

	cities, err := s.store.Load()
	if err != nil {
		s.logger.Warn("could not persist resolved coordinates", zap.String("city", city.Name), zap.Error(err))
		return city, nil
	}
	if i := indexOf(cities, city.Name); i >= 0 {
		cities[i].Latitude, cities[i].Longitude = city.Latitude, city.Longitude
		if err := s.store.Save(cities); err != nil {
			s.logger.Warn("could not persist resolved coordinates", zap.String("city", city.Name), zap.Error(err))
		}
	}
	return city, nil
}

// Icon fetches the image for an icon code. It never substitutes a
// placeholder; that is left to the presentation layer.
func (s *Service) Icon(ctx context.Context, iconCode string) ([]byte, error) {
	return s.client.FetchIcon(ctx, iconCode)
}

// Suggest returns city-name completions, or none when no suggester is configured.
func (s *Service) Suggest(ctx context.Context, query string) ([]string, error) {
	if s.suggester == nil {
		return []string{}, nil
	}
	return s.suggester.Suggest(ctx, query)
}

func indexOf(cities []CityRecord, name string) int {
	for i, c := range cities {
		if c.Name == name {
			return i
		}
	}
	return -1
}
