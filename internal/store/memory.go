package store

import (
	"fmt"
	"sync"

	"github.com/i474232898/weather-cities/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of a city store.
// It keeps nothing across restarts and can be told to fail, which makes it
// useful for ephemeral runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	cities []weather.CityRecord
	saves  int

	saveErr error
	loadErr error
}

var _ weather.CityStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore pre-populated with initial.
func NewMemoryStore(initial ...weather.CityRecord) *MemoryStore {
	return &MemoryStore{cities: cloneCities(initial)}
}

// Save replaces the stored list with a copy of cities.
func (s *MemoryStore) Save(cities []weather.CityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return fmt.Errorf("%w: %v", weather.ErrPersistence, s.saveErr)
	}
	s.cities = cloneCities(cities)
	s.saves++
	return nil
}

// Load returns a copy of the stored list.
func (s *MemoryStore) Load() ([]weather.CityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.loadErr != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrPersistence, s.loadErr)
	}
	return cloneCities(s.cities), nil
}

// FailSave makes subsequent Saves fail with err; nil restores normal behaviour.
func (s *MemoryStore) FailSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailLoad makes subsequent Loads fail with err; nil restores normal behaviour.
func (s *MemoryStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// Saves reports how many Saves have succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func cloneCities(in []weather.CityRecord) []weather.CityRecord {
	out := make([]weather.CityRecord, len(in))
	for i, c := range in {
		out[i] = c
		if c.Latitude != nil {
			lat := *c.Latitude
			out[i].Latitude = &lat
		}
		if c.Longitude != nil {
			lon := *c.Longitude
			out[i].Longitude = &lon
		}
	}
	return out
}
