package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/i474232898/weather-cities/internal/weather"
)

const (
	fileMode = 0o644
	dirMode  = 0o755
)

// FileStore keeps the saved city list as one JSON document at a fixed path.
// Save replaces the whole document through a temp file and rename, so a
// failed write leaves the previous list intact.
//
// FileStore does no locking; callers must not run two Saves at once.
type FileStore struct {
	path string
}

var _ weather.CityStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Save serializes cities and overwrites the backing file.
func (s *FileStore) Save(cities []weather.CityRecord) error {
	if cities == nil {
		cities = []weather.CityRecord{}
	}

	data, err := json.MarshalIndent(cities, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode cities: %v", weather.ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("%w: create %s: %v", weather.ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", weather.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", weather.ErrPersistence, s.path, cause)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %v", weather.ErrPersistence, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %v", weather.ErrPersistence, s.path, err)
	}
	return nil
}

// Load returns the stored list. A missing file yields an empty list; a file
// that cannot be read or parsed yields an ErrPersistence error.
func (s *FileStore) Load() ([]weather.CityRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []weather.CityRecord{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", weather.ErrPersistence, s.path, err)
	}

	var cities []weather.CityRecord
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", weather.ErrPersistence, s.path, err)
	}
	if cities == nil {
		// a literal "null" document
		return nil, fmt.Errorf("%w: parse %s: not a city list", weather.ErrPersistence, s.path)
	}
	return cities, nil
}
