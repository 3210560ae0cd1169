package weather

import "github.com/i474232898/weather-cities/internal/common"

// MiddaySlot is the time-of-day marker of the one sample kept per day.
const MiddaySlot = "12:00:00"

// FilterMidday keeps only the entries sampled at midday, preserving feed
// order. Days without a midday sample are dropped.
func FilterMidday(entries []ForecastEntry) []ForecastEntry {
	filtered := make([]ForecastEntry, 0, len(entries)/8+1)
	for _, e := range entries {
		if common.HasAny(e.Timestamp, MiddaySlot) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
