package weather

import "errors"

// Error kinds surfaced by the weather client, the suggestion client and the
// city store. Callers match them with errors.Is; concrete errors wrap one of
// these with the underlying cause.
var (
	// ErrInvalidURL means a constructed request URL is not well-formed.
	ErrInvalidURL = errors.New("invalid request url")
	// ErrNetwork covers transport failures, 429 and 5xx responses and open circuits.
	ErrNetwork = errors.New("network error")
	// ErrDecode means a response body did not match the expected schema or
	// the provider rejected the request with a 4xx reply.
	ErrDecode = errors.New("decode error")
	// ErrPersistence means the local city file could not be read, written or parsed.
	ErrPersistence = errors.New("persistence error")

	// ErrCityNotFound is returned when no saved city carries the requested name.
	ErrCityNotFound = errors.New("city not found")
	// ErrInvalidQuery is returned for an empty or malformed city search query.
	ErrInvalidQuery = errors.New("invalid city query")
)
