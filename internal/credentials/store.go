package credentials

// Store is a flat string key/value store that survives process restarts.
// Get returns "" with a nil error for keys that were never set.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error

	// Name returns the name of the store for logging
	Name() string
}
