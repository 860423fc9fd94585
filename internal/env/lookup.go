package env

import (
	"fmt"
	"time"
)

// GetOrDefault retrieves an environment variable with a default value
func GetOrDefault(key, defaultValue string) string {
	if value, ok := Get(key); ok {
		return value
	}
	return defaultValue
}

// GetDuration parses a duration such as "30s" from the environment.
// A missing variable yields defaultValue; a malformed one is an error.
func GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := Get(key)
	if !ok {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid duration in %s: %w", key, err)
	}
	return d, nil
}
