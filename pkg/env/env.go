package env

import "os"

// Get returns the named environment variable or the fallback when unset/empty.
func Get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
