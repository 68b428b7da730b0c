// Package identity resolves the author string attached to events and
// service operations.
package identity

import "os"

// Resolve returns the first non-empty identity source: an explicit
// override, then CRIT_AGENT, then BOTBUS_AGENT, then USER, falling back
// to "unknown". Env is read fresh on every call; callers must not cache
// the result across operations.
func Resolve(override string) string {
	if override != "" {
		return override
	}
	for _, key := range []string{"CRIT_AGENT", "BOTBUS_AGENT", "USER"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}
