// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"
	"strings"
)

// Fallback is returned when no identifier can be discovered.
const Fallback = "local"

var sources = []string{"HELPDESK_INSTANCE_ID", "DYNO", "HOSTNAME"}

// GetID returns the first non-empty identifier among the known environment
// variables, then the OS hostname.
func GetID() string {
	for _, key := range sources {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return Fallback
}
