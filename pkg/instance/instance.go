package instance

import (
	"os"
	"strings"
)

// GetID identifies this process in logs and lock ownership. It prefers the
// explicit worker id, then the platform dyno name, then a fixed fallback.
func GetID() string {
	for _, key := range []string{"STOCKHOLD_WORKER_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
