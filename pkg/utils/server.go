package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const instanceIDFile = ".instance_id"

// InstanceID names this process in the health report and startup log.
// An explicit override wins; otherwise the ID is kept in dir so restarts
// report the same value.
func InstanceID(override, dir string) string {
	if override != "" {
		return override
	}

	path := filepath.Join(dir, instanceIDFile)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := "igrs-" + uuid.NewString()[:8]
	if err := os.MkdirAll(dir, 0755); err == nil {
		_ = os.WriteFile(path, []byte(id), 0644)
	}
	return id
}
