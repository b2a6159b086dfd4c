// Package config loads typed settings through viper and expands paths.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ to the home directory and expands $VAR
// references. Special SQLite names such as ":memory:" pass through.
func ExpandPath(path string) string {
	if path == "" || strings.HasPrefix(path, ":") {
		return path
	}

	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
