package config

import (
	"fmt"
	"os"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
)

// AppName names the config, cache and data directories.
const AppName = "speak"

func scope() *gap.Scope {
	return gap.NewScope(gap.User, AppName)
}

// DefaultCacheDir returns the per-user cache directory.
func DefaultCacheDir() (string, error) {
	dir, err := scope().CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return dir, nil
}

// ConfigDirs returns the directories searched for speak.yml, most specific
// first. SPEAK_CONFIG_HOME and XDG_CONFIG_HOME take precedence.
func ConfigDirs() ([]string, error) {
	dirs, err := scope().ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("unable to find configuration directory: %w", err)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("SPEAK_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// LogPath returns the path of the log file, next to the cache.
func LogPath() (string, error) {
	dir, err := DefaultCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName+".log"), nil
}
