package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default data directory based on the host OS.
// It prefers per-user standard locations and falls back to a dotdir in the
// user's home directory.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}

	// XDG (Linux) override
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "flowatch")
	}

	// macOS: ~/Library/Application Support/Flowatch
	if isDir(filepath.Join(homeDir, "Library")) {
		return filepath.Join(homeDir, "Library", "Application Support", "Flowatch")
	}

	// Windows: %USERPROFILE%/AppData/Local/Flowatch
	if isDir(filepath.Join(homeDir, "AppData")) {
		return filepath.Join(homeDir, "AppData", "Local", "Flowatch")
	}

	// XDG default: ~/.local/share/flowatch
	if isDir(filepath.Join(homeDir, ".local", "share")) {
		return filepath.Join(homeDir, ".local", "share", "flowatch")
	}

	// Fallback: ~/.flowatch
	return filepath.Join(homeDir, ".flowatch")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
