package bookmark

import (
	"errors"
	"path/filepath"
	"strings"
)

var relativeMarkers = []string{"./", `.\`, "../", `..\`}

// IsRelative reports whether location starts with a relative marker.
func IsRelative(location string) bool {
	if location == "." || location == ".." {
		return true
	}
	for _, m := range relativeMarkers {
		if strings.HasPrefix(location, m) {
			return true
		}
	}
	return false
}

// ResolveLocation turns location into an absolute, cleaned path. Relative
// locations are joined onto workDir, which must itself be absolute.
func ResolveLocation(workDir, location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", storeErr("resolve", location, ErrInvalidLocation, errors.New("empty location"))
	}
	if strings.ContainsRune(location, 0) {
		return "", storeErr("resolve", location, ErrInvalidLocation, errors.New("location contains NUL"))
	}
	if IsRelative(location) {
		if workDir == "" || !filepath.IsAbs(workDir) {
			return "", storeErr("resolve", location, ErrInvalidLocation, errors.New("no absolute working directory configured"))
		}
		rel := filepath.FromSlash(strings.ReplaceAll(location, `\`, "/"))
		return filepath.Join(workDir, rel), nil
	}
	if !filepath.IsAbs(location) {
		return "", storeErr("resolve", location, ErrInvalidLocation, errors.New("location is neither absolute nor marked relative"))
	}
	return filepath.Clean(location), nil
}
