package query

import (
	"fmt"
	"strings"
)

// Mode selects how the source identifier is addressed.
type Mode int

const (
	// ByName addresses a named log source.
	ByName Mode = iota
	// ByFilePath addresses a file on disk.
	ByFilePath
)

func (m Mode) String() string {
	switch m {
	case ByName:
		return "name"
	case ByFilePath:
		return "path"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ByName || m == ByFilePath }

// ParseMode maps "name" and "path" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "":
		return ByName, nil
	case "path", "file":
		return ByFilePath, nil
	}
	return ByName, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}
