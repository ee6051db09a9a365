// Package permissions decides the mode of the files the tools write.
package permissions

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultFilePerms is the mode of newly created images and dumps.
const DefaultFilePerms os.FileMode = 0o644

// ParseOctalString parses an octal mode such as "644", "0644" or "0o644".
// An empty string yields DefaultFilePerms.
func ParseOctalString(s string) (os.FileMode, error) {
	if s == "" {
		return DefaultFilePerms, nil
	}

	trimmed := strings.TrimPrefix(s, "0o")
	trimmed = strings.TrimPrefix(trimmed, "0")
	val, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil || val > 0o777 {
		return DefaultFilePerms, fmt.Errorf("invalid permission string %q", s)
	}
	return os.FileMode(val), nil
}

// FormatOctal formats a mode as an octal string.
func FormatOctal(perm os.FileMode) string {
	return fmt.Sprintf("0%o", perm.Perm())
}

// ModeFor returns the mode for writing path: that of the file being
// replaced, or fallback when there is none.
func ModeFor(path string, fallback os.FileMode) os.FileMode {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fallback
	}
	return info.Mode().Perm()
}
