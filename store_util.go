package seenindex

import (
	"fmt"
	"strings"
	"time"
)

// Checks if the given filename is a filter manifest.
func isManifestFile(filename string) bool {
	return strings.HasSuffix(filename, ManifestSuffix) && len(filename) > len(ManifestSuffix)
}

// validateName rejects names that would escape the store directory or hide
// among temporary files.
func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func nowUnixNano() int64 {
	return time.Now().UnixNano()
}
