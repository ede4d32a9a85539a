package errors

import (
	"strings"
	"unicode"
)

// MaxNodeIDLength bounds node identifiers accepted from graph description files.
const MaxNodeIDLength = 256

// ValidateNodeID validates a node identifier read from untrusted input.
//
// The rules are conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - Maximum length of MaxNodeIDLength characters
func ValidateNodeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidGraph, "node ID cannot be empty")
	}

	if len(id) > MaxNodeIDLength {
		return New(ErrCodeInvalidGraph, "node ID too long (max %d characters)", MaxNodeIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidGraph, "node ID %q contains control characters", id)
		}
	}

	return nil
}

// ValidatePath validates an output file path given on the command line.
// It rejects empty paths, control characters and path traversal sequences.
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateLanes validates a requested lane count.
func ValidateLanes(n int) error {
	if n <= 0 {
		return New(ErrCodeConfiguration, "number of lanes must be at least one, got %d", n)
	}
	return nil
}
