package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// ValidateWeight checks that a blend weight is a finite value in [0, 1].
// The name is used in the error message (e.g. "gamma").
func ValidateWeight(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidWeight, "%s must be finite", name)
	}
	if v < 0 || v > 1 {
		return New(ErrCodeInvalidWeight, "%s must be in [0, 1], got %g", name, v)
	}
	return nil
}

// levelNameRegex matches abstraction level tags such as "relu4_1" or "block5".
var levelNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// ValidateLevelName validates an abstraction level tag.
//
// Level tags select both an encoder exit point and a decoder entry point, so
// they are restricted to identifier-like strings of at most 64 characters.
func ValidateLevelName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidLevel, "level name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidLevel, "level name too long (max 64 characters)")
	}
	if !levelNameRegex.MatchString(name) {
		return New(ErrCodeInvalidLevel, "invalid level name: %q", name)
	}
	return nil
}

// ValidateLevels validates an ordered level list.
// The list must be non-empty. A level may appear more than once; each
// occurrence is a separate pass.
func ValidateLevels(names []string) error {
	if len(names) == 0 {
		return New(ErrCodeInvalidLevel, "at least one target level is required")
	}
	for _, n := range names {
		if err := ValidateLevelName(n); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePath validates a user-supplied file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateUploadName validates a multipart file name received by the server.
// It must be a simple basename without path components.
func ValidateUploadName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "upload name cannot contain path separators")
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidPath, "upload name cannot contain path traversal sequences (..)")
	}
	return nil
}
