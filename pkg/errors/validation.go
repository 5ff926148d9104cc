package errors

import (
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks
// when a name is later joined into a site-packages path for unpack or purge.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Grammar-level validation is done separately by the specifier parser.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidPackage, "package name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPackage, "package name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateBoundURL validates a bound-requirement source URL.
// Only http, https, and git URL forms are accepted; anything else must be
// treated as a local path by the caller.
func ValidateBoundURL(raw string) error {
	if raw == "" {
		return New(ErrCodeInvalidPath, "bound source cannot be empty")
	}
	for _, prefix := range []string{"http://", "https://", "git@", "git+"} {
		if strings.HasPrefix(raw, prefix) {
			return nil
		}
	}
	return New(ErrCodeInvalidPath, "unsupported bound source scheme: %s", raw)
}
