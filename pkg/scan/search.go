package scan

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/pyvet/pyvet/pkg/errors"
)

// matchPattern glob-matches a package display identity. Patterns carry no
// path separators, so segment semantics never apply.
func matchPattern(pattern, target string, caseInsensitive bool) (bool, error) {
	if caseInsensitive {
		pattern = strings.ToLower(pattern)
		target = strings.ToLower(target)
	}
	ok, err := doublestar.Match(pattern, target)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeInvalidSpec, err,
			"invalid search pattern %q", pattern)
	}
	return ok, nil
}
