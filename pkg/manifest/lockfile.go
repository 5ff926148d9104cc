package manifest

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pyvet/pyvet/pkg/errors"
)

// lockKind identifies a lock file format by content rather than file name,
// since lock files travel under many names.
type lockKind int

const (
	lockUnknown lockKind = iota
	lockUV               // pip-compile/uv style: one requirement line per package
	lockPoetry           // TOML with [[package]] tables
	lockPipfile          // JSON with _meta plus default/develop groups
)

func sniffLockKind(content string) lockKind {
	var probe struct {
		Meta    json.RawMessage `json:"_meta"`
		Default json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal([]byte(content), &probe); err == nil &&
		probe.Meta != nil && probe.Default != nil {
		return lockPipfile
	}

	seen := 0
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		seen++
		if seen > 10 {
			break
		}
		if strings.HasPrefix(t, "[metadata]") || strings.HasPrefix(t, "[[package]]") {
			return lockPoetry
		}
		// anything else this early is a requirement line
		return lockUV
	}
	return lockUnknown
}

// FromLockContents builds a Manifest from lock file content, detecting the
// format first. The uv/pip-compile format is requirement lines (with "# via"
// annotations skipped), poetry pins name==version per package table, and
// Pipfile.lock holds JSON groups where only "default" plus the requested
// groups contribute.
func FromLockContents(content string, groups []string) (*Manifest, error) {
	kind := sniffLockKind(content)
	if len(groups) > 0 && kind != lockPipfile {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"dependency groups apply only to Pipfile.lock sources")
	}
	switch kind {
	case lockUV:
		return FromLines(strings.Split(content, "\n"))
	case lockPoetry:
		return fromPoetryLock(content)
	case lockPipfile:
		return fromPipfileLock(content, groups)
	}
	return nil, errors.New(errors.ErrCodeInvalidSource, "unrecognized lock file format")
}

func fromPoetryLock(content string) (*Manifest, error) {
	var lock struct {
		Packages []struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal([]byte(content), &lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "cannot parse poetry lock")
	}
	m := New()
	for _, p := range lock.Packages {
		if p.Name == "" || p.Version == "" {
			continue
		}
		if err := m.Add(p.Name + "==" + p.Version); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func fromPipfileLock(content string, groups []string) (*Manifest, error) {
	var lock map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "cannot parse Pipfile.lock")
	}
	m := New()
	for _, group := range append([]string{"default"}, groups...) {
		raw, ok := lock[group]
		if !ok {
			if group == "default" {
				continue
			}
			return nil, errors.New(errors.ErrCodeNotFound, "no dependency group %q", group)
		}
		var entries map[string]struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSource, err,
				"cannot parse Pipfile.lock group %q", group)
		}
		// map iteration is unordered; sort so load order is stable
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			detail := entries[name]
			if detail.Version == "" {
				continue
			}
			// Pipfile.lock versions carry their comparator, as in "==3.6.0"
			if err := m.Add(name + detail.Version); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
