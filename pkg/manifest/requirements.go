package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
)

// FromRequirementsFile loads a requirements file, following nested
// "-r other.txt" and "--requirement other.txt" directives relative to the
// including file. An include chain that revisits a file on the current
// path fails with a cyclic-include error; a file reachable twice through
// different branches is loaded once.
func FromRequirementsFile(path string) (*Manifest, error) {
	m := New()
	loaded := make(map[string]bool)
	onPath := make(map[string]bool)
	if err := loadRequirements(m, path, loaded, onPath); err != nil {
		return nil, err
	}
	return m, nil
}

func loadRequirements(m *Manifest, path string, loaded, onPath map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "cannot resolve %s", path)
	}
	if onPath[abs] {
		return errors.New(errors.ErrCodeCyclicInclude,
			"requirements include cycle through %s", path)
	}
	if loaded[abs] {
		return nil
	}
	loaded[abs] = true
	onPath[abs] = true
	defer delete(onPath, abs)

	f, err := os.Open(abs)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if include, ok := includeTarget(line); ok {
			next := include
			if !filepath.IsAbs(next) {
				next = filepath.Join(filepath.Dir(abs), next)
			}
			if err := loadRequirements(m, next, loaded, onPath); err != nil {
				return err
			}
			continue
		}
		if err := m.Add(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "reading %s", path)
	}
	return nil
}

func includeTarget(line string) (string, bool) {
	for _, prefix := range []string{"-r ", "--requirement "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}
