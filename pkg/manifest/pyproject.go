package manifest

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/pyvet/pyvet/pkg/errors"
)

// pyProject mirrors the subset of pyproject.toml that binds dependencies:
// PEP 621 project tables and the poetry tool tables.
type pyProject struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]toml.Primitive `toml:"dependencies"`
			Group        map[string]struct {
				Dependencies map[string]toml.Primitive `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// FromPyProject builds a Manifest from pyproject.toml content.
// project.dependencies and tool.poetry.dependencies always contribute;
// optional groups contribute only when named in groups. Declaring optional
// dependencies both as project extras and as poetry groups is rejected as
// ambiguous.
func FromPyProject(content []byte, groups []string) (*Manifest, error) {
	var pp pyProject
	md, err := toml.Decode(string(content), &pp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "cannot parse pyproject.toml")
	}

	hasProjectOptional := len(pp.Project.OptionalDependencies) > 0
	hasPoetryGroups := false
	for _, g := range pp.Tool.Poetry.Group {
		if len(g.Dependencies) > 0 {
			hasPoetryGroups = true
			break
		}
	}
	if hasProjectOptional && hasPoetryGroups {
		return nil, errors.New(errors.ErrCodeInvalidSource,
			"optional dependencies defined in both project and tool.poetry.group")
	}

	m := New()
	for _, line := range pp.Project.Dependencies {
		if err := m.Add(line); err != nil {
			return nil, err
		}
	}
	for _, group := range groups {
		if hasProjectOptional {
			lines, ok := pp.Project.OptionalDependencies[group]
			if !ok {
				return nil, errors.New(errors.ErrCodeNotFound,
					"no optional dependency group %q", group)
			}
			for _, line := range lines {
				if err := m.Add(line); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := addPoetryDeps(m, md, pp.Tool.Poetry.Dependencies); err != nil {
		return nil, err
	}
	for _, group := range groups {
		if hasPoetryGroups {
			g, ok := pp.Tool.Poetry.Group[group]
			if !ok {
				return nil, errors.New(errors.ErrCodeNotFound,
					"no poetry dependency group %q", group)
			}
			if err := addPoetryDeps(m, md, g.Dependencies); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// addPoetryDeps converts poetry dependency values to requirement lines: a
// string value is the constraint ("flask = \"^2.0\""), a table carries the
// constraint under its version key.
func addPoetryDeps(m *Manifest, md toml.MetaData, deps map[string]toml.Primitive) error {
	for name, prim := range deps {
		var constraint string
		var asString string
		if err := md.PrimitiveDecode(prim, &asString); err == nil {
			constraint = asString
		} else {
			var asTable struct {
				Version string `toml:"version"`
			}
			if err := md.PrimitiveDecode(prim, &asTable); err == nil {
				constraint = asTable.Version
			}
		}
		if err := m.Add(name + constraint); err != nil {
			return err
		}
	}
	return nil
}

// FromPyProjectFile loads pyproject.toml from disk.
func FromPyProjectFile(path string, groups []string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot read %s", path)
	}
	return FromPyProject(content, groups)
}
