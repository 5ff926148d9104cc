// Package manifest loads bound requirements from the places they live:
// requirements files (with nested includes), pyproject.toml, lock files,
// remote URLs, git repositories, and directories searched in lock-priority
// order. The result is a Manifest, an ordered collection of parsed
// specifiers keyed by normalized package name.
package manifest

import (
	"sort"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
	"github.com/pyvet/pyvet/pkg/spec"
)

// Manifest is a bound-requirement set. Multiple specifiers may share one
// key: sources can bind the same package under different markers, and
// reconciliation wants each one reported independently. Insertion order is
// preserved per key and across keys.
type Manifest struct {
	specs map[string][]*spec.DepSpec
	keys  []string // insertion order
}

// New returns an empty Manifest.
func New() *Manifest {
	return &Manifest{specs: make(map[string][]*spec.DepSpec)}
}

// Add parses one requirement line and inserts it. Blank lines and comments
// are the caller's concern; Add expects a specifier.
func (m *Manifest) Add(line string) error {
	ds, err := spec.Parse(line)
	if err != nil {
		return err
	}
	m.AddSpec(ds)
	return nil
}

// AddSpec inserts an already-parsed specifier.
func (m *Manifest) AddSpec(ds *spec.DepSpec) {
	if _, seen := m.specs[ds.Key]; !seen {
		m.keys = append(m.keys, ds.Key)
	}
	m.specs[ds.Key] = append(m.specs[ds.Key], ds)
}

// FromLines builds a Manifest from requirement lines, skipping blanks and
// comments.
func FromLines(lines []string) (*Manifest, error) {
	m := New()
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if err := m.Add(t); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns every specifier bound under a key, in insertion order. The
// key is normalized before lookup, so Get("Flask_SQLAlchemy") and
// Get("flask-sqlalchemy") are the same query.
func (m *Manifest) Get(key string) []*spec.DepSpec {
	return m.specs[spec.NormalizeName(key)]
}

// Has reports whether any specifier is bound under the key.
func (m *Manifest) Has(key string) bool {
	_, ok := m.specs[spec.NormalizeName(key)]
	return ok
}

// Len returns the number of distinct keys.
func (m *Manifest) Len() int { return len(m.keys) }

// Keys returns all keys sorted case-insensitively.
func (m *Manifest) Keys() []string {
	out := append([]string(nil), m.keys...)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// Specs returns every specifier across all keys, ordered by sorted key then
// insertion order within the key.
func (m *Manifest) Specs() []*spec.DepSpec {
	var out []*spec.DepSpec
	for _, key := range m.Keys() {
		out = append(out, m.specs[key]...)
	}
	return out
}

// MissingFrom returns the keys bound in the manifest but absent from the
// observed set, sorted. These become the Missing records of a validation.
func (m *Manifest) MissingFrom(observed map[string]bool) []string {
	var out []string
	for _, key := range m.keys {
		if !observed[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

//------------------------------------------------------------------------------

// Anchor selects which end of the observed version range a derived
// specifier binds.
type Anchor int

const (
	AnchorLower Anchor = iota // >= the minimum observed version
	AnchorUpper               // <= the maximum observed version
)

// Observed is one discovered package identity used for derivation.
type Observed struct {
	Name    string
	Version string
}

// FromObserved derives a Manifest from discovered packages: for each
// distinct name, one specifier anchored at the lower or upper end of the
// versions seen across sites.
func FromObserved(obs []Observed, anchor Anchor) (*Manifest, error) {
	byKey := make(map[string][]Observed)
	var order []string
	for _, o := range obs {
		key := spec.NormalizeName(o.Name)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], o)
	}
	m := New()
	for _, key := range order {
		group := byKey[key]
		pick := group[0]
		for _, o := range group[1:] {
			c := spec.Compare(spec.ParseVersion(o.Version), spec.ParseVersion(pick.Version))
			if anchor == AnchorLower && c < 0 || anchor == AnchorUpper && c > 0 {
				pick = o
			}
		}
		op := ">="
		if anchor == AnchorUpper {
			op = "<="
		}
		if err := m.Add(pick.Name + op + pick.Version); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPackage, err,
				"cannot derive specifier for %s", pick.Name)
		}
	}
	return m, nil
}
