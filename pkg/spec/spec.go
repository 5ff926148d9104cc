// Package spec implements the dependency-specifier micro-language: parsing
// one requirement line into a structured specifier, version ordering and
// constraint satisfaction, and environment-marker evaluation.
//
// The grammar covers a package identifier, optional extras, chained version
// comparators, an optional source URL pin, and an optional boolean
// environment marker:
//
//	name_req      := identifier extras? version_many? url_reference? quoted_marker?
//	identifier    := alnum (sep* alnum)*           ; sep in {-,_,.}
//	extras        := '[' identifier (',' identifier)* ']'
//	version_many  := version_one (',' version_one)*
//	version_one   := comparator version_literal
//	url_reference := '@' scheme '://' host ('@' revision)? ('#' fragment)?
//	quoted_marker := ';' marker_or
//
// Parsing and matching are pure functions with no shared state; it is safe
// to parse many lines concurrently.
package spec

import (
	"path"
	"regexp"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
)

// DepSpec is one parsed dependency specifier. It is an immutable value
// record: created by Parse and consumed read-only by the reconciliation
// engine.
type DepSpec struct {
	Name        string       // identifier as written
	Key         string       // normalized identifier, used as map key
	Extras      []string     // optional feature sets, carried but not evaluated
	Constraints []Constraint // ordered, all must hold (AND)
	URL         string       // optional source pin; empty if none
	Marker      *Marker      // optional applicability predicate; nil if none
}

var nameSepRE = regexp.MustCompile(`[-_.]+`)

// NormalizeName converts a package name to its canonical key form: lowered,
// with runs of the separators -, _ and . collapsed to a single hyphen.
// "Flask_SQLAlchemy" and "flask-sqlalchemy" normalize identically.
func NormalizeName(name string) string {
	return nameSepRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// urlSchemeRE matches the accepted URL pin schemes.
var urlSchemeRE = regexp.MustCompile(`^(git\+https|git\+ssh|git\+http|file|https|http)://\S+$`)

var wheelRE = regexp.MustCompile(`^(https?|file)://\S+\.whl$`)

// Parse converts one requirement line into a DepSpec. Whitespace is
// insignificant except inside quoted marker literals. Failures carry a
// structured code identifying the malformed construct.
func Parse(line string) (*DepSpec, error) {
	input := strings.TrimSpace(line)
	if ds, err := parseWheelURL(input); err == nil {
		return ds, nil
	}

	p := &lineParser{s: input}
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	ds := &DepSpec{Name: name, Key: NormalizeName(name)}

	p.skipSpace()
	if p.peek() == '[' {
		if ds.Extras, err = p.extras(); err != nil {
			return nil, err
		}
	}

	p.skipSpace()
	if isComparatorByte(p.peek()) {
		if ds.Constraints, err = p.constraints(); err != nil {
			return nil, err
		}
	}

	p.skipSpace()
	if p.peek() == '@' {
		if ds.URL, err = p.urlReference(); err != nil {
			return nil, err
		}
		// a wheel URL fixes the name and version
		if whl, werr := parseWheelURL(ds.URL); werr == nil {
			if whl.Key != ds.Key {
				return nil, errors.New(errors.ErrCodeInvalidSpec,
					"name %s does not match wheel name %s", ds.Name, whl.Name)
			}
			ds.Constraints = whl.Constraints
		}
	}

	p.skipSpace()
	if p.peek() == ';' {
		p.pos++
		if ds.Marker, err = ParseMarker(p.rest()); err != nil {
			return nil, err
		}
		p.pos = len(p.s)
	}

	p.skipSpace()
	if p.pos < len(p.s) {
		return nil, errors.New(errors.ErrCodeInvalidSpec,
			"unrecognized input: %q", p.rest())
	}
	return ds, nil
}

// parseWheelURL extracts name and version from a URL ending in .whl, as in
// "https://example.com/app-1.0.whl". The wheel pins the identifier to an
// exact version.
func parseWheelURL(input string) (*DepSpec, error) {
	if !wheelRE.MatchString(input) {
		return nil, errors.New(errors.ErrCodeMalformedURL, "not a wheel URL: %s", input)
	}
	stem := strings.TrimSuffix(path.Base(input), ".whl")
	parts := strings.SplitN(stem, "-", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.New(errors.ErrCodeMalformedURL, "invalid wheel name: %s", stem)
	}
	return &DepSpec{
		Name:        parts[0],
		Key:         NormalizeName(parts[0]),
		Constraints: []Constraint{NewConstraint(OpEq, parts[1])},
		URL:         input,
	}, nil
}

// MatchVersion reports whether a concrete version satisfies every
// constraint. A specifier with no constraints and no URL is bare, satisfied
// by any installed version.
func (d *DepSpec) MatchVersion(v Version) bool {
	return MatchAll(d.Constraints, v)
}

// Applicable reports whether the specifier's marker holds in the given
// environment. A specifier without a marker is unconditionally applicable.
func (d *DepSpec) Applicable(env *Environment) bool {
	if d.Marker == nil {
		return true
	}
	return d.Marker.Eval(env)
}

// Pinned reports whether the specifier is fully pinned to a source URL, in
// which case version constraints are advisory only.
func (d *DepSpec) Pinned() bool { return d.URL != "" }

// String re-serializes the specifier canonically: constraints win over the
// URL, the URL (with userinfo stripped) over a bare name. Parsing the
// result yields an equal DepSpec.
func (d *DepSpec) String() string {
	if len(d.Constraints) > 0 {
		parts := make([]string, len(d.Constraints))
		for i, c := range d.Constraints {
			parts[i] = c.String()
		}
		return d.Name + strings.Join(parts, ",")
	}
	if d.URL != "" {
		return d.Name + " @ " + StripURLUser(d.URL)
	}
	return d.Name
}

// StripURLUser removes the userinfo component from a URL for display and
// comparison; installers are inconsistent about recording it.
func StripURLUser(url string) string {
	proto := strings.Index(url, "://")
	if proto < 0 {
		return url
	}
	start := proto + 3
	at := strings.Index(url[start:], "@")
	if at < 0 {
		return url
	}
	end := start + at + 1
	if strings.Contains(url[start:end], "/") {
		return url // '@' belongs to a path revision, not userinfo
	}
	return url[:start] + url[end:]
}

//------------------------------------------------------------------------------
// line scanner

type lineParser struct {
	s   string
	pos int
}

func (p *lineParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *lineParser) rest() string { return p.s[p.pos:] }

func (p *lineParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isNameSep(c byte) bool { return c == '-' || c == '_' || c == '.' }

func isComparatorByte(c byte) bool {
	return strings.IndexByte("<>=!~^", c) >= 0
}

func isVersionByte(c byte) bool {
	return isAlnum(c) || strings.IndexByte("-_.*+!", c) >= 0
}

// identifier consumes a package name: alphanumeric start and end, with
// interior -, _ and . separators. Trailing separators are not consumed.
func (p *lineParser) identifier() (string, error) {
	p.skipSpace()
	start := p.pos
	if !isAlnum(p.peek()) {
		return "", errors.New(errors.ErrCodeInvalidSpec,
			"expected package name at %q", p.rest())
	}
	end := p.pos
	for p.pos < len(p.s) && (isAlnum(p.s[p.pos]) || isNameSep(p.s[p.pos])) {
		if isAlnum(p.s[p.pos]) {
			end = p.pos + 1
		}
		p.pos++
	}
	p.pos = end // give back trailing separators
	return p.s[start:end], nil
}

// extras consumes a bracketed identifier list: "[security,tests]".
func (p *lineParser) extras() ([]string, error) {
	p.pos++ // consume '['
	var out []string
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, errors.New(errors.ErrCodeInvalidSpec,
				"expected extra name at %q", p.rest())
		}
		out = append(out, name)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, errors.New(errors.ErrCodeInvalidSpec,
				"unterminated extras list at %q", p.rest())
		}
	}
}

// constraints consumes a comma-separated comparator+literal list.
func (p *lineParser) constraints() ([]Constraint, error) {
	var out []Constraint
	for {
		p.skipSpace()
		op, err := p.comparator()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.s) && isVersionByte(p.s[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return nil, errors.New(errors.ErrCodeInvalidSpec,
				"expected version literal at %q", p.rest())
		}
		out = append(out, NewConstraint(op, p.s[start:p.pos]))
		p.skipSpace()
		if p.peek() != ',' {
			return out, nil
		}
		p.pos++
	}
}

// comparator consumes one comparator token, longest-first.
func (p *lineParser) comparator() (Operator, error) {
	for _, t := range operatorTokens {
		if strings.HasPrefix(p.rest(), t.token) {
			p.pos += len(t.token)
			return t.op, nil
		}
	}
	return 0, errors.New(errors.ErrCodeUnknownComparator,
		"unknown comparator at %q", p.rest())
}

// urlReference consumes "@ scheme://host[@revision][#fragment]".
func (p *lineParser) urlReference() (string, error) {
	p.pos++ // consume '@'
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ' ' && p.s[p.pos] != '\t' && p.s[p.pos] != ';' {
		p.pos++
	}
	url := strings.TrimSpace(p.s[start:p.pos])
	if !urlSchemeRE.MatchString(url) {
		return "", errors.New(errors.ErrCodeMalformedURL, "malformed URL: %q", url)
	}
	return url, nil
}
