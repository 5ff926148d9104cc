package spec

import (
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
)

// Comparison is one marker clause: left op right, where either side is an
// environment variable reference or a quoted literal. An unquoted side is a
// variable reference; a reference the environment does not recognize makes
// the comparison false rather than failing evaluation.
type Comparison struct {
	Left     string
	Op       string
	Right    string
	LeftVar  bool
	RightVar bool
}

// Marker is an environment-applicability predicate in disjunctive normal
// form: the marker holds when every comparison of at least one AND-group
// holds. The grammar admits no parenthetical grouping, so two nested
// sequences represent every expressible marker.
type Marker struct {
	Raw    string
	Groups [][]Comparison
}

// Environment carries the interpreter and platform values a marker can
// reference. The zero value evaluates every variable reference to unknown.
type Environment struct {
	OSName                       string `json:"os_name"`
	SysPlatform                  string `json:"sys_platform"`
	PlatformMachine              string `json:"platform_machine"`
	PlatformPythonImplementation string `json:"platform_python_implementation"`
	PlatformRelease              string `json:"platform_release"`
	PlatformSystem               string `json:"platform_system"`
	PlatformVersion              string `json:"platform_version"`
	PythonVersion                string `json:"python_version"`
	PythonFullVersion            string `json:"python_full_version"`
	ImplementationName           string `json:"implementation_name"`
	ImplementationVersion        string `json:"implementation_version"`
	Extra                        string `json:"extra"`
}

// lookup resolves a marker variable name. The second return is false for
// variables the environment does not define.
func (e *Environment) lookup(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	switch name {
	case "os_name":
		return e.OSName, true
	case "sys_platform":
		return e.SysPlatform, true
	case "platform_machine":
		return e.PlatformMachine, true
	case "platform_python_implementation":
		return e.PlatformPythonImplementation, true
	case "platform_release":
		return e.PlatformRelease, true
	case "platform_system":
		return e.PlatformSystem, true
	case "platform_version":
		return e.PlatformVersion, true
	case "python_version":
		return e.PythonVersion, true
	case "python_full_version":
		return e.PythonFullVersion, true
	case "implementation_name":
		return e.ImplementationName, true
	case "implementation_version":
		return e.ImplementationVersion, true
	case "extra":
		return e.Extra, true
	}
	return "", false
}

// versionedVars are compared with version ordering rather than as strings.
var versionedVars = map[string]bool{
	"python_version":         true,
	"python_full_version":    true,
	"implementation_version": true,
}

// markerOps is ordered longest-first, matching the comparator scan in the
// specifier grammar.
var markerOps = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">", "not in", "in"}

// ParseMarker parses the text after the ';' of a specifier into a Marker.
// The grammar is OR of AND-groups of comparisons; parentheses are rejected.
func ParseMarker(raw string) (*Marker, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errors.New(errors.ErrCodeMalformedMarker, "empty marker")
	}
	if strings.ContainsAny(text, "()") {
		return nil, errors.New(errors.ErrCodeMalformedMarker,
			"parenthetical grouping is not supported: %q", text)
	}
	m := &Marker{Raw: text}
	for _, orPart := range splitKeyword(text, "or") {
		var group []Comparison
		for _, andPart := range splitKeyword(orPart, "and") {
			cmp, err := parseComparison(andPart)
			if err != nil {
				return nil, err
			}
			group = append(group, cmp)
		}
		m.Groups = append(m.Groups, group)
	}
	return m, nil
}

// splitKeyword splits on a lowercase keyword occurring as a bare word
// outside quoted literals.
func splitKeyword(s, kw string) []string {
	var out []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		if c != kw[0] || i+len(kw) > len(s) || s[i:i+len(kw)] != kw {
			continue
		}
		bounded := (i == 0 || s[i-1] == ' ') &&
			(i+len(kw) == len(s) || s[i+len(kw)] == ' ')
		if bounded {
			out = append(out, s[start:i])
			start = i + len(kw)
			i = start - 1
		}
	}
	return append(out, s[start:])
}

// parseComparison splits "left op right" on the first operator occurring
// outside quotes, longest token first.
func parseComparison(s string) (Comparison, error) {
	text := strings.TrimSpace(s)
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			continue
		}
		for _, op := range markerOps {
			if !strings.HasPrefix(text[i:], op) {
				continue
			}
			// word operators need surrounding whitespace
			if op == "in" || op == "not in" {
				if i == 0 || text[i-1] != ' ' ||
					i+len(op) >= len(text) || text[i+len(op)] != ' ' {
					continue
				}
			}
			left, lvar := unquote(text[:i])
			right, rvar := unquote(text[i+len(op):])
			if (left == "" && lvar) || (right == "" && rvar) {
				return Comparison{}, errors.New(errors.ErrCodeMalformedMarker,
					"incomplete comparison: %q", text)
			}
			return Comparison{
				Left: left, Op: op, Right: right,
				LeftVar: lvar, RightVar: rvar,
			}, nil
		}
	}
	return Comparison{}, errors.New(errors.ErrCodeMalformedMarker,
		"no comparison operator in %q", text)
}

// unquote strips surrounding quotes, reporting whether the side was a bare
// word (a variable reference) rather than a quoted literal.
func unquote(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if len(t) >= 2 && (t[0] == '\'' || t[0] == '"') && t[len(t)-1] == t[0] {
		return t[1 : len(t)-1], false
	}
	return t, true
}

// Eval reports whether the marker holds in the given environment. A
// comparison naming a variable the environment does not define evaluates
// to false rather than failing, so markers for other platforms cleanly
// deactivate their specifier.
func (m *Marker) Eval(env *Environment) bool {
	for _, group := range m.Groups {
		all := true
		for _, cmp := range group {
			if !cmp.eval(env) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (c Comparison) eval(env *Environment) bool {
	left, versioned := resolveSide(c.Left, c.LeftVar, env)
	right, rv := resolveSide(c.Right, c.RightVar, env)
	if left == nil || right == nil {
		return false
	}
	versioned = versioned || rv
	switch c.Op {
	case "in":
		return strings.Contains(*right, *left)
	case "not in":
		return !strings.Contains(*right, *left)
	}
	if versioned {
		constraint := NewConstraint(mustOperator(c.Op), *right)
		return constraint.Match(ParseVersion(*left))
	}
	switch c.Op {
	case "==", "===":
		return *left == *right
	case "!=":
		return *left != *right
	case "<":
		return *left < *right
	case "<=":
		return *left <= *right
	case ">":
		return *left > *right
	case ">=":
		return *left >= *right
	case "~=":
		return false // compatible release is undefined for plain strings
	}
	return false
}

// resolveSide maps a comparison side to its value. A variable reference
// resolves through the environment and yields nil when the variable is
// unknown or the environment absent; a quoted literal is its own value.
func resolveSide(s string, isVar bool, env *Environment) (*string, bool) {
	if !isVar {
		lit := s
		return &lit, false
	}
	v, ok := env.lookup(s)
	if !ok {
		return nil, false
	}
	return &v, versionedVars[s]
}

func mustOperator(token string) Operator {
	op, err := ParseOperator(token)
	if err != nil {
		return OpEq
	}
	return op
}

func (m *Marker) String() string {
	if m == nil {
		return ""
	}
	return m.Raw
}
