package spec

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
)

// Version is a parsed package version: dot-separated segments where each
// segment is a number, a release-stage token (dev1, a1, b2, rc3, post1,
// optionally glued to a leading number as in "3rc2"), a wildcard "*", or
// plain text. Versions are immutable after construction.
//
// Ordering is dotted-numeric with release-stage precedence: numeric segments
// compare numerically, shorter versions are zero-padded ("1.1" == "1.1.0"),
// and stage tokens order as dev < a < b < rc < (release) < post. A wildcard
// segment compares equal to anything.
type Version struct {
	raw   string
	parts []part
	valid bool
}

type partKind uint8

const (
	partNumber partKind = iota
	partStage
	partText
	partWildcard
)

// Stage ranks. A plain release segment sits between rc and post.
const (
	rankDev     = 1
	rankAlpha   = 2
	rankBeta    = 3
	rankRC      = 4
	rankRelease = 5
	rankPost    = 6
)

type part struct {
	kind partKind
	num  uint64 // numeric value, or the numeric prefix of a stage segment
	rank int    // stage rank; rankRelease for plain numbers
	sub  uint64 // trailing number of a stage segment ("rc2" -> 2)
	text string // raw segment text, kept for display and text comparison
}

var (
	stageRE = regexp.MustCompile(`^([0-9]*)(dev|post|rc|a|b)([0-9]*)$`)
	// Version literals are restricted to alphanumerics plus -_.*+!
	versionCharsRE = regexp.MustCompile(`^[A-Za-z0-9._*+!-]+$`)
)

var stageRanks = map[string]int{
	"dev":  rankDev,
	"a":    rankAlpha,
	"b":    rankBeta,
	"rc":   rankRC,
	"post": rankPost,
}

// ParseVersion parses a version literal. It never fails outright: a literal
// outside the allowed character set yields a Version with IsValid() == false,
// which no constraint except string display will accept. This keeps
// reconciliation alive when malformed metadata is found in the wild.
func ParseVersion(raw string) Version {
	raw = strings.TrimSpace(raw)
	if raw == "" || !versionCharsRE.MatchString(raw) {
		return Version{raw: raw}
	}
	segments := strings.Split(raw, ".")
	parts := make([]part, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, parsePart(seg))
	}
	return Version{raw: raw, parts: parts, valid: true}
}

func parsePart(seg string) part {
	if seg == "*" {
		return part{kind: partWildcard, text: seg}
	}
	if n, err := strconv.ParseUint(seg, 10, 64); err == nil {
		return part{kind: partNumber, num: n, rank: rankRelease, text: seg}
	}
	if m := stageRE.FindStringSubmatch(strings.ToLower(seg)); m != nil {
		p := part{kind: partStage, rank: stageRanks[m[2]], text: seg}
		if m[1] != "" {
			p.num, _ = strconv.ParseUint(m[1], 10, 64)
		}
		if m[3] != "" {
			p.sub, _ = strconv.ParseUint(m[3], 10, 64)
		}
		return p
	}
	return part{kind: partText, text: seg}
}

// IsValid reports whether the literal was parseable as a version.
func (v Version) IsValid() bool { return v.valid }

// String returns the original literal.
func (v Version) String() string { return v.raw }

// MarshalJSON encodes the version as its original literal.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// UnmarshalJSON re-parses the version from its literal form.
func (v *Version) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ParseVersion(raw)
	return nil
}

var zeroPart = part{kind: partNumber, rank: rankRelease, text: "0"}

func (v Version) part(i int) part {
	if i < len(v.parts) {
		return v.parts[i]
	}
	return zeroPart
}

// Compare orders two versions: -1 if a < b, 0 if equal, 1 if a > b.
// Wildcard segments compare equal to anything; unrecognized text segments
// order below numbers and stages.
func Compare(a, b Version) int {
	n := max(len(a.parts), len(b.parts))
	for i := 0; i < n; i++ {
		if c := comparePart(a.part(i), b.part(i)); c != 0 {
			return c
		}
	}
	return 0
}

func comparePart(a, b part) int {
	if a.kind == partWildcard || b.kind == partWildcard {
		return 0
	}
	aText := a.kind == partText
	bText := b.kind == partText
	switch {
	case aText && bText:
		return strings.Compare(a.text, b.text)
	case aText:
		return -1 // numbers and stages order above text
	case bText:
		return 1
	}
	if c := compareUint(a.num, b.num); c != 0 {
		return c
	}
	if a.rank != b.rank {
		if a.rank < b.rank {
			return -1
		}
		return 1
	}
	return compareUint(a.sub, b.sub)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// equal implements version-aware equality. A trailing wildcard segment on
// either side swallows the remainder, giving "==2.*" prefix-match semantics;
// an interior wildcard matches only its own segment.
func (v Version) equal(other Version) bool {
	n := max(len(v.parts), len(other.parts))
	for i := 0; i < n; i++ {
		if trailingWildcard(v, i) || trailingWildcard(other, i) {
			return true
		}
		if comparePart(v.part(i), other.part(i)) != 0 {
			return false
		}
	}
	return true
}

func trailingWildcard(v Version, i int) bool {
	return i == len(v.parts)-1 && v.parts[i].kind == partWildcard
}

//------------------------------------------------------------------------------

// Operator is a version comparator. The set is closed and small; dispatch is
// a plain switch rather than anything dynamic.
type Operator uint8

const (
	OpLessThan Operator = iota
	OpLessThanOrEq
	OpEq
	OpNotEq
	OpGreaterThan
	OpGreaterThanOrEq
	OpCompatible  // ~=
	OpArbitraryEq // ===
	OpCaret       // ^
	OpTilde       // ~
)

// operatorTokens is ordered longest-first so that "~=" is never read as "~"
// followed by "=", and "===" never as "==".
var operatorTokens = []struct {
	token string
	op    Operator
}{
	{"===", OpArbitraryEq},
	{"==", OpEq},
	{"!=", OpNotEq},
	{"<=", OpLessThanOrEq},
	{">=", OpGreaterThanOrEq},
	{"~=", OpCompatible},
	{"<", OpLessThan},
	{">", OpGreaterThan},
	{"^", OpCaret},
	{"~", OpTilde},
}

// ParseOperator converts a comparator token to an Operator.
func ParseOperator(s string) (Operator, error) {
	for _, t := range operatorTokens {
		if s == t.token {
			return t.op, nil
		}
	}
	return 0, errors.New(errors.ErrCodeUnknownComparator, "unknown comparator: %q", s)
}

// String returns the comparator token.
func (o Operator) String() string {
	for _, t := range operatorTokens {
		if t.op == o {
			return t.token
		}
	}
	return "?"
}

//------------------------------------------------------------------------------

// Constraint pairs a comparator with a version literal. A specifier carries
// an ordered list of constraints, all of which must hold.
type Constraint struct {
	Op      Operator
	Version Version
}

// NewConstraint builds a constraint from a comparator token and literal.
func NewConstraint(op Operator, literal string) Constraint {
	return Constraint{Op: op, Version: ParseVersion(literal)}
}

// String renders the constraint in canonical comparator+literal form.
func (c Constraint) String() string {
	return c.Op.String() + c.Version.String()
}

// Match reports whether v satisfies the constraint. An unparseable version
// on either side makes the constraint unsatisfied rather than failing the
// whole reconciliation; "===" alone compares raw strings without
// version-aware parsing.
func (c Constraint) Match(v Version) bool {
	if c.Op == OpArbitraryEq {
		return c.Version.raw == v.raw
	}
	if !v.valid || !c.Version.valid {
		return false
	}
	switch c.Op {
	case OpEq:
		return c.Version.equal(v)
	case OpNotEq:
		return !c.Version.equal(v)
	case OpLessThan:
		return Compare(v, c.Version) < 0
	case OpLessThanOrEq:
		return Compare(v, c.Version) <= 0
	case OpGreaterThan:
		return Compare(v, c.Version) > 0
	case OpGreaterThanOrEq:
		return Compare(v, c.Version) >= 0
	case OpCompatible:
		return c.Version.matchCompatible(v)
	case OpCaret:
		return c.Version.matchCaret(v)
	case OpTilde:
		return c.Version.matchTilde(v)
	}
	return false
}

// MatchAll reports whether v satisfies every constraint in the list (AND).
// An empty list is a bare specifier, satisfied by any version.
func MatchAll(constraints []Constraint, v Version) bool {
	for _, c := range constraints {
		if !c.Match(v) {
			return false
		}
	}
	return true
}

// matchCompatible implements the compatible-release operator: not less than
// the given version, and sharing every segment but the last. "~=2.2" is
// equivalent to ">=2.2, ==2.*".
func (v Version) matchCompatible(other Version) bool {
	if Compare(other, v) < 0 {
		return false
	}
	prefix := v.parts
	if len(prefix) >= 2 {
		prefix = prefix[:len(prefix)-1]
	}
	stub := Version{valid: true, parts: make([]part, 0, len(prefix)+1)}
	stub.parts = append(stub.parts, prefix...)
	stub.parts = append(stub.parts, part{kind: partWildcard, text: "*"})
	return stub.equal(other)
}

// matchCaret implements the caret range: not less than the given version and
// less than the next breaking boundary, inferred by bumping the leftmost
// nonzero numeric segment. "^0" alone bumps to "1".
func (v Version) matchCaret(other Version) bool {
	if Compare(other, v) < 0 {
		return false
	}
	ub := v.bumpNumeric(func(n uint64, numericSeen, total int) bool {
		return n != 0 || (numericSeen == 1 && total == 1)
	})
	return Compare(other, ub) < 0
}

// matchTilde implements the loose compatible operator: not less than the
// given version and less than a bump of the second numeric segment (or the
// first, when only one segment is given).
func (v Version) matchTilde(other Version) bool {
	if Compare(other, v) < 0 {
		return false
	}
	ub := v.bumpNumeric(func(n uint64, numericSeen, total int) bool {
		return numericSeen == 2 || (numericSeen == 1 && total == 1)
	})
	return Compare(other, ub) < 0
}

// bumpNumeric scans numeric segments left to right and, at the first one
// accepted by pick, increments it and truncates the remainder, producing an
// exclusive upper bound.
func (v Version) bumpNumeric(pick func(n uint64, numericSeen, total int) bool) Version {
	ub := Version{valid: true, parts: append([]part(nil), v.parts...)}
	numericSeen := 0
	for i, p := range ub.parts {
		if p.kind != partNumber {
			continue
		}
		numericSeen++
		if pick(p.num, numericSeen, len(ub.parts)) {
			ub.parts[i] = part{kind: partNumber, num: p.num + 1, rank: rankRelease}
			ub.parts = ub.parts[:i+1]
			break
		}
	}
	return ub
}
