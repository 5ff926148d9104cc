package spec

import "testing"

func TestCompareOrdering(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "equal", a: "1.2.3", b: "1.2.3", want: 0},
		{name: "patch less", a: "1.2.2", b: "1.2.3", want: -1},
		{name: "minor greater", a: "1.3.0", b: "1.2.9", want: 1},
		{name: "zero padding", a: "1.2", b: "1.2.0", want: 0},
		{name: "zero padding deep", a: "2", b: "2.0.0.0", want: 0},
		{name: "numeric not lexical", a: "1.10.0", b: "1.9.0", want: 1},
		{name: "dev below release", a: "1.0.0.dev1", b: "1.0.0", want: -1},
		{name: "alpha below beta", a: "1.0.0a2", b: "1.0.0b1", want: -1},
		{name: "beta below rc", a: "1.0.0b9", b: "1.0.0rc1", want: -1},
		{name: "rc below release", a: "1.0.0rc2", b: "1.0.0", want: -1},
		{name: "post above release", a: "1.0.0.post1", b: "1.0.0", want: 1},
		{name: "dev below alpha", a: "1.0.0.dev9", b: "1.0.0a1", want: -1},
		{name: "stage numbers compare", a: "1.0.0rc1", b: "1.0.0rc2", want: -1},
		{name: "post numbers compare", a: "1.0.post2", b: "1.0.post10", want: -1},
		{name: "release above prior post", a: "1.1", b: "1.0.post5", want: 1},
		{name: "text below numbers", a: "1.0.zeta", b: "1.0.0", want: -1},
		{name: "glued stage number", a: "1.0.3rc2", b: "1.0.3rc10", want: -1},
		{name: "wildcard equals anything", a: "1.2.*", b: "1.2.99", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(ParseVersion(tt.a), ParseVersion(tt.b))
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if rev := Compare(ParseVersion(tt.b), ParseVersion(tt.a)); rev != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, rev, -tt.want)
			}
		})
	}
}

func TestParseVersionValidity(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{name: "simple", raw: "1.2.3", valid: true},
		{name: "prerelease", raw: "2.0.0rc1", valid: true},
		{name: "local segment chars", raw: "1.0+local.1", valid: true},
		{name: "epoch marker", raw: "1!2.0", valid: true},
		{name: "empty", raw: "", valid: false},
		{name: "whitespace", raw: "1 .2", valid: false},
		{name: "illegal chars", raw: "1.2.3@beta", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVersion(tt.raw)
			if v.IsValid() != tt.valid {
				t.Errorf("ParseVersion(%q).IsValid() = %v, want %v", tt.raw, v.IsValid(), tt.valid)
			}
			if v.String() != tt.raw {
				t.Errorf("String() = %q, want %q", v.String(), tt.raw)
			}
		})
	}
}

func TestConstraintMatch(t *testing.T) {
	tests := []struct {
		name    string
		op      Operator
		literal string
		version string
		want    bool
	}{
		{name: "eq exact", op: OpEq, literal: "1.2.3", version: "1.2.3", want: true},
		{name: "eq padded", op: OpEq, literal: "1.2", version: "1.2.0", want: true},
		{name: "eq mismatch", op: OpEq, literal: "1.2.3", version: "1.2.4", want: false},
		{name: "eq prefix wildcard", op: OpEq, literal: "1.2.*", version: "1.2.99", want: true},
		{name: "eq prefix wildcard miss", op: OpEq, literal: "1.2.*", version: "1.3.0", want: false},
		{name: "neq", op: OpNotEq, literal: "1.2.3", version: "1.2.4", want: true},
		{name: "neq wildcard", op: OpNotEq, literal: "1.2.*", version: "1.2.5", want: false},
		{name: "le boundary", op: OpLessThanOrEq, literal: "2.0", version: "2.0.0", want: true},
		{name: "lt boundary", op: OpLessThan, literal: "2.0", version: "2.0.0", want: false},
		{name: "ge prerelease", op: OpGreaterThanOrEq, literal: "1.0", version: "1.0rc1", want: false},
		{name: "gt post", op: OpGreaterThan, literal: "1.0", version: "1.0.post1", want: true},

		{name: "arbitrary eq same text", op: OpArbitraryEq, literal: "1.0+abc", version: "1.0+abc", want: true},
		{name: "arbitrary eq differs", op: OpArbitraryEq, literal: "1.0", version: "1.0.0", want: false},

		{name: "compatible within", op: OpCompatible, literal: "1.4.2", version: "1.4.9", want: true},
		{name: "compatible floor", op: OpCompatible, literal: "1.4.2", version: "1.4.1", want: false},
		{name: "compatible next minor", op: OpCompatible, literal: "1.4.2", version: "1.5.0", want: false},
		{name: "compatible two segment", op: OpCompatible, literal: "2.2", version: "2.9", want: true},
		{name: "compatible two segment bound", op: OpCompatible, literal: "2.2", version: "3.0", want: false},

		{name: "caret minor drift", op: OpCaret, literal: "1.2.3", version: "1.9.0", want: true},
		{name: "caret major bound", op: OpCaret, literal: "1.2.3", version: "2.0.0", want: false},
		{name: "caret floor", op: OpCaret, literal: "1.2.3", version: "1.2.2", want: false},
		{name: "caret zero major", op: OpCaret, literal: "0.2.3", version: "0.2.9", want: true},
		{name: "caret zero major bound", op: OpCaret, literal: "0.2.3", version: "0.3.0", want: false},
		{name: "caret zero zero", op: OpCaret, literal: "0.0.3", version: "0.0.3", want: true},
		{name: "caret zero zero bound", op: OpCaret, literal: "0.0.3", version: "0.0.4", want: false},
		{name: "caret single segment", op: OpCaret, literal: "1", version: "1.9.9", want: true},
		{name: "caret single segment bound", op: OpCaret, literal: "1", version: "2.0.0", want: false},

		{name: "tilde patch drift", op: OpTilde, literal: "1.2.3", version: "1.2.9", want: true},
		{name: "tilde minor bound", op: OpTilde, literal: "1.2.3", version: "1.3.0", want: false},
		{name: "tilde floor", op: OpTilde, literal: "1.2.3", version: "1.2.2", want: false},
		{name: "tilde two segment", op: OpTilde, literal: "1.2", version: "1.2.9", want: true},
		{name: "tilde two segment bound", op: OpTilde, literal: "1.2", version: "1.3.0", want: false},
		{name: "tilde single segment", op: OpTilde, literal: "1", version: "1.9", want: true},
		{name: "tilde single segment bound", op: OpTilde, literal: "1", version: "2.0", want: false},

		{name: "invalid version fails", op: OpGreaterThanOrEq, literal: "1.0", version: "not a version", want: false},
		{name: "invalid version arbitrary eq", op: OpArbitraryEq, literal: "not a version", version: "not a version", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConstraint(tt.op, tt.literal)
			got := c.Match(ParseVersion(tt.version))
			if got != tt.want {
				t.Errorf("%s%s matched %q = %v, want %v", c.Op, tt.literal, tt.version, got, tt.want)
			}
		})
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		token   string
		want    Operator
		wantErr bool
	}{
		{token: "==", want: OpEq},
		{token: "===", want: OpArbitraryEq},
		{token: "!=", want: OpNotEq},
		{token: "<=", want: OpLessThanOrEq},
		{token: ">=", want: OpGreaterThanOrEq},
		{token: "<", want: OpLessThan},
		{token: ">", want: OpGreaterThan},
		{token: "~=", want: OpCompatible},
		{token: "~", want: OpTilde},
		{token: "^", want: OpCaret},
		{token: "=", wantErr: true},
		{token: "!==", wantErr: true},
		{token: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseOperator(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseOperator(%q) expected error, got %v", tt.token, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOperator(%q) error: %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("ParseOperator(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestMatchAll(t *testing.T) {
	constraints := []Constraint{
		NewConstraint(OpGreaterThanOrEq, "1.2"),
		NewConstraint(OpLessThan, "2.0"),
		NewConstraint(OpNotEq, "1.5.0"),
	}
	tests := []struct {
		version string
		want    bool
	}{
		{version: "1.2.0", want: true},
		{version: "1.9.9", want: true},
		{version: "1.5.0", want: false},
		{version: "2.0.0", want: false},
		{version: "1.1.9", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got := MatchAll(constraints, ParseVersion(tt.version))
			if got != tt.want {
				t.Errorf("MatchAll(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}
