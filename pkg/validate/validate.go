// Package validate reconciles discovered packages against a bound-requirement
// manifest, classifying every package and every specifier into an explain
// code. Reconciliation is a pure pass over already-materialized inputs; all
// I/O happens before it in the scan and manifest collaborators.
package validate

import (
	"sort"
	"strings"

	"github.com/pyvet/pyvet/pkg/manifest"
	"github.com/pyvet/pyvet/pkg/scan"
	"github.com/pyvet/pyvet/pkg/spec"
)

// Explain classifies one validation record.
type Explain string

const (
	// Matched: the discovered version satisfies an applicable specifier.
	Matched Explain = "Matched"
	// Unrequired: the package is installed but nothing binds it.
	Unrequired Explain = "Unrequired"
	// Misdefined: the package is bound but its version or source fails
	// every applicable specifier.
	Misdefined Explain = "Misdefined"
	// Missing: a specifier is bound but no installation satisfies it.
	Missing Explain = "Missing"
)

// Flags is the reconciliation policy. Superset permits installed packages
// that nothing binds; Subset permits bound packages that are not installed.
type Flags struct {
	Superset bool
	Subset   bool
}

// Record is one reconciliation outcome. Package is nil for Missing records;
// Spec is nil for Unrequired records.
type Record struct {
	Package *scan.Package
	Spec    *spec.DepSpec
	Explain Explain
	Sites   []string
}

// Identifier returns the record's package name, falling back to the bound
// specifier's name for Missing records.
func (r Record) Identifier() string {
	if r.Package != nil {
		return r.Package.Name
	}
	if r.Spec != nil {
		return r.Spec.Name
	}
	return ""
}

// SpecDisplay renders the bound specifier, or "-" when none applies.
func (r Record) SpecDisplay() string {
	if r.Spec == nil {
		return "-"
	}
	return r.Spec.String()
}

// Report is the ordered outcome of one reconciliation pass.
type Report struct {
	Records []Record
}

// Failures counts the records that represent a discrepancy.
func (rp *Report) Failures() int {
	n := 0
	for _, r := range rp.Records {
		if r.Explain != Matched {
			n++
		}
	}
	return n
}

// Invalid returns only the discrepancy records, preserving order.
func (rp *Report) Invalid() []Record {
	var out []Record
	for _, r := range rp.Records {
		if r.Explain != Matched {
			out = append(out, r)
		}
	}
	return out
}

// RecordDigest is the serializable form of a Record.
type RecordDigest struct {
	Package    string   `json:"package"`
	Version    string   `json:"version,omitempty"`
	Dependency string   `json:"dependency"`
	Explain    Explain  `json:"explain"`
	Sites      []string `json:"sites,omitempty"`
}

// Digest returns the report in serializable form, preserving order.
func (rp *Report) Digest() []RecordDigest {
	out := make([]RecordDigest, len(rp.Records))
	for i, r := range rp.Records {
		d := RecordDigest{
			Package:    r.Identifier(),
			Dependency: r.SpecDisplay(),
			Explain:    r.Explain,
			Sites:      r.Sites,
		}
		if r.Package != nil {
			d.Version = r.Package.Version.String()
		}
		out[i] = d
	}
	return out
}

// Reconcile classifies every discovered package and bound specifier.
// A nil environment disables marker filtering, treating every specifier as
// applicable; otherwise specifiers whose marker fails the environment do
// not participate.
func Reconcile(packages []scan.Package, m *manifest.Manifest, env *spec.Environment, flags Flags) *Report {
	report := &Report{}
	observed := make(map[string]bool)

	for i := range packages {
		p := &packages[i]
		observed[p.Key] = true
		specs := applicable(m.Get(p.Key), env)
		if len(specs) == 0 {
			if !flags.Superset {
				report.Records = append(report.Records, Record{
					Package: p,
					Explain: Unrequired,
					Sites:   p.Sites,
				})
			}
			continue
		}
		if ds := firstSatisfied(specs, p); ds != nil {
			report.Records = append(report.Records, Record{
				Package: p,
				Spec:    ds,
				Explain: Matched,
				Sites:   p.Sites,
			})
			continue
		}
		report.Records = append(report.Records, Record{
			Package: p,
			Spec:    mostSpecific(specs),
			Explain: Misdefined,
			Sites:   p.Sites,
		})
	}

	if !flags.Subset {
		for _, key := range m.MissingFrom(observed) {
			for _, ds := range applicable(m.Get(key), env) {
				report.Records = append(report.Records, Record{
					Spec:    ds,
					Explain: Missing,
				})
			}
		}
	}

	sortRecords(report.Records)
	return report
}

// applicable filters specifiers by marker against the environment. A nil
// environment keeps everything.
func applicable(specs []*spec.DepSpec, env *spec.Environment) []*spec.DepSpec {
	if env == nil {
		return specs
	}
	var out []*spec.DepSpec
	for _, ds := range specs {
		if ds.Applicable(env) {
			out = append(out, ds)
		}
	}
	return out
}

// satisfies reports whether a discovered package meets one specifier: the
// version must pass every constraint, and a URL pin must match the
// installer-recorded source.
func satisfies(ds *spec.DepSpec, p *scan.Package) bool {
	if !ds.MatchVersion(p.Version) {
		return false
	}
	if ds.Pinned() {
		return p.DirectURL != nil && p.DirectURL.Validate(ds.URL)
	}
	return true
}

func firstSatisfied(specs []*spec.DepSpec, p *scan.Package) *spec.DepSpec {
	for _, ds := range specs {
		if satisfies(ds, p) {
			return ds
		}
	}
	return nil
}

// mostSpecific picks the specifier referenced by a Misdefined record: the
// one carrying the most constraints, URL pins counting as one, first wins
// on ties.
func mostSpecific(specs []*spec.DepSpec) *spec.DepSpec {
	best := specs[0]
	bestScore := specificity(best)
	for _, ds := range specs[1:] {
		if s := specificity(ds); s > bestScore {
			best, bestScore = ds, s
		}
	}
	return best
}

func specificity(ds *spec.DepSpec) int {
	n := len(ds.Constraints)
	if ds.Pinned() {
		n++
	}
	return n
}

// sortRecords orders by identifier case-insensitively, then by first site,
// for deterministic display.
func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a := strings.ToLower(records[i].Identifier())
		b := strings.ToLower(records[j].Identifier())
		if a != b {
			return a < b
		}
		return firstSite(records[i]) < firstSite(records[j])
	})
}

func firstSite(r Record) string {
	if len(r.Sites) == 0 {
		return ""
	}
	return r.Sites[0]
}
