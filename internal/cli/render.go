package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pyvet/pyvet/pkg/manifest"
	"github.com/pyvet/pyvet/pkg/osv"
	"github.com/pyvet/pyvet/pkg/scan"
	"github.com/pyvet/pyvet/pkg/validate"
)

// Table is a report prepared for rendering: either styled in the
// terminal or written to a delimited file.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Display renders the table to stdout with borders and muted headers.
func (t *Table) Display() {
	if len(t.Rows) == 0 {
		printInfo("No records")
		return
	}
	rendered := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})
	fmt.Println(rendered.Render())
}

// Write stores the table as a delimited file. Fields containing the
// delimiter are quoted.
func (t *Table) Write(path string, delimiter rune) error {
	var b strings.Builder
	writeRow := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteRune(delimiter)
			}
			if strings.ContainsRune(f, delimiter) {
				f = strconv.Quote(f)
			}
			b.WriteString(f)
		}
		b.WriteByte('\n')
	}
	writeRow(t.Headers)
	for _, row := range t.Rows {
		writeRow(row)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// delimiterRune validates a --delimiter flag value.
func delimiterRune(s string) (rune, error) {
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r[0], nil
}

// scanTable lists every package with the sites it was found in,
// one row per package and site.
func scanTable(packages []scan.Package) *Table {
	t := &Table{Headers: []string{"Package", "Site"}}
	for _, p := range packages {
		for _, site := range p.Sites {
			t.Rows = append(t.Rows, []string{p.ID(), site})
		}
	}
	return t
}

// countTable summarizes a scan: executables interrogated, distinct site
// directories, and package installations found.
func countTable(sc *scan.Scan) *Table {
	sites := make(map[string]bool)
	for _, dirs := range sc.ExeSites {
		for _, d := range dirs {
			sites[d] = true
		}
	}
	return &Table{
		Headers: []string{"", "Count"},
		Rows: [][]string{
			{"Executables", strconv.Itoa(len(sc.ExeSites))},
			{"Sites", strconv.Itoa(len(sites))},
			{"Packages", strconv.Itoa(len(sc.Packages))},
		},
	}
}

// deriveTable lists one derived requirement per row.
func deriveTable(m *manifest.Manifest) *Table {
	t := &Table{Headers: []string{"Requirement"}}
	for _, ds := range m.Specs() {
		t.Rows = append(t.Rows, []string{ds.String()})
	}
	return t
}

// writeRequirements stores derived requirements as a requirements file,
// one specifier per line.
func writeRequirements(m *manifest.Manifest, path string) error {
	var b strings.Builder
	for _, ds := range m.Specs() {
		b.WriteString(ds.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// validateTable lists each reconciliation record with its bound
// specifier and explain code.
func validateTable(report *validate.Report) *Table {
	t := &Table{Headers: []string{"Package", "Dependency", "Explain", "Sites"}}
	for _, r := range report.Records {
		pkg := r.Identifier()
		if r.Package != nil {
			pkg = r.Package.ID()
		}
		t.Rows = append(t.Rows, []string{
			pkg,
			r.SpecDisplay(),
			string(r.Explain),
			strings.Join(r.Sites, ","),
		})
	}
	return t
}

// auditTable lists each vulnerability with its severity and reference URL.
func auditTable(report *osv.Report) *Table {
	t := &Table{Headers: []string{"Package", "Vulnerability", "Severity", "Summary", "URL"}}
	for _, r := range report.Records {
		t.Rows = append(t.Rows, []string{
			r.Package.ID(),
			r.Vuln.ID,
			r.Vuln.SeverityScore(),
			r.Vuln.Summary,
			r.Vuln.URL(),
		})
	}
	return t
}

// unpackTable lists recorded artifacts per package and site: counts when
// countOnly is set, one row per file otherwise.
func unpackTable(artifacts []scan.Artifacts, countOnly bool) *Table {
	if countOnly {
		t := &Table{Headers: []string{"Package", "Site", "Files"}}
		for _, a := range artifacts {
			t.Rows = append(t.Rows, []string{a.Package.ID(), a.Site, strconv.Itoa(a.Count())})
		}
		return t
	}
	t := &Table{Headers: []string{"Package", "File"}}
	for _, a := range artifacts {
		for _, f := range a.Files {
			t.Rows = append(t.Rows, []string{a.Package.ID(), f})
		}
	}
	return t
}
