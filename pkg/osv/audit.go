package osv

import (
	"context"
	"sort"
	"strings"

	"github.com/pyvet/pyvet/pkg/scan"
)

// Record pairs an installed package with one vulnerability affecting it.
type Record struct {
	Package scan.Package `json:"package"`
	Vuln    Vuln         `json:"vuln"`
}

// Report lists every vulnerability found across the audited packages,
// sorted by package then vulnerability ID.
type Report struct {
	Records []Record `json:"records"`
}

// Len returns the number of vulnerability records.
func (r *Report) Len() int { return len(r.Records) }

// Audit queries vulnerabilities for pkgs and resolves detail records for
// each hit. Detail fetch failures fall back to a bare ID record so the
// report still names the vulnerability.
func (c *Client) Audit(ctx context.Context, pkgs []scan.Package) *Report {
	perPackage := c.VulnIDs(ctx, pkgs)

	var records []Record
	for i, ids := range perPackage {
		for _, id := range ids {
			v, err := c.Fetch(ctx, id)
			if err != nil {
				if c.Logger != nil {
					c.Logger.Warn("vulnerability detail fetch failed", "id", id, "error", err)
				}
				v = &Vuln{ID: id}
			}
			records = append(records, Record{Package: pkgs[i], Vuln: *v})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Package.Key != b.Package.Key {
			return a.Package.Key < b.Package.Key
		}
		if cmp := strings.Compare(a.Package.Version.String(), b.Package.Version.String()); cmp != 0 {
			return cmp < 0
		}
		return a.Vuln.ID < b.Vuln.ID
	})
	return &Report{Records: records}
}
