// Package scan discovers installed Python packages: it asks interpreters
// for their site-package directories, reads dist-info and egg-info entries,
// and carries the results through searching, derivation, validation, and
// removal.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
	"github.com/pyvet/pyvet/pkg/spec"
)

// Package is one discovered installation: an identity (name and version)
// plus every site directory it was found in.
type Package struct {
	Name      string       `json:"name"`
	Key       string       `json:"key"`
	Version   spec.Version `json:"version"`
	DirectURL *DirectURL   `json:"direct_url,omitempty"`
	Sites     []string     `json:"sites"`
}

// PackageFromDistInfo parses a dist-info or egg-info directory name such as
// "static_frame-2.13.0.dist-info" into a Package identity.
func PackageFromDistInfo(dirName string, durl *DirectURL) (Package, error) {
	stem := dirName
	for _, suffix := range []string{".dist-info", ".egg-info"} {
		if strings.HasSuffix(stem, suffix) {
			stem = strings.TrimSuffix(stem, suffix)
			break
		}
	}
	sep := strings.LastIndex(stem, "-")
	if sep <= 0 || sep == len(stem)-1 {
		return Package{}, errors.New(errors.ErrCodeInvalidPackage,
			"cannot parse package directory name %q", dirName)
	}
	name := stem[:sep]
	version := stem[sep+1:]
	return Package{
		Name:      name,
		Key:       spec.NormalizeName(name),
		Version:   spec.ParseVersion(version),
		DirectURL: durl,
	}, nil
}

// packageFromPath reads one site-packages entry, loading direct_url.json
// when the installer left one. Entries that are not package metadata
// directories return false.
func packageFromPath(path string) (Package, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".dist-info") && !strings.HasSuffix(base, ".egg-info") {
		return Package{}, false
	}
	var durl *DirectURL
	if d, err := DirectURLFromFile(filepath.Join(path, "direct_url.json")); err == nil {
		durl = d
	}
	p, err := PackageFromDistInfo(base, durl)
	if err != nil {
		return Package{}, false
	}
	return p, true
}

// ID returns the display identity, "name-version".
func (p Package) ID() string {
	return p.Name + "-" + p.Version.String()
}

// distInfoDir returns the metadata directory for this package within a
// site, trying the name forms installers produce.
func (p Package) distInfoDir(site string) (string, bool) {
	names := []string{
		p.Name + "-" + p.Version.String(),
		strings.ReplaceAll(p.Name, "-", "_") + "-" + p.Version.String(),
	}
	for _, stem := range names {
		for _, suffix := range []string{".dist-info", ".egg-info"} {
			dir := filepath.Join(site, stem+suffix)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				return dir, true
			}
		}
	}
	return "", false
}

// sortPackages orders packages by key, then version, then name.
func sortPackages(packages []Package) {
	sort.Slice(packages, func(i, j int) bool {
		a, b := packages[i], packages[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if c := spec.Compare(a.Version, b.Version); c != 0 {
			return c < 0
		}
		return a.Name < b.Name
	})
}
