package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pyvet/pyvet/pkg/errors"
)

// Artifacts is the installed footprint of one package in one site: the
// files its RECORD manifest lists, resolved to absolute paths.
type Artifacts struct {
	Package Package
	Site    string
	Files   []string
}

// Count returns the number of artifact files.
func (a Artifacts) Count() int { return len(a.Files) }

// Unpack resolves the installed files of every given package by reading
// each site's RECORD manifest. Packages without a readable RECORD
// contribute their metadata directory alone, so purging them still removes
// what is known.
func (sc *Scan) Unpack(packages []Package) []Artifacts {
	var out []Artifacts
	for _, p := range packages {
		for _, site := range p.Sites {
			dir, ok := p.distInfoDir(site)
			if !ok {
				continue
			}
			files, err := readRecord(filepath.Join(dir, "RECORD"), site)
			if err != nil {
				files = nil
			}
			files = append(files, recordedDirFiles(dir)...)
			sort.Strings(files)
			out = append(out, Artifacts{Package: p, Site: site, Files: dedupe(files)})
		}
	}
	return out
}

// readRecord parses a RECORD manifest: CSV lines of path,hash,size. Paths
// are relative to the site directory.
func readRecord(path, site string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "cannot open %s", path)
	}
	defer f.Close()

	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rel := line
		if i := strings.Index(line, ","); i >= 0 {
			rel = line[:i]
		}
		if rel == "" {
			continue
		}
		abs := rel
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(site, rel)
		}
		files = append(files, filepath.Clean(abs))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading %s", path)
	}
	return files, nil
}

// recordedDirFiles lists the metadata directory's own files, which some
// RECORD manifests omit.
func recordedDirFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Purge removes every artifact of the given packages, then their metadata
// directories and any directories the removals left empty. Returns the
// number of files removed; individual failures are logged and skipped.
func (sc *Scan) Purge(packages []Package, logger *log.Logger) int {
	if logger == nil {
		logger = log.Default()
	}
	removed := 0
	for _, art := range sc.Unpack(packages) {
		for _, file := range art.Files {
			if err := os.Remove(file); err != nil {
				if !os.IsNotExist(err) {
					logger.Warn("cannot remove", "file", file, "err", err)
				}
				continue
			}
			removed++
		}
		if dir, ok := art.Package.distInfoDir(art.Site); ok {
			if err := os.RemoveAll(dir); err != nil {
				logger.Warn("cannot remove", "dir", dir, "err", err)
			}
		}
		logger.Info("purged", "package", art.Package.ID(), "site", art.Site)
	}
	return removed
}
