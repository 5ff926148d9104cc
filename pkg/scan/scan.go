package scan

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pyvet/pyvet/pkg/cache"
	"github.com/pyvet/pyvet/pkg/errors"
)

// pySitePackages asks an interpreter for its site directories. Run with -S
// so importing site has no startup side effects. The first output line
// reports whether the user site is enabled; the last is the user site path.
const pySitePackages = `import site;print(site.ENABLE_USER_SITE);print("\n".join(site.getsitepackages()));print(site.getusersitepackages())`

// Scanner discovers installed packages per interpreter. The zero value is
// usable; NewScanner fills in defaults.
type Scanner struct {
	Logger *log.Logger
	// Workers bounds concurrent interpreter interrogations.
	Workers int
	// ForceUserSite keeps the user site directory even when the
	// interpreter reports it disabled.
	ForceUserSite bool
	// Keyer derives cache keys for CachedScan. Nil falls back to the
	// default keyer.
	Keyer cache.Keyer
}

// NewScanner creates a scanner with a worker per CPU.
func NewScanner(logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{Logger: logger, Workers: runtime.NumCPU()}
}

// Scan is the result of discovery: every interrogated interpreter with its
// site directories, and every package found, aggregated across sites.
type Scan struct {
	ExeSites map[string][]string `json:"exe_sites"`
	Packages []Package           `json:"packages"`
}

// Scan interrogates each interpreter concurrently and aggregates package
// identities across their site directories. Interpreters that cannot be
// executed are logged and skipped rather than failing the scan.
func (s *Scanner) Scan(ctx context.Context, exes []string) (*Scan, error) {
	exes = resolveExes(exes)
	if len(exes) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no Python interpreter found")
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	result := &Scan{ExeSites: make(map[string][]string)}

	for _, exe := range exes {
		wg.Add(1)
		go func(exe string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sites, err := s.siteDirs(ctx, exe)
			if err != nil {
				s.Logger.Warn("skipping interpreter", "exe", exe, "err", err)
				return
			}
			var found []Package
			for _, site := range sites {
				found = append(found, sitePackages(site)...)
			}
			mu.Lock()
			result.ExeSites[exe] = sites
			result.Packages = append(result.Packages, found...)
			mu.Unlock()
		}(exe)
	}
	wg.Wait()

	result.Packages = mergePackages(result.Packages)
	s.Logger.Debug("scan complete",
		"exes", len(result.ExeSites), "packages", len(result.Packages))
	return result, nil
}

// siteDirs runs the interpreter to list its site-package directories.
func (s *Scanner) siteDirs(ctx context.Context, exe string) ([]string, error) {
	out, err := exec.CommandContext(ctx, exe, "-S", "-c", pySitePackages).Output()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "cannot interrogate %s", exe)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return nil, errors.New(errors.ErrCodeInternal, "unexpected site output from %s", exe)
	}
	userSiteEnabled := strings.TrimSpace(lines[0]) == "True"
	sites := make([]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if t := strings.TrimSpace(line); t != "" {
			sites = append(sites, t)
		}
	}
	// the user site is printed last; drop it unless enabled or forced
	if !userSiteEnabled && !s.ForceUserSite && len(sites) > 1 {
		sites = sites[:len(sites)-1]
	}
	return sites, nil
}

// sitePackages reads one site directory's metadata entries.
func sitePackages(site string) []Package {
	entries, err := os.ReadDir(site)
	if err != nil {
		return nil
	}
	var out []Package
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, ok := packageFromPath(filepath.Join(site, entry.Name()))
		if !ok {
			continue
		}
		p.Sites = []string{site}
		out = append(out, p)
	}
	return out
}

// mergePackages folds duplicate identities found in several sites into one
// Package carrying every distinct site, sorted. Interpreters sharing a site
// directory report the same installation, so site paths are deduplicated.
func mergePackages(packages []Package) []Package {
	byID := make(map[string]*Package)
	seenSites := make(map[string]map[string]bool)
	var order []string
	for _, p := range packages {
		id := p.ID()
		if existing, ok := byID[id]; ok {
			for _, site := range p.Sites {
				if !seenSites[id][site] {
					seenSites[id][site] = true
					existing.Sites = append(existing.Sites, site)
				}
			}
			continue
		}
		cp := p
		cp.Sites = append([]string(nil), p.Sites...)
		byID[id] = &cp
		seen := make(map[string]bool, len(cp.Sites))
		for _, site := range cp.Sites {
			seen[site] = true
		}
		seenSites[id] = seen
		order = append(order, id)
	}
	out := make([]Package, 0, len(order))
	for _, id := range order {
		p := byID[id]
		sort.Strings(p.Sites)
		out = append(out, *p)
	}
	sortPackages(out)
	return out
}

// resolveExes expands the interpreter list: empty falls back to python3 on
// PATH, and entries are left as given otherwise.
func resolveExes(exes []string) []string {
	if len(exes) == 0 {
		for _, name := range []string{"python3", "python"} {
			if path, err := exec.LookPath(name); err == nil {
				return []string{path}
			}
		}
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, exe := range exes {
		if !seen[exe] {
			seen[exe] = true
			out = append(out, exe)
		}
	}
	return out
}

// Search returns the packages whose display identity matches a glob
// pattern. An empty pattern or "*" matches everything.
func (sc *Scan) Search(pattern string, caseInsensitive bool) ([]Package, error) {
	if pattern == "" || pattern == "*" {
		return append([]Package(nil), sc.Packages...), nil
	}
	var out []Package
	for _, p := range sc.Packages {
		ok, err := matchPattern(pattern, p.ID(), caseInsensitive)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Keys returns the normalized key of every discovered package.
func (sc *Scan) Keys() map[string]bool {
	out := make(map[string]bool, len(sc.Packages))
	for _, p := range sc.Packages {
		out[p.Key] = true
	}
	return out
}
