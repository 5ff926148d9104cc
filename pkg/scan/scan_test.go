package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pyvet/pyvet/pkg/spec"
)

func TestPackageFromDistInfo(t *testing.T) {
	tests := []struct {
		name        string
		dir         string
		wantName    string
		wantKey     string
		wantVersion string
		wantErr     bool
	}{
		{name: "dist info", dir: "numpy-1.19.1.dist-info", wantName: "numpy", wantKey: "numpy", wantVersion: "1.19.1"},
		{name: "egg info", dir: "foo-3.0.egg-info", wantName: "foo", wantKey: "foo", wantVersion: "3.0"},
		{name: "underscore name", dir: "static_frame-2.13.0.dist-info", wantName: "static_frame", wantKey: "static-frame", wantVersion: "2.13.0"},
		{name: "prerelease version", dir: "packaging-24.2.dev0.dist-info", wantName: "packaging", wantKey: "packaging", wantVersion: "24.2.dev0"},
		{name: "no separator", dir: "numpy.dist-info", wantErr: true},
		{name: "trailing separator", dir: "numpy-.dist-info", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PackageFromDistInfo(tt.dir, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("PackageFromDistInfo(%q) expected error", tt.dir)
				}
				return
			}
			if err != nil {
				t.Fatalf("PackageFromDistInfo(%q) error: %v", tt.dir, err)
			}
			if p.Name != tt.wantName || p.Key != tt.wantKey || p.Version.String() != tt.wantVersion {
				t.Errorf("got %s/%s/%s, want %s/%s/%s",
					p.Name, p.Key, p.Version, tt.wantName, tt.wantKey, tt.wantVersion)
			}
		})
	}
}

func mustPackage(t *testing.T, name, version string) Package {
	t.Helper()
	return Package{
		Name:    name,
		Key:     spec.NormalizeName(name),
		Version: spec.ParseVersion(version),
	}
}

func TestSearch(t *testing.T) {
	sc := &Scan{Packages: []Package{
		mustPackage(t, "flask", "1.1.3"),
		mustPackage(t, "numpy", "1.19.3"),
		mustPackage(t, "static-frame", "2.13.0"),
	}}

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{name: "suffix glob", pattern: "*.3", want: []string{"flask-1.1.3", "numpy-1.19.3"}},
		{name: "substring glob", pattern: "*frame*", want: []string{"static-frame-2.13.0"}},
		{name: "star matches all", pattern: "*", want: []string{"flask-1.1.3", "numpy-1.19.3", "static-frame-2.13.0"}},
		{name: "no match", pattern: "pandas*", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sc.Search(tt.pattern, true)
			if err != nil {
				t.Fatalf("Search error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) = %d packages, want %d", tt.pattern, len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID() != id {
					t.Errorf("Search(%q)[%d] = %q, want %q", tt.pattern, i, got[i].ID(), id)
				}
			}
		})
	}
}

func TestSearchCaseSensitivity(t *testing.T) {
	sc := &Scan{Packages: []Package{mustPackage(t, "Flask", "1.1.3")}}
	got, err := sc.Search("flask*", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Error("case-sensitive search should not match Flask")
	}
	got, err = sc.Search("flask*", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Error("case-insensitive search should match Flask")
	}
}

func TestMergePackages(t *testing.T) {
	a := mustPackage(t, "numpy", "1.19.3")
	a.Sites = []string{"/site/b"}
	b := mustPackage(t, "numpy", "1.19.3")
	b.Sites = []string{"/site/a"}
	c := mustPackage(t, "numpy", "1.24.0")
	c.Sites = []string{"/site/a"}

	merged := mergePackages([]Package{a, b, c})
	if len(merged) != 2 {
		t.Fatalf("merged = %d packages, want 2", len(merged))
	}
	if got := merged[0].Sites; len(got) != 2 || got[0] != "/site/a" || got[1] != "/site/b" {
		t.Errorf("merged sites = %v", got)
	}
	if spec.Compare(merged[0].Version, merged[1].Version) >= 0 {
		t.Error("merged packages not sorted by version")
	}
}

func TestMergePackagesSharedSite(t *testing.T) {
	a := mustPackage(t, "zipp", "3.8.0")
	a.Sites = []string{"/shared/site"}
	b := mustPackage(t, "zipp", "3.8.0")
	b.Sites = []string{"/shared/site"}
	c := mustPackage(t, "zipp", "3.8.0")
	c.Sites = []string{"/other/site"}

	merged := mergePackages([]Package{a, b, c})
	if len(merged) != 1 {
		t.Fatalf("merged = %d packages, want 1", len(merged))
	}
	if got := merged[0].Sites; len(got) != 2 || got[0] != "/other/site" || got[1] != "/shared/site" {
		t.Errorf("merged sites = %v, want deduplicated [/other/site /shared/site]", got)
	}
}

func makeSitePackage(t *testing.T, site, stem string, record []string) {
	t.Helper()
	dir := filepath.Join(site, stem+".dist-info")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := ""
	for _, line := range record {
		content += line + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "RECORD"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "METADATA"), []byte("Name: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSitePackagesAndUnpack(t *testing.T) {
	site := t.TempDir()
	makeSitePackage(t, site, "numpy-1.19.1", []string{
		"numpy/__init__.py,sha256=abc,100",
		"numpy/core.py,sha256=def,200",
	})
	if err := os.MkdirAll(filepath.Join(site, "numpy"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"numpy/__init__.py", "numpy/core.py"} {
		if err := os.WriteFile(filepath.Join(site, f), []byte("# mod\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	packages := sitePackages(site)
	if len(packages) != 1 {
		t.Fatalf("sitePackages = %d, want 1", len(packages))
	}
	if packages[0].ID() != "numpy-1.19.1" {
		t.Errorf("ID = %q", packages[0].ID())
	}

	sc := &Scan{Packages: packages}
	artifacts := sc.Unpack(packages)
	if len(artifacts) != 1 {
		t.Fatalf("Unpack = %d entries, want 1", len(artifacts))
	}
	art := artifacts[0]
	if art.Count() < 4 {
		t.Errorf("Count = %d, want at least 4 (modules plus metadata)", art.Count())
	}
	found := false
	for _, f := range art.Files {
		if f == filepath.Join(site, "numpy", "core.py") {
			found = true
		}
	}
	if !found {
		t.Error("RECORD file paths not resolved against site")
	}
}

func TestPurge(t *testing.T) {
	site := t.TempDir()
	makeSitePackage(t, site, "foo-3.0", []string{"foo.py,sha256=abc,10"})
	fooPath := filepath.Join(site, "foo.py")
	if err := os.WriteFile(fooPath, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	packages := sitePackages(site)
	sc := &Scan{Packages: packages}
	removed := sc.Purge(packages, nil)
	if removed == 0 {
		t.Fatal("Purge removed nothing")
	}
	if _, err := os.Stat(fooPath); !os.IsNotExist(err) {
		t.Error("module file survived purge")
	}
	if _, err := os.Stat(filepath.Join(site, "foo-3.0.dist-info")); !os.IsNotExist(err) {
		t.Error("dist-info directory survived purge")
	}
}

func TestEnvFromLines(t *testing.T) {
	env, err := envFromLines([]string{
		"posix", "linux", "x86_64", "CPython", "6.1.0", "Linux",
		"#1 SMP", "3.11", "3.11.4", "cpython", "3.11.4",
	})
	if err != nil {
		t.Fatalf("envFromLines error: %v", err)
	}
	if env.SysPlatform != "linux" || env.PythonVersion != "3.11" || env.PythonFullVersion != "3.11.4" {
		t.Errorf("env = %+v", env)
	}

	if _, err := envFromLines([]string{"posix"}); err == nil {
		t.Error("expected error for short output")
	}
}

func TestScanKeys(t *testing.T) {
	sc := &Scan{Packages: []Package{
		mustPackage(t, "Flask_Login", "0.6.3"),
		mustPackage(t, "numpy", "1.19.3"),
	}}
	keys := sc.Keys()
	if !keys["flask-login"] || !keys["numpy"] {
		t.Errorf("Keys() = %v", keys)
	}
}
