package scan

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pyvet/pyvet/pkg/cache"
)

func TestCachedScanHit(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	exe := "/nonexistent/python3"
	seeded := &Scan{
		ExeSites: map[string][]string{exe: {"/site-packages"}},
		Packages: []Package{mustPackage(t, "numpy", "1.26.0")},
	}
	data, err := json.Marshal(seeded)
	if err != nil {
		t.Fatal(err)
	}
	key := cache.NewDefaultKeyer().ScanKey([]string{exe})
	if err := backend.Set(ctx, key, data, time.Hour); err != nil {
		t.Fatal(err)
	}

	// The exe does not exist, so a hit proves the cache was used.
	s := NewScanner(nil)
	got, err := s.CachedScan(ctx, backend, time.Hour, []string{exe}, false)
	if err != nil {
		t.Fatalf("CachedScan error: %v", err)
	}
	if len(got.Packages) != 1 || got.Packages[0].Key != "numpy" {
		t.Errorf("cached packages = %+v", got.Packages)
	}
	if got.Packages[0].Version.String() != "1.26.0" {
		t.Errorf("cached version = %s, want 1.26.0", got.Packages[0].Version)
	}
	if sites := got.ExeSites[exe]; len(sites) != 1 || sites[0] != "/site-packages" {
		t.Errorf("cached exe sites = %v", got.ExeSites)
	}
}

func TestCachedScanScopedKeyer(t *testing.T) {
	ctx := context.Background()
	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	exe := "/nonexistent/python3"
	seeded := &Scan{
		ExeSites: map[string][]string{exe: {"/site-packages"}},
		Packages: []Package{mustPackage(t, "zipp", "3.8.0")},
	}
	data, err := json.Marshal(seeded)
	if err != nil {
		t.Fatal(err)
	}
	keyer := cache.NewScopedKeyer(nil, "shared")
	if err := backend.Set(ctx, keyer.ScanKey([]string{exe}), data, time.Hour); err != nil {
		t.Fatal(err)
	}

	s := NewScanner(nil)
	s.Keyer = keyer
	got, err := s.CachedScan(ctx, backend, time.Hour, []string{exe}, false)
	if err != nil {
		t.Fatalf("CachedScan error: %v", err)
	}
	if len(got.Packages) != 1 || got.Packages[0].Key != "zipp" {
		t.Errorf("cached packages = %+v, want the entry under the scoped key", got.Packages)
	}
}
