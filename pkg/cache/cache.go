// Package cache provides pluggable storage for expensive lookups.
//
// Scans of large site-packages trees and registry queries (PyPI metadata,
// vulnerability batches) dominate runtime, so their results are cached
// keyed by what produced them. Three backends are provided: FileCache for
// CLI usage, RedisCache for the server, and NullCache to disable caching.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by helpers that require a cached value to exist.
// The Cache interface itself reports misses via its bool return.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented key-value store with per-entry expiration.
// A miss is reported as (nil, false, nil); errors are reserved for
// backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer derives cache keys from the inputs that determine a cached value.
type Keyer interface {
	// HTTPKey generates a key for a cached HTTP response.
	HTTPKey(namespace, url string) string

	// ScanKey generates a key for a cached environment scan. The key is
	// derived from the set of interpreter executables, so the same
	// interpreters in any order map to the same entry.
	ScanKey(exes []string) string

	// VulnKey generates a key for cached vulnerability query results
	// for a single package version.
	VulnKey(name, version string) string
}

// DefaultKeyer is the standard Keyer implementation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for a cached HTTP response.
func (k *DefaultKeyer) HTTPKey(namespace, url string) string {
	return hashKey("http:"+namespace, url)
}

// ScanKey generates a key for a cached environment scan.
func (k *DefaultKeyer) ScanKey(exes []string) string {
	sorted := make([]string, len(exes))
	copy(sorted, exes)
	sortStrings(sorted)
	return hashKey("scan", sorted)
}

// VulnKey generates a key for cached vulnerability results.
func (k *DefaultKeyer) VulnKey(name, version string) string {
	return hashKey("vuln", name, version)
}
