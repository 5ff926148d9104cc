package scan

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pyvet/pyvet/pkg/cache"
)

// CachedScan returns the cached scan for the exe set, running a fresh
// scan on miss or when refresh is true. Cache keys cover the resolved
// exe set so adding or removing an interpreter invalidates naturally.
func (s *Scanner) CachedScan(ctx context.Context, backend cache.Cache, ttl time.Duration, exes []string, refresh bool) (*Scan, error) {
	resolved := resolveExes(exes)
	keyer := s.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	key := keyer.ScanKey(resolved)

	if !refresh {
		if data, hit, _ := backend.Get(ctx, key); hit {
			var cached Scan
			if err := json.Unmarshal(data, &cached); err == nil {
				if s.Logger != nil {
					s.Logger.Debug("scan cache hit", "exes", len(resolved), "packages", len(cached.Packages))
				}
				return &cached, nil
			}
		}
	}

	result, err := s.Scan(ctx, resolved)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(result); err == nil {
		_ = backend.Set(ctx, key, data, ttl)
	}
	return result, nil
}
