// Package osv queries the OSV vulnerability database for installed
// Python packages. Queries are batched against the querybatch endpoint
// and per-vulnerability details are fetched individually, both with
// caching and retry through pkg/httputil.
//
// See https://google.github.io/osv.dev/post-v1-querybatch/ for the API.
package osv

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pyvet/pyvet/pkg/cache"
	"github.com/pyvet/pyvet/pkg/httputil"
	"github.com/pyvet/pyvet/pkg/scan"
)

const (
	defaultBaseURL = "https://api.osv.dev"
	ecosystemPyPI  = "PyPI"

	// The querybatch endpoint accepts large batches, but small concurrent
	// chunks keep individual requests fast and limit the blast radius of
	// a failed call.
	batchSize = 4
)

// Client queries the OSV API.
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	// Logger receives warnings for degraded batches. If nil, logging
	// is disabled.
	Logger *log.Logger

	http    *httputil.Client
	keyer   cache.Keyer
	cache   cache.Cache
	ttl     time.Duration
	baseURL string
}

// NewClient creates an OSV client caching responses in backend.
func NewClient(backend cache.Cache, ttl time.Duration) *Client {
	return &Client{
		http:    httputil.NewClient(backend, "osv", ttl, nil),
		keyer:   cache.NewDefaultKeyer(),
		cache:   backend,
		ttl:     ttl,
		baseURL: defaultBaseURL,
	}
}

// SetKeyer replaces the cache key derivation on this client and its HTTP
// layer. Shared backends such as redis need scoped keys.
func (c *Client) SetKeyer(k cache.Keyer) {
	if k != nil {
		c.keyer = k
		c.http.SetKeyer(k)
	}
}

type packageRef struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type packageQuery struct {
	Package packageRef `json:"package"`
	Version string     `json:"version"`
}

type batchRequest struct {
	Queries []packageQuery `json:"queries"`
}

type vulnRef struct {
	ID       string `json:"id"`
	Modified string `json:"modified"`
}

type queryResult struct {
	Vulns []vulnRef `json:"vulns"`
}

type batchResponse struct {
	Results []queryResult `json:"results"`
}

// cachedVulns is the cached query result for one package version. The
// wrapper distinguishes "queried, no vulnerabilities" from a cache miss.
type cachedVulns struct {
	IDs []string `json:"ids"`
}

// VulnIDs returns the known vulnerability IDs for each package, aligned
// by index with pkgs. Results are cached per package version; uncached
// packages are queried in concurrent batches. A failed batch degrades to
// nil entries for its packages rather than failing the whole audit.
func (c *Client) VulnIDs(ctx context.Context, pkgs []scan.Package) [][]string {
	results := make([][]string, len(pkgs))

	var misses []int
	for i, p := range pkgs {
		key := c.keyer.VulnKey(p.Key, p.Version.String())
		if data, hit, _ := c.cache.Get(ctx, key); hit {
			var entry cachedVulns
			if err := json.Unmarshal(data, &entry); err == nil {
				results[i] = entry.IDs
				continue
			}
		}
		misses = append(misses, i)
	}

	var wg sync.WaitGroup
	for start := 0; start < len(misses); start += batchSize {
		end := start + batchSize
		if end > len(misses) {
			end = len(misses)
		}
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			chunk := make([]scan.Package, len(indexes))
			for i, idx := range indexes {
				chunk[i] = pkgs[idx]
			}
			ids, err := c.queryBatch(ctx, chunk)
			if err != nil {
				if c.Logger != nil {
					c.Logger.Warn("vulnerability query failed", "packages", len(chunk), "error", err)
				}
				return
			}
			for i, idx := range indexes {
				results[idx] = ids[i]
				key := c.keyer.VulnKey(pkgs[idx].Key, pkgs[idx].Version.String())
				if data, err := json.Marshal(cachedVulns{IDs: ids[i]}); err == nil {
					_ = c.cache.Set(ctx, key, data, c.ttl)
				}
			}
		}(misses[start:end])
	}
	wg.Wait()
	return results
}

func (c *Client) queryBatch(ctx context.Context, chunk []scan.Package) ([][]string, error) {
	req := batchRequest{Queries: make([]packageQuery, len(chunk))}
	for i, p := range chunk {
		req.Queries[i] = packageQuery{
			Package: packageRef{Name: p.Key, Ecosystem: ecosystemPyPI},
			Version: p.Version.String(),
		}
	}

	var resp batchResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/v1/querybatch", req, &resp); err != nil {
		return nil, err
	}

	ids := make([][]string, len(chunk))
	for i, result := range resp.Results {
		if i >= len(chunk) {
			break
		}
		for _, v := range result.Vulns {
			ids[i] = append(ids[i], v.ID)
		}
	}
	return ids, nil
}

// Vuln holds the detail fields of a single OSV vulnerability record.
type Vuln struct {
	ID         string      `json:"id"`
	Summary    string      `json:"summary"`
	Details    string      `json:"details"`
	Aliases    []string    `json:"aliases"`
	Modified   string      `json:"modified"`
	Published  string      `json:"published"`
	Severity   []Severity  `json:"severity"`
	References []Reference `json:"references"`
}

// Severity is a scored severity entry, typically CVSS.
type Severity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Reference is a link attached to a vulnerability record.
type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// URL returns the osv.dev page for the vulnerability.
func (v *Vuln) URL() string {
	return "https://osv.dev/vulnerability/" + v.ID
}

// SeverityScore returns the first severity score, or empty if none.
func (v *Vuln) SeverityScore() string {
	if len(v.Severity) == 0 {
		return ""
	}
	return v.Severity[0].Score
}

// Fetch retrieves the detail record for a vulnerability ID.
func (c *Client) Fetch(ctx context.Context, id string) (*Vuln, error) {
	var v Vuln
	if err := c.http.Get(ctx, c.baseURL+"/v1/vulns/"+id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
