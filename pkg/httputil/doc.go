// Package httputil provides the HTTP client shared by the registry and
// vulnerability integrations: response caching through pkg/cache, retry
// with exponential backoff, and uniform status handling.
package httputil
