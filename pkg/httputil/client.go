package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pyvet/pyvet/pkg/cache"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a requested resource doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Client performs HTTP requests with response caching and automatic
// retries. It is shared by the lockfile fetcher and the vulnerability
// client, each under its own cache namespace.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
	headers   map[string]string
}

// NewClient creates a Client caching responses in backend under namespace.
// Pass cache.NewNullCache() to disable caching and nil for headers if no
// default headers are needed.
func NewClient(backend cache.Cache, namespace string, ttl time.Duration, headers map[string]string) *Client {
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		cache:     backend,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		ttl:       ttl,
		headers:   headers,
	}
}

// SetKeyer replaces the cache key derivation. Shared backends such as
// redis need scoped keys so tools do not collide.
func (c *Client) SetKeyer(k cache.Keyer) {
	if k != nil {
		c.keyer = k
	}
}

// Cached returns the cached value for key or executes fetch and caches the
// result. If refresh is true the cache is bypassed and fetch always runs.
// The fetch function should populate v; on success, v is stored.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if data, hit, _ := c.cache.Get(ctx, key); hit {
			if err := json.Unmarshal(data, v); err == nil {
				return nil
			}
		}
	}
	if err := RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return nil
}

// Get performs an HTTP GET and JSON-decodes the response into v.
// Responses are cached by URL under the client's namespace.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	key := c.keyer.HTTPKey(c.namespace, url)
	return c.Cached(ctx, key, false, v, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		return json.NewDecoder(body).Decode(v)
	})
}

// GetText performs an HTTP GET and returns the response body as a string.
// Used for plain-text endpoints such as remote requirements files.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	var text string
	key := c.keyer.HTTPKey(c.namespace, "text:"+url)
	err := c.Cached(ctx, key, false, &text, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		text = string(data)
		return nil
	})
	return text, err
}

// PostJSON performs an HTTP POST with a JSON body and decodes the JSON
// response into v. POST responses are never cached; callers that want
// caching wrap this with [Client.Cached] under their own key.
func (c *Client) PostJSON(ctx context.Context, url string, payload, v any) error {
	return RetryWithBackoff(ctx, func() error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body, err := c.doRequest(ctx, http.MethodPost, url, raw)
		if err != nil {
			return err
		}
		defer body.Close()
		return json.NewDecoder(body).Decode(v)
	})
}

func (c *Client) doRequest(ctx context.Context, method, url string, payload []byte) (io.ReadCloser, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
