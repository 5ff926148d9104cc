package cache

// ScopedKeyer wraps a Keyer with a prefix so separate projects sharing one
// Redis instance keep isolated cache namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, url string) string {
	return k.prefix + k.inner.HTTPKey(namespace, url)
}

// ScanKey generates a prefixed key for environment scan caching.
func (k *ScopedKeyer) ScanKey(exes []string) string {
	return k.prefix + k.inner.ScanKey(exes)
}

// VulnKey generates a prefixed key for vulnerability result caching.
func (k *ScopedKeyer) VulnKey(name, version string) string {
	return k.prefix + k.inner.VulnKey(name, version)
}
