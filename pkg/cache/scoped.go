package cache

// ScopedKeyer wraps a Keyer with a prefix so that several deployments (or
// model versions) can share one Redis instance without colliding.
//
// Example usage:
//
//	apiKeyer := NewScopedKeyer(NewDefaultKeyer(), "api:")
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
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ResultKey generates a prefixed key for result caching.
func (k *ScopedKeyer) ResultKey(inputs InputHashes, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(inputs, opts)
}
