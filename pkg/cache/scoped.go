package cache

// ScopedKeyer wraps a Keyer with a prefix so that several tenants, or
// several API deployments, can share one Redis instance.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
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

// PlanKey generates a prefixed plan key.
func (k *ScopedKeyer) PlanKey(graphHash, strategy string, lanes int) string {
	return k.prefix + k.inner.PlanKey(graphHash, strategy, lanes)
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(planHash, format string) string {
	return k.prefix + k.inner.ArtifactKey(planHash, format)
}
