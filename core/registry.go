package core

import (
	"fmt"
	"sync"

	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// ── Registry ──────────────────────────────────────────────────────────────────

// BackendRegistry is a thread-safe map of destination kind to Backend.
type BackendRegistry struct {
	mu       sync.RWMutex
	backends map[BackendKind]Backend
}

// NewRegistry returns a registry holding the given backends.
func NewRegistry(backends ...Backend) *BackendRegistry {
	r := &BackendRegistry{backends: make(map[BackendKind]Backend, len(backends))}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// Register adds or replaces the backend for b.Kind().
func (r *BackendRegistry) Register(b Backend) {
	r.mu.Lock()
	r.backends[b.Kind()] = b
	r.mu.Unlock()
}

// Lookup returns the backend for kind or an UnsupportedBackend error.
func (r *BackendRegistry) Lookup(kind BackendKind) (Backend, error) {
	r.mu.RLock()
	b, ok := r.backends[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.CategoryStorage, "registry.lookup",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedBackend, kind))
	}
	return b, nil
}

// Kinds returns the registered kinds in declaration order.
func (r *BackendRegistry) Kinds() []BackendKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BackendKind, 0, len(r.backends))
	for _, k := range BackendKinds {
		if _, ok := r.backends[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
