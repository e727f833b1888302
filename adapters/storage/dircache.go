package storage

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/frankii91/sharp-web-resizing-images/core"
)

// ── In-memory directory cache ─────────────────────────────────────────────────

// MemoryDirCache is a process-wide set of directories known to exist.
// Concurrent Ensure calls for the same directory share one creation.
type MemoryDirCache struct {
	known   sync.Map // normalized path -> struct{}
	group   singleflight.Group
	creates atomic.Int64
}

// NewMemoryDirCache returns an empty cache.
func NewMemoryDirCache() *MemoryDirCache { return &MemoryDirCache{} }

// Ensure runs create once per directory. A failed creation is not
// remembered, so the next call tries again.
func (c *MemoryDirCache) Ensure(ctx context.Context, dir string, create func(string) error) error {
	key := filepath.Clean(dir)
	if _, ok := c.known.Load(key); ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err, _ := c.group.Do(key, func() (interface{}, error) {
		if _, ok := c.known.Load(key); ok {
			return nil, nil
		}
		c.creates.Add(1)
		if err := create(key); err != nil {
			return nil, err
		}
		c.known.Store(key, struct{}{})
		return nil, nil
	})
	return err
}

// Creations returns how many times a create func has been invoked.
func (c *MemoryDirCache) Creations() int64 { return c.creates.Load() }

// Forget drops dir from the cache, e.g. after it was removed externally.
func (c *MemoryDirCache) Forget(dir string) { c.known.Delete(filepath.Clean(dir)) }

var _ core.DirectoryCache = (*MemoryDirCache)(nil)
