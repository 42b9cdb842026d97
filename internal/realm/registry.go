package realm

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/roach88/emberdb/internal/dberr"
	"github.com/roach88/emberdb/internal/schema"
)

// registry shares one core per path within the process.
var registry = struct {
	mu    sync.Mutex
	cores map[string]*core
}{cores: make(map[string]*core)}

func registryKey(cfg Config) (string, error) {
	if cfg.InMemory {
		return "memory:" + cfg.Path, nil
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", cfg.Path, err)
	}
	return abs, nil
}

// attachCompatible checks a request against an already open core.
// A nil schema with version 0 adopts whatever is open.
func (c *core) attachCompatible(sch *schema.Schema, version uint64) error {
	if sch == nil && version == 0 {
		return nil
	}
	if version != c.version {
		return dberr.New(dberr.KindSchemaVersionMismatch,
			"realm at %s is already open at schema version %d, requested %d", c.path, c.version, version)
	}
	if sch != nil && !sch.Equal(c.schema) {
		return dberr.New(dberr.KindSchemaVersionMismatch,
			"realm at %s is already open with a different schema at version %d", c.path, version)
	}
	return nil
}

// release drops one reference. The last reference closes the store.
func (c *core) release(r *Realm) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for i, h := range c.handles {
		if h == r {
			c.handles = append(c.handles[:i:i], c.handles[i+1:]...)
			break
		}
	}
	if len(c.handles) > 0 {
		return nil
	}
	delete(registry.cores, c.key)
	c.logger.Debug("realm closed")
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.path, err)
	}
	return nil
}
