package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
)

// ContextKey is the cache key of a VPC lookup.
func ContextKey(account, region, vpcID string) string {
	return fmt.Sprintf("vpc-provider:account=%s:filter.vpc-id=%s:region=%s", account, vpcID, region)
}

// ContextCache is a JSON file of previous lookups, keyed by ContextKey.
type ContextCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]VPC
}

// LoadContext opens a cache file. A missing file is an empty cache.
func LoadContext(path string) (*ContextCache, error) {
	c := &ContextCache{path: path, entries: make(map[string]VPC)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading context %s: %w", path, err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parsing context %s: %w", path, err)
	}
	return c, nil
}

// Get returns a cached VPC.
func (c *ContextCache) Get(key string) (*VPC, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &v, true
}

// Put stores a VPC.
func (c *ContextCache) Put(key string, v *VPC) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *v
}

// Keys returns the cached keys, sorted.
func (c *ContextCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the cache back to its file.
func (c *ContextCache) Save() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing context %s: %w", c.path, err)
	}
	return nil
}

// CachingResolver answers from the context cache and falls back to an
// upstream resolver, saving what it learns. With no upstream it resolves
// offline only.
type CachingResolver struct {
	Cache    *ContextCache
	Upstream Resolver
	Account  string
	Region   string
	Logger   *slog.Logger
}

// Resolve implements Resolver.
func (r *CachingResolver) Resolve(ctx context.Context, vpcID string) (*VPC, error) {
	key := ContextKey(r.Account, r.Region, vpcID)
	if v, ok := r.Cache.Get(key); ok {
		r.logger().Debug("vpc from context cache", "key", key)
		return v, nil
	}
	if r.Upstream == nil {
		return nil, fmt.Errorf("%w: %s (run `devsecops lookup` with AWS credentials first)", ErrNotCached, key)
	}

	v, err := r.Upstream.Resolve(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	r.Cache.Put(key, v)
	if err := r.Cache.Save(); err != nil {
		return nil, err
	}
	r.logger().Info("cached vpc lookup", "key", key, "path", r.Cache.path)
	return v, nil
}

func (r *CachingResolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
