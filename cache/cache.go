// Package cache holds the global command list shared by every terminal
// session of a process.
//
// The shell enumerates its global commands rarely because doing so is slow,
// so the last enumeration is kept in memory and persisted through a
// store.Store under StorageKey. The persisted copy is read lazily, once, on
// first use.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	termsuggest "github.com/Paranoid-AF/termsuggest"
	"github.com/Paranoid-AF/termsuggest/store"
)

// StorageKey is the application-scoped key of the persisted list.
const StorageKey = "terminal.suggest.cachedGlobalCommands"

// formatVersion is bumped whenever the persisted shape changes.
// Data written with another version is ignored.
const formatVersion = 1

type persisted struct {
	Version int                          `json:"version"`
	Items   []termsuggest.CompletionItem `json:"items"`
}

// Options configures a GlobalCommands cache.
type Options struct {
	// TTL expires entries after the given duration. Zero keeps them for the
	// lifetime of the process.
	TTL    time.Duration
	Logger *zap.Logger
}

// GlobalCommands is the process-wide global command cache.
type GlobalCommands struct {
	mu       sync.Mutex
	items    *ttlcache.Cache[string, termsuggest.CompletionItem]
	order    []string
	store    store.Store
	hydrated bool
	ttl      time.Duration
	logger   *zap.Logger
}

// New creates a cache backed by st. A nil store keeps the list in memory only.
func New(st store.Store, opts Options) *GlobalCommands {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cacheOpts := []ttlcache.Option[string, termsuggest.CompletionItem]{
		ttlcache.WithDisableTouchOnHit[string, termsuggest.CompletionItem](),
	}
	if opts.TTL > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithTTL[string, termsuggest.CompletionItem](opts.TTL))
	}
	c := &GlobalCommands{
		items:  ttlcache.New[string, termsuggest.CompletionItem](cacheOpts...),
		store:  st,
		ttl:    opts.TTL,
		logger: logger.Named("cache"),
	}
	if opts.TTL > 0 {
		go c.items.Start()
	}
	return c
}

// Close stops the expiration loop. The store is owned by the caller.
func (c *GlobalCommands) Close() {
	if c.ttl > 0 {
		c.items.Stop()
	}
}

// Add inserts items in order. An item whose label is already cached replaces
// the cached one in place.
func (c *GlobalCommands) Add(items ...termsuggest.CompletionItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(items)
}

// Replace drops everything, adds items and persists the new list.
func (c *GlobalCommands) Replace(ctx context.Context, items []termsuggest.CompletionItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A fresh enumeration supersedes whatever was persisted.
	c.hydrated = true
	c.items.DeleteAll()
	c.order = c.order[:0]
	c.addLocked(items)

	return c.persistLocked(ctx)
}

// Clear empties the cache and removes the persisted copy. The next read
// hydrates again and finds nothing.
func (c *GlobalCommands) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.DeleteAll()
	c.order = c.order[:0]

	if c.store == nil {
		c.hydrated = false
		return nil
	}
	// Hydration is re-armed only once the persisted copy is gone, so a
	// failed removal cannot bring the cleared items back.
	if err := c.store.Remove(ctx, StorageKey); err != nil {
		c.hydrated = true
		return errors.Wrap(err, "remove persisted global commands")
	}
	c.hydrated = false
	return nil
}

// Snapshot returns the live items in insertion order, hydrating first if needed.
func (c *GlobalCommands) Snapshot(ctx context.Context) []termsuggest.CompletionItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrateLocked(ctx)
	return c.liveLocked()
}

// Len reports the number of live items, hydrating first if needed.
func (c *GlobalCommands) Len(ctx context.Context) int {
	return len(c.Snapshot(ctx))
}

func (c *GlobalCommands) addLocked(items []termsuggest.CompletionItem) {
	c.liveLocked()
	seen := make(map[string]struct{}, len(c.order)+len(items))
	for _, label := range c.order {
		seen[label] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item.Label]; !ok {
			seen[item.Label] = struct{}{}
			c.order = append(c.order, item.Label)
		}
		c.items.Set(item.Label, item, ttlcache.DefaultTTL)
	}
}

// liveLocked collects unexpired items and compacts the order slice.
func (c *GlobalCommands) liveLocked() []termsuggest.CompletionItem {
	out := make([]termsuggest.CompletionItem, 0, len(c.order))
	kept := c.order[:0]
	for _, label := range c.order {
		entry := c.items.Get(label)
		if entry == nil {
			continue
		}
		kept = append(kept, label)
		out = append(out, entry.Value())
	}
	c.order = kept
	return out
}

func (c *GlobalCommands) hydrateLocked(ctx context.Context) {
	if c.hydrated {
		return
	}
	c.hydrated = true
	if c.store == nil {
		return
	}

	data, err := c.store.Get(ctx, StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("failed to read persisted global commands", zap.Error(err))
		return
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("ignoring unparsable global commands", zap.Error(err))
		return
	}
	if p.Version != formatVersion {
		c.logger.Warn("ignoring global commands with unknown format version",
			zap.Int("version", p.Version), zap.Int("want", formatVersion))
		return
	}

	// Items added before hydration win over persisted ones.
	fresh := make([]termsuggest.CompletionItem, 0, len(p.Items))
	for _, item := range p.Items {
		if c.items.Get(item.Label) == nil {
			fresh = append(fresh, item)
		}
	}
	c.addLocked(fresh)
	c.logger.Debug("hydrated global commands", zap.Int("count", len(p.Items)))
}

func (c *GlobalCommands) persistLocked(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	data, err := json.Marshal(persisted{Version: formatVersion, Items: c.liveLocked()})
	if err != nil {
		return errors.Wrap(err, "encode global commands")
	}
	if err := c.store.Set(ctx, StorageKey, data); err != nil {
		return errors.Wrap(err, "persist global commands")
	}
	return nil
}
