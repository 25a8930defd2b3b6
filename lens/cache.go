package lens

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/vmihailenco/msgpack/v5"
)

type cacheEntry struct {
	Marker string `msgpack:"m"`
	Output []byte `msgpack:"o"` // zstd compressed
	Stats  Stats  `msgpack:"s"`
}

// RewriteCache remembers rewrite outputs per source file. An entry is only returned while the
// freshness marker it was stored with matches, so changed inputs or options miss.
type RewriteCache struct {
	store Storage
	front *ristretto.Cache[string, *cacheEntry]
}

// NewRewriteCache creates a cache persisting to store with an in-memory front of frontMB.
func NewRewriteCache(store Storage, frontMB int) (*RewriteCache, error) {
	maxCost := int64(max(frontMB, 1)) << 20
	front, err := ristretto.NewCache(&ristretto.Config[string, *cacheEntry]{
		NumCounters: max(maxCost>>10, 1024), // ~10x the expected entry count at ~10KiB per entry
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create front cache: %w", err)
	}
	return &RewriteCache{store: store, front: front}, nil
}

// Get returns the cached output for relPath if it was stored with marker.
func (c *RewriteCache) Get(relPath, marker string) (string, Stats, bool, error) {
	entry, ok := c.front.Get(relPath)
	if !ok {
		blob, found, err := c.store.Load(relPath)
		if err != nil {
			return "", Stats{}, false, fmt.Errorf("load cache entry %s: %w", relPath, err)
		} else if !found {
			return "", Stats{}, false, nil
		}
		entry = &cacheEntry{}
		if err := msgpack.Unmarshal(blob, entry); err != nil {
			// unreadable entries are treated as a miss and replaced on the next Put
			return "", Stats{}, false, nil
		}
		c.front.Set(relPath, entry, int64(len(entry.Output)))
	}
	if entry.Marker != marker {
		return "", Stats{}, false, nil
	}

	output, err := ZstdDecompress(nil, entry.Output)
	if err != nil {
		return "", Stats{}, false, fmt.Errorf("decompress cache entry %s: %w", relPath, err)
	}
	return string(output), entry.Stats, true, nil
}

// Put stores output for relPath, replacing any previous entry.
func (c *RewriteCache) Put(relPath, marker, output string, stats Stats) error {
	entry := &cacheEntry{
		Marker: marker,
		Output: ZstdCompress(nil, []byte(output)),
		Stats:  stats,
	}
	blob, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	} else if err = c.store.Save(relPath, blob); err != nil {
		return fmt.Errorf("save cache entry %s: %w", relPath, err)
	}
	c.front.Set(relPath, entry, int64(len(entry.Output)))
	c.front.Wait() // later reads must not observe a replaced entry
	return nil
}

// Delete drops the entry for relPath.
func (c *RewriteCache) Delete(relPath string) error {
	c.front.Del(relPath)
	if err := c.store.Delete(relPath); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", relPath, err)
	}
	return nil
}

// Clear drops every entry reachable through this cache's Storage.
func (c *RewriteCache) Clear() error {
	c.front.Clear()
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Close releases the front cache, the underlying Storage is closed by its owner.
func (c *RewriteCache) Close() {
	c.front.Close()
}
