package data

import (
	"container/list"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ducminhle1904/dca-ladder-backtest/pkg/types"
)

// DefaultCacheEntries bounds the series kept by NewDataManager.
const DefaultCacheEntries = 32

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int
	Hits    int
	Misses  int
}

// MemoryCache is a bounded least-recently-used DataCache. Stored and
// returned series are copies.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	hits     int
	misses   int
}

type cacheEntry struct {
	key    string
	series []types.OHLCV
}

// NewMemoryCache keeps at most capacity series; capacity <= 0 means unbounded.
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return cloneSeries(el.Value.(*cacheEntry).series), true
}

func (c *MemoryCache) Set(key string, series []types.OHLCV) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).series = cloneSeries(series)
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, series: cloneSeries(series)})

	for c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of hit and miss counts.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.order.Len(), Hits: c.hits, Misses: c.misses}
}

func cloneSeries(series []types.OHLCV) []types.OHLCV {
	out := make([]types.OHLCV, len(series))
	copy(out, series)
	return out
}

// loadKey identifies one version of source narrowed by opts. A rewritten
// file gets a new key through its size and modification time. ok is false
// when source cannot be stat'ed.
func loadKey(source string, opts LoadOptions) (key string, ok bool) {
	info, err := os.Stat(source)
	if err != nil || info.IsDir() {
		return "", false
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	return fmt.Sprintf("%s|%d|%d|%d|%d|%d", abs, info.Size(), info.ModTime().UnixNano(),
		int64(opts.Period), unixOrZero(opts.Start), unixOrZero(opts.End)), true
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
