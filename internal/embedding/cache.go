package embedding

import (
	"container/list"
	"context"
	"sync"
)

// CachingProvider wraps a Provider with an LRU cache keyed by (mode, text).
// Repeated builds over overlapping document sets skip the network round-trip
// for texts already embedded.
type CachingProvider struct {
	inner    Provider
	capacity int

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewCachingProvider wraps inner with a cache holding up to capacity vectors.
func NewCachingProvider(inner Provider, capacity int) *CachingProvider {
	if capacity <= 0 {
		capacity = 1024
	}
	return &CachingProvider{
		inner:    inner,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func cacheKey(text string, mode Mode) string {
	return string(mode) + "\x00" + text
}

// Embed returns a cached vector when available, otherwise delegates and caches.
func (c *CachingProvider) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	if v, ok := c.get(cacheKey(text, mode)); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text, mode)
	if err != nil {
		return nil, err
	}
	c.put(cacheKey(text, mode), v)
	return v, nil
}

// EmbedBatch serves cached texts locally and sends only misses to the inner
// provider, preserving input order in the result.
func (c *CachingProvider) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.get(cacheKey(text, mode)); ok {
			vectors[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return vectors, nil
	}
	fresh, err := c.inner.EmbedBatch(ctx, missTexts, mode)
	if err != nil {
		return nil, err
	}
	for j, v := range fresh {
		vectors[missIdx[j]] = v
		c.put(cacheKey(missTexts[j], mode), v)
	}
	return vectors, nil
}

// Dimensions returns the inner provider's dimension.
func (c *CachingProvider) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the inner provider.
func (c *CachingProvider) Close() error {
	return c.inner.Close()
}

func (c *CachingProvider) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

func (c *CachingProvider) put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}
	elem := c.lru.PushFront(&cacheEntry{key: key, vector: vector})
	c.items[key] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}
