package resultcache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/docluster/codec"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/resource"
)

// LRU is an in-memory result cache bounded by the encoded size of its
// entries.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[model.CacheKey]*list.Element
	evictList *list.List
	rc        *resource.Controller
	env       codec.Envelope

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key      model.CacheKey
	value    []byte
	reserved int64
}

// NewLRU creates an LRU holding up to capacity bytes of encoded results.
// If rc is non-nil, entries also reserve memory from it and are not cached
// when the budget is exhausted.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[model.CacheKey]*list.Element),
		evictList: list.New(),
		rc:        rc,
		env:       codec.Envelope{Codec: codec.Default},
	}
}

// Get implements docluster.ResultCache.
func (c *LRU) Get(_ context.Context, key model.CacheKey) (*model.Result, bool, error) {
	data, ok := c.getRaw(key)
	if !ok {
		return nil, false, nil
	}
	var res model.Result
	if err := c.env.Unmarshal(data, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// Put implements docluster.ResultCache.
func (c *LRU) Put(_ context.Context, key model.CacheKey, res *model.Result) error {
	data, err := c.env.Marshal(res)
	if err != nil {
		return err
	}
	c.setRaw(key, data)
	return nil
}

func (c *LRU) getRaw(key model.CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// setRaw stores an encoded envelope. Values larger than the capacity are
// not cached.
func (c *LRU) setRaw(key model.CacheKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}

	itemSize := int64(len(data))
	if itemSize > c.capacity {
		return
	}
	for c.size+itemSize > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	reserved, ok := c.rc.TryAcquireMemory(itemSize)
	if !ok {
		return
	}
	ent := &entry{key: key, value: data, reserved: reserved}
	c.items[key] = c.evictList.PushFront(ent)
	c.size += itemSize
}

// Invalidate removes one entry.
func (c *LRU) Invalidate(key model.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
}

// Purge removes every entry and returns its memory reservations.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry)
	delete(c.items, kv.key)
	c.size -= int64(len(kv.value))
	c.rc.ReleaseMemory(kv.reserved)
}

// Len returns the number of cached results.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Size returns the current size of the cache in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns the hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
