package dataset

import "container/list"

// decoded holds one block's materialized arrays: shared timestamps, raw
// per-subchannel values, and calibrated per-subchannel values (filled
// lazily by Channel.calibrate).
type decoded struct {
	times []int64
	raw   [][]float64
	cal   [][]float64
}

type cacheEntry struct {
	offset int64
	dec    *decoded
}

// blockCache is a bounded LRU of decoded blocks keyed by payload offset.
// Eviction discards decoded arrays only; index entries are untouched and a
// later access re-decodes from source.
type blockCache struct {
	capacity int
	order    *list.List // front is most recently used
	items    map[int64]*list.Element
}

func newBlockCache(capacity int) *blockCache {
	return &blockCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int64]*list.Element, capacity),
	}
}

func (c *blockCache) get(offset int64) (*decoded, bool) {
	el, ok := c.items[offset]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)

	return el.Value.(*cacheEntry).dec, true
}

func (c *blockCache) put(offset int64, dec *decoded) {
	if el, ok := c.items[offset]; ok {
		el.Value.(*cacheEntry).dec = dec
		c.order.MoveToFront(el)

		return
	}

	c.items[offset] = c.order.PushFront(&cacheEntry{offset: offset, dec: dec})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).offset)
	}
}

func (c *blockCache) len() int { return c.order.Len() }
