package layout

import (
	"container/list"
	"image"
)

const measureCacheCapacity = 512

type measurement struct {
	size   image.Point
	ascent int
}

type measureKey struct {
	text     string
	fontPath string
	size     float64
}

// measureCache is a small LRU so repeated per-frame layouts of the same cue do
// not re-shape text. Owned by one engine; callers hold the engine lock.
type measureCache struct {
	capacity int
	order    *list.List
	entries  map[measureKey]*list.Element
}

type measureEntry struct {
	key   measureKey
	value measurement
}

func newMeasureCache(capacity int) *measureCache {
	if capacity < 1 {
		capacity = 1
	}
	return &measureCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[measureKey]*list.Element, capacity),
	}
}

func (c *measureCache) get(text, fontPath string, size float64) (measurement, bool) {
	el, ok := c.entries[measureKey{text: text, fontPath: fontPath, size: size}]
	if !ok {
		return measurement{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*measureEntry).value, true
}

func (c *measureCache) put(text, fontPath string, size float64, value measurement) {
	key := measureKey{text: text, fontPath: fontPath, size: size}
	if el, ok := c.entries[key]; ok {
		el.Value.(*measureEntry).value = value
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&measureEntry{key: key, value: value})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*measureEntry).key)
	}
}

func (c *measureCache) len() int { return c.order.Len() }
