package diarize

import (
	"log"
	"sync"
)

type cacheKey struct {
	videoPath string
	params    Params
}

// Cache keeps built processors for the life of the process so a video that is
// diarized again with the same inputs reuses its engine context.
// Entries are never evicted; memory grows with the number of distinct
// (video, params) pairs seen.
type Cache struct {
	mu      sync.Mutex
	factory Factory
	entries map[cacheKey]Processor
}

func NewCache(factory Factory) *Cache {
	return &Cache{
		factory: factory,
		entries: make(map[cacheKey]Processor),
	}
}

// Get returns the processor for videoPath and params, building and inserting
// one if absent. A failed build inserts nothing.
func (c *Cache) Get(videoPath string, params Params) (Processor, error) {
	key := cacheKey{videoPath: videoPath, params: params}

	c.mu.Lock()
	p, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		log.Printf("[diarize] reusing context for %s", videoPath)
		return p, nil
	}

	// Built outside the lock; a concurrent build for the same key loses the race below.
	built, err := c.factory(params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = built
	return built, nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
