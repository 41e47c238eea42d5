package course

import (
	"context"
	"sync"
	"time"

	"github.com/p-n-ai/pai-course/internal/curriculum"
	"github.com/p-n-ai/pai-course/internal/platform/cache"
)

// LessonCache stores generated lesson text by LessonKey.
type LessonCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

// LessonKey identifies a lesson by document content, module and depth.
func LessonKey(fingerprint, moduleID string, depth curriculum.Depth) string {
	return "lesson:" + fingerprint + ":" + moduleID + ":" + string(depth)
}

type memoryEntry struct {
	text    string
	expires time.Time
}

// MemoryLessonCache keeps lessons in process memory.
type MemoryLessonCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryLessonCache creates a cache whose entries expire after ttl.
// A zero ttl never expires.
func NewMemoryLessonCache(ttl time.Duration) *MemoryLessonCache {
	return &MemoryLessonCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryLessonCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.text, true, nil
}

func (c *MemoryLessonCache) Set(_ context.Context, key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{text: text}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryLessonCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisLessonCache stores lessons in Redis or Dragonfly.
type RedisLessonCache struct {
	cache  *cache.Cache
	ttl    time.Duration
	prefix string
}

// NewRedisLessonCache wraps a cache client.
func NewRedisLessonCache(c *cache.Cache, ttl time.Duration) *RedisLessonCache {
	return &RedisLessonCache{cache: c, ttl: ttl, prefix: "learn:"}
}

func (c *RedisLessonCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.cache.Get(ctx, c.prefix+key)
}

func (c *RedisLessonCache) Set(ctx context.Context, key, text string) error {
	return c.cache.Set(ctx, c.prefix+key, text, c.ttl)
}
