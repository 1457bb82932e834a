// Package cache is a small TTL cache port. Callers choose the TTL on read,
// so one store can serve values with different freshness needs.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the port components depend on.
type Cache interface {
	Get(key string, ttl time.Duration) (any, bool)
	Put(key string, value any)
}

// Loader is a Cache that can also fill itself and drop keys.
type Loader interface {
	Cache
	GetOrLoad(key string, ttl time.Duration, load func() (any, error)) (any, error)
	Invalidate(key string)
}

type entry struct {
	value    any
	storedAt time.Time
}

// Memory is an in-process Cache. The zero value is not usable; call NewMemory.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
	sf    singleflight.Group
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

// Get returns the value stored under key if it is younger than ttl.
func (m *Memory) Get(key string, ttl time.Duration) (any, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || ttl <= 0 || m.now().Sub(e.storedAt) > ttl {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Put(key string, value any) {
	m.mu.Lock()
	m.items[key] = entry{value: value, storedAt: m.now()}
	m.mu.Unlock()
}

// Invalidate drops key.
func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// GetOrLoad returns a fresh cached value or calls load once for all
// concurrent callers of the same key. Errors are not cached.
func (m *Memory) GetOrLoad(key string, ttl time.Duration, load func() (any, error)) (any, error) {
	if v, ok := m.Get(key, ttl); ok {
		return v, nil
	}
	v, err, _ := m.sf.Do(key, func() (any, error) {
		if v, ok := m.Get(key, ttl); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		m.Put(key, v)
		return v, nil
	})
	return v, err
}
