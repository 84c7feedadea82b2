package flow

import (
	"sync"
	"time"
)

// TTL is a minimal in-process TTL cache.
// Lazy expiration on Get; expired entries are dropped on the next Set for the same key or by Sweep.
type TTL[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V])}
}

// Get returns the value and true if found and not expired; otherwise zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	v, _, ok := t.GetWithExpiry(k)
	return v, ok
}

// GetWithExpiry is Get that also returns when the entry expires.
func (t *TTL[K, V]) GetWithExpiry(k K) (V, time.Time, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	t.mu.RUnlock()
	if !ok || timeNow().After(e.exp) {
		var zero V
		return zero, time.Time{}, false
	}
	return e.val, e.exp, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	t.SetUntil(k, v, timeNow().Add(ttl))
}

// SetUntil stores v with an absolute expiry.
func (t *TTL[K, V]) SetUntil(k K, v V, exp time.Time) {
	t.mu.Lock()
	t.data[k] = entry[V]{val: v, exp: exp}
	t.mu.Unlock()
}

func (t *TTL[K, V]) Delete(k K) {
	t.mu.Lock()
	delete(t.data, k)
	t.mu.Unlock()
}

// Sweep removes expired entries and returns how many were dropped.
func (t *TTL[K, V]) Sweep() int {
	now := timeNow()
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.data {
		if now.After(e.exp) {
			delete(t.data, k)
			n++
		}
	}
	return n
}
