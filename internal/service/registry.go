package service

import (
	"strings"
	"sync"
	"time"
)

// Registry keeps per-browser state keyed by WatchSessionKey. Every lookup
// refreshes an entry's last use so idle entries can be swept.
type Registry[V comparable] struct {
	mu      sync.Mutex
	entries map[string]*registryEntry[V]
	onEvict func(V)
	now     func() time.Time
}

type registryEntry[V comparable] struct {
	value    V
	lastSeen time.Time
}

// NewRegistry returns an empty registry. onEvict, if set, runs outside the
// lock for every value that leaves the registry.
func NewRegistry[V comparable](onEvict func(V)) *Registry[V] {
	return &Registry[V]{
		entries: make(map[string]*registryEntry[V]),
		onEvict: onEvict,
		now:     time.Now,
	}
}

func (r *Registry[V]) Get(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastSeen = r.now()
	return e.value, true
}

// Put stores v under key, evicting the value it replaces.
func (r *Registry[V]) Put(key string, v V) {
	r.mu.Lock()
	old, had := r.entries[key]
	r.entries[key] = &registryEntry[V]{value: v, lastSeen: r.now()}
	r.mu.Unlock()

	if had && old.value != v {
		r.evict(old.value)
	}
}

// PutIfAbsent stores v unless key is taken and returns the value now held.
func (r *Registry[V]) PutIfAbsent(key string, v V) V {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.lastSeen = r.now()
		return e.value
	}
	r.entries[key] = &registryEntry[V]{value: v, lastSeen: r.now()}
	return v
}

func (r *Registry[V]) Remove(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()

	if ok {
		r.evict(e.value)
	}
}

// RemoveSession evicts every entry opened under sessionID.
func (r *Registry[V]) RemoveSession(sessionID string) int {
	prefix := sessionID + ":"
	return r.removeWhere(func(key string, _ *registryEntry[V]) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// SweepBefore evicts entries not used since cutoff.
func (r *Registry[V]) SweepBefore(cutoff time.Time) int {
	return r.removeWhere(func(_ string, e *registryEntry[V]) bool {
		return e.lastSeen.Before(cutoff)
	})
}

func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[V]) Clear() {
	r.removeWhere(func(string, *registryEntry[V]) bool { return true })
}

func (r *Registry[V]) removeWhere(match func(string, *registryEntry[V]) bool) int {
	r.mu.Lock()
	var removed []V
	for key, e := range r.entries {
		if match(key, e) {
			removed = append(removed, e.value)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	for _, v := range removed {
		r.evict(v)
	}
	return len(removed)
}

func (r *Registry[V]) evict(v V) {
	if r.onEvict != nil {
		r.onEvict(v)
	}
}
