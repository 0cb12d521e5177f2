package hashi

import "sync"

// mapRegistry is the default Registry: a locked map from span identity to
// builder. Creation and close are the only writes; field recording and
// events only read, so the lock is split read/write.
type mapRegistry struct {
	mu       sync.RWMutex
	builders map[ID]*Builder
}

func newMapRegistry() *mapRegistry {
	return &mapRegistry{builders: make(map[ID]*Builder)}
}

func (r *mapRegistry) Attach(id ID, b *Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[id] = b
}

func (r *mapRegistry) Lookup(id ID) *Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builders[id]
}

func (r *mapRegistry) Detach(id ID) *Builder {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.builders[id]
	if b != nil {
		delete(r.builders, id)
	}
	return b
}
