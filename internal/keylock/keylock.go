// Package keylock serializes work per key, e.g. per student.
package keylock

import "sync"

// Map hands out one mutex per key. Mutexes are never released, which is
// fine for the number of students a residence portfolio holds.
type Map struct {
	mapMu sync.Mutex // protects muMap
	muMap map[string]*sync.Mutex
}

func New() *Map {
	return &Map{muMap: make(map[string]*sync.Mutex)}
}

func (m *Map) get(key string) *sync.Mutex {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()

	mu, ok := m.muMap[key]
	if !ok {
		mu = &sync.Mutex{}
		m.muMap[key] = mu
	}
	return mu
}

// Lock blocks until key is free and returns the matching unlock.
func (m *Map) Lock(key string) (unlock func()) {
	mu := m.get(key)
	mu.Lock()
	return mu.Unlock
}
