package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// Striped serializes work per key with a fixed set of mutexes. Distinct keys
// may share a stripe, so holders must never take two keys at once.
type Striped struct {
	stripes []sync.Mutex
}

func New(stripes int) *Striped {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, stripes)}
}

// Lock blocks until the key's stripe is held and returns the unlock func.
func (s *Striped) Lock(key string) func() {
	mu := &s.stripes[s.index(key)]
	mu.Lock()
	return mu.Unlock
}

func (s *Striped) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(s.stripes)))
}
