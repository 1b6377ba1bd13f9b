// Package atom implements a process-wide string interning pool: immutable
// byte strings compared by identity, with a stable hash assigned at
// insertion time.
package atom

import (
	"hash/fnv"
	"sync"
)

// Atom is an interned, immutable string. Two atoms are equal iff they were
// produced by the same Pool for bit-identical bytes; comparing Atoms with
// == is therefore an O(1) identity check, not a string compare.
type Atom struct {
	pool *Pool
	id   uint32
}

// Null reports whether a is the zero Atom (no pool, no string).
func (a Atom) Null() bool { return a.pool == nil }

// String returns the interned string. Safe to call on the zero Atom (returns "").
func (a Atom) String() string {
	if a.pool == nil {
		return ""
	}
	return a.pool.lookup(a.id)
}

// Hash returns the stable hash assigned when the string was first interned.
// Stable for the process lifetime; recomputing it from scratch (via
// computeHash) yields the same value, since the hash is a pure function of
// the bytes rather than of insertion order.
func (a Atom) Hash() uint64 {
	if a.pool == nil {
		return 0
	}
	return a.pool.hashOf(a.id)
}

// SameAs reports whether a and b are the same pool entry. Equivalent to ==
// when both atoms came from the same Pool, which is always true for atoms
// produced by the package-level Default pool.
func (a Atom) SameAs(b Atom) bool { return a.pool == b.pool && a.id == b.id }

// Pool interns strings. Interning may run concurrently with reads but
// writers (first-sighting of a new string) are serialized; the pool is
// never drained, so atoms outlive any particular caller.
type Pool struct {
	mu   sync.RWMutex
	ids  map[string]uint32
	strs []string
	hash []uint64
}

// NewPool creates an empty, independent interning pool.
func NewPool() *Pool {
	return &Pool{ids: make(map[string]uint32, 256)}
}

// Intern returns the Atom for s, inserting it if this is the first sighting.
func (p *Pool) Intern(s string) Atom {
	p.mu.RLock()
	if id, ok := p.ids[s]; ok {
		p.mu.RUnlock()
		return Atom{pool: p, id: id}
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-check: another writer may have interned s while we waited for the lock.
	if id, ok := p.ids[s]; ok {
		return Atom{pool: p, id: id}
	}
	id := uint32(len(p.strs))
	p.strs = append(p.strs, s)
	p.hash = append(p.hash, computeHash(s))
	p.ids[s] = id
	return Atom{pool: p, id: id}
}

func (p *Pool) lookup(id uint32) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strs[id]
}

func (p *Pool) hashOf(id uint32) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hash[id]
}

// Len reports the number of distinct strings interned so far.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.strs)
}

func computeHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// Default is the process-wide pool used by internal/label for directory and
// name atoms.
var Default = NewPool()

// Intern interns s in the Default pool.
func Intern(s string) Atom { return Default.Intern(s) }
