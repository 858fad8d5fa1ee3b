package cache

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// Frames creating entities past the configured limits are dropped with
// these errors. Updates to already-tracked entities always pass.
var (
	ErrHostLimit      = errors.New("host limit reached")
	ErrContainerLimit = errors.New("container limit reached")
)

// entityLimiter bounds how many distinct entities the cache will track.
// Keys are stored as xxhash sums rather than strings: the limiter only
// needs membership, not the keys themselves.
type entityLimiter struct {
	seen map[uint64]struct{}
	max  int
}

func newEntityLimiter(max int) *entityLimiter {
	return &entityLimiter{
		seen: make(map[uint64]struct{}),
		max:  max,
	}
}

// admit reports whether an entity with this key may be tracked. A key seen
// before is always admitted; a new key is admitted and recorded only while
// there is room.
func (l *entityLimiter) admit(key string) bool {
	h := xxhash.Sum64String(key)
	if _, ok := l.seen[h]; ok {
		return true
	}
	if len(l.seen) >= l.max {
		return false
	}
	l.seen[h] = struct{}{}
	return true
}

// forget frees the slot held by key. No-op for unknown keys.
func (l *entityLimiter) forget(key string) {
	delete(l.seen, xxhash.Sum64String(key))
}

func (l *entityLimiter) count() int {
	return len(l.seen)
}
