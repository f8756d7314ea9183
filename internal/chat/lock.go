package chat

import (
	"sync"
	"time"
)

// LockManager serializes chat turns per character. Concurrent turns for the
// same character queue rather than interleave; turns for different
// characters proceed independently. Entries idle past the TTL are reaped to
// keep the map from growing with long-deleted characters.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*managedLock
	ttl   time.Duration
	now   func() time.Time
}

type managedLock struct {
	sync.Mutex
	lastUsed time.Time
}

// NewLockManager returns a lock manager with a 30-minute idle TTL.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*managedLock),
		ttl:   30 * time.Minute,
		now:   time.Now,
	}
}

// Lock acquires the mutex for key, creating it on first use, and returns the
// matching unlock function.
func (lm *LockManager) Lock(key string) func() {
	lm.mu.Lock()
	l, ok := lm.locks[key]
	if !ok {
		l = &managedLock{}
		lm.locks[key] = l
	}
	l.lastUsed = lm.now()
	lm.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Cleanup removes locks that are not held and have been idle past the TTL.
// It returns the number of entries removed.
func (lm *LockManager) Cleanup() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	cutoff := lm.now().Add(-lm.ttl)
	removed := 0
	for key, l := range lm.locks {
		if l.lastUsed.After(cutoff) {
			continue
		}
		if !l.TryLock() {
			continue
		}
		l.Unlock()
		delete(lm.locks, key)
		removed++
	}
	return removed
}
