package lock

import "sync"

// Locker is the per-request exclusive lock capability held for the full
// duration of an evaluation. TryAcquire never blocks: a false return means
// the caller must surface a conflict, not queue. The underlying mechanism is
// swappable (in-process map for single-instance deployments, Redis for
// multi-instance) without touching scheduler logic.
type Locker interface {
	TryAcquire(requestID string) bool
	Release(requestID string)
}

// MemoryLocker implements Locker with an in-process map.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// TryAcquire implements Locker.
func (l *MemoryLocker) TryAcquire(requestID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[requestID]; taken {
		return false
	}
	l.held[requestID] = struct{}{}
	return true
}

// Release implements Locker. Releasing a lock that is not held is a no-op.
func (l *MemoryLocker) Release(requestID string) {
	l.mu.Lock()
	delete(l.held, requestID)
	l.mu.Unlock()
}

// Held reports whether the lock for requestID is currently taken.
func (l *MemoryLocker) Held(requestID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, taken := l.held[requestID]
	return taken
}
