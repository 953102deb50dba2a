package dispatch

import "sync"

// senderLocks hands out one mutex per sender so concurrent webhook deliveries
// for the same number are applied one at a time. Locks are never reclaimed;
// the per-sender footprint is one mutex.
type senderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSenderLocks() *senderLocks {
	return &senderLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the sender's lock is held and returns the release func.
func (l *senderLocks) acquire(sender string) func() {
	l.mu.Lock()
	m, ok := l.locks[sender]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sender] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
