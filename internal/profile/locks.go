package profile

import "sync"

// childLocks serialises builds, submissions and erasures of the same child
// so a build never stores a profile computed from data erased under it.
type childLocks struct {
	mu    sync.Mutex
	locks map[string]*childLock
}

type childLock struct {
	sync.Mutex
	refs int
}

// lock blocks until childID is free and returns its unlock func.
func (l *childLocks) lock(childID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*childLock)
	}
	cl, ok := l.locks[childID]
	if !ok {
		cl = &childLock{}
		l.locks[childID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.Lock()
	return func() {
		cl.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, childID)
		}
		l.mu.Unlock()
	}
}

// waiting counts the holder and waiters of childID.
func (l *childLocks) waiting(childID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cl, ok := l.locks[childID]; ok {
		return cl.refs
	}
	return 0
}
