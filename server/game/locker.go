package game

import "sync"

// locker hands out one mutex per account address. Entries are dropped once
// nobody holds or waits on them.
type locker struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLocker() *locker {
	return &locker{m: make(map[string]*lockEntry)}
}

func (l *locker) lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &lockEntry{}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}

func (l *locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
