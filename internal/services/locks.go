package services

import (
	"sync"

	"github.com/google/uuid"
)

// chatLocks hands out one mutex per conversation. Entries are dropped when no
// goroutine holds or waits for them.
type chatLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{m: make(map[uuid.UUID]*chatLock)}
}

// lock blocks until id is free and returns its unlock function.
func (l *chatLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.m[id]
	if !ok {
		e = &chatLock{}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
