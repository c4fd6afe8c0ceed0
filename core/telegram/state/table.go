package state

import (
	"sync"
	"time"
)

// table is the chat -> session map. Every access goes through mu; nothing
// else is done while holding it.
type table struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func newTable() *table {
	return &table{sessions: make(map[int64]*Session)}
}

func (t *table) get(chatID int64) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[chatID]
	return s, ok
}

func (t *table) put(chatID int64, s *Session) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[chatID] = s
	return len(t.sessions)
}

// remove deletes the entry only if it still holds s.
func (t *table) remove(chatID int64, s *Session) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.sessions[chatID]
	if !ok || cur != s {
		return len(t.sessions), false
	}
	delete(t.sessions, chatID)
	return len(t.sessions), true
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// evictIdle removes sessions idle longer than timeout and returns them.
func (t *table) evictIdle(now time.Time, timeout time.Duration) ([]*Session, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var evicted []*Session
	for chatID, s := range t.sessions {
		if s.idleSince(now) > timeout {
			delete(t.sessions, chatID)
			evicted = append(evicted, s)
		}
	}
	return evicted, len(t.sessions)
}

// chatLocks serializes Execute calls per chat. Entries are dropped once no
// caller holds or waits for them.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[int64]*chatLock)}
}

func (l *chatLocks) lock(chatID int64) func() {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}
