package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the live record of one chat running one command.
type Session struct {
	ID        string
	ChatID    int64
	Command   Command
	StartedAt time.Time

	mu         sync.Mutex
	index      int
	attrs      map[string]any
	lastAction time.Time
	finished   bool
	cancelled  bool
	now        func() time.Time
}

func newSession(chatID int64, cmd Command, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	ts := now()
	return &Session{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		Command:    cmd,
		StartedAt:  ts,
		attrs:      make(map[string]any),
		lastAction: ts,
		now:        now,
	}
}

// Index returns the position of the current step.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// LastAction returns the time of the most recent touch.
func (s *Session) LastAction() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAction
}

// Current returns the step at the current index and refreshes activity.
func (s *Session) Current() (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.stepAt(s.index)
}

// Peek returns the step after the current one without advancing.
func (s *Session) Peek() (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.stepAt(s.index + 1)
}

// Advance moves to the next step and returns it. Past the last step it
// reports false; that is the terminal signal.
func (s *Session) Advance() (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.index < len(s.Command.Steps) {
		s.index++
	}
	return s.stepAt(s.index)
}

// Finish marks the session as done; the executor stops before the next Enter.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

// Cancel finishes the session and reports it as cancelled instead of
// completed.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.cancelled = true
}

// Cancelled reports whether Cancel was called.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Finished reports whether Finish or Cancel was called.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Set stores a value under key, replacing any previous one.
func (s *Session) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = v
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// Delete removes key.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attrs, key)
}

// String returns the string stored under key, or "" if absent or of another type.
func (s *Session) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Int64 returns the int64 stored under key.
func (s *Session) Int64(key string) (int64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// Time returns the time.Time stored under key.
func (s *Session) Time(key string) (time.Time, bool) {
	v, ok := s.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Bool returns the bool stored under key; absent keys are false.
func (s *Session) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAction)
}

func (s *Session) touch() {
	s.lastAction = s.now()
}

func (s *Session) stepAt(i int) (Step, bool) {
	if i < 0 || i >= len(s.Command.Steps) {
		return nil, false
	}
	return s.Command.Steps[i], true
}
