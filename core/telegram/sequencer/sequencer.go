// Package sequencer runs work items in arrival order per key while different
// keys proceed in parallel. The Telegram transport keys lanes by chat id so a
// chat's updates never overtake each other.
package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/m3rciful/coursebot/core/logger"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("sequencer: closed")

// Sequencer owns one FIFO lane per active key. A lane goroutine exists only
// while its queue is non-empty.
type Sequencer struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	lanes  map[int64]*lane
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	queue []func()
}

// New returns a sequencer running at most workers lanes at once.
func New(workers int) *Sequencer {
	if workers <= 0 {
		workers = 1
	}
	return &Sequencer{
		sem:   semaphore.NewWeighted(int64(workers)),
		lanes: make(map[int64]*lane),
	}
}

// Submit appends fn to the lane of key.
func (s *Sequencer) Submit(key int64, fn func()) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if l, ok := s.lanes[key]; ok {
		l.queue = append(l.queue, fn)
		return nil
	}
	l := &lane{queue: []func(){fn}}
	s.lanes[key] = l
	s.wg.Add(1)
	go s.drain(key, l)
	return nil
}

// Pending returns the number of queued and running items.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lanes {
		n += len(l.queue)
	}
	return n
}

// Close rejects new work and waits until queued items have run.
func (s *Sequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sequencer) drain(key int64, l *lane) {
	defer s.wg.Done()
	_ = s.sem.Acquire(context.Background(), 1)
	defer s.sem.Release(1)

	for {
		s.mu.Lock()
		fn := l.queue[0]
		s.mu.Unlock()

		run(key, fn)

		s.mu.Lock()
		l.queue = l.queue[1:]
		if len(l.queue) == 0 {
			delete(s.lanes, key)
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func run(key int64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), "tg", "sequencer.panic",
				slog.Int64("chat_id", key),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}
