package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type sent struct {
	ChatID int64
	Text   string
	Markup any
}

type fakeReplier struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeReplier) SendMessage(_ context.Context, chatID int64, text string, markup any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (f *fakeReplier) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeReplier) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

// trace records step calls in order.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *trace) add(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, s)
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *trace) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

type recStep struct {
	name    string
	input   bool
	tr      *trace
	onEnter func(c *Context) error
	onInput func(c *Context) error
}

func (s recStep) Enter(c *Context) error {
	s.tr.add(s.name + ".enter")
	if s.onEnter != nil {
		return s.onEnter(c)
	}
	return nil
}

func (s recStep) HandleInput(c *Context) error {
	s.tr.add(s.name + ".input")
	if s.onInput != nil {
		return s.onInput(c)
	}
	return nil
}

func (s recStep) InputNeeded() bool { return s.input }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func msg(chatID int64, text string, role Role) Message {
	return ParseMessage(chatID, text, User{ID: chatID, Role: role}, nil)
}

func completed(name string) string  { return fmt.Sprintf(DefaultTexts().Completed, name) }
func terminated(name string) string { return fmt.Sprintf(DefaultTexts().Terminated, name) }
