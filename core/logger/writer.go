package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// sink is one output of the async writer. Lines below min are not written to
// it; a zero min accepts every level.
type sink struct {
	w   io.Writer
	min slog.Level
	buf *bufio.Writer
}

type entry struct {
	line  []byte
	level slog.Level
}

// asyncWriter fans log lines out to its sinks from a single goroutine so
// callers never block on slow files unless the queue is full.
type asyncWriter struct {
	queue    chan entry
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once

	mu    sync.Mutex
	sinks []sink
	err   error
}

func newAsyncWriter(sinks []sink, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	out := make([]sink, 0, len(sinks))
	for _, s := range sinks {
		if s.w == nil {
			continue
		}
		if s.min == 0 {
			s.min = slog.LevelDebug
		}
		s.buf = bufio.NewWriterSize(s.w, bufSize)
		out = append(out, s)
	}
	aw := &asyncWriter{
		queue:    make(chan entry, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    out,
	}
	go aw.loop()
	return aw
}

// writersOf wraps plain writers as sinks accepting every level.
func writersOf(ws ...io.Writer) []sink {
	out := make([]sink, 0, len(ws))
	for _, w := range ws {
		out = append(out, sink{w: w, min: slog.LevelDebug})
	}
	return out
}

func (w *asyncWriter) loop() {
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.flushAll()
				close(w.done)
				return
			}
			if err := w.writeAll(e); err != nil {
				w.setErr(err)
			}
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write copies p and queues it. A full queue blocks the caller rather than
// dropping the line.
func (w *asyncWriter) Write(p []byte, level slog.Level) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	w.queue <- entry{line: line, level: level}
	return nil
}

// Flush waits until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(e entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if e.level < s.min {
			continue
		}
		if _, err := s.buf.Write(e.line); err != nil {
			return err
		}
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
