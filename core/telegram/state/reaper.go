package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/coursebot/core/logger"
)

// ReaperConfig schedules idle-session sweeps.
type ReaperConfig struct {
	// InitialDelay postpones the first sweep; default 10s.
	InitialDelay time.Duration
	// Interval separates sweeps after the first one; default 120s.
	Interval time.Duration
	// Now replaces time.Now.
	Now func() time.Time
}

// Reaper periodically evicts idle sessions from an Executor.
type Reaper struct {
	exec *Executor
	cfg  ReaperConfig

	mu      sync.Mutex
	timer   *time.Timer
	sched   *cron.Cron
	stopped bool
	// first is closed when the delayed first sweep returns.
	first chan struct{}
}

// NewReaper prepares a reaper for exec; call Start to run it.
func NewReaper(exec *Executor, cfg ReaperConfig) *Reaper {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 10 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 120 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reaper{exec: exec, cfg: cfg}
}

// Start schedules sweeps until Stop is called or ctx is done.
func (r *Reaper) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.cfg.InitialDelay, func() {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		done := make(chan struct{})
		r.first = done
		r.mu.Unlock()

		r.RunOnce()
		close(done)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stopped {
			return
		}
		r.sched = cron.New()
		r.sched.Schedule(cron.Every(r.cfg.Interval), cron.FuncJob(func() { r.RunOnce() }))
		r.sched.Start()
	})

	logger.Info(ctx, component, "reaper.start",
		slog.Duration("initial_delay", r.cfg.InitialDelay),
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("idle_timeout", r.exec.IdleTimeout()),
	)

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			r.Stop()
		}()
	}
}

// Stop cancels pending sweeps and waits for a running one to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
	sched, first := r.sched, r.first
	r.mu.Unlock()

	if first != nil {
		<-first
	}
	if sched != nil {
		<-sched.Stop().Done()
	}
}

// RunOnce performs a single sweep and returns the number of evicted sessions.
func (r *Reaper) RunOnce() int {
	start := time.Now()
	n := r.exec.Sweep(r.cfg.Now())
	if n > 0 {
		logger.Info(context.Background(), component, "session.sweep",
			slog.Int("count", n),
			slog.Int("remaining", r.exec.Len()),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return n
}
