package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_RunOnce(t *testing.T) {
	exec, _, clock := newTestExecutor(t, Command{Name: "/ask", Steps: []Step{Prompt{Text: "?"}}})
	require.NoError(t, exec.Execute(context.Background(), msg(1, "/ask", RoleStudent)))
	require.NoError(t, exec.Execute(context.Background(), msg(2, "/ask", RoleStudent)))

	r := NewReaper(exec, ReaperConfig{Now: clock.Now})
	assert.Equal(t, 0, r.RunOnce())

	clock.Advance(DefaultIdleTimeout + time.Second)
	assert.Equal(t, 2, r.RunOnce())
	assert.Equal(t, 0, exec.Len())
}

func TestReaper_Defaults(t *testing.T) {
	r := NewReaper(nil, ReaperConfig{})
	assert.Equal(t, 10*time.Second, r.cfg.InitialDelay)
	assert.Equal(t, 120*time.Second, r.cfg.Interval)
	assert.NotNil(t, r.cfg.Now)
}

func TestReaper_StartSweepsAndStops(t *testing.T) {
	exec, _, clock := newTestExecutor(t, Command{Name: "/ask", Steps: []Step{Prompt{Text: "?"}}})
	require.NoError(t, exec.Execute(context.Background(), msg(1, "/ask", RoleStudent)))
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewReaper(exec, ReaperConfig{InitialDelay: 10 * time.Millisecond, Interval: time.Hour, Now: clock.Now})
	r.Start(ctx)

	assert.Eventually(t, func() bool { return exec.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
}

func TestReaper_StopWaitsForFirstSweep(t *testing.T) {
	exec, _, clock := newTestExecutor(t, Command{Name: "/ask", Steps: []Step{Prompt{Text: "?"}}})

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	now := func() time.Time {
		once.Do(func() { close(started) })
		<-release
		return clock.Now()
	}
	r := NewReaper(exec, ReaperConfig{InitialDelay: time.Millisecond, Interval: time.Hour, Now: now})
	r.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the sweep was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}
}

func TestReaper_StopBeforeFirstSweep(t *testing.T) {
	exec, _, clock := newTestExecutor(t, Command{Name: "/ask", Steps: []Step{Prompt{Text: "?"}}})
	require.NoError(t, exec.Execute(context.Background(), msg(1, "/ask", RoleStudent)))
	clock.Advance(time.Hour)

	r := NewReaper(exec, ReaperConfig{InitialDelay: time.Hour, Now: clock.Now})
	r.Start(nil) //nolint:staticcheck
	r.Stop()
	assert.Equal(t, 1, exec.Len())
}
