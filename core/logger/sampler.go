package logger

import (
	"os"
	"strconv"
	"strings"
	"sync"

	coreconfig "github.com/m3rciful/coursebot/core/config"
)

const (
	defaultSampleKeep   = 1
	defaultSampleWindow = 50
)

// debugSampling thins high-volume DEBUG events. Every component counts on its
// own, so a busy transport does not hide session or service events.
type debugSampling struct {
	mu       sync.Mutex
	keep     int
	window   int
	trace    bool
	counters map[string]int
}

func newDebugSampling(keep, window int) *debugSampling {
	s := &debugSampling{}
	s.configure(keep, window, false)
	return s
}

// configure keeps keep events out of every window per component. A
// non-positive keep or window, or trace, lets everything through.
func (s *debugSampling) configure(keep, window int, trace bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep > window {
		keep = window
	}
	s.keep, s.window, s.trace = keep, window, trace
	s.counters = make(map[string]int)
}

func (s *debugSampling) allow(component string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trace || s.keep <= 0 || s.window <= 0 {
		return true
	}
	n := s.counters[component] % s.window
	s.counters[component] = n + 1
	return n < s.keep
}

// samplingFromConfig reads logging.debug_sample ("1/50", "50" or "0" for no
// sampling) and the TRACE / LOG_TRACE switches.
func samplingFromConfig(cfg *coreconfig.Config) (keep, window int, trace bool) {
	trace = envEnabled("TRACE") || envEnabled("LOG_TRACE")
	if cfg == nil {
		return defaultSampleKeep, defaultSampleWindow, trace
	}
	keep, window, ok := parseSampleRatio(cfg.Logging.DebugSample)
	if !ok {
		return defaultSampleKeep, defaultSampleWindow, trace
	}
	return keep, window, trace
}

func parseSampleRatio(spec string) (keep, window int, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, false
	}
	if num, den, found := strings.Cut(spec, "/"); found {
		k, err1 := strconv.Atoi(strings.TrimSpace(num))
		w, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil || k < 0 || w < 0 {
			return 0, 0, false
		}
		return k, w, true
	}
	w, err := strconv.Atoi(spec)
	switch {
	case err != nil || w < 0:
		return 0, 0, false
	case w == 0:
		return 0, 0, true
	}
	return 1, w, true
}

func envEnabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
