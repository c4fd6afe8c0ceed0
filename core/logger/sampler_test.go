package logger

import (
	"testing"

	coreconfig "github.com/m3rciful/coursebot/core/config"
)

func TestDebugSamplingPerComponent(t *testing.T) {
	s := newDebugSampling(1, 3)

	var tg []bool
	for i := 0; i < 6; i++ {
		tg = append(tg, s.allow("tg"))
	}
	want := []bool{true, false, false, true, false, false}
	for i := range want {
		if tg[i] != want[i] {
			t.Fatalf("tg sample %d = %v, want %v", i, tg[i], want[i])
		}
	}
	if !s.allow("session") {
		t.Fatal("first session event must pass regardless of tg traffic")
	}
}

func TestDebugSamplingDisabledAndTrace(t *testing.T) {
	s := newDebugSampling(0, 0)
	for i := 0; i < 5; i++ {
		if !s.allow("tg") {
			t.Fatal("disabled sampling must pass everything")
		}
	}
	s.configure(1, 100, true)
	for i := 0; i < 5; i++ {
		if !s.allow("tg") {
			t.Fatal("trace must pass everything")
		}
	}
}

func TestParseSampleRatio(t *testing.T) {
	cases := []struct {
		in           string
		keep, window int
		ok           bool
	}{
		{"1/50", 1, 50, true},
		{" 2 / 10 ", 2, 10, true},
		{"20", 1, 20, true},
		{"0", 0, 0, true},
		{"", 0, 0, false},
		{"x/2", 0, 0, false},
		{"-3", 0, 0, false},
	}
	for _, tc := range cases {
		keep, window, ok := parseSampleRatio(tc.in)
		if keep != tc.keep || window != tc.window || ok != tc.ok {
			t.Fatalf("parseSampleRatio(%q) = %d, %d, %v; want %d, %d, %v", tc.in, keep, window, ok, tc.keep, tc.window, tc.ok)
		}
	}
}

func TestSamplingFromConfig(t *testing.T) {
	t.Setenv("TRACE", "")
	t.Setenv("LOG_TRACE", "yes")

	cfg := &coreconfig.Config{}
	cfg.Logging.DebugSample = "bad"
	keep, window, trace := samplingFromConfig(cfg)
	if keep != defaultSampleKeep || window != defaultSampleWindow || !trace {
		t.Fatalf("got %d, %d, %v", keep, window, trace)
	}
}
