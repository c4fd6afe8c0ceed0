package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter(writersOf(buf), 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", "app")
	LogEvent(ctx, log, slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("command", "/join"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	if len(tokens) < 6 {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter(writersOf(buf), 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-json")
	ctx = WithUpdateMeta(ctx, 11, 22, 33)

	log := slog.New(handler).With("component", "service.course")
	LogEvent(ctx, log, slog.LevelError, "group.create",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "DUPLICATE"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.course"`, `"event":"group.create"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter(writersOf(buf), 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	rawRID := "123:456:789"
	ctx := WithRID(Background(), rawRID)
	log := slog.New(handler).With("component", "app")
	LogEvent(ctx, log, slog.LevelInfo, "rid.test",
		slog.String("status", "ok"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter(writersOf(buf), 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	rawRID := "12:34:56"
	ctx := WithRID(Background(), rawRID)
	log := slog.New(handler).With("component", "app")
	LogEvent(ctx, log, slog.LevelInfo, "rid.test",
		slog.String("status", "ok"),
	)
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano to be present in JSON output, got %s", line)
	}
}

func TestStructuredHandlerSessionFields(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter(writersOf(buf), 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: formatKV,
	})
	ctx := WithCommand(WithUpdateMeta(Background(), 1, 2, 3), "/addlesson")
	ctx = WithSession(ctx, "abc")
	LogEvent(ctx, slog.New(handler).With("component", "session"), slog.LevelDebug, "session.evicted",
		slog.Duration("idle", 1500*time.Millisecond),
		slog.Duration("duration", 20*time.Millisecond),
		slog.String("outcome", "evicted"),
	)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"command=/addlesson", "session=abc", "idle_ms=1500", "duration_ms=20", "outcome=evicted", "chat_id=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	if strings.Index(line, "command=") > strings.Index(line, "session=") {
		t.Fatalf("command must precede session: %s", line)
	}
}

func TestStructuredHandlerRecordOverridesContext(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter(writersOf(buf), 1024)
	handler := newStructuredHandler(handlerConfig{writer: aw, format: formatKV})
	ctx := WithSession(WithCommand(Background(), "/ban"), "from-ctx")

	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "user.ban",
		slog.String("session", "explicit"),
		slog.String("outcome", "bogus"),
		slog.String("empty", ""),
	)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"session=explicit", "command=/ban", "component=app", "event=user.ban"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	for _, unwanted := range []string{"from-ctx", "outcome=", "empty="} {
		if strings.Contains(line, unwanted) {
			t.Fatalf("unexpected %q in %s", unwanted, line)
		}
	}
}

func TestAsyncWriterLevelFilter(t *testing.T) {
	all := &bytes.Buffer{}
	errs := &bytes.Buffer{}
	aw := newAsyncWriter([]sink{{w: all}, {w: errs, min: slog.LevelWarn}}, 1024)

	if err := aw.Write([]byte("info\n"), slog.LevelInfo); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.Write([]byte("warn\n"), slog.LevelWarn); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if all.String() != "info\nwarn\n" {
		t.Fatalf("unexpected main sink: %q", all.String())
	}
	if errs.String() != "warn\n" {
		t.Fatalf("unexpected errors sink: %q", errs.String())
	}
}

func TestHelpersNoopBeforeInit(t *testing.T) {
	if L != nil {
		t.Skip("global logger already initialized")
	}
	Info(Background(), "session", "noop")
	Error(nil, "session", "noop") //nolint:staticcheck
}

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		"35:36:1295": "z.10.zz",
		"a:b":        "a:b",
		"":           "",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Fatalf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}
