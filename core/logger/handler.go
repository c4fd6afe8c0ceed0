package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler writes every record as one kv or JSON line. Identifiers
// kept in the context (update, chat, command, session) are merged into the
// line unless the record sets them itself.
type structuredHandler struct {
	cfg    handlerConfig
	enc    encoder
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg, enc: newEncoder(cfg.format, cfg.keyOrder)}
}

// Enabled reports whether records of level are written.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle renders r and hands the line to the async writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}

	e := newLogLine(r.Time, r.Level, h.cfg.format == formatJSON)
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		e.add(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(prefix, a)
		return true
	})
	e.mergeContext(ctx)
	e.finish(r.Message)

	line, err := h.enc.encode(e.fields)
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'), r.Level)
}

// WithAttrs returns a copy of the handler carrying attrs.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a copy of the handler that prefixes keys with name.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// logLine collects the fields of one log line.
type logLine struct {
	fields map[string]any
	json   bool
}

func newLogLine(t time.Time, level slog.Level, json bool) *logLine {
	ts := t.UTC()
	e := &logLine{fields: make(map[string]any, 16), json: json}
	e.fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	e.fields["level"] = normalizeLevel(level.String())
	if json {
		e.fields["ts_unix_nano"] = ts.UnixNano()
	}
	return e
}

// add flattens a (possibly grouped) attribute into dotted keys.
func (e *logLine) add(prefix string, a slog.Attr) {
	key := a.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := fieldValue(key, v); ok {
		e.fields[k] = val
	}
}

// contextFields are copied from the context when the record lacks them.
var contextFields = []struct {
	key string
	get func(context.Context) (any, bool)
}{
	{"rid", func(ctx context.Context) (any, bool) { v := RIDFrom(ctx); return v, v != "" }},
	{"update_id", func(ctx context.Context) (any, bool) { v := UpdateIDFrom(ctx); return v, v != 0 }},
	{"user_id", func(ctx context.Context) (any, bool) { v := UserIDFrom(ctx); return v, v != 0 }},
	{"chat_id", func(ctx context.Context) (any, bool) { v := ChatIDFrom(ctx); return v, v != 0 }},
	{"handler", func(ctx context.Context) (any, bool) { v := HandlerFrom(ctx); return v, v != "" }},
	{"command", func(ctx context.Context) (any, bool) { v := CommandFrom(ctx); return v, v != "" }},
	{"session", func(ctx context.Context) (any, bool) { v := SessionFrom(ctx); return v, v != "" }},
}

func (e *logLine) mergeContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	for _, f := range contextFields {
		if _, set := e.fields[f.key]; set {
			continue
		}
		if v, ok := f.get(ctx); ok {
			e.fields[f.key] = v
		}
	}
}

// finish applies the line conventions: compact rid (full one kept in JSON),
// event and component defaults, known status/outcome spellings, no empty
// values.
func (e *logLine) finish(message string) {
	if rid, _ := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != "" && short != rid {
			if _, kept := e.fields["rid_full"]; e.json && !kept {
				e.fields["rid_full"] = rid
			}
			e.fields["rid"] = short
		}
	}
	if ev, _ := e.str("event"); ev == "" {
		if ev = message; ev == "" {
			ev = "unknown"
		}
		e.fields["event"] = ev
	}
	if c, _ := e.str("component"); c == "" {
		e.fields["component"] = "app"
	}
	if s, _ := e.str("status"); s != "" {
		if norm, ok := normalizeStatus(s); ok {
			e.fields["status"] = norm
		}
	}
	if o, _ := e.str("outcome"); o != "" {
		if norm, ok := normalizeOutcome(o); ok {
			e.fields["outcome"] = norm
		} else {
			delete(e.fields, "outcome")
		}
	}
	for k, v := range e.fields {
		if isEmpty(v) {
			delete(e.fields, k)
		}
	}
}

func (e *logLine) str(key string) (string, bool) {
	v, ok := e.fields[key]
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case fmt.Stringer:
		return x.String(), true
	}
	return fmt.Sprint(v), true
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case fmt.Stringer:
		return x.String() == ""
	}
	return false
}

// fieldValue converts a slog value into what the encoders print. Durations
// are written in milliseconds under a key ending in _ms.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey renames duration attributes so the unit is part of the key:
// duration -> duration_ms, idle -> idle_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
