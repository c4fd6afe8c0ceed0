package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return strings.ToUpper(level)
}

// vocabulary is a closed set of values a field may carry.
type vocabulary map[string]struct{}

func newVocabulary(values ...string) vocabulary {
	v := make(vocabulary, len(values))
	for _, s := range values {
		v[s] = struct{}{}
	}
	return v
}

// match returns the canonical spelling of s and whether it belongs to v.
func (v vocabulary) match(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	_, ok := v[s]
	return s, ok
}

var (
	statusValues = newVocabulary("ok", "fail", "skip", "retry", "rate_limited", "cancelled")

	// Session outcomes reported by the executor and the reaper, plus the
	// access results of the course service.
	outcomeValues = newVocabulary(
		"ok", "fail", "cancelled", "rate_limited",
		"started", "completed", "exited", "evicted", "failed",
		"banned", "forbidden", "unknown",
	)
)

// normalizeStatus lowercases status. Unknown values are kept as written.
func normalizeStatus(status string) (string, bool) {
	return statusValues.match(status)
}

// normalizeOutcome lowercases outcome; unknown values are dropped by the
// handler.
func normalizeOutcome(outcome string) (string, bool) {
	return outcomeValues.match(outcome)
}

// defaultKeyOrder is the field order of every line. Keys that are not
// listed follow in alphabetical order.
var defaultKeyOrder = concatKeys(
	// envelope
	[]string{"ts", "level", "component", "event", "status", "rid", "rid_full", "ts_unix_nano"},
	// update
	[]string{"update_id", "user_id", "chat_id", "chat_type", "handler"},
	// session
	[]string{"command", "session", "step", "phase", "role", "outcome", "duration_ms", "idle_ms", "count", "remaining"},
	// course
	[]string{"group_id", "lesson_id", "task_id", "import_id", "target_id", "username"},
	// runtime
	[]string{"mode", "listen", "public_url", "http_code", "db", "host", "port"},
	// failure
	[]string{"reason", "err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited"},
)

func concatKeys(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
