package logger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ctxKey identifies one correlation field carried in a context.
type ctxKey uint8

const (
	keyRID ctxKey = iota
	keyUpdate
	keyHandler
	keyCommand
	keySession
)

// updateMeta identifies the Telegram update a context was derived from.
type updateMeta struct {
	updateID int
	userID   int64
	chatID   int64
}

func withValue[T comparable](ctx context.Context, key ctxKey, v T) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueFrom[T any](ctx context.Context, key ctxKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, ok := ctx.Value(key).(T)
	if !ok {
		return zero
	}
	return v
}

// WithRID attaches the correlation id of an update.
func WithRID(ctx context.Context, rid string) context.Context {
	return withValue(ctx, keyRID, rid)
}

// RIDFrom returns the correlation id, or "".
func RIDFrom(ctx context.Context) string { return valueFrom[string](ctx, keyRID) }

// WithUpdateMeta attaches the update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withValue(ctx, keyUpdate, updateMeta{updateID: updateID, userID: userID, chatID: chatID})
}

// The accessors below return the zero value when the field is absent.

func UpdateIDFrom(ctx context.Context) int   { return valueFrom[updateMeta](ctx, keyUpdate).updateID }
func UserIDFrom(ctx context.Context) int64   { return valueFrom[updateMeta](ctx, keyUpdate).userID }
func ChatIDFrom(ctx context.Context) int64   { return valueFrom[updateMeta](ctx, keyUpdate).chatID }
func HandlerFrom(ctx context.Context) string { return valueFrom[string](ctx, keyHandler) }
func CommandFrom(ctx context.Context) string { return valueFrom[string](ctx, keyCommand) }
func SessionFrom(ctx context.Context) string { return valueFrom[string](ctx, keySession) }

// WithHandler names the router handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	return withValue(ctx, keyHandler, handler)
}

// WithCommand records the command a chat is running so session logs carry it.
func WithCommand(ctx context.Context, command string) context.Context {
	return withValue(ctx, keyCommand, command)
}

// WithSession records the id of the command session a step runs in, so
// service and store logs can be joined with the session lifecycle events.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return withValue(ctx, keySession, sessionID)
}

// SanitizeLimit drops control and format runes (tab and newline survive)
// and cuts the result to max runes. User text goes through it before it is
// logged.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// BuildRID returns updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a BuildRID value as three dot-separated base36
// numbers. Anything else is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
