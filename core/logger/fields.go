package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status maps an error to the status field: ok, cancelled when the context
// ended the work, fail otherwise.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "fail"
}

// Took returns the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// Preview joins at most limit values and notes how many were left out, e.g.
// "a, b (+3 more)".
func Preview(values []string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	rest := len(values) - limit
	if limit == 0 {
		return fmt.Sprintf("(%d)", rest)
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(values[:limit], ", "), rest)
}
