package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"fail":      errors.New("boom"),
		"cancelled": fmt.Errorf("send: %w", context.Canceled),
	}
	for want, err := range cases {
		if got := Status(err); got != want {
			t.Fatalf("Status(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestRoundMS(t *testing.T) {
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("RoundMS = %v", got)
	}
	if got := RoundMS(-time.Second); got != 0 {
		t.Fatalf("negative RoundMS = %v", got)
	}
}

func TestPreview(t *testing.T) {
	files := []string{"1_a.up.sql", "2_b.up.sql", "3_c.up.sql"}
	if got := Preview(files, 5); got != "1_a.up.sql, 2_b.up.sql, 3_c.up.sql" {
		t.Fatalf("Preview = %q", got)
	}
	if got := Preview(files, 1); got != "1_a.up.sql (+2 more)" {
		t.Fatalf("Preview = %q", got)
	}
	if got := Preview(files, 0); got != "(3)" {
		t.Fatalf("Preview = %q", got)
	}
}
