package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromFlags(t *testing.T) {
	cases := []struct {
		verbose, quiet, silent bool
		want                   slog.Level
	}{
		{false, false, false, slog.LevelWarn},
		{true, false, false, slog.LevelDebug},
		{false, true, false, slog.LevelError},
		{true, true, false, slog.LevelError},
		{true, true, true, LevelSilent},
	}
	for _, c := range cases {
		if got := LevelFromFlags(c.verbose, c.quiet, c.silent); got != c.want {
			t.Fatalf("flags %+v got %v want %v", c, got, c.want)
		}
	}
}

func TestNewDropsTime(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf, slog.LevelDebug).Warn("skipped file", "path", "a.bin")
	out := buf.String()
	if strings.Contains(out, "time=") {
		t.Fatalf("time should be dropped: %q", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "path=a.bin") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, LevelSilent)
	l.Error("boom")
	if buf.Len() != 0 {
		t.Fatalf("silent logger wrote output: %q", buf.String())
	}
	Discard().Error("nothing")
}
