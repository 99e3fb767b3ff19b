package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug).Named("engine")

	l.Warn(context.Background(), "classification failed",
		String("hand", "Right"),
		Int("frame", 3),
		Error(errors.New("malformed landmarks")),
	)

	out := buf.String()
	for _, want := range []string{"component=engine", "hand=Right", "frame=3", "malformed landmarks", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %s", want, out)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %s", buf.String())
	}

	l.Error(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected error record to be written")
	}
}

func TestSetLevelString(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "", "warning", "error"} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q) unexpected error: %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = SetLevelString("info")
}

func TestNop(t *testing.T) {
	// Must not panic and must be usable as a component logger.
	Nop().Named("x").Error(context.Background(), "discarded")
}
