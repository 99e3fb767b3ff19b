package detector

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"testing"
)

// TestHelperProcess stands in for the Python service: it reads stdin until
// it is closed, then exits.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("HANDMUSIC_HELPER_PROCESS") != "1" {
		return
	}
	io.Copy(io.Discard, os.Stdin)
	os.Exit(0)
}

func startHelper(t *testing.T, d *MediaPipeDetector) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$")
	cmd.Env = append(os.Environ(), "HANDMUSIC_HELPER_PROCESS=1")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe() error = %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe() error = %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	d.cmd, d.stdin, d.stdout = cmd, stdin, bufio.NewReader(stdout)
	t.Cleanup(func() { d.Close() })
}

func TestMediaPipeDetector_IdleTimer(t *testing.T) {
	t.Run("stale expiry keeps the service", func(t *testing.T) {
		d := &MediaPipeDetector{}
		startHelper(t, d)

		d.mu.Lock()
		d.armIdleTimer()
		stale := d.idleGen
		d.armIdleTimer()
		d.mu.Unlock()

		if d.idleExpired(stale) {
			t.Error("a superseded timer must not stop the service")
		}
		if d.cmd == nil {
			t.Error("expected the service still running")
		}
	})

	t.Run("latest expiry stops the service", func(t *testing.T) {
		d := &MediaPipeDetector{}
		startHelper(t, d)

		d.mu.Lock()
		d.armIdleTimer()
		gen := d.idleGen
		d.mu.Unlock()

		if !d.idleExpired(gen) {
			t.Error("expected the idle service stopped")
		}
		if d.cmd != nil || d.idleTimer != nil {
			t.Error("expected process and timer cleared")
		}
		if d.idleExpired(gen) {
			t.Error("a second expiry must be a no-op")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	if _, err := NewMediaPipeDetector(Config{}); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}
