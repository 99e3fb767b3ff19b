package app

import (
	"testing"

	"github.com/turquoise5/hand-music/internal/detector"
)

func TestMailbox_KeepsLatest(t *testing.T) {
	box := newMailbox()

	if box.put(envelope{frame: detector.Frame{Timestamp: 1}}) {
		t.Error("first put must not drop")
	}
	if !box.put(envelope{frame: detector.Frame{Timestamp: 2}}) {
		t.Error("second put should overwrite the pending frame")
	}

	got := <-box.recv()
	if got.frame.Timestamp != 2 {
		t.Errorf("expected latest frame 2, got %d", got.frame.Timestamp)
	}

	select {
	case env := <-box.recv():
		t.Errorf("expected empty mailbox, got frame %d", env.frame.Timestamp)
	default:
	}

	if box.put(envelope{frame: detector.Frame{Timestamp: 3}}) {
		t.Error("put into an empty mailbox must not drop")
	}
}
