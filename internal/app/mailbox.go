package app

import (
	"sync"
	"time"

	"github.com/turquoise5/hand-music/internal/detector"
)

// envelope carries a frame together with the time it entered the pipeline.
type envelope struct {
	frame    detector.Frame
	received time.Time
}

// mailbox holds at most one pending frame. A newer frame replaces an
// unconsumed older one, so the consumer always works on the latest
// observation.
type mailbox struct {
	mu sync.Mutex
	ch chan envelope
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan envelope, 1)}
}

// put stores env and reports whether a pending frame was overwritten.
func (m *mailbox) put(env envelope) (dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case m.ch <- env:
		return false
	default:
	}

	// Only the consumer receives, so the slot is free once drained.
	select {
	case <-m.ch:
		dropped = true
	default:
	}
	m.ch <- env
	return dropped
}

// recv returns the channel the consumer reads from.
func (m *mailbox) recv() <-chan envelope {
	return m.ch
}
