// Package synth delivers performance events to audio renderers.
package synth

import (
	"context"
	"errors"
	"sync"

	"github.com/turquoise5/hand-music/internal/performance"
	"github.com/turquoise5/hand-music/pkg/logger"
)

// Sink receives the ordered events of one frame.
type Sink interface {
	Send(ctx context.Context, events []performance.Event) error
	Close() error
}

// TimbreSetter is implemented by sinks that can switch instrument sound.
type TimbreSetter interface {
	SetTimbre(name string) error
}

// Fanout delivers every batch to each of its sinks in order. A failing sink
// does not stop delivery to the others.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout creates a Fanout over sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Add appends a sink.
func (f *Fanout) Add(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Send implements Sink.
func (f *Fanout) Send(ctx context.Context, events []performance.Event) error {
	if len(events) == 0 {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for _, s := range f.sinks {
		if err := s.Send(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetTimbre validates name and forwards it to every sink implementing
// TimbreSetter.
func (f *Fanout) SetTimbre(name string) error {
	if _, err := Program(name); err != nil {
		return err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for _, s := range f.sinks {
		if ts, ok := s.(TimbreSetter); ok {
			if err := ts.SetTimbre(name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (f *Fanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.sinks = nil
	return errors.Join(errs...)
}

// LogSink writes each event to a logger at debug level.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(l logger.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) Send(ctx context.Context, events []performance.Event) error {
	for _, e := range events {
		s.log.Debug(ctx, "event", logger.String("event", e.String()))
	}
	return nil
}

func (s *LogSink) Close() error { return nil }
