package performance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/gesture"
	"github.com/turquoise5/hand-music/internal/music"
	"github.com/turquoise5/hand-music/pkg/logger"
)

// Recorder receives per-frame counters. *metrics.Manager satisfies it.
type Recorder interface {
	RecordClassificationFailure(reason string)
	RecordEvent(eventType string)
}

// Machine owns the state of one tracking session. It is not safe for
// concurrent use; callers deliver frames one at a time.
type Machine struct {
	cfg   Config
	scale music.Scale
	state State

	log     logger.Logger
	metrics Recorder
	now     func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used to report issues.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.metrics = r }
}

// WithClock overrides the clock used to stamp frames that arrive without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a silent machine playing the given transposed scale.
func NewMachine(cfg Config, scale music.Scale, opts ...Option) (*Machine, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:   cfg,
		scale: append(music.Scale(nil), scale...),
		state: NewState(cfg),
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Process runs one frame through the machine and returns its events.
func (m *Machine) Process(ctx context.Context, frame detector.Frame) []Event {
	if frame.Timestamp == 0 {
		frame.Timestamp = m.now().UnixMilli()
	}

	res := Step(m.cfg, m.scale, m.state, frame)
	m.state = res.State

	for _, issue := range res.Issues {
		m.report(ctx, issue)
	}
	m.count(res.Events)
	return res.Events
}

// Flush releases every sounding voice. It is called when a session stops so
// no note is left hanging.
func (m *Machine) Flush(ctx context.Context) []Event {
	st, events := Silence(m.state)
	m.state = st
	if len(events) > 0 {
		m.log.Debug(ctx, "flushed voices", logger.Int("events", len(events)))
	}
	m.count(events)
	return events
}

// Reset returns the machine to the state of a fresh session without
// emitting anything.
func (m *Machine) Reset() {
	m.state = NewState(m.cfg)
}

// Begin resets the machine for a new session and returns the ramp that moves
// the renderer to the initial volume.
func (m *Machine) Begin() []Event {
	m.Reset()
	events := []Event{RampEvent(ParamVolume, m.state.Volume.Target, 0)}
	m.count(events)
	return events
}

// SetScale switches to a new transposed scale. Sounding voices are released
// first because their pitches belong to the old scale.
func (m *Machine) SetScale(ctx context.Context, scale music.Scale) ([]Event, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	events := m.Flush(ctx)
	m.scale = append(music.Scale(nil), scale...)
	return events, nil
}

// Scale returns a copy of the scale in use.
func (m *Machine) Scale() music.Scale {
	return append(music.Scale(nil), m.scale...)
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	return m.state.clone()
}

func (m *Machine) report(ctx context.Context, issue Issue) {
	if m.metrics != nil {
		m.metrics.RecordClassificationFailure(issue.Reason())
	}
	if errors.Is(issue.Err, gesture.ErrOutOfRange) {
		m.log.Debug(ctx, "classification clamped", logger.String("hand", issue.Hand), logger.Error(issue.Err))
		return
	}
	m.log.Warn(ctx, "classification failure",
		logger.String("hand", issue.Hand),
		logger.String("reason", issue.Reason()),
		logger.Error(issue.Err))
}

func (m *Machine) count(events []Event) {
	if m.metrics == nil {
		return
	}
	for _, e := range events {
		m.metrics.RecordEvent(string(e.Type))
	}
}

func checkScale(scale music.Scale) error {
	if err := scale.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoScale, err)
	}
	return nil
}
