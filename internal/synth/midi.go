package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/turquoise5/hand-music/internal/performance"
)

// ErrPortNotFound is returned by OpenMIDI when no output port matches.
var ErrPortNotFound = errors.New("midi output port not found")

// Controller numbers used for continuous parameters.
const (
	ccPortamentoTime = 5
	ccVolume         = 7
	ccPan            = 10
	ccPortamento     = 65
	ccFilter         = 74
	ccTremolo        = 76
	ccDistortion     = 77
	ccAllNotesOff    = 123
)

// maxTremoloHz is the tremolo rate sent as CC value 127.
const maxTremoloHz = 20.0

// MIDIConfig selects the output port and channels (0-based).
type MIDIConfig struct {
	Port          string `koanf:"port"`
	MelodyChannel uint8  `koanf:"melody_channel"`
	ChordChannel  uint8  `koanf:"chord_channel"`
}

// DefaultMIDIConfig returns channels 1 and 2 with no port selected.
func DefaultMIDIConfig() MIDIConfig {
	return MIDIConfig{MelodyChannel: 0, ChordChannel: 1}
}

// Sender writes one MIDI message.
type Sender func(msg midi.Message) error

// MIDISink renders events as MIDI messages. The melody channel is kept
// monophonic: a repeated attack of the sounding pitch is not resent, and a
// new pitch ends the previous one first.
type MIDISink struct {
	mu     sync.Mutex
	send   Sender
	closer func() error
	cfg    MIDIConfig

	melody int // sounding melody pitch, -1 when silent
	chord  []uint8
}

// NewMIDISink creates a sink writing through send.
func NewMIDISink(send Sender, cfg MIDIConfig) *MIDISink {
	return &MIDISink{send: send, cfg: cfg, melody: -1}
}

// OpenMIDI opens the named output port. An empty name picks the first port.
func OpenMIDI(cfg MIDIConfig) (*MIDISink, error) {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		return nil, fmt.Errorf("%w: no ports available", ErrPortNotFound)
	}

	port := outs[0]
	if cfg.Port != "" {
		var err error
		port, err = midi.FindOutPort(cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrPortNotFound, cfg.Port)
		}
	}

	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open midi port %s: %w", port.String(), err)
	}
	s := NewMIDISink(send, cfg)
	s.closer = port.Close
	return s, nil
}

// SetTimbre sends the timbre's program change on both channels.
func (s *MIDISink) SetTimbre(name string) error {
	program, err := Program(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(
		s.send(midi.ProgramChange(s.cfg.MelodyChannel, program)),
		s.send(midi.ProgramChange(s.cfg.ChordChannel, program)),
	)
}

// Send implements Sink.
func (s *MIDISink) Send(ctx context.Context, events []performance.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, e := range events {
		if err := s.render(e); err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", e, err))
		}
	}
	return errors.Join(errs...)
}

func (s *MIDISink) render(e performance.Event) error {
	switch {
	case e.Type == performance.EventAttack && e.Voice == performance.VoiceMelody:
		if len(e.Pitches) == 0 {
			return nil
		}
		p := e.Pitches[0]
		if p == s.melody {
			return nil
		}
		var err error
		if s.melody >= 0 {
			err = s.send(midi.NoteOff(s.cfg.MelodyChannel, key(s.melody)))
		}
		s.melody = p
		return errors.Join(err, s.send(midi.NoteOn(s.cfg.MelodyChannel, key(p), velocity(e.Velocity))))

	case e.Type == performance.EventRelease && e.Voice == performance.VoiceMelody:
		if s.melody < 0 {
			return nil
		}
		old := s.melody
		s.melody = -1
		return s.send(midi.NoteOff(s.cfg.MelodyChannel, key(old)))

	case e.Type == performance.EventAttack && e.Voice == performance.VoiceChord:
		var errs []error
		for _, p := range e.Pitches {
			errs = append(errs, s.send(midi.NoteOn(s.cfg.ChordChannel, key(p), velocity(e.Velocity))))
			s.chord = append(s.chord, key(p))
		}
		return errors.Join(errs...)

	case e.Type == performance.EventRelease && e.Voice == performance.VoiceChord:
		var errs []error
		for _, p := range e.Pitches {
			errs = append(errs, s.send(midi.NoteOff(s.cfg.ChordChannel, key(p))))
			s.dropChordKey(key(p))
		}
		return errors.Join(errs...)

	case e.Type == performance.EventRamp:
		return s.ramp(e)
	}
	return nil
}

func (s *MIDISink) ramp(e performance.Event) error {
	ch := s.cfg.MelodyChannel
	switch e.Param {
	case performance.ParamVolume:
		return s.send(midi.ControlChange(ch, ccVolume, VolumeCC(e.Value)))
	case performance.ParamPan:
		return errors.Join(
			s.send(midi.ControlChange(ch, ccPan, PanCC(e.Value))),
			s.send(midi.ControlChange(s.cfg.ChordChannel, ccPan, PanCC(e.Value))),
		)
	case performance.ParamFilter:
		return s.send(midi.ControlChange(ch, ccFilter, unitCC(e.Value)))
	case performance.ParamDistortion:
		return s.send(midi.ControlChange(ch, ccDistortion, unitCC(e.Value)))
	case performance.ParamTremolo:
		return s.send(midi.ControlChange(ch, ccTremolo, unitCC(e.Value/maxTremoloHz)))
	case performance.ParamPortamento:
		if e.Value <= 0 {
			return s.send(midi.ControlChange(ch, ccPortamento, 0))
		}
		return errors.Join(
			s.send(midi.ControlChange(ch, ccPortamentoTime, uint8(min(127, math.Round(e.Value))))),
			s.send(midi.ControlChange(ch, ccPortamento, 127)),
		)
	}
	return nil
}

func (s *MIDISink) dropChordKey(k uint8) {
	for i, c := range s.chord {
		if c == k {
			s.chord = append(s.chord[:i], s.chord[i+1:]...)
			return
		}
	}
}

// Close silences anything still sounding and closes the port.
func (s *MIDISink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.melody >= 0 {
		errs = append(errs, s.send(midi.NoteOff(s.cfg.MelodyChannel, key(s.melody))))
		s.melody = -1
	}
	for _, k := range s.chord {
		errs = append(errs, s.send(midi.NoteOff(s.cfg.ChordChannel, k)))
	}
	s.chord = nil
	errs = append(errs,
		s.send(midi.ControlChange(s.cfg.MelodyChannel, ccAllNotesOff, 0)),
		s.send(midi.ControlChange(s.cfg.ChordChannel, ccAllNotesOff, 0)),
	)
	if s.closer != nil {
		errs = append(errs, s.closer())
	}
	return errors.Join(errs...)
}

// VolumeCC converts decibels to a channel volume value using the GM curve
// dB = 40*log10(v/127).
func VolumeCC(db float64) uint8 {
	if db >= 0 {
		return 127
	}
	v := 127 * math.Pow(10, db/40)
	return uint8(math.Round(math.Max(0, math.Min(127, v))))
}

// PanCC converts a pan position in [-1, 1] to 0..127 with 64 at centre.
func PanCC(pan float64) uint8 {
	pan = math.Max(-1, math.Min(1, pan))
	return uint8(math.Round((pan + 1) / 2 * 127))
}

func unitCC(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 127))
}

func key(p int) uint8 {
	return uint8(max(0, min(127, p)))
}

func velocity(v float64) uint8 {
	if v <= 0 {
		return 100
	}
	return uint8(max(1, min(127, math.Round(v*127))))
}
