// Package config defines the hand-music process configuration and how it is
// loaded: defaults, then an optional YAML file, then HANDMUSIC_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/gesture"
	"github.com/turquoise5/hand-music/internal/music"
	"github.com/turquoise5/hand-music/internal/performance"
	"github.com/turquoise5/hand-music/internal/synth"
	"github.com/turquoise5/hand-music/pkg/logger"
)

// Session is the musical selection a session starts with.
type Session struct {
	Scale  string `koanf:"scale"`
	Key    string `koanf:"key"`
	Timbre string `koanf:"timbre"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database holding presets and session history.
	DBPath string `koanf:"db_path"`

	// Camera enables local capture. When false, frames only arrive through
	// the landmarks websocket.
	Camera   bool `koanf:"camera"`
	CameraID int  `koanf:"camera_id"`
	FPS      int  `koanf:"fps"`

	// Tray shows the system tray menu.
	Tray bool `koanf:"tray"`

	Detector    detector.Config    `koanf:"detector"`
	MIDI        synth.MIDIConfig   `koanf:"midi"`
	Session     Session            `koanf:"session"`
	Mapping     gesture.Config     `koanf:"mapping"`
	Performance performance.Config `koanf:"performance"`
}

// New returns a Config populated with defaults.
func New() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogLevel:    "info",
		Addr:        ":8080",
		DBPath:      filepath.Join(home, ".hand-music", "hand-music.db"),
		Camera:      true,
		CameraID:    0,
		FPS:         15,
		Tray:        true,
		Detector:    detector.DefaultConfig(),
		MIDI:        synth.DefaultMIDIConfig(),
		Session:     Session{Scale: "ionian", Key: "C", Timbre: synth.DefaultTimbre},
		Mapping:     gesture.DefaultConfig(),
		Performance: performance.DefaultConfig(),
	}
}

// PerformanceConfig returns the state machine configuration with the gesture
// mapping attached.
func (c *Config) PerformanceConfig() performance.Config {
	p := c.Performance
	p.Gesture = c.Mapping
	return p
}

// Validate checks every section and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	if c.FPS <= 0 || c.FPS > 120 {
		return invalid("fps must be in 1..120, got %d", c.FPS)
	}

	d := c.Detector
	if d.MaxHands < 1 {
		return invalid("detector.max_hands must be at least 1")
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 || d.MinTrackingConf < 0 || d.MinTrackingConf > 1 {
		return invalid("detector confidences must be in [0,1]")
	}

	if c.MIDI.MelodyChannel > 15 || c.MIDI.ChordChannel > 15 {
		return invalid("midi channels must be 0..15")
	}

	if _, err := music.Resolve(c.Session.Scale, c.Session.Key); err != nil {
		return invalid("session: %v", err)
	}
	if _, err := synth.Program(c.Session.Timbre); err != nil {
		return invalid("session: %v", err)
	}

	m := c.Mapping
	if m.ChordSize < 1 || m.ChordStep < 1 {
		return invalid("mapping.chord_size and mapping.chord_step must be positive")
	}
	if m.PanSign != 1 && m.PanSign != -1 {
		return invalid("mapping.pan_sign must be 1 or -1, got %v", m.PanSign)
	}
	if m.VolumeRangeDb <= 0 {
		return invalid("mapping.volume_range_db must be positive")
	}

	p := c.Performance
	if p.RampMs < 0 || p.GlideMs < 0 {
		return invalid("performance durations must not be negative")
	}
	if p.Velocity <= 0 || p.Velocity > 1 {
		return invalid("performance.velocity must be in (0,1]")
	}
	if p.RampDeadband < 0 {
		return invalid("performance.ramp_deadband must not be negative")
	}
	return nil
}
