// Package performance holds the cross-frame state of a tracking session and
// turns classified hands into an ordered stream of musical events.
package performance

import "github.com/turquoise5/hand-music/internal/gesture"

// Config controls event emission.
type Config struct {
	// RampMs is the duration attached to every continuous parameter ramp.
	RampMs int `koanf:"ramp_ms"`
	// RampDeadband suppresses a ramp until its target moves by more than this.
	RampDeadband float64 `koanf:"ramp_deadband"`
	// Velocity is the hint attached to every attack, in (0, 1].
	Velocity float64 `koanf:"velocity"`
	// GlideMs is the portamento time sent while portamento is on.
	GlideMs int `koanf:"glide_ms"`
	// InitialVolumeDb is where the volume ramp starts for a new session.
	InitialVolumeDb float64 `koanf:"initial_volume_db"`
	// ReleaseChordOnGateDrop releases a held chord as soon as the chord
	// gesture is dropped instead of waiting for every hand to leave.
	ReleaseChordOnGateDrop bool `koanf:"release_chord_on_gate_drop"`

	Gesture gesture.Config `koanf:"-"`
}

// DefaultConfig returns the defaults used by a new session.
func DefaultConfig() Config {
	return Config{
		RampMs:          100,
		RampDeadband:    0.01,
		Velocity:        0.8,
		GlideMs:         70,
		InitialVolumeDb: -10,
		Gesture:         gesture.DefaultConfig(),
	}
}
