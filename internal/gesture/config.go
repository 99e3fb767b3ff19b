// Package gesture turns one hand's landmarks into control values. The left
// hand shapes the sound (volume and effects), the right hand plays it (pitch,
// chords and pan). Classification is pure: nothing here holds state.
package gesture

// Config holds every threshold and scale factor used by the rule sets.
// Distances are in normalized image units.
type Config struct {
	// Left hand.
	VolumeRangeDb       float64 `koanf:"volume_range_db"`
	VolumeOffsetDb      float64 `koanf:"volume_offset_db"`
	FilterThreshold     float64 `koanf:"filter_threshold"`
	FilterScale         float64 `koanf:"filter_scale"`
	DistortionThreshold float64 `koanf:"distortion_threshold"`
	DistortionScale     float64 `koanf:"distortion_scale"`
	TremoloScale        float64 `koanf:"tremolo_scale"`
	TremoloMaxHz        float64 `koanf:"tremolo_max_hz"`
	PortamentoThreshold float64 `koanf:"portamento_threshold"`

	// Right hand.
	PanSign            float64 `koanf:"pan_sign"`
	ChromaticThreshold float64 `koanf:"chromatic_threshold"`
	ChromaticSpan      int     `koanf:"chromatic_span"`
	ScaleStepThreshold float64 `koanf:"scale_step_threshold"`
	ScaleStepSpan      int     `koanf:"scale_step_span"`
	ChordGateThreshold float64 `koanf:"chord_gate_threshold"`
	ChordRootSpan      int     `koanf:"chord_root_span"`
	ChordSize          int     `koanf:"chord_size"`
	ChordStep          int     `koanf:"chord_step"`
}

// DefaultConfig returns the canonical mapping.
//
// Volume spans [-30, 0) dB over a full wrist turn. Pan is negative-signed:
// the camera image is mirrored, so a hand on the left of the frame is the
// player's right and pans right (positive).
func DefaultConfig() Config {
	return Config{
		VolumeRangeDb:       30,
		VolumeOffsetDb:      -30,
		FilterThreshold:     0.20,
		FilterScale:         0.20,
		DistortionThreshold: 0.30,
		DistortionScale:     0.15,
		TremoloScale:        20,
		TremoloMaxHz:        20,
		PortamentoThreshold: 0.20,

		PanSign:            -1,
		ChromaticThreshold: 0.25,
		ChromaticSpan:      12,
		ScaleStepThreshold: 0.18,
		ScaleStepSpan:      9,
		ChordGateThreshold: 0.14,
		ChordRootSpan:      8,
		ChordSize:          4,
		ChordStep:          2,
	}
}
