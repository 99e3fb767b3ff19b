package gesture

import (
	"fmt"
	"math"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/geometry"
	"github.com/turquoise5/hand-music/internal/music"
)

// LeftControl is the modulation hand's reading for one frame.
type LeftControl struct {
	VolumeDb        float64
	FilterDepth     float64
	DistortionDepth float64
	TremoloRateHz   float64
	Portamento      bool

	// WristAngle is the palm direction in degrees, kept for diagnostics.
	WristAngle float64
}

// Articulation is the right hand's melodic outcome for one frame.
type Articulation int

const (
	// Release lets go of the sounding melody note.
	Release Articulation = iota
	// Chromatic plays semitones down from the top of the scale.
	Chromatic
	// ScaleStep plays degrees of the transposed scale.
	ScaleStep
)

func (a Articulation) String() string {
	switch a {
	case Chromatic:
		return "chromatic"
	case ScaleStep:
		return "scale-step"
	default:
		return "release"
	}
}

// RightControl is the pitch hand's reading for one frame.
type RightControl struct {
	// InFrame is false when the wrist sits on or outside the frame edge; no
	// other field is meaningful then.
	InFrame bool

	Pan          float64
	Articulation Articulation
	Pitch        int

	ChordGate bool
	ChordRoot int

	// Clamped reports that a computed scale index fell outside the scale.
	Clamped bool
}

// ClassifyLeft reads volume and effect depths from the modulation hand.
func ClassifyLeft(cfg Config, hand *detector.HandLandmarks) (LeftControl, error) {
	if err := check(hand, detector.Left); err != nil {
		return LeftControl{}, err
	}
	p := &hand.Points

	angle := geometry.AngleOf(geometry.VectorFromTo(p[detector.Wrist], p[detector.MiddleMCP]))
	volume := math.Floor(angle/360*cfg.VolumeRangeDb + cfg.VolumeOffsetDb)

	filter := geometry.LinearFalloff(
		geometry.Distance3D(p[detector.ThumbTip], p[detector.PinkyMCP]),
		cfg.FilterThreshold, cfg.FilterScale)

	distortion := geometry.LinearFalloff(
		geometry.Distance3D(p[detector.MiddleTip], p[detector.Wrist]),
		cfg.DistortionThreshold, cfg.DistortionScale)

	pinch := geometry.Distance3D(p[detector.IndexTip], p[detector.ThumbTip])
	tremolo := geometry.Clamp(math.Floor(pinch*cfg.TremoloScale), 0, cfg.TremoloMaxHz)

	portamento := geometry.Distance3D(p[detector.PinkyTip], p[detector.Wrist]) < cfg.PortamentoThreshold

	return LeftControl{
		VolumeDb:        volume,
		FilterDepth:     filter,
		DistortionDepth: distortion,
		TremoloRateHz:   tremolo,
		Portamento:      portamento,
		WristAngle:      angle,
	}, nil
}

// ClassifyRight reads pan, the melodic articulation and the chord gate from
// the pitch hand. scale must already be transposed into the session key.
func ClassifyRight(cfg Config, scale music.Scale, hand *detector.HandLandmarks) (RightControl, error) {
	if err := check(hand, detector.Right); err != nil {
		return RightControl{}, err
	}
	if len(scale) == 0 {
		return RightControl{}, fmt.Errorf("%w: empty scale", ErrOutOfRange)
	}
	p := &hand.Points
	wrist := p[detector.Wrist]

	if wrist.X <= 0 || wrist.Y <= 0 || wrist.X >= 1 || wrist.Y >= 1 {
		return RightControl{}, nil
	}

	out := RightControl{
		InFrame: true,
		Pan:     cfg.PanSign * (2*geometry.Clamp01(wrist.X) - 1),
	}
	y := wrist.Y

	// Priority: an extended index finger wins over a spread thumb.
	switch {
	case geometry.Distance2D(p[detector.IndexTip], wrist) > cfg.ChromaticThreshold:
		out.Articulation = Chromatic
		out.Pitch = scale.Top() - int(math.Floor(y*float64(cfg.ChromaticSpan)))
	case geometry.Distance2D(p[detector.ThumbTip], p[detector.PinkyMCP]) > cfg.ScaleStepThreshold:
		out.Articulation = ScaleStep
		idx := int(math.Floor(float64(len(scale)-1) - y*float64(cfg.ScaleStepSpan)))
		pitch, ok := scale.At(idx)
		out.Pitch = pitch
		out.Clamped = !ok
	default:
		out.Articulation = Release
	}

	if geometry.Distance2D(p[detector.MiddleTip], wrist) > cfg.ChordGateThreshold &&
		geometry.Distance2D(p[detector.RingTip], wrist) > cfg.ChordGateThreshold {
		root := int(math.Floor((1 - y) * float64(cfg.ChordRootSpan)))
		if root < 0 || root > len(scale)-1 {
			root = max(0, min(root, len(scale)-1))
			out.Clamped = true
		}
		out.ChordGate = true
		out.ChordRoot = root
	}

	return out, nil
}

// ChordPitches builds a chord of size notes on scale degree root, stacking
// every step-th degree and folding back down by len(scale)-1 degrees when the
// stack runs past the top of the scale.
func ChordPitches(scale music.Scale, root, size, step int) []int {
	if len(scale) < 2 || size <= 0 {
		return nil
	}
	span := len(scale) - 1
	pitches := make([]int, 0, size)
	for i := 0; i < size; i++ {
		idx := root + step*i
		for idx > span {
			idx -= span
		}
		pitch, _ := scale.At(idx)
		pitches = append(pitches, pitch)
	}
	return pitches
}

func check(hand *detector.HandLandmarks, label string) error {
	if err := hand.Validate(); err != nil {
		return err
	}
	if hand.Handedness != label {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongHand, hand.Handedness, label)
	}
	return nil
}
