// Package detector provides the hand detection boundary: landmark types,
// the Detector interface and its implementations.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels as reported by MediaPipe.
const (
	Left  = "Left"
	Right = "Right"
)

// ErrMalformedLandmarks is returned when a hand carries a missing or non-finite point.
var ErrMalformedLandmarks = errors.New("malformed landmarks")

// Point3D is a landmark in normalized image coordinates: x and y in [0,1]
// relative to the frame, z a unitless depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Missing marks a landmark the detector did not deliver.
func Missing() Point3D {
	nan := math.NaN()
	return Point3D{X: nan, Y: nan, Z: nan}
}

// Finite reports whether every coordinate is a real number.
func (p Point3D) Finite() bool {
	return !isBad(p.X) && !isBad(p.Y) && !isBad(p.Z)
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Validate checks the handedness label and that every point is finite.
// The returned error wraps ErrMalformedLandmarks.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: nil hand", ErrMalformedLandmarks)
	}
	if h.Handedness != Left && h.Handedness != Right {
		return fmt.Errorf("%w: handedness %q", ErrMalformedLandmarks, h.Handedness)
	}
	for i, p := range h.Points {
		if !p.Finite() {
			return fmt.Errorf("%w: point %d is not finite", ErrMalformedLandmarks, i)
		}
	}
	return nil
}

// Frame is one detector result: zero, one or two hands observed at the
// same instant. Timestamp is in Unix milliseconds.
type Frame struct {
	Hands     []HandLandmarks `json:"hands"`
	Timestamp int64           `json:"timestamp"`
}
