// Package geometry computes distances and angles between hand landmarks.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/turquoise5/hand-music/internal/detector"
)

// Distance3D is the Euclidean distance over x, y and z.
func Distance3D(a, b detector.Point3D) float64 {
	return floats.Distance([]float64{a.X, a.Y, a.Z}, []float64{b.X, b.Y, b.Z}, 2)
}

// Distance2D is the Euclidean distance in the image plane, ignoring depth.
func Distance2D(a, b detector.Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Vector is a 2-D direction with y pointing up.
type Vector struct {
	X, Y float64
}

// VectorFromTo returns the image-plane vector from one landmark to another.
// Image y grows downward, so it is negated to give a y-up vector.
func VectorFromTo(from, to detector.Point3D) Vector {
	return Vector{X: to.X - from.X, Y: -(to.Y - from.Y)}
}

// AngleOf returns the direction of v in degrees within [0, 360).
// The zero vector has angle 0.
func AngleOf(v Vector) float64 {
	if v.X == 0 && v.Y == 0 {
		return 0
	}
	return NormalizeDegrees(math.Atan2(v.Y, v.X) * 180 / math.Pi)
}

// NormalizeDegrees wraps any angle into [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	// -tiny + 360 rounds to exactly 360 in float64.
	if d >= 360 {
		d = 0
	}
	return d
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// LinearFalloff maps a distance to a depth in [0, 1]: 0 at or beyond
// threshold, rising by 1/scale per unit of distance below it.
func LinearFalloff(distance, threshold, scale float64) float64 {
	if scale <= 0 {
		if distance < threshold {
			return 1
		}
		return 0
	}
	return Clamp01((threshold - distance) / scale)
}
