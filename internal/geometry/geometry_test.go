package geometry

import (
	"math"
	"testing"

	"github.com/turquoise5/hand-music/internal/detector"
)

const epsilon = 1e-9

func TestDistance(t *testing.T) {
	a := detector.Point3D{X: 0.1, Y: 0.2, Z: 0.0}
	b := detector.Point3D{X: 0.4, Y: 0.6, Z: 1.2}

	if got := Distance3D(a, b); math.Abs(got-1.3) > epsilon {
		t.Errorf("Distance3D = %f, want 1.3", got)
	}
	if got := Distance2D(a, b); math.Abs(got-0.5) > epsilon {
		t.Errorf("Distance2D = %f, want 0.5", got)
	}
	if got := Distance3D(a, a); got != 0 {
		t.Errorf("Distance3D to self = %f, want 0", got)
	}
}

func TestAngleOf(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want float64
	}{
		{"east", Vector{1, 0}, 0},
		{"north", Vector{0, 1}, 90},
		{"west", Vector{-1, 0}, 180},
		{"south", Vector{0, -1}, 270},
		{"minus one degree wraps to 359", Vector{math.Cos(-math.Pi / 180), math.Sin(-math.Pi / 180)}, 359},
		{"zero vector", Vector{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleOf(tt.v)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AngleOf(%+v) = %f, want %f", tt.v, got, tt.want)
			}
			if got < 0 || got >= 360 {
				t.Errorf("AngleOf(%+v) = %f outside [0,360)", tt.v, got)
			}
		})
	}

	t.Run("just below the positive x axis stays below 360", func(t *testing.T) {
		got := AngleOf(Vector{1, -1e-18})
		if got < 0 || got >= 360 {
			t.Errorf("expected angle in [0,360), got %f", got)
		}
	})
}

func TestVectorFromTo(t *testing.T) {
	// Middle knuckle straight above the wrist in image space points north.
	wrist := detector.Point3D{X: 0.5, Y: 0.8}
	knuckle := detector.Point3D{X: 0.5, Y: 0.6}

	v := VectorFromTo(wrist, knuckle)
	if math.Abs(v.X) > epsilon || math.Abs(v.Y-0.2) > epsilon {
		t.Errorf("expected (0, 0.2), got %+v", v)
	}
	if got := AngleOf(v); math.Abs(got-90) > 1e-6 {
		t.Errorf("expected 90 degrees, got %f", got)
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := map[float64]float64{-1: 359, 360: 0, 720.5: 0.5, -360: 0, 45: 45, -725: 355}
	for in, want := range tests {
		if got := NormalizeDegrees(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("NormalizeDegrees(%f) = %f, want %f", in, got, want)
		}
	}
}

func TestLinearFalloff(t *testing.T) {
	t.Run("zero at and beyond threshold", func(t *testing.T) {
		for _, d := range []float64{0.2, 0.25, 1, 100} {
			if got := LinearFalloff(d, 0.2, 0.2); got != 0 {
				t.Errorf("LinearFalloff(%f) = %f, want 0", d, got)
			}
		}
	})

	t.Run("one at or below zero distance", func(t *testing.T) {
		for _, d := range []float64{0, -0.1} {
			if got := LinearFalloff(d, 0.2, 0.2); got != 1 {
				t.Errorf("LinearFalloff(%f) = %f, want 1", d, got)
			}
			if got := LinearFalloff(d, 0.3, 0.15); got != 1 {
				t.Errorf("LinearFalloff(%f, 0.3, 0.15) = %f, want 1", d, got)
			}
		}
	})

	t.Run("monotonically non-increasing", func(t *testing.T) {
		prev := math.Inf(1)
		for d := 0.0; d <= 0.4; d += 0.005 {
			got := LinearFalloff(d, 0.3, 0.15)
			if got > prev {
				t.Fatalf("increase at d=%f: %f > %f", d, got, prev)
			}
			prev = got
		}
	})

	t.Run("midpoint", func(t *testing.T) {
		if got := LinearFalloff(0.1, 0.2, 0.2); math.Abs(got-0.5) > epsilon {
			t.Errorf("expected 0.5, got %f", got)
		}
	})

	t.Run("degenerate scale is a step", func(t *testing.T) {
		if LinearFalloff(0.1, 0.2, 0) != 1 || LinearFalloff(0.3, 0.2, 0) != 0 {
			t.Error("expected step behaviour for zero scale")
		}
	})
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 1) != 1 || Clamp(-5, 0, 1) != 0 || Clamp(0.3, 0, 1) != 0.3 {
		t.Error("Clamp returned unexpected values")
	}
	if Clamp01(1.5) != 1 {
		t.Error("Clamp01 did not clamp")
	}
}
