package performance

import (
	"errors"
	"fmt"

	"github.com/turquoise5/hand-music/internal/detector"
	"github.com/turquoise5/hand-music/internal/gesture"
)

var (
	// ErrAmbiguousHandedness is reported when two hands in one frame carry
	// the same label. The higher-confidence hand is kept.
	ErrAmbiguousHandedness = errors.New("ambiguous handedness")

	// ErrNoScale is returned when a machine is built or updated without a usable scale.
	ErrNoScale = errors.New("no usable scale")
)

// Issue is a recoverable problem found while stepping one frame. Issues
// never stop the frame; the affected hand is treated as absent or its
// value clamped.
type Issue struct {
	Hand string
	Err  error
}

func (i Issue) Error() string {
	if i.Hand == "" {
		return i.Err.Error()
	}
	return fmt.Sprintf("%s hand: %v", i.Hand, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Reason returns a short label for metrics.
func (i Issue) Reason() string {
	switch {
	case errors.Is(i.Err, detector.ErrMalformedLandmarks):
		return "malformed"
	case errors.Is(i.Err, ErrAmbiguousHandedness):
		return "ambiguous"
	case errors.Is(i.Err, gesture.ErrOutOfRange):
		return "out_of_range"
	default:
		return "other"
	}
}
