package gesture

import "errors"

var (
	// ErrWrongHand is returned when a rule set receives the other hand.
	ErrWrongHand = errors.New("wrong hand for rule set")

	// ErrOutOfRange marks a scale index that had to be clamped. It is
	// reported, never returned from a classifier.
	ErrOutOfRange = errors.New("classification out of range")
)
