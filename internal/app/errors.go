package app

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotRunning is returned by Stop and HandleFrame without an active session.
	ErrNotRunning = errors.New("no session running")

	// ErrNoDetector is returned when a camera is configured without a detector.
	ErrNoDetector = errors.New("camera configured without a hand detector")
)
