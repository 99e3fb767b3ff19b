package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// Queued results are returned once each, in order; after the queue drains
// the hands set with SetHands are returned on every call.
type MockDetector struct {
	mu    sync.Mutex
	queue [][]HandLandmarks
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned once the queue is empty.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Queue appends one-shot detection results.
func (m *MockDetector) Queue(results ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, results...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued result, the configured hands, or the error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// HandBuilder places landmarks relative to the wrist to produce poses with
// known inter-landmark distances. All offsets are in normalized image units.
type HandBuilder struct {
	hand HandLandmarks
}

// curl is where every landmark sits until placed: just above the wrist,
// which reads as a closed fist to the classifier.
const curl = -0.05

// NewHand starts a closed-fist pose for the given label with the wrist at (x, y).
func NewHand(label string, x, y float64) *HandBuilder {
	b := &HandBuilder{hand: HandLandmarks{Handedness: label, Score: 0.95}}
	b.hand.Points[Wrist] = Point3D{X: x, Y: y}
	for i := 1; i < NumLandmarks; i++ {
		b.hand.Points[i] = Point3D{X: x, Y: y + curl}
	}
	return b
}

// Place puts landmark idx at (dx, dy, dz) from the wrist.
func (b *HandBuilder) Place(idx int, dx, dy, dz float64) *HandBuilder {
	w := b.hand.Points[Wrist]
	b.hand.Points[idx] = Point3D{X: w.X + dx, Y: w.Y + dy, Z: w.Z + dz}
	return b
}

// Score sets the detection confidence.
func (b *HandBuilder) Score(score float64) *HandBuilder {
	b.hand.Score = score
	return b
}

// Build returns a copy of the pose.
func (b *HandBuilder) Build() HandLandmarks {
	return b.hand
}

// ClosedHand is a fist: no articulation, no chord gate.
func ClosedHand(label string, x, y float64) HandLandmarks {
	return NewHand(label, x, y).Build()
}

// PointingHand extends the index finger 0.30 above the wrist, which selects
// chromatic mode on the right hand.
func PointingHand(x, y float64) HandLandmarks {
	return NewHand(Right, x, y).Place(IndexTip, 0, -0.30, 0).Build()
}

// SpreadThumbHand opens thumb and pinky base 0.20 apart with the index curled,
// which selects scale-step mode on the right hand.
func SpreadThumbHand(x, y float64) HandLandmarks {
	return NewHand(Right, x, y).
		Place(ThumbTip, -0.10, curl, 0).
		Place(PinkyMCP, 0.10, curl, 0).
		Build()
}

// ChordHand raises middle and ring fingers 0.20 above the wrist, opening the
// chord gate while the melody stays released.
func ChordHand(x, y float64) HandLandmarks {
	return NewHand(Right, x, y).
		Place(MiddleTip, 0, -0.20, 0).
		Place(RingTip, 0.02, -0.20, 0).
		Build()
}
