package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results and observe the
// load/close lifecycle.
type MockDetector struct {
	mu      sync.Mutex
	hands   []HandLandmarks
	err     error
	loadErr error
	loaded  bool
	loads   int
	closes  int
	calls   int
	block   chan struct{}
	stall   chan struct{}
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetLoadError makes Load fail with err.
func (m *MockDetector) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// BlockLoad makes Load wait until the returned function is called or the
// load context is cancelled.
func (m *MockDetector) BlockLoad() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = make(chan struct{})
	ch := m.block
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// BlockDetect makes Detect stall, like a hung detector service, until the
// returned function is called or the Detect context is cancelled.
func (m *MockDetector) BlockDetect() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stall = make(chan struct{})
	ch := m.stall
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Load marks the model as loaded, or returns the configured load error.
func (m *MockDetector) Load(ctx context.Context) error {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = true
	return nil
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) ([]HandLandmarks, error) {
	m.mu.Lock()
	m.calls++
	stall := m.stall
	m.mu.Unlock()

	if stall != nil {
		select {
		case <-stall:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close records the call and unloads the model.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.loaded = false
	return nil
}

// Loaded reports whether Load succeeded and Close has not been called since.
func (m *MockDetector) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Loads returns how many times Load ran to completion.
func (m *MockDetector) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Closes returns how many times Close was called.
func (m *MockDetector) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Calls returns how many frames were passed to Detect.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Finger extension flags for SyntheticHand, ordered thumb to pinky.
type Fingers [5]bool

// SyntheticHand builds a right hand, palm towards the camera, with its wrist
// and middle-finger MCP at normalized horizontal position centerX. Each
// finger is either fully extended or curled into the palm.
func SyntheticHand(centerX float64, extended Fingers) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}

	h.Points[Wrist] = Point3D{X: centerX, Y: 0.80}

	h.Points[ThumbCMC] = Point3D{X: centerX + 0.05, Y: 0.76}
	h.Points[ThumbMCP] = Point3D{X: centerX + 0.09, Y: 0.70}
	if extended[0] {
		h.Points[ThumbIP] = Point3D{X: centerX + 0.13, Y: 0.64}
		h.Points[ThumbTip] = Point3D{X: centerX + 0.17, Y: 0.58}
	} else {
		h.Points[ThumbIP] = Point3D{X: centerX + 0.08, Y: 0.66}
		h.Points[ThumbTip] = Point3D{X: centerX + 0.05, Y: 0.68}
	}

	offsets := [4]float64{0.04, 0, -0.04, -0.08}
	bases := [4]int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP}
	for i, base := range bases {
		x := centerX + offsets[i]
		h.Points[base] = Point3D{X: x, Y: 0.70}
		h.Points[base+1] = Point3D{X: x, Y: 0.62}
		if extended[i+1] {
			h.Points[base+2] = Point3D{X: x, Y: 0.53}
			h.Points[base+3] = Point3D{X: x, Y: 0.45}
		} else {
			h.Points[base+2] = Point3D{X: x, Y: 0.66}
			h.Points[base+3] = Point3D{X: x, Y: 0.70}
		}
	}

	return h
}

// OpenHandLandmarks returns a hand with all five fingers extended.
func OpenHandLandmarks(centerX float64) HandLandmarks {
	return SyntheticHand(centerX, Fingers{true, true, true, true, true})
}

// FistLandmarks returns a hand with every finger curled.
func FistLandmarks(centerX float64) HandLandmarks {
	return SyntheticHand(centerX, Fingers{})
}

// PointingLandmarks returns a hand with only the index finger extended.
func PointingLandmarks(centerX float64) HandLandmarks {
	return SyntheticHand(centerX, Fingers{false, true, false, false, false})
}

// ThumbOnlyLandmarks returns a hand with only the thumb extended.
func ThumbOnlyLandmarks(centerX float64) HandLandmarks {
	return SyntheticHand(centerX, Fingers{true, false, false, false, false})
}

// OpenPalmLandmarks returns a recorded-looking open palm centred in the frame.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}
