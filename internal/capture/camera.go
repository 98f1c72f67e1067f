// Package capture reads timestamped frames from a webcam through GoCV and
// renders the annotated preview shown next to the scene.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Capture defaults. Detection runs well below the camera's native rate, so
// a small frame keeps the detector helper fed without backlog.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a closed camera.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device produced no image.
	ErrNoFrame = errors.New("camera returned no frame")
)

// Frame is a captured video frame with its presentation timestamp.
type Frame struct {
	// Mat holds the pixels. It may be nil for synthetic frames.
	Mat *gocv.Mat
	// Timestamp is the frame's presentation time in milliseconds. A frame
	// whose timestamp equals the previous one carries no new image.
	Timestamp int64
	Width     int
	Height    int
}

// Close releases the frame's pixels.
func (f *Frame) Close() {
	if f != nil && f.Mat != nil {
		f.Mat.Close()
		f.Mat = nil
	}
}

// Camera is a source of timestamped frames.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// CameraConfig selects the device and the requested capture mode. Drivers
// may ignore the mode; frames report their real size.
type CameraConfig struct {
	Device int
	Width  int
	Height int
	FPS    int
}

func (c CameraConfig) withDefaults() CameraConfig {
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = DefaultWidth, DefaultHeight
	}
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	return c
}

type clockSource int

const (
	clockUnset clockSource = iota
	clockDevice
	clockWall
)

// frameClock stamps frames from one source per open. The first frame picks
// the device position when the driver reports one and the wall clock since
// open otherwise; the two are never mixed.
type frameClock struct {
	source clockSource
	start  time.Time
	last   int64
}

func (c *frameClock) reset(now time.Time) {
	*c = frameClock{start: now}
}

// next returns the timestamp for a frame read at now with driver position
// posMsec. A device clock that drops to zero or steps back repeats the last
// value, so the frame reads as stale rather than out of order.
func (c *frameClock) next(posMsec float64, now time.Time) int64 {
	if c.source == clockUnset {
		c.source = clockWall
		if posMsec > 0 {
			c.source = clockDevice
		}
	}

	var ts int64
	if c.source == clockDevice {
		ts = int64(posMsec)
	} else {
		ts = now.Sub(c.start).Milliseconds()
	}
	if ts < c.last {
		ts = c.last
	}
	c.last = ts
	return ts
}

// webcam is a Camera backed by gocv.VideoCapture.
type webcam struct {
	mu     sync.Mutex
	config CameraConfig
	vc     *gocv.VideoCapture
	clock  frameClock
}

// NewCamera returns an unopened webcam.
func NewCamera(config CameraConfig) Camera {
	return &webcam{config: config.withDefaults()}
}

// Open starts the device. Opening an open camera is a no-op.
func (c *webcam) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.config.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: device unavailable or access denied", c.config.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	c.vc = vc
	c.clock.reset(time.Now())
	return nil
}

// Close releases the device. Closing a closed camera returns nil.
func (c *webcam) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}

// ReadFrame grabs the next frame. The caller owns the returned Frame and
// must Close it.
func (c *webcam) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if !c.vc.Read(&mat) || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrame
	}

	return &Frame{
		Mat:       &mat,
		Timestamp: c.clock.next(c.vc.Get(gocv.VideoCapturePosMsec), time.Now()),
		Width:     mat.Cols(),
		Height:    mat.Rows(),
	}, nil
}

// SetFPS changes the requested rate. Non-positive values are ignored.
func (c *webcam) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps
	if c.vc != nil {
		c.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *webcam) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.FPS
}

func (c *webcam) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil
}
