package detector

import (
	"context"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame captured at timestampMs and returns
	// detected hand landmarks. Returns an empty slice if no hands are detected.
	// It returns promptly with ctx's error once ctx is cancelled.
	Detect(ctx context.Context, frame *gocv.Mat, timestampMs int64) ([]HandLandmarks, error)

	// Close releases any resources held by the detector. Calling Close on a
	// detector that was never loaded, or twice, is not an error.
	Close() error
}

// Loader is implemented by detectors whose model must be loaded before the
// first Detect call. The capture session calls Load while it reports the
// "loading model" state.
type Loader interface {
	Load(ctx context.Context) error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// Script overrides the location of the MediaPipe service script.
	Script string

	// Python overrides the interpreter used to run the service.
	Python string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
