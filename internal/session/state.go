package session

import (
	"errors"
	"fmt"
)

// State is a step of the capture session lifecycle.
type State int

const (
	Uninitialized State = iota
	LoadingModel
	RequestingCamera
	Running
	Error
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case LoadingModel:
		return "LOADING_MODEL"
	case RequestingCamera:
		return "REQUESTING_CAMERA"
	case Running:
		return "RUNNING"
	case Error:
		return "ERROR"
	case Stopped:
		return "STOPPED"
	default:
		return "UNINITIALIZED"
	}
}

// Status returns the user-visible status line for the state.
func (s State) Status() string {
	switch s {
	case LoadingModel:
		return "Loading AI Model…"
	case RequestingCamera:
		return "Accessing Camera…"
	case Running:
		return "Ready"
	case Error:
		return "Camera Error"
	case Stopped:
		return "Stopped"
	default:
		return "Initializing…"
	}
}

// Active reports whether the session holds or is acquiring resources.
func (s State) Active() bool {
	return s == LoadingModel || s == RequestingCamera || s == Running
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrActive is returned by Activate while a session is already active.
var ErrActive = errors.New("session: already active")

// ErrorKind names the resource that failed.
type ErrorKind int

const (
	KindModel ErrorKind = iota
	KindCamera
)

func (k ErrorKind) String() string {
	if k == KindCamera {
		return "camera"
	}
	return "model"
}

// ResourceError reports that the detection model or the camera could not
// be acquired. It disables gesture input; nothing retries it.
type ResourceError struct {
	Kind ErrorKind
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Kind, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
