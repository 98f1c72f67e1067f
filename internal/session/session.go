// Package session owns the camera and landmark model for gesture control:
// it acquires them in order, feeds new frames to the classifier on its own
// clock, and releases them on teardown.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/mingshan/internal/capture"
	"github.com/ayusman/mingshan/internal/detector"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/logging"
	"github.com/ayusman/mingshan/internal/mailbox"
	"github.com/ayusman/mingshan/internal/metrics"
)

// Sink receives intents from the capture loop.
type Sink interface {
	Apply(gesture.Intent)
	// Reset returns the targets to idle when gesture input goes away.
	Reset()
}

// Config holds the collaborators of a Session.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier *gesture.Classifier
	Sink       Sink

	// OnStatus is called after every state change.
	OnStatus func(state State, status string)
	// OnIntent is called with every classified frame's intent.
	OnIntent func(gesture.Intent)

	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// FPS is the capture loop rate (default: capture.DefaultFPS).
	FPS int
	// Preview publishes a mirrored, annotated JPEG of each processed frame.
	Preview bool
}

// Stats counts capture loop outcomes since the session was created.
type Stats struct {
	Frames  int64 `json:"frames"`
	Skipped int64 `json:"skipped"`
	Errors  int64 `json:"errors"`
}

// Session is the single owner of the camera stream and the detection
// model. All methods are safe for concurrent use.
type Session struct {
	config Config
	log    zerolog.Logger

	mu     sync.Mutex
	state  State
	err    error
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	preview mailbox.Slot[[]byte]

	frames  atomic.Int64
	skipped atomic.Int64
	errs    atomic.Int64
}

// New creates an uninitialized session.
func New(config Config) *Session {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.Classifier == nil {
		config.Classifier = gesture.NewClassifier(gesture.DefaultConfig())
	}
	return &Session{
		config: config,
		log:    logging.Component(config.Logger, "session"),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the user-visible status line.
func (s *Session) Status() string {
	return s.State().Status()
}

// Err returns the resource error that moved the session to Error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns the capture loop counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:  s.frames.Load(),
		Skipped: s.skipped.Load(),
		Errors:  s.errs.Load(),
	}
}

// LatestPreview returns the most recent preview JPEG.
func (s *Session) LatestPreview() ([]byte, bool) {
	return s.preview.Load()
}

// Activate loads the model, opens the camera and starts the capture loop.
// It blocks until the loop is running or acquisition fails. A failure is
// returned as a *ResourceError after the session has moved to Error; a
// concurrent Deactivate makes it return context.Canceled.
func (s *Session) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Active() {
		s.mu.Unlock()
		return ErrActive
	}
	ctx, cancel := context.WithCancel(ctx)
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.err = nil
	s.state = LoadingModel
	s.mu.Unlock()

	s.notify(LoadingModel)

	if err := s.acquire(ctx, gen, done); err != nil {
		cancel()
		return err
	}
	return nil
}

func (s *Session) acquire(ctx context.Context, gen uint64, done chan struct{}) error {
	if l, ok := s.config.Detector.(detector.Loader); ok {
		if err := l.Load(ctx); err != nil {
			if ctx.Err() != nil {
				return s.abort(done, ctx.Err())
			}
			return s.fail(gen, done, KindModel, err)
		}
	}

	if !s.transition(gen, RequestingCamera) {
		return s.abort(done, context.Canceled)
	}

	if err := s.config.Camera.Open(); err != nil {
		return s.fail(gen, done, KindCamera, err)
	}
	s.config.Camera.SetFPS(s.config.FPS)

	// Hand over to the loop only if no Deactivate slipped in meanwhile.
	s.mu.Lock()
	if gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		return s.abort(done, context.Canceled)
	}
	s.state = Running
	s.mu.Unlock()
	s.notify(Running)

	go s.loop(ctx, gen, done)
	return nil
}

// Deactivate stops the capture loop and releases the camera and model. It
// is idempotent, may run before or during Activate, and returns only once
// nothing is left open.
func (s *Session) Deactivate() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.gen++
	changed := s.state != Uninitialized && s.state != Stopped
	if changed {
		s.state = Stopped
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if s.config.Sink != nil {
		s.config.Sink.Reset()
	}
	s.preview.Clear()

	if changed {
		s.notify(Stopped)
	}
}

// transition moves to state if gen is still the current activation.
func (s *Session) transition(gen uint64, state State) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.mu.Unlock()

	s.notify(state)
	return true
}

func (s *Session) notify(state State) {
	s.log.Info().Stringer("state", state).Str("status", state.Status()).Msg("capture session state changed")
	if s.config.OnStatus != nil {
		s.config.OnStatus(state, state.Status())
	}
}

// fail records a resource error and releases whatever was acquired.
func (s *Session) fail(gen uint64, done chan struct{}, kind ErrorKind, err error) error {
	rerr := &ResourceError{Kind: kind, Err: err}
	s.release()
	close(done)

	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.state = Error
		s.err = rerr
	}
	s.mu.Unlock()

	if !current {
		return context.Canceled
	}

	s.log.Error().Err(err).Stringer("resource", kind).Msg("gesture control disabled")
	if s.config.Sink != nil {
		s.config.Sink.Reset()
	}
	s.notify(Error)
	return rerr
}

func (s *Session) abort(done chan struct{}, err error) error {
	s.release()
	close(done)
	return err
}

func (s *Session) release() {
	if err := s.config.Camera.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing camera")
	}
	if err := s.config.Detector.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing detector")
	}
}

func (s *Session) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer s.release()

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer ticker.Stop()

	var ls loopState
	for {
		select {
		case <-ctx.Done():
			// Parent context ended without a Deactivate.
			if s.transitionFrom(gen, Running, Stopped) {
				if s.config.Sink != nil {
					s.config.Sink.Reset()
				}
			}
			return
		case <-ticker.C:
			s.processFrame(ctx, &ls)
		}
	}
}

func (s *Session) transitionFrom(gen uint64, from, to State) bool {
	s.mu.Lock()
	if gen != s.gen || s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()
	s.notify(to)
	return true
}

// loopState is owned by the capture loop goroutine.
type loopState struct {
	last int64
	seen bool
}

type frameResult int

const (
	frameProcessed frameResult = iota
	frameSkipped
	frameFailed
)

// processFrame reads one frame and, if its timestamp advanced, classifies
// it and forwards the intent.
func (s *Session) processFrame(ctx context.Context, ls *loopState) frameResult {
	frame, err := s.config.Camera.ReadFrame()
	if err != nil {
		s.errs.Add(1)
		s.config.Metrics.CaptureError(ctx, "read")
		if !errors.Is(err, capture.ErrCameraNotOpen) {
			s.log.Debug().Err(err).Msg("read frame")
		}
		return frameFailed
	}
	defer frame.Close()

	if ls.seen && frame.Timestamp == ls.last {
		s.skipped.Add(1)
		s.config.Metrics.FrameSkipped(ctx)
		return frameSkipped
	}
	ls.last, ls.seen = frame.Timestamp, true

	hands, err := s.config.Detector.Detect(ctx, frame.Mat, frame.Timestamp)
	if ctx.Err() != nil {
		// Torn down mid-frame; the loop exits on its next select.
		return frameFailed
	}
	if err != nil {
		s.errs.Add(1)
		s.config.Metrics.CaptureError(ctx, "detect")
		s.log.Debug().Err(err).Int64("ts", frame.Timestamp).Msg("detect hands")
		return frameFailed
	}

	intent := s.config.Classifier.Classify(hands)
	if s.config.Sink != nil {
		s.config.Sink.Apply(intent)
	}
	if s.config.OnIntent != nil {
		s.config.OnIntent(intent)
	}
	s.frames.Add(1)
	s.config.Metrics.FrameProcessed(ctx)
	s.config.Metrics.Intent(ctx, intent.Kind())
	s.log.Trace().Int64("ts", frame.Timestamp).Int("hands", len(hands)).Stringer("intent", intent).Msg("frame")

	if s.config.Preview && frame.Mat != nil {
		if jpg, err := capture.Preview(frame, hands, s.config.Classifier.Config().Mirror); err == nil {
			s.preview.Store(jpg)
		}
	}
	return frameProcessed
}
