// Package app wires the terrain, the gesture session and the blender into
// one running scene.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ayusman/mingshan/internal/blend"
	"github.com/ayusman/mingshan/internal/capture"
	"github.com/ayusman/mingshan/internal/config"
	"github.com/ayusman/mingshan/internal/detector"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/logging"
	"github.com/ayusman/mingshan/internal/mailbox"
	"github.com/ayusman/mingshan/internal/metrics"
	"github.com/ayusman/mingshan/internal/render"
	"github.com/ayusman/mingshan/internal/session"
	"github.com/ayusman/mingshan/internal/store"
	"github.com/ayusman/mingshan/internal/terrain"
)

// DefaultRenderFPS is the render loop rate.
const DefaultRenderFPS = 60

// ErrNoCamera is returned by SetGestureEnabled when no camera is configured.
var ErrNoCamera = errors.New("app: gesture control unavailable without a camera")

// Config holds configuration options for the application.
type Config struct {
	Field *terrain.Field
	// Anchors is used when Store is nil. Defaults to terrain.DefaultAnchors.
	Anchors []terrain.Anchor
	Store   *store.Store

	Blender   blend.Config
	Uniforms  render.Uniforms
	RenderFPS int

	// Camera and Detector enable gesture control; both nil disables it.
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier gesture.Config
	CaptureFPS int
	Preview    bool
	// GestureEnabled activates the gesture session when Run starts.
	GestureEnabled bool

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Marker is an anchor with its rendered label position.
type Marker struct {
	terrain.Anchor
	Position render.Vec3 `json:"position"`
}

// App is the main application. It owns the render clock; the session owns
// the capture clock. They meet only in the blend controller.
type App struct {
	config Config
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	controller *blend.Controller
	session    *session.Session
	buffer     []byte

	// markers is built once in New and never changes.
	markers []Marker

	mu      sync.Mutex
	blender *blend.Blender
	frame   uint64

	snap     mailbox.Slot[Snapshot]
	enabled  atomic.Bool
	lastKind atomic.Int32

	hookMu    sync.Mutex
	onStatus  func(state session.State, status string)
	onGesture func(kind gesture.Kind)
}

// New creates a new App instance with the given configuration.
func New(cfg Config) (*App, error) {
	if cfg.Field == nil {
		return nil, errors.New("app: no terrain field")
	}
	if cfg.Blender == (blend.Config{}) {
		cfg.Blender = blend.DefaultConfig()
	}
	if err := cfg.Blender.Validate(); err != nil {
		return nil, err
	}
	if cfg.Uniforms == (render.Uniforms{}) {
		cfg.Uniforms = render.DefaultUniforms()
	}
	if cfg.RenderFPS <= 0 {
		cfg.RenderFPS = DefaultRenderFPS
	}
	if cfg.Classifier == (gesture.Config{}) {
		cfg.Classifier = gesture.DefaultConfig()
	}
	if err := cfg.Classifier.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:     cfg,
		log:        logging.Component(cfg.Logger, "app"),
		ctx:        ctx,
		cancel:     cancel,
		controller: blend.NewController(),
		blender:    blend.New(cfg.Blender),
	}

	var buf bytes.Buffer
	buf.Grow(cfg.Field.EncodedSize())
	if _, err := cfg.Field.WriteTo(&buf); err != nil {
		cancel()
		return nil, fmt.Errorf("encoding terrain: %w", err)
	}
	a.buffer = buf.Bytes()

	anchors, err := a.loadAnchors()
	if err != nil {
		cancel()
		return nil, err
	}
	for _, an := range anchors {
		if an.ID == "" {
			an.ID = store.AnchorID(an.Name)
		}
		if err := terrain.ValidateAnchor(cfg.Field, an); err != nil {
			a.log.Warn().Err(err).Msg("skipping anchor")
			continue
		}
		a.markers = append(a.markers, Marker{Anchor: an, Position: render.MarkerPosition(an)})
	}

	if cfg.Camera != nil && cfg.Detector != nil {
		a.session = session.New(session.Config{
			Camera:     cfg.Camera,
			Detector:   cfg.Detector,
			Classifier: gesture.NewClassifier(cfg.Classifier),
			Sink:       a.controller,
			OnStatus:   a.handleStatus,
			OnIntent:   a.handleIntent,
			Logger:     cfg.Logger,
			Metrics:    cfg.Metrics,
			FPS:        cfg.CaptureFPS,
			Preview:    cfg.Preview,
		})
	}

	if err := cfg.Metrics.ObserveDispersion(func() float64 {
		s, _ := a.snap.Load()
		return float64(s.Uniforms.Disperse)
	}); err != nil {
		a.log.Warn().Err(err).Msg("dispersion gauge unavailable")
	}

	a.snap.Store(a.snapshot(a.blender.State(), blend.Targets{}, 0))
	return a, nil
}

// loadAnchors reads anchors from the store, seeding the defaults into an
// empty table.
func (a *App) loadAnchors() ([]terrain.Anchor, error) {
	if a.config.Store == nil {
		if a.config.Anchors != nil {
			return a.config.Anchors, nil
		}
		return terrain.DefaultAnchors(), nil
	}

	repo := a.config.Store.Anchors()
	n, err := repo.Seed(terrain.DefaultAnchors())
	if err != nil {
		return nil, fmt.Errorf("seeding anchors: %w", err)
	}
	if n > 0 {
		a.log.Info().Int("count", n).Msg("seeded default anchors")
	}

	stored, err := repo.List()
	if err != nil {
		return nil, fmt.Errorf("loading anchors: %w", err)
	}
	anchors := make([]terrain.Anchor, len(stored))
	for i, s := range stored {
		anchors[i] = s.Anchor
	}
	return anchors, nil
}

// LoadField generates the terrain. With no configured seed it reuses the
// seed remembered in settings, so the mountain keeps its shape between runs.
func LoadField(tc config.TerrainConfig, settings *store.SettingsRepository) (*terrain.Field, error) {
	var opts []terrain.Option
	seed := tc.Seed
	if seed == 0 && settings != nil {
		seed, _ = settings.GetUint64(store.SettingTerrainSeed)
	}
	if seed != 0 {
		opts = append(opts, terrain.WithSeed(seed))
	}

	f, err := terrain.Generate(tc.Count, tc.Width, tc.Depth, opts...)
	if err != nil {
		return nil, err
	}
	if settings != nil && tc.Seed == 0 {
		if err := settings.SetUint64(store.SettingTerrainSeed, f.Seed()); err != nil {
			return nil, fmt.Errorf("saving terrain seed: %w", err)
		}
	}
	return f, nil
}

// Field returns the generated terrain.
func (a *App) Field() *terrain.Field { return a.config.Field }

// TerrainBuffer returns the encoded terrain. Callers must not modify it.
func (a *App) TerrainBuffer() []byte { return a.buffer }

// Markers returns the validated anchors and their label positions.
func (a *App) Markers() []Marker {
	return append([]Marker(nil), a.markers...)
}

// Marker returns the marker with the given anchor ID.
func (a *App) Marker(id string) (Marker, bool) {
	for _, m := range a.markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// Controller returns the blend controller fed by the session.
func (a *App) Controller() *blend.Controller { return a.controller }

// Session returns the capture session, or nil without a camera.
func (a *App) Session() *session.Session { return a.session }

// RenderFPS returns the render loop rate.
func (a *App) RenderFPS() int { return a.config.RenderFPS }

// Preview returns the latest annotated camera frame.
func (a *App) Preview() ([]byte, bool) {
	if a.session == nil {
		return nil, false
	}
	return a.session.LatestPreview()
}

// OnStatus registers a callback for session status changes.
func (a *App) OnStatus(fn func(state session.State, status string)) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.onStatus = fn
}

// OnGesture registers a callback fired when the recognised gesture changes.
func (a *App) OnGesture(fn func(kind gesture.Kind)) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.onGesture = fn
}

func (a *App) handleStatus(state session.State, status string) {
	a.hookMu.Lock()
	fn := a.onStatus
	a.hookMu.Unlock()
	if fn != nil {
		fn(state, status)
	}
}

func (a *App) handleIntent(intent gesture.Intent) {
	kind := intent.Kind()
	if gesture.Kind(a.lastKind.Swap(int32(kind))) == kind {
		return
	}
	a.hookMu.Lock()
	fn := a.onGesture
	a.hookMu.Unlock()
	if fn != nil {
		fn(kind)
	}
}

// GestureEnabled reports whether gesture control was last switched on.
func (a *App) GestureEnabled() bool { return a.enabled.Load() }

// SetGestureEnabled switches the camera session on or off and remembers
// the choice. Enabling blocks until the camera is running or fails.
func (a *App) SetGestureEnabled(enabled bool) error {
	if a.session == nil {
		return ErrNoCamera
	}
	a.enabled.Store(enabled)

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(store.SettingGestureEnabled, enabled); err != nil {
			a.log.Warn().Err(err).Msg("saving gesture setting")
		}
	}

	if !enabled {
		a.session.Deactivate()
		a.lastKind.Store(int32(gesture.KindNone))
		return nil
	}

	err := a.session.Activate(a.ctx)
	if errors.Is(err, session.ErrActive) {
		return nil
	}
	return err
}

// Close stops the session. The render loop stops with its own context.
func (a *App) Close() error {
	a.cancel()
	if a.session != nil {
		a.session.Deactivate()
	}
	return nil
}
