package app

import (
	"context"
	"time"

	"github.com/ayusman/mingshan/internal/blend"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/render"
	"github.com/ayusman/mingshan/internal/session"
)

// Snapshot is everything a renderer needs for one frame.
type Snapshot struct {
	Frame          uint64          `json:"frame"`
	Uniforms       render.Uniforms `json:"uniforms"`
	Gesture        gesture.Kind    `json:"gesture"`
	Label          string          `json:"label"`
	State          session.State   `json:"state"`
	Status         string          `json:"status"`
	MarkersVisible bool            `json:"markersVisible"`
	GestureEnabled bool            `json:"gestureEnabled"`
}

// Snapshot returns the most recently rendered frame state.
func (a *App) Snapshot() Snapshot {
	s, _ := a.snap.Load()
	return s
}

// Run drives the render clock until ctx ends. If gesture control is
// enabled in the config, the session is activated in the background.
//
// Pipeline logic:
// 1. Read the latest targets from the controller (never blocks)
// 2. Step the blender once per tick
// 3. Publish a Snapshot for the server, the viewer and the tray
func (a *App) Run(ctx context.Context) error {
	if a.config.GestureEnabled && a.session != nil {
		go func() {
			if err := a.SetGestureEnabled(true); err != nil {
				a.log.Warn().Err(err).Msg("gesture control unavailable")
			}
		}()
	}

	interval := time.Second / time.Duration(a.config.RenderFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.log.Info().Int("fps", a.config.RenderFPS).Int("points", a.config.Field.Len()).Msg("render loop started")
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("render loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			a.Step(now.Sub(last))
			last = now
		}
	}
}

// Step advances the scene by one frame of duration dt and publishes the
// result. It is safe to call without Run, which tests and the desktop
// viewer do.
func (a *App) Step(dt time.Duration) Snapshot {
	targets := a.controller.Targets()

	a.mu.Lock()
	state := a.blender.Step(dt, targets)
	a.frame++
	frame := a.frame
	a.mu.Unlock()

	snap := a.snapshot(state, targets, frame)
	a.snap.Store(snap)
	a.config.Metrics.RenderFrame(context.Background())
	return snap
}

func (a *App) snapshot(state blend.ControlState, targets blend.Targets, frame uint64) Snapshot {
	kind := a.controller.Gesture()
	snap := Snapshot{
		Frame:          frame,
		Uniforms:       render.UniformsFrom(state, a.config.Uniforms),
		Gesture:        kind,
		Label:          kind.Label(),
		MarkersVisible: render.MarkersVisible(targets),
		GestureEnabled: a.enabled.Load(),
	}
	if a.session != nil {
		snap.State = a.session.State()
	}
	snap.Status = snap.State.Status()
	return snap
}
