// Package blend advances the scene's continuous control variables once per
// rendered frame, easing them towards the targets set by gesture input.
package blend

import (
	"fmt"
	"time"
)

// ControlState is the current, blended animation state.
type ControlState struct {
	// Dispersion is the current explosion amount in [0,1].
	Dispersion float64
	// Rotation is the applied rotation about the vertical axis in radians.
	Rotation float64
	// Manual is true while rotation is easing towards a gesture target and
	// false while the automatic spin is in effect.
	Manual bool
	// Elapsed is the accumulated frame time.
	Elapsed time.Duration
}

// Targets are what the gesture layer asks the blender to move towards.
type Targets struct {
	Disperse    bool
	Rotation    float64
	HasRotation bool
}

// DisperseTarget returns 1 when dispersing and 0 otherwise.
func (t Targets) DisperseTarget() float64 {
	if t.Disperse {
		return 1
	}
	return 0
}

// Config holds the per-frame smoothing factors.
type Config struct {
	// DisperseAlpha is the fraction of the remaining dispersion distance
	// covered each frame. Small on purpose: the transition takes seconds.
	DisperseAlpha float64
	// RotationAlpha is the fraction of the remaining rotation distance
	// covered each frame under manual control.
	RotationAlpha float64
	// AutoRotateStep is the rotation added per frame with no target.
	AutoRotateStep float64
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		DisperseAlpha:  0.005,
		RotationAlpha:  0.02,
		AutoRotateStep: 0.0005,
	}
}

// Validate checks that both smoothing factors lie in (0,1].
func (c Config) Validate() error {
	if c.DisperseAlpha <= 0 || c.DisperseAlpha > 1 {
		return fmt.Errorf("blend: disperse alpha %v outside (0,1]", c.DisperseAlpha)
	}
	if c.RotationAlpha <= 0 || c.RotationAlpha > 1 {
		return fmt.Errorf("blend: rotation alpha %v outside (0,1]", c.RotationAlpha)
	}
	return nil
}

// Blender owns the ControlState. Only the render loop calls Step; it is not
// safe for concurrent use.
type Blender struct {
	config Config
	state  ControlState
}

// New creates a Blender at rest: no dispersion, zero rotation, automatic spin.
func New(config Config) *Blender {
	return &Blender{config: config}
}

// State returns the current state.
func (b *Blender) State() ControlState {
	return b.state
}

// Config returns the blender configuration.
func (b *Blender) Config() Config {
	return b.config
}

// Step advances one frame of dt towards t and returns the new state.
func (b *Blender) Step(dt time.Duration, t Targets) ControlState {
	if dt > 0 {
		b.state.Elapsed += dt
	}

	d := b.state.Dispersion
	d += (t.DisperseTarget() - d) * b.config.DisperseAlpha
	b.state.Dispersion = clamp01(d)

	if t.HasRotation {
		b.state.Rotation += (t.Rotation - b.state.Rotation) * b.config.RotationAlpha
		b.state.Manual = true
	} else {
		b.state.Rotation += b.config.AutoRotateStep
		b.state.Manual = false
	}

	return b.state
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
