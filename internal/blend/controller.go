package blend

import (
	"sync"

	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/mailbox"
)

// Controller is the capture-side writer of blender targets. It folds each
// gesture intent into the current targets and publishes them through a
// latest-value slot, so the render loop never waits on the capture loop.
type Controller struct {
	mu      sync.Mutex
	targets Targets
	kind    gesture.Kind
	slot    mailbox.Slot[snapshot]

	onDisperse func(bool)
	onRotate   func(angle float64, ok bool)
}

type snapshot struct {
	targets Targets
	kind    gesture.Kind
}

// NewController creates a controller with idle targets published.
func NewController() *Controller {
	c := &Controller{}
	c.slot.Store(snapshot{})
	return c
}

// OnDisperse registers a callback fired when the dispersion target changes.
func (c *Controller) OnDisperse(fn func(dispersed bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisperse = fn
}

// OnRotate registers a callback fired when the rotation target changes.
// ok is false when rotation returns to the automatic spin.
func (c *Controller) OnRotate(fn func(angle float64, ok bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRotate = fn
}

// Apply merges intent into the targets. NONE keeps the dispersion target
// and releases manual rotation.
func (c *Controller) Apply(intent gesture.Intent) {
	next := Targets{}

	c.mu.Lock()
	prev := c.targets
	next.Disperse = prev.Disperse
	if disperse, ok := intent.Disperse(); ok {
		next.Disperse = disperse
	}
	next.Rotation, next.HasRotation = intent.Rotation()
	c.publish(next, intent.Kind())
	onDisperse, onRotate := c.onDisperse, c.onRotate
	c.mu.Unlock()

	notify(prev, next, onDisperse, onRotate)
}

// Reset returns the targets to idle: no dispersion, automatic spin.
func (c *Controller) Reset() {
	c.mu.Lock()
	prev := c.targets
	c.publish(Targets{}, gesture.KindNone)
	onDisperse, onRotate := c.onDisperse, c.onRotate
	c.mu.Unlock()

	notify(prev, Targets{}, onDisperse, onRotate)
}

// Targets returns the latest published targets. Safe to call from any
// goroutine; never blocks.
func (c *Controller) Targets() Targets {
	s, _ := c.slot.Load()
	return s.targets
}

// Gesture returns the kind of the last applied intent.
func (c *Controller) Gesture() gesture.Kind {
	s, _ := c.slot.Load()
	return s.kind
}

func (c *Controller) publish(t Targets, kind gesture.Kind) {
	c.targets = t
	c.kind = kind
	c.slot.Store(snapshot{targets: t, kind: kind})
}

func notify(prev, next Targets, onDisperse func(bool), onRotate func(float64, bool)) {
	if onDisperse != nil && prev.Disperse != next.Disperse {
		onDisperse(next.Disperse)
	}
	if onRotate != nil && (prev.HasRotation != next.HasRotation || prev.Rotation != next.Rotation) {
		onRotate(next.Rotation, next.HasRotation)
	}
}
