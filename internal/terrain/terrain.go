// Package terrain generates the static point field that forms the mountain.
//
// Terrain space is right-handed with y up. The origin is the base of the
// central peak; x and z span [-width/2, width/2] and [-depth/2, depth/2].
// Anchors and the external renderer share this space.
package terrain

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ErrInvalidDimensions is returned when count, width or depth is not positive.
var ErrInvalidDimensions = errors.New("terrain: count, width and depth must be positive")

// Reference field size.
const (
	DefaultCount = 30000
	DefaultWidth = 65.0
	DefaultDepth = 65.0
)

// Ridge is one sinusoidal detail layer: Amplitude·sin(FX·x+PX)·cos(FZ·z+PZ),
// or cos·sin when Swap is set.
type Ridge struct {
	Amplitude float64
	FX, PX    float64
	FZ, PZ    float64
	Swap      bool
}

func (r Ridge) at(x, z float64) float64 {
	if r.Swap {
		return math.Cos(r.FX*x+r.PX) * math.Sin(r.FZ*z+r.PZ) * r.Amplitude
	}
	return math.Sin(r.FX*x+r.PX) * math.Cos(r.FZ*z+r.PZ) * r.Amplitude
}

// Params shapes the height formula.
type Params struct {
	// PeakAmplitude and PeakSpread define the central peak A·exp(-r²/k).
	PeakAmplitude float64
	PeakSpread    float64
	// Ridges add rugged detail of decreasing amplitude and rising frequency.
	Ridges []Ridge
	// Jitter is the full width of the uniform noise added to each height.
	Jitter float64
	// OutskirtRadius and OutskirtFactor flatten points beyond the radius.
	OutskirtRadius float64
	OutskirtFactor float64
	// Floor is the lowest allowed height.
	Floor float64
	// ScaleMin and ScaleMax bound the per-point render size.
	ScaleMin float64
	ScaleMax float64
}

// DefaultParams returns the reference mountain.
func DefaultParams() Params {
	return Params{
		PeakAmplitude: 7.5,
		PeakSpread:    50,
		Ridges: []Ridge{
			{Amplitude: 1.2, FX: 0.4, FZ: 0.4},
			{Amplitude: 0.6, FX: 0.9, PX: 2, FZ: 1.1, PZ: 1},
			{Amplitude: 0.3, FX: 2.2, FZ: 2.5, Swap: true},
		},
		Jitter:         0.2,
		OutskirtRadius: 25,
		OutskirtFactor: 0.6,
		Floor:          -3,
		ScaleMin:       0.1,
		ScaleMax:       0.7,
	}
}

// Height evaluates the deterministic part of the height formula at (x, z),
// with noise n in [-0.5, 0.5) scaled by Jitter.
func (p Params) Height(x, z, n float64) float64 {
	r2 := x*x + z*z
	y := p.PeakAmplitude * math.Exp(-r2/p.PeakSpread)
	for _, ridge := range p.Ridges {
		y += ridge.at(x, z)
	}
	y += n * p.Jitter

	if math.Sqrt(r2) > p.OutskirtRadius {
		y *= p.OutskirtFactor
	}
	if y < p.Floor {
		y = p.Floor
	}
	return y
}

type options struct {
	params Params
	seed   uint64
	seeded bool
}

// Option configures Generate.
type Option func(*options)

// WithSeed makes generation reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// WithParams replaces the default height parameters.
func WithParams(p Params) Option {
	return func(o *options) { o.params = p }
}

// Generate builds a field of count points over a width×depth footprint.
func Generate(count int, width, depth float64, opts ...Option) (*Field, error) {
	if count <= 0 || !(width > 0) || !(depth > 0) {
		return nil, ErrInvalidDimensions
	}

	o := options{params: DefaultParams()}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.seeded {
		o.seed = uint64(time.Now().UnixNano())
	}

	rng := rand.New(rand.NewPCG(o.seed, 0x6d696e677368616e))
	p := o.params

	f := &Field{
		positions: make([]float32, count*3),
		scales:    make([]float32, count),
		phases:    make([]float32, count),
		width:     width,
		depth:     depth,
		floor:     p.Floor,
		seed:      o.seed,
	}

	for i := 0; i < count; i++ {
		x := (rng.Float64() - 0.5) * width
		z := (rng.Float64() - 0.5) * depth
		y := p.Height(x, z, rng.Float64()-0.5)

		i3 := i * 3
		f.positions[i3] = float32(x)
		f.positions[i3+1] = float32(y)
		f.positions[i3+2] = float32(z)
		f.scales[i] = float32(p.ScaleMin + rng.Float64()*(p.ScaleMax-p.ScaleMin))
		f.phases[i] = rng.Float32()
	}

	return f, nil
}
