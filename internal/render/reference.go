package render

import (
	"math"

	"github.com/ayusman/mingshan/internal/blend"
	"github.com/ayusman/mingshan/internal/terrain"
)

// Vec3 is a point in terrain space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Length returns the vector length.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Shader constants shared by the CPU reference and the GLSL sources.
const (
	driftSpeed      = 0.02
	driftAmplitude  = 0.1
	breathAmplitude = 0.2
	explodeRange    = 35
	disperseCutoff  = 0.01
	spiralTwist     = 3.14 * 0.5

	heightOffset = 2
	heightSpan   = 8
	fadeStart    = 12
	fadeEnd      = 30

	sparkleThreshold = 0.985

	// MarkerOffset lifts anchor markers above their anchor point.
	MarkerOffset = 0.8
)

// RotateY rotates v about the vertical axis by angle radians, counter-clockwise
// seen from above.
func RotateY(v Vec3, angle float64) Vec3 {
	s, c := math.Sincos(angle)
	return Vec3{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}

// Displace returns the world position of p for the frame described by u:
// group rotation, slow drift and breathing, then the dispersion explosion
// with its spiral twist.
func Displace(p terrain.Point, u Uniforms) Vec3 {
	v := RotateY(Vec3{float64(p.X), float64(p.Y), float64(p.Z)}, float64(u.Rotation))

	t := float64(u.Time) * driftSpeed
	phase := float64(p.Phase) * 6.28

	v.X += math.Cos(t+v.Y*0.2+phase) * driftAmplitude
	v.Z += math.Sin(t+v.X*0.2+phase) * driftAmplitude
	v.Y += math.Sin(t*0.5+v.Z*0.1+phase) * breathAmplitude

	d := float64(u.Disperse)
	if d > disperseCutoff {
		r := float64(p.Phase)
		time := float64(u.Time)
		explode := d * explodeRange * r
		v.X += math.Cos(r*10+time*0.1) * 2 * explode
		v.Y += (math.Sin(r*15)*5 + 2) * explode
		v.Z += math.Sin(r*20+time*0.1) * 2 * explode

		s, c := math.Sincos(d * spiralTwist)
		x, z := v.X, v.Z
		v.X = x*c - z*s
		v.Z = x*s + z*c
	}
	return v
}

// Smoothstep is the GLSL smoothstep.
func Smoothstep(edge0, edge1, x float64) float64 {
	t := clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Shade returns the colour and alpha of a point at the given displaced
// elevation and horizontal distance from the peak axis. Alpha excludes the
// per-fragment sprite falloff; multiply by SpriteFalloff for a fragment.
func Shade(elevation, phase, distance float64, u Uniforms) (RGB, float64) {
	h := clamp((elevation+heightOffset)/heightSpan, 0, 1)
	color := mixRGB(u.ColorBottom, u.ColorTop, Smoothstep(0.1, 0.9, h))

	time := float64(u.Time)
	flicker := math.Sin(time*0.1 + phase*50)
	light := Smoothstep(-1, 1, flicker)*0.5 + 0.5

	var sparkle float64
	if math.Sin(time*0.15+phase*80) >= sparkleThreshold {
		sparkle = 1
	}
	light += sparkle * 1.5

	edgeFade := 1 - Smoothstep(fadeStart, fadeEnd, distance)

	return color.add(sparkle * 0.8), light * edgeFade
}

// SpriteFalloff returns the round point-sprite intensity at distance d
// from the sprite centre, with d in [0, 0.5] for in-sprite fragments.
func SpriteFalloff(d float64) float64 {
	s := 1 - d
	return s * s * s
}

// ShadePoint displaces p and shades it in one call.
func ShadePoint(p terrain.Point, u Uniforms) (Vec3, RGB, float64) {
	v := Displace(p, u)
	c, a := Shade(v.Y, float64(p.Phase), math.Hypot(v.X, v.Z), u)
	return v, c, a
}

// MarkersVisible reports whether anchor markers are drawn. They are hidden
// as soon as dispersion is requested, not when it has played out.
func MarkersVisible(t blend.Targets) bool {
	return !t.Disperse
}

// MarkerPosition returns where the marker for a is drawn. Markers stay in
// unrotated terrain space.
func MarkerPosition(a terrain.Anchor) Vec3 {
	return Vec3{a.X, a.Y + MarkerOffset, a.Z}
}
