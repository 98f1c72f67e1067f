// Package render describes the per-frame contract with the point shader
// and carries a CPU reference of what the shader computes.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ayusman/mingshan/internal/blend"
)

// RGB is a linear colour with components in [0,1].
type RGB struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
}

// ParseHex parses "#RRGGBB" or "RRGGBB".
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("render: invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("render: invalid colour %q: %w", s, err)
	}
	return RGB{
		R: float32(v>>16&0xff) / 255,
		G: float32(v>>8&0xff) / 255,
		B: float32(v&0xff) / 255,
	}, nil
}

// MustParseHex is ParseHex for constants.
func MustParseHex(s string) RGB {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", to8(c.R), to8(c.G), to8(c.B))
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

func (c RGB) add(v float64) RGB {
	f := float32(v)
	return RGB{c.R + f, c.G + f, c.B + f}
}

func mixRGB(a, b RGB, t float64) RGB {
	f := float32(t)
	return RGB{
		R: a.R + (b.R-a.R)*f,
		G: a.G + (b.G-a.G)*f,
		B: a.B + (b.B-a.B)*f,
	}
}

// Reference scene constants.
const (
	DefaultColorBottom = "#0F172A"
	DefaultColorTop    = "#F8FAFC"
	DefaultPointScale  = 5.5
)

// Uniforms is the small set of values the shader reads each frame. Field
// names match the GLSL uniforms without their "u" prefix.
type Uniforms struct {
	// Time is the elapsed scene time in seconds.
	Time float32 `json:"time"`
	// Scale multiplies every point's size.
	Scale float32 `json:"scale"`
	// Disperse is the blended explosion amount in [0,1].
	Disperse float32 `json:"disperse"`
	// Rotation is the group rotation about y in radians.
	Rotation    float32 `json:"rotation"`
	ColorBottom RGB     `json:"colorBottom"`
	ColorTop    RGB     `json:"colorTop"`
}

// DefaultUniforms returns the uniforms at rest with the reference colours.
func DefaultUniforms() Uniforms {
	return Uniforms{
		Scale:       DefaultPointScale,
		ColorBottom: MustParseHex(DefaultColorBottom),
		ColorTop:    MustParseHex(DefaultColorTop),
	}
}

// UniformsFrom copies the fixed values from base and the animated ones
// from s.
func UniformsFrom(s blend.ControlState, base Uniforms) Uniforms {
	base.Time = float32(s.Elapsed.Seconds())
	base.Disperse = float32(s.Dispersion)
	base.Rotation = float32(s.Rotation)
	return base
}
