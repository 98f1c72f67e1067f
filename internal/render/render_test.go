package render

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ayusman/mingshan/internal/blend"
	"github.com/ayusman/mingshan/internal/terrain"
)

func near(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{"#000000", RGB{0, 0, 0}, false},
		{"#FFFFFF", RGB{1, 1, 1}, false},
		{"0F172A", RGB{15.0 / 255, 23.0 / 255, 42.0 / 255}, false},
		{"#F8FAFC", RGB{248.0 / 255, 250.0 / 255, 252.0 / 255}, false},
		{"#FFF", RGB{}, true},
		{"#GG0000", RGB{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHex() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseHex() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRGB_Hex(t *testing.T) {
	for _, s := range []string{"#0f172a", "#f8fafc", "#000000", "#ffffff"} {
		if got := MustParseHex(s).Hex(); got != s {
			t.Errorf("Hex() = %q, want %q", got, s)
		}
	}
	if got := (RGB{2, -1, 0.5}).Hex(); got != "#ff0080" {
		t.Errorf("Hex() clamps to %q, want #ff0080", got)
	}
}

func TestUniformsFrom(t *testing.T) {
	base := DefaultUniforms()
	u := UniformsFrom(blend.ControlState{
		Dispersion: 0.25,
		Rotation:   -1.5,
		Manual:     true,
		Elapsed:    2500 * time.Millisecond,
	}, base)

	if u.Time != 2.5 || u.Disperse != 0.25 || u.Rotation != -1.5 {
		t.Errorf("UniformsFrom() = %+v", u)
	}
	if u.Scale != DefaultPointScale || u.ColorBottom != base.ColorBottom || u.ColorTop != base.ColorTop {
		t.Errorf("fixed uniforms not carried from base: %+v", u)
	}
}

func TestRotateY(t *testing.T) {
	v := RotateY(Vec3{1, 2, 0}, math.Pi/2)
	if !near(v.X, 0, 1e-12) || v.Y != 2 || !near(v.Z, -1, 1e-12) {
		t.Errorf("RotateY() = %+v, want (0, 2, -1)", v)
	}

	w := RotateY(Vec3{3, 0, 4}, 1.234)
	if !near(math.Hypot(w.X, w.Z), 5, 1e-12) {
		t.Errorf("RotateY() changed horizontal radius: %+v", w)
	}
}

func TestDisplace_AtRest(t *testing.T) {
	u := DefaultUniforms()
	f, err := terrain.Generate(500, terrain.DefaultWidth, terrain.DefaultDepth, terrain.WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}

	for _, tm := range []float32{0, 10, 1000} {
		u.Time = tm
		for i := 0; i < f.Len(); i++ {
			p := f.Point(i)
			v := Displace(p, u)
			if math.Abs(v.X-float64(p.X)) > 0.1+1e-9 ||
				math.Abs(v.Z-float64(p.Z)) > 0.1+1e-9 ||
				math.Abs(v.Y-float64(p.Y)) > 0.2+1e-9 {
				t.Fatalf("t=%v point %d drifted too far: %+v -> %+v", tm, i, p, v)
			}
		}
	}
}

func TestDisplace_BelowCutoff(t *testing.T) {
	p := terrain.Point{X: 3, Y: 2, Z: -4, Scale: 0.3, Phase: 0.6}
	u := DefaultUniforms()
	u.Time = 4

	rest := Displace(p, u)
	u.Disperse = 0.01
	if got := Displace(p, u); got != rest {
		t.Errorf("dispersion at the cutoff moved the point: %+v vs %+v", got, rest)
	}
}

func TestDisplace_SpiralPreservesRadius(t *testing.T) {
	p := terrain.Point{X: 10, Y: 1, Z: 0, Phase: 0}
	u := DefaultUniforms()

	rest := Displace(p, u)
	u.Disperse = 1
	twisted := Displace(p, u)

	if !near(math.Hypot(rest.X, rest.Z), math.Hypot(twisted.X, twisted.Z), 1e-9) {
		t.Errorf("spiral changed radius: %+v -> %+v", rest, twisted)
	}
	if twisted.Y != rest.Y {
		t.Errorf("zero-phase point should not rise: %v -> %v", rest.Y, twisted.Y)
	}
	if near(rest.X, twisted.X, 1e-3) {
		t.Error("expected the spiral twist to move the point")
	}
}

func TestDisplace_Explodes(t *testing.T) {
	p := terrain.Point{X: 0, Y: 0, Z: 0, Phase: 0.1}
	u := DefaultUniforms()

	rest := Displace(p, u)
	u.Disperse = 1
	v := Displace(p, u)

	// (sin(1.5)*5+2) * 35 * 0.1
	want := (math.Sin(1.5)*5 + 2) * 3.5
	if !near(v.Y-rest.Y, want, 1e-4) {
		t.Errorf("rise = %v, want %v", v.Y-rest.Y, want)
	}
}

func TestDisplace_Rotation(t *testing.T) {
	p := terrain.Point{X: 8, Y: 3, Z: 0, Phase: 0.5}
	u := DefaultUniforms()
	u.Rotation = math.Pi

	v := Displace(p, u)
	if v.X > -7.8 {
		t.Errorf("half turn should mirror x: %+v", v)
	}
}

func TestSmoothstep(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{-1, 0}, {0.1, 0}, {0.5, 0.5}, {0.9, 1}, {2, 1},
	}
	for _, tt := range tests {
		if got := Smoothstep(0.1, 0.9, tt.x); !near(got, tt.want, 1e-12) {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestShade(t *testing.T) {
	u := DefaultUniforms()

	bottom, a := Shade(-2, 0, 0, u)
	if bottom != u.ColorBottom || !near(a, 0.75, 1e-12) {
		t.Errorf("valley = %+v alpha %v, want bottom colour alpha 0.75", bottom, a)
	}

	top, _ := Shade(6, 0, 0, u)
	if !near(float64(top.R), float64(u.ColorTop.R), 1e-6) || !near(float64(top.B), float64(u.ColorTop.B), 1e-6) {
		t.Errorf("summit = %+v, want top colour", top)
	}

	if _, a := Shade(0, 0, 30, u); a != 0 {
		t.Errorf("alpha at the fade edge = %v, want 0", a)
	}
	if _, a := Shade(0, 0, 21, u); !near(a, 0.375, 1e-12) {
		t.Errorf("alpha halfway through the fade = %v, want 0.375", a)
	}
}

func TestShade_Sparkle(t *testing.T) {
	u := DefaultUniforms()
	phase := math.Pi / 2 / 80

	c, a := Shade(-2, phase, 0, u)
	if a < 2.4 {
		t.Errorf("sparkling alpha = %v, want > 2.4", a)
	}
	if !near(float64(c.R), float64(u.ColorBottom.R)+0.8, 1e-6) {
		t.Errorf("sparkle should brighten colour, got %+v", c)
	}
}

func TestSpriteFalloff(t *testing.T) {
	if SpriteFalloff(0) != 1 || SpriteFalloff(0.5) != 0.125 {
		t.Errorf("SpriteFalloff = %v, %v", SpriteFalloff(0), SpriteFalloff(0.5))
	}
}

func TestCamera_Project(t *testing.T) {
	c := DefaultCamera()
	const w, h = 800, 600

	center, ok := c.Project(Vec3{}, w, h)
	if !ok || !near(center.X, w/2, 1e-9) || !near(center.Y, h/2, 1e-9) {
		t.Fatalf("target projects to %+v ok=%v, want viewport centre", center, ok)
	}
	if !near(center.Depth, math.Sqrt(20*20+10*10+40*40), 1e-9) {
		t.Errorf("Depth = %v", center.Depth)
	}

	if p, _ := c.Project(Vec3{0, 5, 0}, w, h); p.Y >= center.Y {
		t.Errorf("higher point should project above centre: %+v", p)
	}
	if p, _ := c.Project(Vec3{5, 0, -2.5}, w, h); p.X <= center.X {
		t.Errorf("point to the right should project right of centre: %+v", p)
	}
	if _, ok := c.Project(Vec3{40, 20, 80}, w, h); ok {
		t.Error("point behind the camera must not project")
	}
}

func TestPointSize(t *testing.T) {
	if got := PointSize(DefaultUniforms(), 0.5, 50); !near(got, 5.5, 1e-6) {
		t.Errorf("PointSize() = %v, want 5.5", got)
	}
}

func TestShader(t *testing.T) {
	for _, name := range ShaderNames {
		src, err := Shader(name)
		if err != nil {
			t.Fatalf("Shader(%q) error = %v", name, err)
		}
		if !bytes.Contains(src, []byte("uTime")) {
			t.Errorf("%s does not declare uTime", name)
		}
	}

	vert, _ := Shader("terrain.vert")
	for _, u := range []string{"uDisperse", "uRotation", "uScale", "aRandom", "aScale"} {
		if !bytes.Contains(vert, []byte(u)) {
			t.Errorf("vertex shader missing %s", u)
		}
	}

	if _, err := Shader("missing.glsl"); !errors.Is(err, ErrUnknownShader) {
		t.Errorf("Shader(missing) error = %v, want ErrUnknownShader", err)
	}
}

func TestMarkers(t *testing.T) {
	if !MarkersVisible(blend.Targets{}) {
		t.Error("markers should show at rest")
	}
	if MarkersVisible(blend.Targets{Disperse: true, HasRotation: true}) {
		t.Error("markers should hide while dispersing")
	}

	a := terrain.Anchor{Name: "summit", X: 0, Y: 7.8, Z: 0}
	if got := MarkerPosition(a); !near(got.Y, 8.6, 1e-12) || got.X != 0 || got.Z != 0 {
		t.Errorf("MarkerPosition() = %+v", got)
	}
}
