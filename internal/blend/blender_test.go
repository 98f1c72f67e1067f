package blend

import (
	"math"
	"testing"
	"time"

	"github.com/ayusman/mingshan/internal/gesture"
)

const frame = time.Second / 60

func TestBlender_DispersionConvergence(t *testing.T) {
	tests := []struct {
		name   string
		alpha  float64
		frames int
	}{
		{"reference alpha", 0.005, 600},
		{"end to end alpha", 0.01, 200},
		{"fast alpha", 0.05, 50},
		{"alpha one snaps", 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(Config{DisperseAlpha: tt.alpha, RotationAlpha: 0.02})

			var state ControlState
			for i := 1; i <= tt.frames; i++ {
				state = b.Step(frame, Targets{Disperse: true})
				want := 1 - math.Pow(1-tt.alpha, float64(i))
				if math.Abs(state.Dispersion-want) > 1e-9 {
					t.Fatalf("frame %d: dispersion = %v, want %v", i, state.Dispersion, want)
				}
				if state.Dispersion < 0 || state.Dispersion > 1 {
					t.Fatalf("frame %d: dispersion %v out of [0,1]", i, state.Dispersion)
				}
			}
		})
	}
}

func TestBlender_EndToEndDispersion(t *testing.T) {
	b := New(Config{DisperseAlpha: 0.01, RotationAlpha: 0.02})

	var state ControlState
	for i := 0; i < 200; i++ {
		state = b.Step(frame, Targets{Disperse: true})
	}

	if math.Abs(state.Dispersion-0.866) > 0.001 {
		t.Errorf("after 200 frames dispersion = %v, want ~0.866", state.Dispersion)
	}
}

func TestBlender_GatherReturnsToZero(t *testing.T) {
	b := New(DefaultConfig())

	for i := 0; i < 500; i++ {
		b.Step(frame, Targets{Disperse: true})
	}
	peak := b.State().Dispersion

	prev := peak
	for i := 0; i < 5000; i++ {
		s := b.Step(frame, Targets{})
		if s.Dispersion > prev || s.Dispersion < 0 {
			t.Fatalf("frame %d: dispersion %v not decaying monotonically from %v", i, s.Dispersion, prev)
		}
		prev = s.Dispersion
	}
	if prev > 0.001 {
		t.Errorf("dispersion should approach 0, got %v", prev)
	}
}

func TestBlender_AutoRotate(t *testing.T) {
	b := New(DefaultConfig())

	for i := 1; i <= 100; i++ {
		s := b.Step(frame, Targets{})
		if s.Manual {
			t.Fatal("no target must keep automatic rotation")
		}
		want := 0.0005 * float64(i)
		if math.Abs(s.Rotation-want) > 1e-12 {
			t.Fatalf("frame %d: rotation = %v, want %v", i, s.Rotation, want)
		}
	}
}

func TestBlender_ManualRotationLerp(t *testing.T) {
	b := New(DefaultConfig())

	target := Targets{Rotation: 2, HasRotation: true}
	prevGap := 2.0
	for i := 0; i < 300; i++ {
		s := b.Step(frame, target)
		if !s.Manual {
			t.Fatal("expected manual mode with a rotation target")
		}
		gap := math.Abs(2 - s.Rotation)
		if gap >= prevGap {
			t.Fatalf("frame %d: rotation gap did not shrink (%v >= %v)", i, gap, prevGap)
		}
		prevGap = gap
	}

	// Manual control is faster than dispersion: after 300 frames at 0.02
	// only (0.98)^300 of the gap remains.
	want := 2 * math.Pow(0.98, 300)
	if math.Abs(prevGap-want) > 1e-9 {
		t.Errorf("remaining gap = %v, want %v", prevGap, want)
	}
}

func TestBlender_ResumeAutoWithoutSnapBack(t *testing.T) {
	b := New(DefaultConfig())

	for i := 0; i < 120; i++ {
		b.Step(frame, Targets{Rotation: -1.2, HasRotation: true})
	}
	held := b.State().Rotation

	s := b.Step(frame, Targets{})
	if s.Manual {
		t.Error("expected automatic mode after releasing the target")
	}
	if math.Abs(s.Rotation-(held+0.0005)) > 1e-12 {
		t.Errorf("rotation after release = %v, want %v (continue from current)", s.Rotation, held+0.0005)
	}
}

func TestBlender_ElapsedTime(t *testing.T) {
	b := New(DefaultConfig())

	b.Step(10*time.Millisecond, Targets{})
	b.Step(25*time.Millisecond, Targets{})
	b.Step(0, Targets{})
	s := b.Step(-5*time.Millisecond, Targets{})

	if s.Elapsed != 35*time.Millisecond {
		t.Errorf("Elapsed = %v, want 35ms", s.Elapsed)
	}
}

func TestBlender_IndependentBlends(t *testing.T) {
	b := New(DefaultConfig())

	// Rotation under manual control does not disturb dispersion.
	for i := 0; i < 50; i++ {
		b.Step(frame, Targets{Rotation: 3, HasRotation: true})
	}
	if d := b.State().Dispersion; d != 0 {
		t.Errorf("dispersion moved without a disperse target: %v", d)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero disperse alpha", Config{DisperseAlpha: 0, RotationAlpha: 0.02}, true},
		{"disperse alpha above one", Config{DisperseAlpha: 1.5, RotationAlpha: 0.02}, true},
		{"negative rotation alpha", Config{DisperseAlpha: 0.01, RotationAlpha: -0.1}, true},
		{"both one", Config{DisperseAlpha: 1, RotationAlpha: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestController_Apply(t *testing.T) {
	c := NewController()

	if got := c.Targets(); got != (Targets{}) {
		t.Fatalf("initial targets = %+v, want idle", got)
	}

	c.Apply(gesture.Open(1.5))
	if got := c.Targets(); !got.Disperse || !got.HasRotation || got.Rotation != 1.5 {
		t.Errorf("after OPEN targets = %+v", got)
	}
	if c.Gesture() != gesture.KindOpen {
		t.Errorf("Gesture() = %v, want OPEN", c.Gesture())
	}

	c.Apply(gesture.None())
	if got := c.Targets(); !got.Disperse || got.HasRotation {
		t.Errorf("NONE must hold disperse and release rotation, got %+v", got)
	}

	c.Apply(gesture.Pointing(-0.4))
	if got := c.Targets(); got.Disperse || !got.HasRotation || got.Rotation != -0.4 {
		t.Errorf("after POINTING targets = %+v", got)
	}

	c.Apply(gesture.Fist())
	if got := c.Targets(); got.Disperse || got.HasRotation {
		t.Errorf("after FIST targets = %+v", got)
	}
}

func TestController_Callbacks(t *testing.T) {
	c := NewController()

	var disperses []bool
	type rot struct {
		angle float64
		ok    bool
	}
	var rotations []rot

	c.OnDisperse(func(d bool) { disperses = append(disperses, d) })
	c.OnRotate(func(a float64, ok bool) { rotations = append(rotations, rot{a, ok}) })

	c.Apply(gesture.Open(1))
	c.Apply(gesture.Open(1)) // unchanged, no callbacks
	c.Apply(gesture.None())  // disperse held, rotation released
	c.Apply(gesture.Fist())  // disperse false

	wantDisperse := []bool{true, false}
	if len(disperses) != len(wantDisperse) {
		t.Fatalf("disperse callbacks = %v, want %v", disperses, wantDisperse)
	}
	for i := range wantDisperse {
		if disperses[i] != wantDisperse[i] {
			t.Errorf("disperse callback %d = %v, want %v", i, disperses[i], wantDisperse[i])
		}
	}

	wantRot := []rot{{1, true}, {0, false}}
	if len(rotations) != len(wantRot) {
		t.Fatalf("rotate callbacks = %v, want %v", rotations, wantRot)
	}
	for i := range wantRot {
		if rotations[i] != wantRot[i] {
			t.Errorf("rotate callback %d = %v, want %v", i, rotations[i], wantRot[i])
		}
	}
}

func TestController_Reset(t *testing.T) {
	c := NewController()
	var last *bool
	c.OnDisperse(func(d bool) { last = &d })

	c.Apply(gesture.Open(2))
	c.Reset()

	if got := c.Targets(); got != (Targets{}) {
		t.Errorf("targets after Reset = %+v, want idle", got)
	}
	if c.Gesture() != gesture.KindNone {
		t.Errorf("gesture after Reset = %v, want NONE", c.Gesture())
	}
	if last == nil || *last {
		t.Error("Reset should report dispersion returning to false")
	}
}

func TestBlenderWithController(t *testing.T) {
	c := NewController()
	b := New(Config{DisperseAlpha: 0.01, RotationAlpha: 0.05, AutoRotateStep: 0.0005})

	c.Apply(gesture.Open(1.5))
	var s ControlState
	for i := 0; i < 200; i++ {
		s = b.Step(frame, c.Targets())
	}

	if math.Abs(s.Dispersion-(1-math.Pow(0.99, 200))) > 1e-9 {
		t.Errorf("dispersion = %v", s.Dispersion)
	}
	if math.Abs(s.Rotation-1.5) > 0.01 {
		t.Errorf("rotation = %v, want close to 1.5", s.Rotation)
	}
}
