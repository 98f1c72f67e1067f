package app

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mingshan/internal/blend"
	"github.com/ayusman/mingshan/internal/config"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/render"
	"github.com/ayusman/mingshan/internal/store"
	"github.com/ayusman/mingshan/internal/terrain"
)

func testField(t *testing.T) *terrain.Field {
	t.Helper()
	f, err := terrain.Generate(2000, terrain.DefaultWidth, terrain.DefaultDepth, terrain.WithSeed(7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return f
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.Field == nil {
		cfg.Field = testField(t)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without a field should fail")
	}

	_, err := New(Config{Field: testField(t), Blender: blend.Config{DisperseAlpha: 2, RotationAlpha: 0.1}})
	if err == nil {
		t.Error("New() with alpha 2 should fail")
	}
}

func TestStep_Idle(t *testing.T) {
	a := newTestApp(t, Config{})

	initial := a.Snapshot()
	if initial.Frame != 0 || initial.Status != "Initializing…" || !initial.MarkersVisible {
		t.Errorf("initial snapshot = %+v", initial)
	}
	if initial.Uniforms.Scale != render.DefaultPointScale {
		t.Errorf("Scale = %v, want %v", initial.Uniforms.Scale, render.DefaultPointScale)
	}

	var snap Snapshot
	for i := 0; i < 10; i++ {
		snap = a.Step(time.Second / 60)
	}

	if snap.Frame != 10 {
		t.Errorf("Frame = %d, want 10", snap.Frame)
	}
	if snap.Uniforms.Disperse != 0 {
		t.Errorf("Disperse = %v, want 0", snap.Uniforms.Disperse)
	}
	if math.Abs(float64(snap.Uniforms.Rotation)-10*0.0005) > 1e-6 {
		t.Errorf("Rotation = %v, want auto spin of 0.005", snap.Uniforms.Rotation)
	}
	if snap.Gesture != gesture.KindNone || snap.Label != "Scanning..." {
		t.Errorf("Gesture = %v %q", snap.Gesture, snap.Label)
	}
	if a.Snapshot().Frame != 10 {
		t.Error("Snapshot() should return the last published frame")
	}
}

func TestStep_Disperse(t *testing.T) {
	a := newTestApp(t, Config{Blender: blend.Config{DisperseAlpha: 0.01, RotationAlpha: 0.02, AutoRotateStep: 0.0005}})

	a.Controller().Apply(gesture.Open(1.5))

	var snap Snapshot
	for i := 0; i < 200; i++ {
		snap = a.Step(time.Second / 60)
	}

	want := 1 - math.Pow(0.99, 200)
	if math.Abs(float64(snap.Uniforms.Disperse)-want) > 1e-4 {
		t.Errorf("Disperse = %v, want %v", snap.Uniforms.Disperse, want)
	}
	if snap.MarkersVisible {
		t.Error("markers should hide while dispersing")
	}
	if snap.Gesture != gesture.KindOpen || snap.Label != "DISPERSE" {
		t.Errorf("Gesture = %v %q", snap.Gesture, snap.Label)
	}

	a.Controller().Apply(gesture.Fist())
	snap = a.Step(time.Second / 60)
	if !snap.MarkersVisible {
		t.Error("markers should show again once gathering")
	}
}

func TestMarkers_Defaults(t *testing.T) {
	a := newTestApp(t, Config{})

	markers := a.Markers()
	if len(markers) != len(terrain.DefaultAnchors()) {
		t.Fatalf("Markers() = %d, want %d", len(markers), len(terrain.DefaultAnchors()))
	}

	seen := map[string]bool{}
	for _, m := range markers {
		if m.ID == "" {
			t.Errorf("marker %q has no ID", m.Name)
		}
		if seen[m.ID] {
			t.Errorf("duplicate marker ID %q", m.ID)
		}
		seen[m.ID] = true
		if m.Position.Y != m.Y+render.MarkerOffset {
			t.Errorf("marker %q at y=%v, want %v", m.Name, m.Position.Y, m.Y+render.MarkerOffset)
		}
	}

	got, ok := a.Marker(markers[0].ID)
	if !ok || got.Name != markers[0].Name {
		t.Errorf("Marker(%q) = %+v, %v", markers[0].ID, got, ok)
	}
	if _, ok := a.Marker("missing"); ok {
		t.Error("Marker(missing) should not be found")
	}

	// IDs are stable across instances.
	b := newTestApp(t, Config{})
	if b.Markers()[0].ID != markers[0].ID {
		t.Error("generated anchor IDs should be deterministic")
	}
}

func TestMarkers_SkipsInvalid(t *testing.T) {
	a := newTestApp(t, Config{Anchors: []terrain.Anchor{
		{Name: "inside", X: 0, Y: 1, Z: 0},
		{Name: "outside", X: 100, Y: 1, Z: 0},
		{Name: "", X: 0, Y: 1, Z: 0},
	}})

	markers := a.Markers()
	if len(markers) != 1 || markers[0].Name != "inside" {
		t.Errorf("Markers() = %+v", markers)
	}
}

func TestMarkers_StoreSeed(t *testing.T) {
	s := testStore(t)

	a := newTestApp(t, Config{Store: s})
	if len(a.Markers()) != len(terrain.DefaultAnchors()) {
		t.Fatalf("Markers() = %d", len(a.Markers()))
	}

	// A custom anchor added afterwards survives the next start.
	if err := s.Anchors().Create(&store.Anchor{Anchor: terrain.Anchor{Name: "camp", X: 3, Y: 2, Z: 3}}); err != nil {
		t.Fatal(err)
	}
	b := newTestApp(t, Config{Store: s})
	if len(b.Markers()) != len(terrain.DefaultAnchors())+1 {
		t.Errorf("Markers() after restart = %d", len(b.Markers()))
	}
	if n, _ := s.Anchors().Count(); n != len(terrain.DefaultAnchors())+1 {
		t.Errorf("anchors reseeded: count = %d", n)
	}
}

func TestMarkers_SameIDsWithAndWithoutStore(t *testing.T) {
	stored := newTestApp(t, Config{Store: testStore(t)}).Markers()
	plain := newTestApp(t, Config{}).Markers()

	if len(stored) != len(plain) {
		t.Fatalf("Markers() = %d stored, %d plain", len(stored), len(plain))
	}
	for i := range plain {
		if stored[i].ID != plain[i].ID {
			t.Errorf("anchor %q: stored ID %q, plain ID %q", plain[i].Name, stored[i].ID, plain[i].ID)
		}
	}
}

func TestMarkers_ReadOnly(t *testing.T) {
	a := newTestApp(t, Config{})

	got := a.Markers()
	want := got[0]
	got[0].Name = "changed"
	got[0].X = 99

	if a.Markers()[0] != want {
		t.Error("mutating the returned slice changed the app's markers")
	}
}

func TestTerrainBuffer(t *testing.T) {
	a := newTestApp(t, Config{})

	buf := a.TerrainBuffer()
	if len(buf) != a.Field().EncodedSize() {
		t.Fatalf("buffer length = %d, want %d", len(buf), a.Field().EncodedSize())
	}
	f, err := terrain.ReadField(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("ReadField() error = %v", err)
	}
	if f.Len() != a.Field().Len() {
		t.Errorf("decoded %d points, want %d", f.Len(), a.Field().Len())
	}
}

func TestLoadField_RemembersSeed(t *testing.T) {
	settings := testStore(t).Settings()
	tc := config.TerrainConfig{Count: 500, Width: 65, Depth: 65}

	first, err := LoadField(tc, settings)
	if err != nil {
		t.Fatalf("LoadField() error = %v", err)
	}
	seed, ok := settings.GetUint64(store.SettingTerrainSeed)
	if !ok || seed != first.Seed() {
		t.Fatalf("stored seed = %d, %v; want %d", seed, ok, first.Seed())
	}

	second, err := LoadField(tc, settings)
	if err != nil {
		t.Fatal(err)
	}
	if second.Seed() != first.Seed() || second.Point(10) != first.Point(10) {
		t.Error("second load should reproduce the remembered terrain")
	}
}

func TestLoadField_ConfiguredSeed(t *testing.T) {
	settings := testStore(t).Settings()

	f, err := LoadField(config.TerrainConfig{Count: 100, Width: 65, Depth: 65, Seed: 99}, settings)
	if err != nil {
		t.Fatal(err)
	}
	if f.Seed() != 99 {
		t.Errorf("Seed() = %d, want 99", f.Seed())
	}
	if _, ok := settings.GetUint64(store.SettingTerrainSeed); ok {
		t.Error("a configured seed should not be remembered")
	}

	if _, err := LoadField(config.TerrainConfig{Count: 0, Width: 65, Depth: 65}, nil); !errors.Is(err, terrain.ErrInvalidDimensions) {
		t.Errorf("LoadField(count 0) error = %v", err)
	}
}

func TestSetGestureEnabled_NoCamera(t *testing.T) {
	a := newTestApp(t, Config{})

	if err := a.SetGestureEnabled(true); !errors.Is(err, ErrNoCamera) {
		t.Errorf("SetGestureEnabled() error = %v, want ErrNoCamera", err)
	}
	if a.Session() != nil {
		t.Error("Session() should be nil without a camera")
	}
	if _, ok := a.Preview(); ok {
		t.Error("Preview() should be empty without a camera")
	}
}
