package viewer

import (
	"testing"

	"github.com/ayusman/mingshan/internal/app"
	"github.com/ayusman/mingshan/internal/render"
	"github.com/ayusman/mingshan/internal/terrain"
)

func TestProject(t *testing.T) {
	f, err := terrain.Generate(3000, terrain.DefaultWidth, terrain.DefaultDepth, terrain.WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	u := render.DefaultUniforms()
	cam := render.DefaultCamera()

	sprites := Project(f, u, cam, 800, 600, nil)
	if len(sprites) == 0 {
		t.Fatal("no sprites projected")
	}
	if len(sprites) > f.Len() {
		t.Fatalf("%d sprites from %d points", len(sprites), f.Len())
	}
	for i, s := range sprites {
		if s.X < 0 || s.X > 800 || s.Y < 0 || s.Y > 600 {
			t.Fatalf("sprite %d off screen at (%v, %v)", i, s.X, s.Y)
		}
		if s.Size <= 0 {
			t.Fatalf("sprite %d has size %v", i, s.Size)
		}
		if s.Color.R > s.Color.A || s.Color.G > s.Color.A || s.Color.B > s.Color.A {
			t.Fatalf("sprite %d colour %v is not premultiplied", i, s.Color)
		}
	}

	// The buffer is reused.
	again := Project(f, u, cam, 800, 600, sprites)
	if len(again) != len(sprites) || &again[0] != &sprites[0] {
		t.Error("Project should reuse the output buffer")
	}
}

func TestProject_Dispersed(t *testing.T) {
	f, _ := terrain.Generate(2000, terrain.DefaultWidth, terrain.DefaultDepth, terrain.WithSeed(5))
	cam := render.DefaultCamera()

	rest := render.DefaultUniforms()
	exploded := rest
	exploded.Disperse = 1

	a := Project(f, rest, cam, 800, 600, nil)
	b := Project(f, exploded, cam, 800, 600, nil)
	if len(a) == 0 || len(b) == 0 {
		t.Error("an exploded cloud should still be partly visible")
	}
}

func TestLabels(t *testing.T) {
	markers := []app.Marker{
		{Anchor: terrain.Anchor{Name: "天子殿", Label: "Tianzi Palace"}, Position: render.Vec3{Y: 8.6}},
		{Anchor: terrain.Anchor{Name: "camp"}, Position: render.Vec3{X: 1, Y: 2, Z: 1}},
		// Behind the camera.
		{Anchor: terrain.Anchor{Name: "behind"}, Position: render.Vec3{X: 40, Y: 20, Z: 80}},
	}
	cam := render.DefaultCamera()

	if got := Labels(markers, false, cam, 800, 600); got != nil {
		t.Errorf("hidden markers produced %v", got)
	}

	got := Labels(markers, true, cam, 800, 600)
	if len(got) != 2 {
		t.Fatalf("Labels() = %v, want 2 labels", got)
	}
	if got[0].Text != "Tianzi Palace" || got[1].Text != "camp" {
		t.Errorf("label texts = %q, %q", got[0].Text, got[1].Text)
	}
	// The summit sits above the screen centre.
	if got[0].Y >= 300 {
		t.Errorf("summit label at y=%d, want above centre", got[0].Y)
	}
}
