// Package viewer draws the scene on the desktop. The projection in this
// file is headless; the ebiten game lives behind the ebiten build tag.
package viewer

import (
	"image/color"
	"math"

	"github.com/ayusman/mingshan/internal/app"
	"github.com/ayusman/mingshan/internal/render"
	"github.com/ayusman/mingshan/internal/terrain"
)

// Sprite is one projected point.
type Sprite struct {
	X, Y  float32
	Size  float32
	Color color.RGBA
}

// Label is a projected anchor label.
type Label struct {
	X, Y int
	Text string
}

// minAlpha drops sprites that would be invisible.
const minAlpha = 1.0 / 255

// Project displaces, shades and projects every point of f into out, which
// is reused to avoid per-frame allocation.
func Project(f *terrain.Field, u render.Uniforms, cam render.Camera, width, height int, out []Sprite) []Sprite {
	out = out[:0]
	w, h := float64(width), float64(height)
	for i := 0; i < f.Len(); i++ {
		p := f.Point(i)
		v, c, a := render.ShadePoint(p, u)
		if a < minAlpha {
			continue
		}
		pr, ok := cam.Project(v, w, h)
		if !ok || pr.X < 0 || pr.X > w || pr.Y < 0 || pr.Y > h {
			continue
		}
		out = append(out, Sprite{
			X:     float32(pr.X),
			Y:     float32(pr.Y),
			Size:  float32(render.PointSize(u, p.Scale, pr.Depth)),
			Color: toRGBA(c, a),
		})
	}
	return out
}

// Labels projects the visible markers. It returns nil while markers are
// hidden.
func Labels(markers []app.Marker, visible bool, cam render.Camera, width, height int) []Label {
	if !visible {
		return nil
	}
	labels := make([]Label, 0, len(markers))
	for _, m := range markers {
		pr, ok := cam.Project(m.Position, float64(width), float64(height))
		if !ok {
			continue
		}
		text := m.Label
		if text == "" {
			text = m.Name
		}
		labels = append(labels, Label{X: int(math.Round(pr.X)), Y: int(math.Round(pr.Y)), Text: text})
	}
	return labels
}

func toRGBA(c render.RGB, alpha float64) color.RGBA {
	a := math.Min(alpha, 1)
	ch := func(v float32) uint8 {
		return uint8(math.Round(math.Min(math.Max(float64(v), 0), 1) * a * 255))
	}
	// Premultiplied, as ebiten expects.
	return color.RGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: uint8(math.Round(a * 255))}
}
