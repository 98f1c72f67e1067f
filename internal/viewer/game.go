//go:build ebiten

package viewer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"

	"github.com/ayusman/mingshan/internal/app"
	"github.com/ayusman/mingshan/internal/render"
)

// maxQuads keeps each DrawTriangles batch under the uint16 index limit.
const maxQuads = 65535 / 4

// Game adapts the scene to the ebiten.Game interface. It drives the app's
// render clock itself, one Step per tick.
type Game struct {
	app    *app.App
	camera render.Camera
	log    zerolog.Logger

	width, height int

	sprites  []Sprite
	vertices []ebiten.Vertex
	indices  []uint16
	dot      *ebiten.Image

	preview    *ebiten.Image
	previewSrc []byte
	showHUD    bool
}

// New constructs a Game for the provided app.
func New(a *app.App, width, height int, log zerolog.Logger) *Game {
	return &Game{
		app:     a,
		camera:  render.DefaultCamera(),
		log:     log,
		width:   width,
		height:  height,
		dot:     newDot(16),
		showHUD: true,
	}
}

// newDot renders the round sprite texture with the cubic falloff.
func newDot(size int) *ebiten.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := (float64(x)-c)/float64(size), (float64(y)-c)/float64(size)
			d := dx*dx + dy*dy
			if d > 0.25 {
				continue
			}
			v := uint8(render.SpriteFalloff(math.Sqrt(d)) * 255)
			img.SetRGBA(x, y, color.RGBA{v, v, v, v})
		}
	}
	return ebiten.NewImageFromImage(img)
}

// Update handles input and advances the scene.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		on := !g.app.GestureEnabled()
		go func() {
			if err := g.app.SetGestureEnabled(on); err != nil {
				g.log.Warn().Err(err).Msg("gesture toggle")
			}
		}()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.showHUD = !g.showHUD
	}

	g.app.Step(time.Second / time.Duration(ebiten.TPS()))
	g.updatePreview()
	return nil
}

func (g *Game) updatePreview() {
	jpg, ok := g.app.Preview()
	if !ok || len(jpg) == 0 || (len(g.previewSrc) > 0 && &jpg[0] == &g.previewSrc[0]) {
		return
	}
	g.previewSrc = jpg
	img, err := jpeg.Decode(bytes.NewReader(jpg))
	if err != nil {
		g.log.Debug().Err(err).Msg("decoding preview")
		return
	}
	if g.preview != nil {
		g.preview.Dispose()
	}
	g.preview = ebiten.NewImageFromImage(img)
}

// Draw renders the current frame.
func (g *Game) Draw(screen *ebiten.Image) {
	snap := g.app.Snapshot()
	screen.Fill(color.Black)

	g.sprites = Project(g.app.Field(), snap.Uniforms, g.camera, g.width, g.height, g.sprites)
	g.drawSprites(screen)

	for _, l := range Labels(g.app.Markers(), snap.MarkersVisible, g.camera, g.width, g.height) {
		ebitenutil.DebugPrintAt(screen, l.Text, l.X-len(l.Text)*3, l.Y-16)
	}

	if g.preview != nil {
		op := &ebiten.DrawImageOptions{}
		b := g.preview.Bounds()
		scale := 200 / float64(b.Dx())
		op.GeoM.Scale(scale, scale)
		op.GeoM.Translate(float64(g.width)-210, 10)
		screen.DrawImage(g.preview, op)
	}

	if g.showHUD {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s  %s  %.0f fps\n[G] gesture  [H] hud  [Q] quit",
			snap.Status, snap.Label, ebiten.ActualFPS()), 10, 10)
	}
}

// drawSprites batches every sprite into textured quads with additive
// blending.
func (g *Game) drawSprites(screen *ebiten.Image) {
	sw := float32(g.dot.Bounds().Dx())
	op := &ebiten.DrawTrianglesOptions{Blend: ebiten.BlendLighter}

	for start := 0; start < len(g.sprites); start += maxQuads {
		end := min(start+maxQuads, len(g.sprites))
		g.vertices = g.vertices[:0]
		g.indices = g.indices[:0]

		for i, s := range g.sprites[start:end] {
			half := s.Size / 2
			r, gr, b, a := float32(s.Color.R)/255, float32(s.Color.G)/255, float32(s.Color.B)/255, float32(s.Color.A)/255
			base := uint16(i * 4)
			g.vertices = append(g.vertices,
				ebiten.Vertex{DstX: s.X - half, DstY: s.Y - half, SrcX: 0, SrcY: 0, ColorR: r, ColorG: gr, ColorB: b, ColorA: a},
				ebiten.Vertex{DstX: s.X + half, DstY: s.Y - half, SrcX: sw, SrcY: 0, ColorR: r, ColorG: gr, ColorB: b, ColorA: a},
				ebiten.Vertex{DstX: s.X - half, DstY: s.Y + half, SrcX: 0, SrcY: sw, ColorR: r, ColorG: gr, ColorB: b, ColorA: a},
				ebiten.Vertex{DstX: s.X + half, DstY: s.Y + half, SrcX: sw, SrcY: sw, ColorR: r, ColorG: gr, ColorB: b, ColorA: a},
			)
			g.indices = append(g.indices, base, base+1, base+2, base+1, base+3, base+2)
		}
		screen.DrawTriangles(g.vertices, g.indices, g.dot, op)
	}
}

// Layout returns the logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}
