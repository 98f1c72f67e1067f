package terrain

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Point is one terrain point with its render attributes.
type Point struct {
	X, Y, Z float32
	// Scale controls the rendered point size, in [0.1, 0.7].
	Scale float32
	// Phase is a per-point random value in [0,1) that desynchronizes
	// animation and dispersion.
	Phase float32
}

// Field is an immutable set of generated points.
type Field struct {
	positions []float32
	scales    []float32
	phases    []float32
	width     float64
	depth     float64
	floor     float64
	seed      uint64
}

// Len returns the number of points.
func (f *Field) Len() int { return len(f.scales) }

// Point returns point i.
func (f *Field) Point(i int) Point {
	i3 := i * 3
	return Point{
		X:     f.positions[i3],
		Y:     f.positions[i3+1],
		Z:     f.positions[i3+2],
		Scale: f.scales[i],
		Phase: f.phases[i],
	}
}

// Positions returns a copy of the interleaved xyz buffer.
func (f *Field) Positions() []float32 { return append([]float32(nil), f.positions...) }

// Scales returns a copy of the scale buffer.
func (f *Field) Scales() []float32 { return append([]float32(nil), f.scales...) }

// Phases returns a copy of the phase buffer.
func (f *Field) Phases() []float32 { return append([]float32(nil), f.phases...) }

// Width returns the x extent of the footprint.
func (f *Field) Width() float64 { return f.width }

// Depth returns the z extent of the footprint.
func (f *Field) Depth() float64 { return f.depth }

// Floor returns the minimum height points were clamped to.
func (f *Field) Floor() float64 { return f.floor }

// Seed returns the seed the field was generated from.
func (f *Field) Seed() uint64 { return f.seed }

// Bounds returns the footprint extents on x and z.
func (f *Field) Bounds() (minX, maxX, minZ, maxZ float64) {
	return -f.width / 2, f.width / 2, -f.depth / 2, f.depth / 2
}

// Contains reports whether (x, z) lies inside the footprint.
func (f *Field) Contains(x, z float64) bool {
	return math.Abs(x) <= f.width/2 && math.Abs(z) <= f.depth/2
}

// Buffer encoding used by the external renderer.
const (
	bufferMagic   = "MSTF"
	bufferVersion = 1
)

// ErrBadBuffer is returned by ReadField for data that is not a field buffer.
var ErrBadBuffer = errors.New("terrain: not a field buffer")

type bufferHeader struct {
	Magic   [4]byte
	Version uint32
	Count   uint32
	Width   float32
	Depth   float32
	Floor   float32
}

// WriteTo writes the field as a little-endian buffer: header, count*3
// position floats, count scale floats, count phase floats.
func (f *Field) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	h := bufferHeader{
		Version: bufferVersion,
		Count:   uint32(f.Len()),
		Width:   float32(f.width),
		Depth:   float32(f.depth),
		Floor:   float32(f.floor),
	}
	copy(h.Magic[:], bufferMagic)

	for _, v := range []any{h, f.positions, f.scales, f.phases} {
		if err := binary.Write(cw, binary.LittleEndian, v); err != nil {
			return cw.n, fmt.Errorf("write field buffer: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("flush field buffer: %w", err)
	}
	return cw.n, nil
}

// EncodedSize returns the number of bytes WriteTo produces.
func (f *Field) EncodedSize() int {
	return binary.Size(bufferHeader{}) + f.Len()*5*4
}

// ReadField decodes a buffer written by WriteTo.
func ReadField(r io.Reader) (*Field, error) {
	var h bufferHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("read field header: %w", err)
	}
	if string(h.Magic[:]) != bufferMagic || h.Version != bufferVersion {
		return nil, ErrBadBuffer
	}
	if h.Count == 0 {
		return nil, ErrInvalidDimensions
	}

	n := int(h.Count)
	f := &Field{
		positions: make([]float32, n*3),
		scales:    make([]float32, n),
		phases:    make([]float32, n),
		width:     float64(h.Width),
		depth:     float64(h.Depth),
		floor:     float64(h.Floor),
	}
	for _, v := range [][]float32{f.positions, f.scales, f.phases} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read field data: %w", err)
		}
	}
	return f, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
