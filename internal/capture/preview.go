package capture

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/mingshan/internal/detector"
	"gocv.io/x/gocv"
)

// Preview overlay colours.
var (
	ConnectorColor = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	LandmarkColor  = color.RGBA{R: 0xA8, G: 0xA2, B: 0x9E, A: 255}
)

// Overlay geometry in pixels.
const (
	connectorThickness = 2
	landmarkRadius     = 3
)

// ErrEmptyFrame is returned when a preview is requested for a frame without pixels.
var ErrEmptyFrame = errors.New("frame has no pixels")

// PixelPoint converts a normalized landmark to pixel coordinates on a
// width×height image, flipping x when mirrored.
func PixelPoint(p detector.Point3D, width, height int, mirrored bool) image.Point {
	x := p.X
	if mirrored {
		x = 1 - x
	}
	return image.Point{
		X: int(x*float64(width) + 0.5),
		Y: int(p.Y*float64(height) + 0.5),
	}
}

// Preview renders the frame with the hand skeleton drawn over it and returns
// it JPEG-encoded. A mirrored preview is flipped horizontally, as the user
// sees themselves.
func Preview(frame *Frame, hands []detector.HandLandmarks, mirrored bool) ([]byte, error) {
	if frame == nil || frame.Mat == nil || frame.Mat.Empty() {
		return nil, ErrEmptyFrame
	}

	img := gocv.NewMat()
	defer img.Close()
	if mirrored {
		gocv.Flip(*frame.Mat, &img, 1)
	} else {
		frame.Mat.CopyTo(&img)
	}

	w, h := img.Cols(), img.Rows()
	for i := range hands {
		drawHand(&img, &hands[i], w, h, mirrored)
	}

	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

func drawHand(img *gocv.Mat, hand *detector.HandLandmarks, w, h int, mirrored bool) {
	for _, c := range detector.Connections {
		a := PixelPoint(hand.Points[c[0]], w, h, mirrored)
		b := PixelPoint(hand.Points[c[1]], w, h, mirrored)
		gocv.Line(img, a, b, ConnectorColor, connectorThickness)
	}
	for _, p := range hand.Points {
		gocv.Circle(img, PixelPoint(p, w, h, mirrored), landmarkRadius, LandmarkColor, -1)
	}
}
