package capture

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/ayusman/mingshan/internal/detector"
	"gocv.io/x/gocv"
)

func TestPixelPoint(t *testing.T) {
	tests := []struct {
		name     string
		p        detector.Point3D
		mirrored bool
		want     image.Point
	}{
		{"origin", detector.Point3D{X: 0, Y: 0}, false, image.Point{0, 0}},
		{"origin mirrored", detector.Point3D{X: 0, Y: 0}, true, image.Point{640, 0}},
		{"quarter", detector.Point3D{X: 0.25, Y: 0.5}, false, image.Point{160, 240}},
		{"quarter mirrored", detector.Point3D{X: 0.25, Y: 0.5}, true, image.Point{480, 240}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PixelPoint(tt.p, 640, 480, tt.mirrored); got != tt.want {
				t.Errorf("PixelPoint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreview_Empty(t *testing.T) {
	if _, err := Preview(nil, nil, true); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Preview(nil) error = %v, want ErrEmptyFrame", err)
	}
	if _, err := Preview(&Frame{Timestamp: 1}, nil, true); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Preview(no pixels) error = %v, want ErrEmptyFrame", err)
	}
}

func TestPreview_EncodesJPEG(t *testing.T) {
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()

	hands := []detector.HandLandmarks{detector.OpenHandLandmarks(0.3)}
	jpg, err := Preview(&Frame{Mat: &mat, Width: 640, Height: 480}, hands, true)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !bytes.HasPrefix(jpg, []byte{0xFF, 0xD8}) {
		t.Error("Preview() did not return a JPEG")
	}

	decoded, err := gocv.IMDecode(jpg, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("IMDecode() error = %v", err)
	}
	defer decoded.Close()
	if decoded.Cols() != 640 || decoded.Rows() != 480 {
		t.Errorf("decoded size = %dx%d", decoded.Cols(), decoded.Rows())
	}
}

// The left half of the frame is white. Mirrored, it shows on the right.
func TestPreview_MirrorSetting(t *testing.T) {
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()
	left := mat.Region(image.Rect(0, 0, 320, 480))
	left.SetTo(gocv.NewScalar(255, 255, 255, 0))
	left.Close()

	tests := []struct {
		name     string
		mirrored bool
		wantLeft bool
	}{
		{"as captured", false, true},
		{"mirrored", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jpg, err := Preview(&Frame{Mat: &mat, Width: 640, Height: 480}, nil, tt.mirrored)
			if err != nil {
				t.Fatalf("Preview() error = %v", err)
			}
			decoded, err := gocv.IMDecode(jpg, gocv.IMReadGrayScale)
			if err != nil {
				t.Fatalf("IMDecode() error = %v", err)
			}
			defer decoded.Close()

			leftBright := decoded.GetUCharAt(240, 80) > 128
			rightBright := decoded.GetUCharAt(240, 560) > 128
			if leftBright != tt.wantLeft || rightBright == tt.wantLeft {
				t.Errorf("left bright = %v, right bright = %v, want left = %v", leftBright, rightBright, tt.wantLeft)
			}
		})
	}
}
