package terrain

import (
	"errors"
	"fmt"
)

// ErrInvalidAnchor is returned for anchors that cannot be placed on a field.
var ErrInvalidAnchor = errors.New("terrain: invalid anchor")

// Anchor is a named point of interest at a fixed terrain-space coordinate.
// Anchors are authored by hand, independent of the height formula.
type Anchor struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// DefaultAnchors returns the reference points of interest. The summit
// anchor sits on the central peak at (0, 7.8, 0).
func DefaultAnchors() []Anchor {
	return []Anchor{
		{Name: "名山牌坊", Label: "Mingshan Archway", X: 14, Y: 1.5, Z: 18},
		{Name: "哼哈祠", Label: "Hengha Temple", X: 11, Y: 2.0, Z: 14},
		{Name: "报恩殿", Label: "Bao'en Hall", X: 13, Y: 2.8, Z: 9},
		{Name: "奈何桥", Label: "Naihe Bridge", X: 9, Y: 4.5, Z: 4},
		{Name: "鬼门关", Label: "Ghost Gate", X: 5, Y: 5.8, Z: 3},
		{Name: "黄泉路", Label: "Huangquan Road", X: 0, Y: 5.5, Z: 4},
		{Name: "望乡台", Label: "Wangxiang Terrace", X: -5, Y: 6.0, Z: 2},
		{Name: "天子殿", Label: "Tianzi Palace", X: 0, Y: 7.8, Z: 0},
		{Name: "王母殿", Label: "Wangmu Hall", X: 4, Y: 5.5, Z: -4},
		{Name: "二仙楼", Label: "Erxian Tower", X: 9, Y: 2.5, Z: -9},
		{Name: "双桂山", Label: "Shuanggui Mountain", X: -22, Y: 1.0, Z: 5},
	}
}

// ValidateAnchor reports an error when a lies outside the field footprint
// or has no name.
func ValidateAnchor(f *Field, a Anchor) error {
	if a.Name == "" {
		return fmt.Errorf("%w: no name", ErrInvalidAnchor)
	}
	if !f.Contains(a.X, a.Z) {
		return fmt.Errorf("%w: %q at (%.2f, %.2f) outside %.0fx%.0f field", ErrInvalidAnchor, a.Name, a.X, a.Z, f.width, f.depth)
	}
	return nil
}
