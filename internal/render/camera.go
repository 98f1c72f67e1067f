package render

import "math"

// Camera is a perspective camera looking at a fixed target with y up.
type Camera struct {
	Eye    Vec3
	Target Vec3
	// FOV is the vertical field of view in degrees.
	FOV  float64
	Near float64
}

// DefaultCamera returns the reference viewpoint.
func DefaultCamera() Camera {
	return Camera{
		Eye:  Vec3{20, 10, 40},
		FOV:  30,
		Near: 0.1,
	}
}

// Projected is a point in screen space.
type Projected struct {
	X, Y float64
	// Depth is the distance in front of the camera along its view axis.
	Depth float64
}

func normalize(v Vec3) Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

// Project maps v to pixel coordinates on a width×height viewport with the
// origin at the top-left. ok is false for points behind the near plane.
func (c Camera) Project(v Vec3, width, height float64) (Projected, bool) {
	forward := normalize(c.Target.Sub(c.Eye))
	right := normalize(cross(forward, Vec3{0, 1, 0}))
	up := cross(right, forward)

	rel := v.Sub(c.Eye)
	depth := dot(rel, forward)
	if depth <= c.Near {
		return Projected{}, false
	}

	f := math.Tan(c.FOV * math.Pi / 360)
	aspect := width / height
	nx := dot(rel, right) / (depth * f * aspect)
	ny := dot(rel, up) / (depth * f)

	return Projected{
		X:     (nx + 1) / 2 * width,
		Y:     (1 - ny) / 2 * height,
		Depth: depth,
	}, true
}

// PointSize returns the rendered diameter in pixels of a point with the
// given terrain scale at depth.
func PointSize(u Uniforms, scale float32, depth float64) float64 {
	return float64(u.Scale) * float64(scale) * (100 / depth)
}
