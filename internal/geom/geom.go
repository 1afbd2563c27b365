// Package geom provides the small geometric kernel the form rules are
// built on: joint angles, distances, and landmark visibility gating
// over normalized pose coordinates.
package geom

import (
	"math"

	"github.com/claude/repcoach/internal/pose"
)

// Angle returns the angle in degrees at vertex b between rays b->a and
// b->c, using x/y only. Range [0,180]; symmetric in a and c. If either
// ray has zero length the angle is undefined and 0 is returned; the
// engine treats "can't measure" as neutral rather than failing the frame.
func Angle(a, b, c pose.Landmark) float64 {
	v1x, v1y := a.X-b.X, a.Y-b.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y

	n1 := math.Hypot(v1x, v1y)
	n2 := math.Hypot(v2x, v2y)
	if n1 == 0 || n2 == 0 {
		return 0
	}

	cos := (v1x*v2x + v1y*v2y) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Angle3D is Angle over x/y/z. Same degenerate-vector policy.
func Angle3D(a, b, c pose.Landmark) float64 {
	v1x, v1y, v1z := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	v2x, v2y, v2z := c.X-b.X, c.Y-b.Y, c.Z-b.Z

	n1 := math.Sqrt(v1x*v1x + v1y*v1y + v1z*v1z)
	n2 := math.Sqrt(v2x*v2x + v2y*v2y + v2z*v2z)
	if n1 == 0 || n2 == 0 {
		return 0
	}

	cos := (v1x*v2x + v1y*v2y + v1z*v2z) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Distance returns the Euclidean distance between a and b in the image
// plane (x/y only).
func Distance(a, b pose.Landmark) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Distance3D returns the Euclidean distance between a and b over x/y/z.
func Distance3D(a, b pose.Landmark) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Midpoint returns the component-wise average of a and b. Visibility is
// the lower of the two, so a midpoint is only as trustworthy as its
// worse endpoint.
func Midpoint(a, b pose.Landmark) pose.Landmark {
	return pose.Landmark{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Visibility: math.Min(a.Visibility, b.Visibility),
	}
}

// DefaultVisibility is the confidence threshold below which a landmark
// is treated as occluded.
const DefaultVisibility = 0.5

// IsVisible reports whether the landmark's detector confidence meets
// the threshold.
func IsVisible(lm pose.Landmark, threshold float64) bool {
	return lm.Visibility >= threshold
}

// AllVisible reports whether every required landmark in the frame meets
// the visibility threshold. An empty requirement set is vacuously true.
func AllVisible(f *pose.Frame, required []pose.LandmarkIndex, threshold float64) bool {
	for _, idx := range required {
		if !IsVisible(f.At(idx), threshold) {
			return false
		}
	}
	return true
}
