// Package curve turns voxel-staircase paths into smooth polylines and
// provides the arc-length and tangent helpers used along them.
package curve

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Smooth treats points as Catmull-Rom control points and inserts
// subdivisions interpolated samples into every segment.
//
// The curve passes through every control point, so the first and last
// output points equal the first and last inputs exactly. At the boundaries
// the end control points are duplicated in place of the missing neighbours.
//
// Parameters:
//   - points: ordered control points, e.g. voxel centres of a raw path
//   - subdivisions: number of samples inserted per segment (negative is 0)
//
// Returns:
//   - A new slice of (len(points)-1)*(subdivisions+1)+1 points
func Smooth(points []r3.Vec, subdivisions int) []r3.Vec {
	if subdivisions < 0 {
		subdivisions = 0
	}
	n := len(points)
	if n < 2 || subdivisions == 0 {
		return append([]r3.Vec(nil), points...)
	}

	out := make([]r3.Vec, 0, (n-1)*(subdivisions+1)+1)
	for seg := 0; seg < n-1; seg++ {
		p0 := points[max(seg-1, 0)]
		p1 := points[seg]
		p2 := points[seg+1]
		p3 := points[min(seg+2, n-1)]

		out = append(out, p1)
		for s := 1; s <= subdivisions; s++ {
			t := float64(s) / float64(subdivisions+1)
			out = append(out, catmullRom(p0, p1, p2, p3, t))
		}
	}
	out = append(out, points[n-1])

	return out
}

// catmullRom evaluates the uniform Catmull-Rom basis between p1 and p2:
//
//	0.5 * (2p1 + (-p0+p2)t + (2p0-5p1+4p2-p3)t² + (-p0+3p1-3p2+p3)t³)
func catmullRom(p0, p1, p2, p3 r3.Vec, t float64) r3.Vec {
	t2 := t * t
	t3 := t2 * t

	b0 := -t3 + 2*t2 - t
	b1 := 3*t3 - 5*t2 + 2
	b2 := -3*t3 + 4*t2 + t
	b3 := t3 - t2

	return r3.Vec{
		X: 0.5 * (b0*p0.X + b1*p1.X + b2*p2.X + b3*p3.X),
		Y: 0.5 * (b0*p0.Y + b1*p1.Y + b2*p2.Y + b3*p3.Y),
		Z: 0.5 * (b0*p0.Z + b1*p1.Z + b2*p2.Z + b3*p3.Z),
	}
}

// Dedup returns points with consecutive duplicates removed.
func Dedup(points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, 0, len(points))
	for i, p := range points {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
