package curve

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateLength is the length below which a difference vector is treated
// as zero when estimating tangents.
const degenerateLength = 1e-12

// CumulativeLength returns the arc length from points[0] to each point.
func CumulativeLength(points []r3.Vec) []float64 {
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		out[i] = out[i-1] + r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	return out
}

// ArcLength returns the total length of the polyline.
func ArcLength(points []r3.Vec) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	return total
}

// Tangents returns a unit tangent for every point.
//
// Interior points use central differences and endpoints one-sided ones.
// Where the difference is degenerate the nearest non-degenerate tangent is
// used instead, so endpoint tangents are always resolved from their
// neighbours. If every point coincides the tangents are zero vectors.
func Tangents(points []r3.Vec) []r3.Vec {
	n := len(points)
	out := make([]r3.Vec, n)
	if n < 2 {
		return out
	}

	valid := make([]bool, n)
	for i := range points {
		lo, hi := max(i-1, 0), min(i+1, n-1)
		d := r3.Sub(points[hi], points[lo])
		if r3.Norm(d) > degenerateLength {
			out[i] = r3.Unit(d)
			valid[i] = true
		}
	}

	for i := range out {
		if valid[i] {
			continue
		}
		for off := 1; off < n; off++ {
			if j := i - off; j >= 0 && valid[j] {
				out[i] = out[j]
				break
			}
			if j := i + off; j < n && valid[j] {
				out[i] = out[j]
				break
			}
		}
	}
	return out
}
