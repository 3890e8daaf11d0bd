// Package centerline holds the immutable result of a vessel trace.
// It also provides a kd-tree index for nearest-point queries against it.
package centerline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/curve"
)

// Result is a traced centerline with its radius profile.
//
// Points and Radii are parallel: Radii[i] is the vessel radius in mm at
// Points[i]. A Result is never modified after New returns it.
type Result struct {
	points      []r3.Vec
	radii       []float64
	totalLength float64
}

// New validates and copies the inputs into a Result.
func New(points []r3.Vec, radii []float64) (*Result, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("centerline has no points")
	}
	if len(points) != len(radii) {
		return nil, fmt.Errorf("got %d points but %d radii", len(points), len(radii))
	}
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
			return nil, fmt.Errorf("point %d is NaN", i)
		}
		if i > 0 && p == points[i-1] {
			return nil, fmt.Errorf("points %d and %d are duplicates", i-1, i)
		}
	}
	for i, r := range radii {
		if !(r >= 0) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("radius %d is invalid: %g", i, r)
		}
	}

	return &Result{
		points:      append([]r3.Vec(nil), points...),
		radii:       append([]float64(nil), radii...),
		totalLength: curve.ArcLength(points),
	}, nil
}

// Points returns a copy of the centerline points.
func (r *Result) Points() []r3.Vec { return append([]r3.Vec(nil), r.points...) }

// Radii returns a copy of the radius profile.
func (r *Result) Radii() []float64 { return append([]float64(nil), r.radii...) }

// Len returns the number of centerline points.
func (r *Result) Len() int { return len(r.points) }

// Point returns the i-th centerline point.
func (r *Result) Point(i int) r3.Vec { return r.points[i] }

// Radius returns the radius at the i-th point.
func (r *Result) Radius(i int) float64 { return r.radii[i] }

// TotalLength returns the arc length of the centerline in mm.
func (r *Result) TotalLength() float64 { return r.totalLength }

// Start returns the first point of the centerline.
func (r *Result) Start() r3.Vec { return r.points[0] }

// End returns the last point of the centerline.
func (r *Result) End() r3.Vec { return r.points[len(r.points)-1] }
