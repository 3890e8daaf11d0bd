// Package radius estimates local vessel radius by casting rays in the plane
// orthogonal to the centerline and locating the lumen boundary on each.
package radius

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/volume"
)

const (
	// DefaultDirections is the number of rays cast when Options.Directions is 0
	DefaultDirections = 16

	// MinDirections is the smallest usable ray count
	MinDirections = 3

	// minContrast is the centre/background difference below which no
	// boundary can be located
	minContrast = 1e-9
)

var (
	// ErrDegenerateTangent is returned for zero-length or NaN tangents.
	ErrDegenerateTangent = errors.New("degenerate tangent")

	// ErrOutsideVolume is returned when the centre cannot be sampled.
	ErrOutsideVolume = errors.New("center outside volume")
)

// Options controls ray casting.
type Options struct {
	// Directions is the number of rays, evenly spaced around the tangent.
	Directions int

	// StepMm is the sampling step along each ray. Zero means a quarter of
	// the smallest voxel spacing.
	StepMm float64

	// MaxRadiusMm bounds how far each ray walks. Must be > 0.
	MaxRadiusMm float64
}

func (o Options) resolve(spacing r3.Vec) (Options, error) {
	if !(o.MaxRadiusMm > 0) {
		return o, fmt.Errorf("max radius must be positive, got %g", o.MaxRadiusMm)
	}
	if o.Directions == 0 {
		o.Directions = DefaultDirections
	}
	if o.Directions < MinDirections {
		return o, fmt.Errorf("need at least %d directions, got %d", MinDirections, o.Directions)
	}
	if o.StepMm <= 0 {
		o.StepMm = math.Min(spacing.X, math.Min(spacing.Y, spacing.Z)) / 4
	}
	return o, nil
}

// ray holds the samples taken along one direction.
type ray struct {
	dist   []float64
	values []float64
}

// Estimate returns the vessel radius at center in mm.
//
// Each ray's boundary is where the sampled intensity crosses the half-max
// threshold T = (Ic + Ib) / 2. Ic is the intensity at the centre and Ib the
// median of the outermost sample of every ray. The crossing is refined by
// linear interpolation between the two samples either side of T. A ray
// that never crosses reports MaxRadiusMm. The per-ray distances are
// reduced with the median.
//
// tangent must be non-degenerate; callers resolve endpoint tangents from
// neighbouring points before calling.
func Estimate(vol volume.Scalar, center, tangent r3.Vec, opts Options) (float64, error) {
	opts, err := opts.resolve(vol.Spacing())
	if err != nil {
		return 0, err
	}

	u, v, err := orthonormalBasis(tangent)
	if err != nil {
		return 0, err
	}

	ic, ok := volume.Sample(vol, center)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrOutsideVolume, center)
	}

	rays := castRays(vol, center, u, v, opts)

	outer := make([]float64, 0, len(rays))
	for _, r := range rays {
		if n := len(r.values); n > 0 {
			outer = append(outer, r.values[n-1])
		}
	}
	if len(outer) == 0 {
		return 0, fmt.Errorf("%w: no ray samples near %v", ErrOutsideVolume, center)
	}
	ib := median(outer)

	if math.Abs(ic-ib) < minContrast {
		return 0, nil
	}
	threshold := 0.5 * (ic + ib)
	bright := ic > ib

	distances := make([]float64, len(rays))
	for i, r := range rays {
		distances[i] = boundaryDistance(r, ic, threshold, bright, opts.MaxRadiusMm)
	}

	radius := median(distances)
	if math.IsNaN(radius) {
		return 0, fmt.Errorf("radius estimate is NaN at %v", center)
	}
	return radius, nil
}

// Profile runs Estimate at every point with the matching tangent.
func Profile(vol volume.Scalar, points, tangents []r3.Vec, opts Options) ([]float64, error) {
	if len(points) != len(tangents) {
		return nil, fmt.Errorf("got %d points but %d tangents", len(points), len(tangents))
	}
	radii := make([]float64, len(points))
	for i := range points {
		r, err := Estimate(vol, points[i], tangents[i], opts)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		radii[i] = r
	}
	return radii, nil
}

// orthonormalBasis returns two unit vectors spanning the plane orthogonal
// to tangent.
func orthonormalBasis(tangent r3.Vec) (u, v r3.Vec, err error) {
	norm := r3.Norm(tangent)
	if !(norm > 1e-12) || math.IsInf(norm, 0) {
		return u, v, ErrDegenerateTangent
	}
	t := r3.Scale(1/norm, tangent)

	// Cross with the axis least aligned with the tangent
	axis := r3.Vec{X: 1}
	ax, ay, az := math.Abs(t.X), math.Abs(t.Y), math.Abs(t.Z)
	if ay < ax && ay <= az {
		axis = r3.Vec{Y: 1}
	} else if az < ax && az < ay {
		axis = r3.Vec{Z: 1}
	}

	u = r3.Unit(r3.Cross(t, axis))
	v = r3.Cross(t, u)
	return u, v, nil
}

func castRays(vol volume.Scalar, center, u, v r3.Vec, opts Options) []ray {
	steps := int(math.Floor(opts.MaxRadiusMm/opts.StepMm + 1e-9))
	rays := make([]ray, opts.Directions)

	for k := range rays {
		theta := 2 * math.Pi * float64(k) / float64(opts.Directions)
		dir := r3.Add(r3.Scale(math.Cos(theta), u), r3.Scale(math.Sin(theta), v))

		r := ray{
			dist:   make([]float64, 0, steps),
			values: make([]float64, 0, steps),
		}
		for s := 1; s <= steps; s++ {
			d := float64(s) * opts.StepMm
			val, ok := volume.Sample(vol, r3.Add(center, r3.Scale(d, dir)))
			if !ok {
				break
			}
			r.dist = append(r.dist, d)
			r.values = append(r.values, val)
		}
		rays[k] = r
	}
	return rays
}

func boundaryDistance(r ray, ic, threshold float64, bright bool, maxRadius float64) float64 {
	prevD, prevV := 0.0, ic
	for i, val := range r.values {
		crossed := val < threshold
		if !bright {
			crossed = val > threshold
		}
		if crossed {
			frac := (prevV - threshold) / (prevV - val)
			return prevD + frac*(r.dist[i]-prevD)
		}
		prevD, prevV = r.dist[i], val
	}
	return maxRadius
}

// median calculates the median value of a slice of float64 values
func median(values []float64) float64 {
	// Create a copy to avoid modifying the original
	valuesCopy := make([]float64, len(values))
	copy(valuesCopy, values)
	sort.Float64s(valuesCopy)

	n := len(valuesCopy)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (valuesCopy[n/2-1] + valuesCopy[n/2]) / 2
	}
	return valuesCopy[n/2]
}
