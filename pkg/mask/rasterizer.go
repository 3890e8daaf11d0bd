// Package mask rasterizes a centerline with a radius profile into a binary
// tubular volume.
package mask

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/volume"
)

// Options controls rasterization.
type Options struct {
	// OverrideRadius, when > 0, replaces the radius profile with a single
	// uniform radius.
	OverrideRadius float64

	// Workers is the number of z-slabs rasterized concurrently. Zero means
	// runtime.NumCPU().
	Workers int
}

// segment is one polyline piece with its padded voxel bounding box.
type segment struct {
	a, b   r3.Vec
	ra, rb float64

	lo, hi volume.Index
}

// endCap is the plane closing one end of the tube. Voxels within reach of
// the endpoint on the outer side of the plane are background.
type endCap struct {
	origin, normal r3.Vec
	reach          float64
}

func (c endCap) excludes(p r3.Vec) bool {
	rel := r3.Sub(p, c.origin)
	return r3.Dot(rel, c.normal) > 0 && r3.Norm(rel) <= c.reach
}

// Rasterize marks every voxel of geom whose distance to the polyline is at
// most the radius interpolated along the nearest segment.
//
// The tube has flat end caps perpendicular to the terminal segments;
// interior joints are rounded by the vertex distance. Each segment only
// scans its bounding box padded by max(radius) plus one voxel diagonal. The
// z range is split into slabs that workers fill independently.
func Rasterize(ctx context.Context, points []r3.Vec, radii []float64, geom volume.Geometry, opts Options) (*volume.Mask, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no centerline points")
	}
	if opts.OverrideRadius < 0 || math.IsNaN(opts.OverrideRadius) {
		return nil, fmt.Errorf("override radius must be non-negative, got %g", opts.OverrideRadius)
	}

	profile := radii
	if opts.OverrideRadius > 0 {
		profile = make([]float64, len(points))
		for i := range profile {
			profile[i] = opts.OverrideRadius
		}
	}
	if len(profile) != len(points) {
		return nil, fmt.Errorf("got %d points but %d radii", len(points), len(profile))
	}
	for i, r := range profile {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("radius %d is invalid: %g", i, r)
		}
	}

	m, err := volume.NewMask(geom)
	if err != nil {
		return nil, err
	}

	pad := floats.Max(profile) + geom.Diagonal()
	segments := buildSegments(points, profile, geom, pad)
	caps := buildCaps(points, pad, pad)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, geom.Nz)
	slabDepth := (geom.Nz + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for z0 := 0; z0 < geom.Nz; z0 += slabDepth {
		z0 := z0
		z1 := min(z0+slabDepth, geom.Nz)
		g.Go(func() error {
			return rasterizeSlab(gctx, m, geom, segments, caps, z0, z1)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m, nil
}

func buildSegments(points []r3.Vec, radii []float64, geom volume.Geometry, pad float64) []segment {
	// A single point is rasterized as a sphere
	if len(points) == 1 {
		s := segment{a: points[0], b: points[0], ra: radii[0], rb: radii[0]}
		s.lo, s.hi = paddedBox(geom, points[0], points[0], pad)
		return []segment{s}
	}

	segments := make([]segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		s := segment{
			a: points[i], b: points[i+1],
			ra: radii[i], rb: radii[i+1],
		}
		s.lo, s.hi = paddedBox(geom, s.a, s.b, pad)
		segments = append(segments, s)
	}
	return segments
}

// buildCaps returns the flat caps at both ends of the polyline. Each normal
// points away from the tube along the chord from the end to the first point
// at least span mm away, so a kinked first step does not tilt the cap.
func buildCaps(points []r3.Vec, span, reach float64) []endCap {
	n := len(points)
	if n < 2 {
		return nil
	}
	reversed := make([]r3.Vec, n)
	for i, p := range points {
		reversed[n-1-i] = p
	}

	var caps []endCap
	for _, run := range [][]r3.Vec{points, reversed} {
		if normal, ok := capNormal(run, span); ok {
			caps = append(caps, endCap{origin: run[0], normal: normal, reach: reach})
		}
	}
	return caps
}

// capNormal returns the outward direction at run[0].
func capNormal(run []r3.Vec, span float64) (r3.Vec, bool) {
	end := run[0]
	far := run[len(run)-1]
	for _, p := range run[1:] {
		if r3.Norm(r3.Sub(p, end)) >= span {
			far = p
			break
		}
	}
	d := r3.Sub(end, far)
	if r3.Norm(d) == 0 {
		return r3.Vec{}, false
	}
	return r3.Unit(d), true
}

// paddedBox returns the inclusive voxel range covering the box around a and
// b grown by pad mm, clipped to the grid. An empty range has lo > hi.
func paddedBox(geom volume.Geometry, a, b r3.Vec, pad float64) (lo, hi volume.Index) {
	ca := geom.ToContinuousIndex(a)
	cb := geom.ToContinuousIndex(b)
	pi, pj, pk := pad/geom.Spacing.X, pad/geom.Spacing.Y, pad/geom.Spacing.Z

	lo = volume.Index{
		I: max(int(math.Floor(math.Min(ca.X, cb.X)-pi)), 0),
		J: max(int(math.Floor(math.Min(ca.Y, cb.Y)-pj)), 0),
		K: max(int(math.Floor(math.Min(ca.Z, cb.Z)-pk)), 0),
	}
	hi = volume.Index{
		I: min(int(math.Ceil(math.Max(ca.X, cb.X)+pi)), geom.Nx-1),
		J: min(int(math.Ceil(math.Max(ca.Y, cb.Y)+pj)), geom.Ny-1),
		K: min(int(math.Ceil(math.Max(ca.Z, cb.Z)+pk)), geom.Nz-1),
	}
	return lo, hi
}

// rasterizeSlab fills mask planes [z0, z1). Slabs never overlap, so no
// locking is needed.
func rasterizeSlab(ctx context.Context, m *volume.Mask, geom volume.Geometry, segments []segment, caps []endCap, z0, z1 int) error {
	plane := geom.Nx * geom.Ny
	best := make([]float64, plane*(z1-z0))
	bestRadius := make([]float64, len(best))
	for i := range best {
		best[i] = math.Inf(1)
	}

	for _, s := range segments {
		if s.hi.K < z0 || s.lo.K >= z1 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		for k := max(s.lo.K, z0); k <= min(s.hi.K, z1-1); k++ {
			for j := s.lo.J; j <= s.hi.J; j++ {
				for i := s.lo.I; i <= s.hi.I; i++ {
					p := geom.ToPhysical(volume.Index{I: i, J: j, K: k})
					d, r := s.distance(p)
					off := (k-z0)*plane + j*geom.Nx + i
					if d < best[off] {
						best[off] = d
						bestRadius[off] = r
					}
				}
			}
		}
	}

	for off, d := range best {
		if d > bestRadius[off] {
			continue
		}
		idx := geom.IndexAt(z0*plane + off)
		if capped(caps, geom.ToPhysical(idx)) {
			continue
		}
		m.Set(idx)
	}
	return nil
}

func capped(caps []endCap, p r3.Vec) bool {
	for _, c := range caps {
		if c.excludes(p) {
			return true
		}
	}
	return false
}

// distance returns the distance from p to the segment and the radius
// interpolated at the closest point.
func (s segment) distance(p r3.Vec) (d, r float64) {
	ab := r3.Sub(s.b, s.a)

	t := 0.0
	if l2 := r3.Dot(ab, ab); l2 > 0 {
		t = math.Max(0, math.Min(1, r3.Dot(r3.Sub(p, s.a), ab)/l2))
	}

	closest := r3.Add(s.a, r3.Scale(t, ab))
	return r3.Norm(r3.Sub(p, closest)), s.ra + t*(s.rb-s.ra)
}
