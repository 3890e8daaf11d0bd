// Package pathsearch finds minimum-cost voxel paths through a cost volume
// using Dijkstra's algorithm over a 26-connected grid.
package pathsearch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/volume"
)

var (
	// ErrNoPath is returned when the end voxel cannot be reached.
	ErrNoPath = errors.New("no path found")

	// ErrIterationCap is returned when the search settles more voxels than
	// Options.MaxIterations allows. It matches ErrNoPath under errors.Is.
	ErrIterationCap = fmt.Errorf("search iteration cap exceeded: %w", ErrNoPath)

	// ErrOutOfBounds is returned when an endpoint lies outside the volume or
	// the search region.
	ErrOutOfBounds = errors.New("endpoint outside search region")
)

// cancelCheckInterval is the number of settled voxels between context checks.
const cancelCheckInterval = 4096

// neighborOffsets enumerates the 26 voxel neighbours: every offset in
// {-1,0,1}³ except the origin.
var neighborOffsets = [26][3]int{
	{-1, -1, -1}, {0, -1, -1}, {1, -1, -1},
	{-1, 0, -1}, {0, 0, -1}, {1, 0, -1},
	{-1, 1, -1}, {0, 1, -1}, {1, 1, -1},
	{-1, -1, 0}, {0, -1, 0}, {1, -1, 0},
	{-1, 0, 0}, {1, 0, 0},
	{-1, 1, 0}, {0, 1, 0}, {1, 1, 0},
	{-1, -1, 1}, {0, -1, 1}, {1, -1, 1},
	{-1, 0, 1}, {0, 0, 1}, {1, 0, 1},
	{-1, 1, 1}, {0, 1, 1}, {1, 1, 1},
}

// Region is an inclusive voxel bounding box that confines the search.
type Region struct {
	Min, Max volume.Index
}

// Contains reports whether idx lies inside the region.
func (r Region) Contains(idx volume.Index) bool {
	return idx.I >= r.Min.I && idx.I <= r.Max.I &&
		idx.J >= r.Min.J && idx.J <= r.Max.J &&
		idx.K >= r.Min.K && idx.K <= r.Max.K
}

// clip intersects the region with the grid.
func (r Region) clip(geom volume.Geometry) Region {
	return Region{
		Min: volume.Index{I: max(r.Min.I, 0), J: max(r.Min.J, 0), K: max(r.Min.K, 0)},
		Max: volume.Index{I: min(r.Max.I, geom.Nx-1), J: min(r.Max.J, geom.Ny-1), K: min(r.Max.K, geom.Nz-1)},
	}
}

// RegionAround returns the box spanning a and b, grown by marginMm on every
// side and clipped to the grid.
func RegionAround(geom volume.Geometry, a, b volume.Index, marginMm float64) Region {
	mi := int(math.Ceil(marginMm / geom.Spacing.X))
	mj := int(math.Ceil(marginMm / geom.Spacing.Y))
	mk := int(math.Ceil(marginMm / geom.Spacing.Z))
	r := Region{
		Min: volume.Index{I: min(a.I, b.I) - mi, J: min(a.J, b.J) - mj, K: min(a.K, b.K) - mk},
		Max: volume.Index{I: max(a.I, b.I) + mi, J: max(a.J, b.J) + mj, K: max(a.K, b.K) + mk},
	}
	return r.clip(geom)
}

// Options configures FindPath.
type Options struct {
	// MaxIterations caps the number of settled voxels. Zero disables the cap.
	MaxIterations int

	// Region confines the search to a box. Nil searches the whole volume.
	Region *Region

	// Barrier marks voxels with cost >= Barrier as impassable. Zero disables
	// barriers.
	Barrier float64
}

// FindPath returns the minimum-cost 26-connected voxel chain from start to
// end, inclusive of both.
//
// Edge weights are 0.5*(cost(u)+cost(v)) times the physical distance between
// voxel centres, so anisotropic spacing is honoured. Equal-cost frontier
// entries are expanded in insertion order, which makes the result
// reproducible.
func FindPath(ctx context.Context, cost volume.Scalar, start, end volume.Index, opts Options) ([]volume.Index, error) {
	geom := volume.GeometryOf(cost)
	if err := geom.Validate(); err != nil {
		return nil, err
	}

	region := Region{Max: volume.Index{I: geom.Nx - 1, J: geom.Ny - 1, K: geom.Nz - 1}}
	if opts.Region != nil {
		region = opts.Region.clip(geom)
	}
	if !geom.Contains(start) || !region.Contains(start) {
		return nil, fmt.Errorf("start %v: %w", start, ErrOutOfBounds)
	}
	if !geom.Contains(end) || !region.Contains(end) {
		return nil, fmt.Errorf("end %v: %w", end, ErrOutOfBounds)
	}

	s := newSearch(cost, geom, region, opts)
	if s.blocked(start) || s.blocked(end) {
		return nil, fmt.Errorf("endpoint lies on a barrier: %w", ErrNoPath)
	}
	return s.run(ctx, start, end)
}

// search holds the per-call node records. Records are flat arrays indexed
// by the region-local voxel offset.
type search struct {
	cost    volume.Scalar
	region  Region
	local   volume.Geometry
	opts    Options
	steps   [26]float64
	dist    []float64
	pred    []int
	visited []bool
}

func newSearch(cost volume.Scalar, geom volume.Geometry, region Region, opts Options) *search {
	local := volume.Geometry{
		Nx:      region.Max.I - region.Min.I + 1,
		Ny:      region.Max.J - region.Min.J + 1,
		Nz:      region.Max.K - region.Min.K + 1,
		Spacing: geom.Spacing,
	}

	s := &search{
		cost:    cost,
		region:  region,
		local:   local,
		opts:    opts,
		dist:    make([]float64, local.Len()),
		pred:    make([]int, local.Len()),
		visited: make([]bool, local.Len()),
	}
	for n, off := range neighborOffsets {
		s.steps[n] = r3.Norm(r3.Vec{
			X: float64(off[0]) * geom.Spacing.X,
			Y: float64(off[1]) * geom.Spacing.Y,
			Z: float64(off[2]) * geom.Spacing.Z,
		})
	}
	for i := range s.dist {
		s.dist[i] = math.Inf(1)
		s.pred[i] = -1
	}
	return s
}

func (s *search) toLocal(idx volume.Index) int {
	return s.local.Offset(volume.Index{
		I: idx.I - s.region.Min.I,
		J: idx.J - s.region.Min.J,
		K: idx.K - s.region.Min.K,
	})
}

func (s *search) toGlobal(node int) volume.Index {
	l := s.local.IndexAt(node)
	return volume.Index{I: l.I + s.region.Min.I, J: l.J + s.region.Min.J, K: l.K + s.region.Min.K}
}

func (s *search) costAt(idx volume.Index) float64 {
	return s.cost.At(idx.I, idx.J, idx.K)
}

func (s *search) blocked(idx volume.Index) bool {
	return s.opts.Barrier > 0 && s.costAt(idx) >= s.opts.Barrier
}

func (s *search) run(ctx context.Context, start, end volume.Index) ([]volume.Index, error) {
	startNode := s.toLocal(start)
	endNode := s.toLocal(end)

	q := &nodeQueue{}
	s.dist[startNode] = 0
	q.push(startNode, 0)

	settled := 0
	for !q.isEmpty() {
		e := q.pop()
		if s.visited[e.node] || e.cost > s.dist[e.node] {
			continue
		}
		s.visited[e.node] = true
		settled++

		if e.node == endNode {
			return s.reconstruct(endNode), nil
		}
		if s.opts.MaxIterations > 0 && settled >= s.opts.MaxIterations {
			return nil, fmt.Errorf("settled %d voxels: %w", settled, ErrIterationCap)
		}
		if settled%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("search canceled: %w", err)
			}
		}

		u := s.toGlobal(e.node)
		cu := s.costAt(u)
		for n, off := range neighborOffsets {
			v := volume.Index{I: u.I + off[0], J: u.J + off[1], K: u.K + off[2]}
			if !s.region.Contains(v) {
				continue
			}
			vn := s.toLocal(v)
			if s.visited[vn] || s.blocked(v) {
				continue
			}

			alt := e.cost + 0.5*(cu+s.costAt(v))*s.steps[n]
			if alt < s.dist[vn] {
				s.dist[vn] = alt
				s.pred[vn] = e.node
				q.push(vn, alt)
			}
		}
	}

	return nil, fmt.Errorf("queue exhausted after %d voxels: %w", settled, ErrNoPath)
}

// reconstruct walks predecessor links back from the end node.
func (s *search) reconstruct(endNode int) []volume.Index {
	var path []volume.Index
	for n := endNode; n != -1; n = s.pred[n] {
		path = append(path, s.toGlobal(n))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
