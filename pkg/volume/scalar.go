package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Scalar is a read-only 3D grid of intensities. Implementations must be safe
// for concurrent reads.
type Scalar interface {
	// Dims returns the dimensions of the volume in voxels
	Dims() (nx, ny, nz int)

	// Spacing returns the physical size of each voxel in mm
	Spacing() r3.Vec

	// Origin returns the physical position of voxel (0,0,0) in mm
	Origin() r3.Vec

	// At returns the intensity at voxel (i,j,k). Callers must keep the
	// index within bounds.
	At(i, j, k int) float64
}

// GeometryOf returns the geometry of a scalar volume.
func GeometryOf(v Scalar) Geometry {
	nx, ny, nz := v.Dims()
	return Geometry{Nx: nx, Ny: ny, Nz: nz, Spacing: v.Spacing(), Origin: v.Origin()}
}

// Grid is an in-memory Scalar backed by a row-major []float64 (x fastest).
type Grid struct {
	geom Geometry
	data []float64
}

// NewGrid wraps data with the supplied geometry. data is not copied.
func NewGrid(geom Geometry, data []float64) (*Grid, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if len(data) != geom.Len() {
		return nil, fmt.Errorf("data has %d values, geometry needs %d", len(data), geom.Len())
	}
	return &Grid{geom: geom, data: data}, nil
}

// NewEmptyGrid allocates a zero-filled grid.
func NewEmptyGrid(geom Geometry) (*Grid, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	return &Grid{geom: geom, data: make([]float64, geom.Len())}, nil
}

// Dims returns the voxel counts along x, y and z.
func (g *Grid) Dims() (nx, ny, nz int) { return g.geom.Nx, g.geom.Ny, g.geom.Nz }

// Spacing returns the voxel size in mm.
func (g *Grid) Spacing() r3.Vec { return g.geom.Spacing }

// Origin returns the physical position of voxel (0,0,0).
func (g *Grid) Origin() r3.Vec { return g.geom.Origin }

// Geometry returns the grid layout.
func (g *Grid) Geometry() Geometry { return g.geom }

// At returns the intensity at voxel (i,j,k).
func (g *Grid) At(i, j, k int) float64 {
	return g.data[k*g.geom.Nx*g.geom.Ny+j*g.geom.Nx+i]
}

// Set stores v at voxel (i,j,k).
func (g *Grid) Set(i, j, k int, v float64) {
	g.data[k*g.geom.Nx*g.geom.Ny+j*g.geom.Nx+i] = v
}

// Data exposes the backing buffer. Mutating it while the grid is in use by
// a trace is not allowed.
func (g *Grid) Data() []float64 { return g.data }

// Sample interpolates v trilinearly at physical point p.
//
// Points up to half a voxel outside the outermost voxel centres are clamped
// onto the grid; anything further out reports false.
func Sample(v Scalar, p r3.Vec) (float64, bool) {
	geom := GeometryOf(v)
	c := geom.ToContinuousIndex(p)

	x, ok := clampAxis(c.X, geom.Nx)
	if !ok {
		return 0, false
	}
	y, ok := clampAxis(c.Y, geom.Ny)
	if !ok {
		return 0, false
	}
	z, ok := clampAxis(c.Z, geom.Nz)
	if !ok {
		return 0, false
	}

	x0, x1, fx := corners(x, geom.Nx)
	y0, y1, fy := corners(y, geom.Ny)
	z0, z1, fz := corners(z, geom.Nz)

	c00 := lerp(v.At(x0, y0, z0), v.At(x1, y0, z0), fx)
	c10 := lerp(v.At(x0, y1, z0), v.At(x1, y1, z0), fx)
	c01 := lerp(v.At(x0, y0, z1), v.At(x1, y0, z1), fx)
	c11 := lerp(v.At(x0, y1, z1), v.At(x1, y1, z1), fx)

	c0 := lerp(c00, c10, fy)
	c1 := lerp(c01, c11, fy)
	return lerp(c0, c1, fz), true
}

func clampAxis(c float64, n int) (float64, bool) {
	if math.IsNaN(c) || c < -0.5 || c > float64(n)-0.5 {
		return 0, false
	}
	return math.Max(0, math.Min(c, float64(n-1))), true
}

func corners(c float64, n int) (lo, hi int, frac float64) {
	lo = int(math.Floor(c))
	if lo >= n-1 {
		return n - 1, n - 1, 0
	}
	return lo, lo + 1, c - float64(lo)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
