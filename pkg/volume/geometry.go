// Package volume provides the voxel grid types shared by the tracing pipeline.
// It covers geometry (dimensions, spacing, origin), scalar volumes with
// trilinear sampling, and binary masks.
package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Index addresses a single voxel by its integer grid coordinates.
type Index struct {
	I, J, K int
}

// Geometry describes the layout of a voxel grid in physical space.
type Geometry struct {
	// Nx, Ny, Nz are the dimensions of the grid in voxels
	Nx, Ny, Nz int

	// Spacing is the physical size of each voxel in mm
	Spacing r3.Vec

	// Origin is the physical position of voxel (0,0,0) in mm
	Origin r3.Vec
}

// Validate reports whether the geometry describes a usable, non-empty grid.
func (g Geometry) Validate() error {
	if g.Nx <= 0 || g.Ny <= 0 || g.Nz <= 0 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", g.Nx, g.Ny, g.Nz)
	}
	if !(g.Spacing.X > 0 && g.Spacing.Y > 0 && g.Spacing.Z > 0) {
		return fmt.Errorf("spacing must be positive, got (%g, %g, %g)", g.Spacing.X, g.Spacing.Y, g.Spacing.Z)
	}
	if math.IsNaN(g.Origin.X) || math.IsNaN(g.Origin.Y) || math.IsNaN(g.Origin.Z) {
		return fmt.Errorf("origin must not be NaN")
	}
	return nil
}

// Len returns the total number of voxels.
func (g Geometry) Len() int {
	return g.Nx * g.Ny * g.Nz
}

// Contains reports whether idx lies within [0,dim) on every axis.
func (g Geometry) Contains(idx Index) bool {
	return idx.I >= 0 && idx.I < g.Nx &&
		idx.J >= 0 && idx.J < g.Ny &&
		idx.K >= 0 && idx.K < g.Nz
}

// Offset returns the position of idx in a row-major (x fastest) buffer.
func (g Geometry) Offset(idx Index) int {
	return idx.K*g.Nx*g.Ny + idx.J*g.Nx + idx.I
}

// IndexAt is the inverse of Offset.
func (g Geometry) IndexAt(offset int) Index {
	plane := g.Nx * g.Ny
	k := offset / plane
	rem := offset - k*plane
	j := rem / g.Nx
	return Index{I: rem - j*g.Nx, J: j, K: k}
}

// ToPhysical returns the physical coordinate of the centre of voxel idx.
func (g Geometry) ToPhysical(idx Index) r3.Vec {
	return r3.Vec{
		X: g.Origin.X + float64(idx.I)*g.Spacing.X,
		Y: g.Origin.Y + float64(idx.J)*g.Spacing.Y,
		Z: g.Origin.Z + float64(idx.K)*g.Spacing.Z,
	}
}

// ToContinuousIndex maps a physical point to fractional grid coordinates.
func (g Geometry) ToContinuousIndex(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: (p.X - g.Origin.X) / g.Spacing.X,
		Y: (p.Y - g.Origin.Y) / g.Spacing.Y,
		Z: (p.Z - g.Origin.Z) / g.Spacing.Z,
	}
}

// ToIndex rounds a physical point to the nearest voxel centre. The boolean
// is false when that voxel lies outside the grid.
func (g Geometry) ToIndex(p r3.Vec) (Index, bool) {
	c := g.ToContinuousIndex(p)
	if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsNaN(c.Z) {
		return Index{}, false
	}
	idx := Index{
		I: int(math.Floor(c.X + 0.5)),
		J: int(math.Floor(c.Y + 0.5)),
		K: int(math.Floor(c.Z + 0.5)),
	}
	return idx, g.Contains(idx)
}

// Diagonal returns the length of a single voxel's space diagonal in mm.
func (g Geometry) Diagonal() float64 {
	return r3.Norm(g.Spacing)
}

// VoxelVolume returns the physical volume of one voxel in mm³.
func (g Geometry) VoxelVolume() float64 {
	return g.Spacing.X * g.Spacing.Y * g.Spacing.Z
}
