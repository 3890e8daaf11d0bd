// Package phantom generates synthetic vessel volumes with known geometry.
// The volumes are used to validate tracing accuracy.
package phantom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/volume"
)

// Profile selects how intensity varies across the tube cross-section.
type Profile int

const (
	// Flat fills the whole tube with the inside intensity
	Flat Profile = iota

	// Parabolic peaks on the tube axis and falls off quadratically to the
	// outside intensity at the wall
	Parabolic
)

// Tube describes the intensities and cross-section of a phantom vessel.
type Tube struct {
	// RadiusMm is the tube radius in mm
	RadiusMm float64

	// Inside and Outside are the lumen and background intensities
	Inside, Outside float64

	// Profile selects the cross-section intensity profile
	Profile Profile
}

func (t Tube) intensity(dist float64) float64 {
	if dist > t.RadiusMm {
		return t.Outside
	}
	if t.Profile == Parabolic {
		f := dist / t.RadiusMm
		return t.Outside + (t.Inside-t.Outside)*(1-f*f)
	}
	return t.Inside
}

// Isotropic returns an n×n×n geometry with the given spacing and zero origin.
func Isotropic(n int, spacing float64) volume.Geometry {
	return volume.Geometry{
		Nx: n, Ny: n, Nz: n,
		Spacing: r3.Vec{X: spacing, Y: spacing, Z: spacing},
	}
}

// StraightTube fills geom with a cylinder parallel to the z axis passing
// through physical (axisX, axisY).
func StraightTube(geom volume.Geometry, axisX, axisY float64, tube Tube) (*volume.Grid, error) {
	return fill(geom, tube, func(p r3.Vec) float64 {
		return math.Hypot(p.X-axisX, p.Y-axisY)
	})
}

// Arc is a quarter circle in the plane z = Center.Z, running from angle 0
// (along +x) to π/2 (along +y).
type Arc struct {
	Center r3.Vec
	Radius float64
}

// Point returns the arc point at angle theta.
func (a Arc) Point(theta float64) r3.Vec {
	return r3.Vec{
		X: a.Center.X + a.Radius*math.Cos(theta),
		Y: a.Center.Y + a.Radius*math.Sin(theta),
		Z: a.Center.Z,
	}
}

// Distance returns the distance from p to the nearest point on the arc.
func (a Arc) Distance(p r3.Vec) float64 {
	rel := r3.Sub(p, a.Center)
	theta := math.Atan2(rel.Y, rel.X)
	if theta >= 0 && theta <= math.Pi/2 {
		return math.Hypot(math.Hypot(rel.X, rel.Y)-a.Radius, rel.Z)
	}
	return math.Min(r3.Norm(r3.Sub(p, a.Point(0))), r3.Norm(r3.Sub(p, a.Point(math.Pi/2))))
}

// CurvedTube fills geom with a tube following arc.
func CurvedTube(geom volume.Geometry, arc Arc, tube Tube) (*volume.Grid, error) {
	if !(arc.Radius > 0) {
		return nil, fmt.Errorf("arc radius must be positive, got %g", arc.Radius)
	}
	return fill(geom, tube, arc.Distance)
}

// SplitBarrier overwrites the z = k plane with value.
func SplitBarrier(g *volume.Grid, k int, value float64) error {
	nx, ny, nz := g.Dims()
	if k < 0 || k >= nz {
		return fmt.Errorf("plane %d outside volume depth %d", k, nz)
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			g.Set(i, j, k, value)
		}
	}
	return nil
}

func fill(geom volume.Geometry, tube Tube, distance func(r3.Vec) float64) (*volume.Grid, error) {
	if !(tube.RadiusMm > 0) {
		return nil, fmt.Errorf("tube radius must be positive, got %g", tube.RadiusMm)
	}
	g, err := volume.NewEmptyGrid(geom)
	if err != nil {
		return nil, err
	}
	for k := 0; k < geom.Nz; k++ {
		for j := 0; j < geom.Ny; j++ {
			for i := 0; i < geom.Nx; i++ {
				p := geom.ToPhysical(volume.Index{I: i, J: j, K: k})
				g.Set(i, j, k, tube.intensity(distance(p)))
			}
		}
	}
	return g, nil
}
