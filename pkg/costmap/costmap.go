// Package costmap converts an intensity volume into the traversal-cost
// volume used by the path search.
package costmap

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"vesseltrace/pkg/volume"
)

// DefaultFloor is the smallest cost a voxel can have. Every edge weight is
// therefore strictly positive.
const DefaultFloor = 1e-6

// ErrNaNIntensity is returned when the input volume contains NaN values.
var ErrNaNIntensity = errors.New("volume contains NaN intensities")

// IntensityRange is a fixed normalization window, e.g. a clinical HU range.
type IntensityRange struct {
	Min, Max float64
}

// Options controls how intensities are turned into costs.
type Options struct {
	// BrightVessels selects the bright-blood convention. When false, dark
	// voxels are treated as vessel interior.
	BrightVessels bool

	// Exponent sharpens the preference for high-affinity voxels. Must be > 0.
	Exponent float64

	// Range overrides the observed min/max used for normalization.
	Range *IntensityRange

	// Floor is the minimum cost. Zero means DefaultFloor.
	Floor float64
}

// Build computes cost = max((1 - affinity)^Exponent, Floor) for every voxel.
// The input is not modified; a fresh grid with the same geometry is returned.
func Build(vol volume.Scalar, opts Options) (*volume.Grid, error) {
	if !(opts.Exponent > 0) {
		return nil, fmt.Errorf("cost exponent must be positive, got %g", opts.Exponent)
	}
	floor := opts.Floor
	if floor <= 0 {
		floor = DefaultFloor
	}

	geom := volume.GeometryOf(vol)
	out, err := volume.NewEmptyGrid(geom)
	if err != nil {
		return nil, err
	}

	// Copy intensities into the output buffer first; the min/max pass and
	// the cost pass then both run over contiguous memory.
	data := out.Data()
	for k := 0; k < geom.Nz; k++ {
		for j := 0; j < geom.Ny; j++ {
			for i := 0; i < geom.Nx; i++ {
				data[geom.Offset(volume.Index{I: i, J: j, K: k})] = vol.At(i, j, k)
			}
		}
	}
	if floats.HasNaN(data) {
		return nil, ErrNaNIntensity
	}

	lo, hi := floats.Min(data), floats.Max(data)
	if opts.Range != nil {
		if !(opts.Range.Max > opts.Range.Min) {
			return nil, fmt.Errorf("intensity range max (%g) must exceed min (%g)", opts.Range.Max, opts.Range.Min)
		}
		lo, hi = opts.Range.Min, opts.Range.Max
	}
	span := hi - lo

	for idx, v := range data {
		n := 0.0
		if span > 0 {
			n = math.Max(0, math.Min(1, (v-lo)/span))
		}

		affinity := n
		if !opts.BrightVessels {
			affinity = 1 - n
		}

		data[idx] = math.Max(math.Pow(1-affinity, opts.Exponent), floor)
	}

	return out, nil
}
