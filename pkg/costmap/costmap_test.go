package costmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/volume"
)

// createRamp builds a 1D ramp volume with intensities 0, 50, 100, 150, 200
func createRamp(t *testing.T) *volume.Grid {
	geom := volume.Geometry{Nx: 5, Ny: 1, Nz: 1, Spacing: r3.Vec{X: 1, Y: 1, Z: 1}}
	g, err := volume.NewGrid(geom, []float64{0, 50, 100, 150, 200})
	require.NoError(t, err)
	return g
}

func TestBuildBrightVessels(t *testing.T) {
	cost, err := Build(createRamp(t), Options{BrightVessels: true, Exponent: 1})
	require.NoError(t, err)

	expected := []float64{1, 0.75, 0.5, 0.25, DefaultFloor}
	for i, want := range expected {
		assert.InDelta(t, want, cost.At(i, 0, 0), 1e-12, "voxel %d", i)
	}
}

func TestBuildDarkVessels(t *testing.T) {
	cost, err := Build(createRamp(t), Options{BrightVessels: false, Exponent: 2})
	require.NoError(t, err)

	// Dark voxels are cheap: n=0 gives affinity 1, cost floored
	assert.InDelta(t, DefaultFloor, cost.At(0, 0, 0), 1e-15)
	assert.InDelta(t, 0.25*0.25, cost.At(1, 0, 0), 1e-12)
	assert.InDelta(t, 1, cost.At(4, 0, 0), 1e-12)
}

func TestBuildExponentSharpens(t *testing.T) {
	soft, err := Build(createRamp(t), Options{BrightVessels: true, Exponent: 1})
	require.NoError(t, err)
	sharp, err := Build(createRamp(t), Options{BrightVessels: true, Exponent: 4})
	require.NoError(t, err)

	// Interior-ish voxels get relatively cheaper with a higher exponent
	assert.Less(t, sharp.At(3, 0, 0), soft.At(3, 0, 0))
	assert.Equal(t, soft.At(0, 0, 0), sharp.At(0, 0, 0))
}

func TestBuildFixedRange(t *testing.T) {
	cost, err := Build(createRamp(t), Options{
		BrightVessels: true,
		Exponent:      1,
		Range:         &IntensityRange{Min: 100, Max: 150},
	})
	require.NoError(t, err)

	// Values below the window clamp to 0, above clamp to 1
	assert.InDelta(t, 1, cost.At(0, 0, 0), 1e-12)
	assert.InDelta(t, 1, cost.At(2, 0, 0), 1e-12)
	assert.InDelta(t, DefaultFloor, cost.At(3, 0, 0), 1e-15)
	assert.InDelta(t, DefaultFloor, cost.At(4, 0, 0), 1e-15)
}

func TestBuildStrictlyPositive(t *testing.T) {
	geom := volume.Geometry{Nx: 3, Ny: 3, Nz: 3, Spacing: r3.Vec{X: 1, Y: 1, Z: 1}}
	flat, err := volume.NewEmptyGrid(geom)
	require.NoError(t, err)

	for _, bright := range []bool{true, false} {
		cost, err := Build(flat, Options{BrightVessels: bright, Exponent: 3})
		require.NoError(t, err)
		for _, c := range cost.Data() {
			assert.Greater(t, c, 0.0)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(createRamp(t), Options{Exponent: 0})
	assert.Error(t, err)

	_, err = Build(createRamp(t), Options{Exponent: 1, Range: &IntensityRange{Min: 5, Max: 5}})
	assert.Error(t, err)

	g := createRamp(t)
	g.Set(2, 0, 0, math.NaN())
	_, err = Build(g, Options{Exponent: 1})
	assert.ErrorIs(t, err, ErrNaNIntensity)
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	g := createRamp(t)
	before := append([]float64(nil), g.Data()...)
	_, err := Build(g, Options{BrightVessels: true, Exponent: 2})
	require.NoError(t, err)
	assert.Equal(t, before, g.Data())
}
