package mask

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vesseltrace/pkg/volume"
)

func cube(n int) volume.Geometry {
	return volume.Geometry{Nx: n, Ny: n, Nz: n, Spacing: r3.Vec{X: 1, Y: 1, Z: 1}}
}

func TestRasterizeStraightSegment(t *testing.T) {
	points := []r3.Vec{{X: 10, Y: 10, Z: 2}, {X: 10, Y: 10, Z: 18}}
	m, err := Rasterize(context.Background(), points, []float64{3, 3}, cube(21), Options{})
	require.NoError(t, err)

	// 29 lattice points lie within radius 3 of the axis, over planes 2..18
	assert.Equal(t, 29*17, m.Count())
	assert.True(t, m.IsSet(volume.Index{I: 13, J: 10, K: 10}))
	assert.False(t, m.IsSet(volume.Index{I: 14, J: 10, K: 10}))

	// Flat end caps
	assert.True(t, m.IsSet(volume.Index{I: 10, J: 10, K: 2}))
	assert.False(t, m.IsSet(volume.Index{I: 10, J: 10, K: 1}))
	assert.False(t, m.IsSet(volume.Index{I: 10, J: 10, K: 19}))
}

func TestRasterizeOverrideRadius(t *testing.T) {
	points := []r3.Vec{{X: 10, Y: 10, Z: 2}, {X: 10, Y: 10, Z: 18}}
	m, err := Rasterize(context.Background(), points, []float64{0, 0}, cube(21), Options{OverrideRadius: 2})
	require.NoError(t, err)
	assert.Equal(t, 13*17, m.Count())

	// Override ignores the profile length entirely
	m, err = Rasterize(context.Background(), points, nil, cube(21), Options{OverrideRadius: 2})
	require.NoError(t, err)
	assert.Equal(t, 13*17, m.Count())
}

func TestRasterizeSinglePointSphere(t *testing.T) {
	m, err := Rasterize(context.Background(), []r3.Vec{{X: 10, Y: 10, Z: 10}}, []float64{4}, cube(21), Options{})
	require.NoError(t, err)

	analytic := 4.0 / 3.0 * math.Pi * 64
	assert.InEpsilon(t, analytic, float64(m.Count()), 0.1)
	assert.True(t, m.IsSet(volume.Index{I: 10, J: 10, K: 6}))
	assert.False(t, m.IsSet(volume.Index{I: 10, J: 10, K: 5}))
}

func TestRasterizeInterpolatesRadius(t *testing.T) {
	points := []r3.Vec{{X: 15, Y: 15, Z: 0}, {X: 15, Y: 15, Z: 20}}
	m, err := Rasterize(context.Background(), points, []float64{1, 5}, cube(31), Options{})
	require.NoError(t, err)

	// Radius is 3 half-way along
	assert.True(t, m.IsSet(volume.Index{I: 18, J: 15, K: 10}))
	assert.False(t, m.IsSet(volume.Index{I: 19, J: 15, K: 10}))
	assert.False(t, m.IsSet(volume.Index{I: 18, J: 15, K: 2}))
	assert.True(t, m.IsSet(volume.Index{I: 19, J: 15, K: 19}))
}

func TestRasterizeWorkersAgree(t *testing.T) {
	points := bentPolyline()
	radii := []float64{2, 3, 2.5, 4, 1.5}
	geom := volume.Geometry{Nx: 30, Ny: 25, Nz: 28, Spacing: r3.Vec{X: 1, Y: 1.2, Z: 0.8}}

	ref, err := Rasterize(context.Background(), points, radii, geom, Options{Workers: 1})
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 7, 100} {
		m, err := Rasterize(context.Background(), points, radii, geom, Options{Workers: workers})
		require.NoError(t, err)
		assert.Equal(t, ref.Count(), m.Count(), "workers=%d", workers)
		for off := 0; off < geom.Len(); off++ {
			idx := geom.IndexAt(off)
			if ref.IsSet(idx) != m.IsSet(idx) {
				t.Fatalf("workers=%d: voxel %v differs", workers, idx)
			}
		}
	}
}

func TestRasterizeMatchesFullScan(t *testing.T) {
	points := bentPolyline()
	radii := []float64{2, 3, 2.5, 4, 1.5}
	geom := volume.Geometry{Nx: 30, Ny: 25, Nz: 28, Spacing: r3.Vec{X: 1, Y: 1.2, Z: 0.8}}

	m, err := Rasterize(context.Background(), points, radii, geom, Options{Workers: 4})
	require.NoError(t, err)

	// Reference: nearest segment over the whole grid, no bounding boxes
	segments := buildSegments(points, radii, geom, 0)
	caps := buildCaps(points, 4+geom.Diagonal(), math.Inf(1))
	for off := 0; off < geom.Len(); off++ {
		idx := geom.IndexAt(off)
		p := geom.ToPhysical(idx)
		best, bestR := math.Inf(1), 0.0
		for _, s := range segments {
			if d, r := s.distance(p); d < best {
				best, bestR = d, r
			}
		}
		want := best <= bestR && !capped(caps, p)
		require.Equal(t, want, m.IsSet(idx), "voxel %v", idx)
	}
}

func TestCapNormalFollowsChord(t *testing.T) {
	// First step is diagonal, the rest of the tube runs along +z
	points := []r3.Vec{{X: 10, Y: 10, Z: 2}, {X: 11, Y: 10, Z: 3}}
	for z := 4.0; z <= 18; z++ {
		points = append(points, r3.Vec{X: 11, Y: 10, Z: z})
	}

	caps := buildCaps(points, 8, 8)
	require.Len(t, caps, 2)

	// Chord to (11,10,10) instead of the 45° first segment
	assert.Less(t, caps[0].normal.Z, -0.99)
	assert.Equal(t, r3.Vec{Z: 1}, caps[1].normal)

	m, err := Rasterize(context.Background(), points, nil, cube(21), Options{OverrideRadius: 3})
	require.NoError(t, err)

	// Lumen beside the first point is foreground on both sides of the kink
	assert.True(t, m.IsSet(volume.Index{I: 8, J: 10, K: 3}))
	assert.True(t, m.IsSet(volume.Index{I: 13, J: 10, K: 3}))
	assert.False(t, m.IsSet(volume.Index{I: 10, J: 10, K: 0}))
}

func TestRasterizeClipsAtBorders(t *testing.T) {
	points := []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 9, Y: 0, Z: 0}}
	m, err := Rasterize(context.Background(), points, []float64{2, 2}, cube(10), Options{})
	require.NoError(t, err)
	assert.True(t, m.IsSet(volume.Index{I: 5, J: 0, K: 0}))
	assert.True(t, m.IsSet(volume.Index{I: 5, J: 2, K: 0}))
	assert.False(t, m.IsSet(volume.Index{I: 5, J: 3, K: 0}))
}

func TestRasterizeErrors(t *testing.T) {
	geom := cube(5)
	ctx := context.Background()
	pts := []r3.Vec{{X: 1}, {X: 2}}

	_, err := Rasterize(ctx, nil, nil, geom, Options{})
	assert.Error(t, err)
	_, err = Rasterize(ctx, pts, []float64{1}, geom, Options{})
	assert.Error(t, err)
	_, err = Rasterize(ctx, pts, []float64{1, -1}, geom, Options{})
	assert.Error(t, err)
	_, err = Rasterize(ctx, pts, []float64{1, 1}, geom, Options{OverrideRadius: -2})
	assert.Error(t, err)
	_, err = Rasterize(ctx, pts, []float64{1, 1}, volume.Geometry{}, Options{})
	assert.Error(t, err)
}

func TestRasterizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Rasterize(ctx, bentPolyline(), []float64{2, 3, 2.5, 4, 1.5}, cube(30), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func bentPolyline() []r3.Vec {
	return []r3.Vec{
		{X: 4, Y: 5, Z: 3},
		{X: 10, Y: 8, Z: 6},
		{X: 14, Y: 16, Z: 9},
		{X: 20, Y: 18, Z: 15},
		{X: 24, Y: 12, Z: 18},
	}
}
