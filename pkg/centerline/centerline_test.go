package centerline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func createLine(t *testing.T) *Result {
	points := []r3.Vec{{}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}
	radii := []float64{1, 1, 2, 2, 3}
	res, err := New(points, radii)
	require.NoError(t, err)
	return res
}

func TestNewResult(t *testing.T) {
	res := createLine(t)
	assert.Equal(t, 5, res.Len())
	assert.InDelta(t, 4, res.TotalLength(), 1e-12)
	assert.Equal(t, r3.Vec{}, res.Start())
	assert.Equal(t, r3.Vec{X: 4}, res.End())
	assert.Equal(t, 2.0, res.Radius(2))
}

func TestResultIsImmutable(t *testing.T) {
	points := []r3.Vec{{}, {X: 1}}
	radii := []float64{1, 1}
	res, err := New(points, radii)
	require.NoError(t, err)

	points[0].X = 50
	radii[0] = 50
	assert.Equal(t, 0.0, res.Point(0).X)
	assert.Equal(t, 1.0, res.Radius(0))

	got := res.Points()
	got[1].X = 99
	assert.Equal(t, 1.0, res.Point(1).X)

	r := res.Radii()
	r[1] = 99
	assert.Equal(t, 1.0, res.Radius(1))
}

func TestNewResultValidation(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New([]r3.Vec{{}, {X: 1}}, []float64{1})
	assert.Error(t, err)

	_, err = New([]r3.Vec{{}, {}}, []float64{1, 1})
	assert.Error(t, err, "duplicate consecutive points")

	_, err = New([]r3.Vec{{}, {X: 1}}, []float64{1, -1})
	assert.Error(t, err)

	_, err = New([]r3.Vec{{X: math.NaN()}}, []float64{1})
	assert.Error(t, err)
}

func TestIndexNearest(t *testing.T) {
	idx := NewIndex(createLine(t))

	i, d := idx.Nearest(r3.Vec{X: 2.2, Y: 1})
	assert.Equal(t, 2, i)
	assert.InDelta(t, math.Hypot(0.2, 1), d, 1e-12)

	i, _ = idx.Nearest(r3.Vec{X: -10})
	assert.Equal(t, 0, i)
}

func TestIndexDistanceTo(t *testing.T) {
	idx := NewIndex(createLine(t))

	d, r := idx.DistanceTo(r3.Vec{X: 2.5, Y: 1})
	assert.InDelta(t, 1, d, 1e-12)
	assert.InDelta(t, 2, r, 1e-12)

	d, r = idx.DistanceTo(r3.Vec{X: 3.5, Z: -0.5})
	assert.InDelta(t, 0.5, d, 1e-12)
	assert.InDelta(t, 2.5, r, 1e-12)

	assert.True(t, idx.Contains(r3.Vec{X: 3.5, Y: 2}))
	assert.False(t, idx.Contains(r3.Vec{X: 0.5, Y: 1.5}))
}
