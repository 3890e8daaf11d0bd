package phantom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestStraightTube(t *testing.T) {
	g, err := StraightTube(Isotropic(20, 1), 10, 10, Tube{RadiusMm: 3, Inside: 200, Outside: 0})
	require.NoError(t, err)

	assert.Equal(t, 200.0, g.At(10, 10, 0))
	assert.Equal(t, 200.0, g.At(13, 10, 19))
	assert.Equal(t, 0.0, g.At(14, 10, 5))
	assert.Equal(t, 0.0, g.At(0, 0, 0))
}

func TestParabolicProfile(t *testing.T) {
	tube := Tube{RadiusMm: 4, Inside: 100, Outside: 20, Profile: Parabolic}
	assert.InDelta(t, 100, tube.intensity(0), 1e-12)
	assert.InDelta(t, 20+80*0.75, tube.intensity(2), 1e-12)
	assert.InDelta(t, 20, tube.intensity(4), 1e-12)
	assert.InDelta(t, 20, tube.intensity(5), 1e-12)
}

func TestArcDistance(t *testing.T) {
	arc := Arc{Center: r3.Vec{X: 1, Y: 1, Z: 2}, Radius: 10}

	assert.InDelta(t, 0, arc.Distance(arc.Point(math.Pi/4)), 1e-12)
	assert.InDelta(t, 2, arc.Distance(r3.Vec{X: 1 + 8, Y: 1, Z: 2}), 1e-12)
	assert.InDelta(t, 3, arc.Distance(r3.Vec{X: 1, Y: 11, Z: 5}), 1e-12)

	// Beyond the arc ends the distance is to the nearest endpoint
	assert.InDelta(t, 5, arc.Distance(r3.Vec{X: 11, Y: -4, Z: 2}), 1e-12)
}

func TestSplitBarrier(t *testing.T) {
	g, err := StraightTube(Isotropic(6, 1), 3, 3, Tube{RadiusMm: 2, Inside: 1})
	require.NoError(t, err)
	require.NoError(t, SplitBarrier(g, 2, -5))

	for j := 0; j < 6; j++ {
		for i := 0; i < 6; i++ {
			assert.Equal(t, -5.0, g.At(i, j, 2))
		}
	}
	assert.Equal(t, 1.0, g.At(3, 3, 3))
	assert.Error(t, SplitBarrier(g, 6, 0))
}

func TestInvalidPhantoms(t *testing.T) {
	_, err := StraightTube(Isotropic(4, 1), 0, 0, Tube{RadiusMm: 0})
	assert.Error(t, err)
	_, err = CurvedTube(Isotropic(4, 1), Arc{Radius: -1}, Tube{RadiusMm: 1})
	assert.Error(t, err)
}
