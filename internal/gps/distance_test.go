package gps

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersSamePoint(t *testing.T) {
	points := []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 12.9716, Longitude: 77.5946},
		{Latitude: -33.8688, Longitude: 151.2093},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceMeters(p, p))
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	a := Coordinate{Latitude: 12.9716, Longitude: 77.5946}
	b := Coordinate{Latitude: 12.9720, Longitude: 77.5946}
	assert.Equal(t, DistanceMeters(a, b), DistanceMeters(b, a))
}

func TestDistanceMetersThirtyMeterFixture(t *testing.T) {
	// 0.00027 degrees of latitude at the equator is roughly 30 m, the
	// default radius. Used to pin down the boundary behaviour.
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Coordinate{Latitude: 0.00027, Longitude: 0}
	d := DistanceMeters(a, b)
	assert.InDelta(t, 30.0, d, 0.1)
}

func TestDistanceMetersRounding(t *testing.T) {
	a := Coordinate{Latitude: 12.9716, Longitude: 77.5946}
	b := Coordinate{Latitude: 12.97165, Longitude: 77.5946}
	d := DistanceMeters(a, b)
	// Centimeter precision only.
	assert.Equal(t, d, float64(int64(d*100))/100)
}

func TestCoordinateFinite(t *testing.T) {
	assert.True(t, Coordinate{Latitude: 12.9716, Longitude: 77.5946}.Finite())
	assert.False(t, Coordinate{Latitude: math.NaN(), Longitude: 77.5946}.Finite())
	assert.False(t, Coordinate{Latitude: 12.9716, Longitude: math.Inf(1)}.Finite())
}
