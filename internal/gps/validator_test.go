package gps

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopRef = ShopReference{Latitude: 12.9716, Longitude: 77.5946, RadiusMeters: DefaultRadiusMeters}

func coordAtDistance(ref ShopReference, meters float64) *Coordinate {
	// Move north; one degree of latitude is ~111.19 km on the sphere used
	// by DistanceMeters.
	return &Coordinate{
		Latitude:  ref.Latitude + meters/111194.9266,
		Longitude: ref.Longitude,
	}
}

func TestValidateCheckpointAbsent(t *testing.T) {
	d, ok := ValidateCheckpoint(nil, shopRef)
	assert.Nil(t, d)
	assert.False(t, ok)
}

func TestValidateCheckpointNonFinite(t *testing.T) {
	d, ok := ValidateCheckpoint(&Coordinate{Latitude: math.NaN(), Longitude: 77.5946}, shopRef)
	assert.Nil(t, d)
	assert.False(t, ok)
}

func TestValidateCheckpointBoundary(t *testing.T) {
	at := coordAtDistance(shopRef, 30)
	d, ok := ValidateCheckpoint(at, shopRef)
	require.NotNil(t, d)
	// The generated point lands within a couple of centimeters of the
	// threshold; the inclusive boundary is what matters.
	require.InDelta(t, 30.0, *d, 0.05)
	assert.Equal(t, *d <= shopRef.RadiusMeters, ok)

	exact := ShopReference{Latitude: shopRef.Latitude, Longitude: shopRef.Longitude, RadiusMeters: *d}
	_, ok = ValidateCheckpoint(at, exact)
	assert.True(t, ok, "distance exactly at threshold must be valid")

	tight := ShopReference{Latitude: shopRef.Latitude, Longitude: shopRef.Longitude, RadiusMeters: *d - 0.01}
	_, ok = ValidateCheckpoint(at, tight)
	assert.False(t, ok, "a centimeter past the threshold must be invalid")
}

func TestValidateVisitNoShopReference(t *testing.T) {
	now := time.Now()
	res := ValidateVisit(Checkpoints{StartAudit: coordAtDistance(shopRef, 1)}, nil, now)

	assert.Equal(t, StatusNoData, res.Status)
	assert.False(t, res.IsValid)
	assert.Nil(t, res.StartAuditDistance)
	assert.Nil(t, res.PhotoClickDistance)
	assert.Nil(t, res.ProceedClickDistance)
	assert.Equal(t, float64(DefaultRadiusMeters), res.RadiusMeters)
	assert.Equal(t, now, res.ValidatedAt)
}

func TestValidateVisitNonFiniteShopReference(t *testing.T) {
	ref := ShopReference{Latitude: math.NaN(), Longitude: 77.5946, RadiusMeters: 30}
	res := ValidateVisit(Checkpoints{StartAudit: coordAtDistance(shopRef, 1)}, &ref, time.Now())
	assert.Equal(t, StatusNoData, res.Status)
	assert.False(t, res.IsValid)
}

func TestValidateVisitStatusMatrix(t *testing.T) {
	near := func() *Coordinate { return coordAtDistance(shopRef, 5) }
	far := func() *Coordinate { return coordAtDistance(shopRef, 120) }

	tests := []struct {
		name      string
		cps       Checkpoints
		status    ValidationStatus
		isValid   bool
	}{
		{
			name:   "all checkpoints missing",
			cps:    Checkpoints{},
			status: StatusNoData,
		},
		{
			name:    "all three valid",
			cps:     Checkpoints{StartAudit: near(), PhotoClick: near(), ProceedClick: near()},
			status:  StatusValid,
			isValid: true,
		},
		{
			name:    "two of three valid",
			cps:     Checkpoints{StartAudit: near(), PhotoClick: near(), ProceedClick: far()},
			status:  StatusPartial,
			isValid: true,
		},
		{
			name:   "one of three valid",
			cps:    Checkpoints{StartAudit: near(), PhotoClick: far(), ProceedClick: far()},
			status: StatusPartial,
		},
		{
			name:   "none valid but all present",
			cps:    Checkpoints{StartAudit: far(), PhotoClick: far(), ProceedClick: far()},
			status: StatusInvalid,
		},
		{
			name:    "single valid checkpoint, others absent",
			cps:     Checkpoints{StartAudit: near()},
			status:  StatusValid,
			isValid: true,
		},
		{
			name:   "single invalid checkpoint, others absent",
			cps:    Checkpoints{PhotoClick: far()},
			status: StatusInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateVisit(tt.cps, &shopRef, time.Now())
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.isValid, res.IsValid)
		})
	}
}

func TestValidateVisitRecordsDistancesAndShopCoords(t *testing.T) {
	res := ValidateVisit(Checkpoints{
		StartAudit: &Coordinate{Latitude: shopRef.Latitude, Longitude: shopRef.Longitude},
		PhotoClick: coordAtDistance(shopRef, 5.5),
	}, &shopRef, time.Now())

	require.NotNil(t, res.StartAuditDistance)
	assert.Equal(t, 0.0, *res.StartAuditDistance)
	require.NotNil(t, res.PhotoClickDistance)
	assert.InDelta(t, 5.5, *res.PhotoClickDistance, 0.1)
	assert.Nil(t, res.ProceedClickDistance)
	require.NotNil(t, res.ShopLatitude)
	assert.Equal(t, shopRef.Latitude, *res.ShopLatitude)
}

func TestSummarize(t *testing.T) {
	d := func(v float64) *float64 { return &v }
	results := []Result{
		{Status: StatusValid, IsValid: true, StartAuditDistance: d(10), PhotoClickDistance: d(20)},
		{Status: StatusPartial, IsValid: true, StartAuditDistance: d(5), ProceedClickDistance: d(55)},
		{Status: StatusInvalid, StartAuditDistance: d(90)},
		{Status: StatusNoData},
	}

	s := Summarize(results)
	assert.Equal(t, 4, s.TotalVisits)
	assert.Equal(t, 3, s.VisitsWithGPS)
	assert.Equal(t, 2, s.ValidVisits)
	assert.Equal(t, 1, s.InvalidVisits)
	assert.Equal(t, 1, s.PartialVisits)
	assert.Equal(t, 1, s.NoDataVisits)
	// (15 + 30 + 90) / 3
	assert.Equal(t, 45.0, s.AverageDistance)
	assert.Equal(t, 67, s.ValidationRate)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalVisits)
	assert.Equal(t, 0.0, s.AverageDistance)
	assert.Equal(t, 0, s.ValidationRate)
}
