package gps

import "time"

// DefaultRadiusMeters is the radius applied when a shop carries no
// per-shop override.
const DefaultRadiusMeters = 30

// ValidationStatus classifies the overall GPS verdict for a visit.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusInvalid ValidationStatus = "invalid"
	StatusPartial ValidationStatus = "partial"
	StatusNoData  ValidationStatus = "no_data"
)

// ShopReference is the shop-side input to validation: where the shop is
// and how far away a checkpoint may be while still counting as on-site.
type ShopReference struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Checkpoints holds the coordinates captured at each stage of a visit.
// A nil entry means the stage was reached without a GPS fix (or not
// reached at all).
type Checkpoints struct {
	StartAudit   *Coordinate
	PhotoClick   *Coordinate
	ProceedClick *Coordinate
}

// CheckpointDetails records the per-stage pass/fail flags.
type CheckpointDetails struct {
	StartAuditValid   bool `json:"start_audit_valid"`
	PhotoClickValid   bool `json:"photo_click_valid"`
	ProceedClickValid bool `json:"proceed_click_valid"`
}

// Result is the visit-level GPS verdict stored alongside the attempt.
// It is informational: visit completion never depends on it.
type Result struct {
	IsValid              bool              `json:"is_valid"`
	Status               ValidationStatus  `json:"validation_status"`
	StartAuditDistance   *float64          `json:"start_audit_distance"`
	PhotoClickDistance   *float64          `json:"photo_click_distance"`
	ProceedClickDistance *float64          `json:"proceed_click_distance"`
	Details              CheckpointDetails `json:"validation_details"`
	ShopLatitude         *float64          `json:"shop_latitude,omitempty"`
	ShopLongitude        *float64          `json:"shop_longitude,omitempty"`
	RadiusMeters         float64           `json:"radius_threshold"`
	ValidatedAt          time.Time         `json:"validated_at"`
}

// ValidateCheckpoint scores one checkpoint against the shop reference.
// An absent coordinate yields (nil, false): "not captured" is distinct
// from "captured but out of range". The radius boundary is inclusive.
func ValidateCheckpoint(coord *Coordinate, ref ShopReference) (*float64, bool) {
	if coord == nil || !coord.Finite() {
		return nil, false
	}
	d := DistanceMeters(Coordinate{Latitude: ref.Latitude, Longitude: ref.Longitude}, *coord)
	return &d, d <= ref.RadiusMeters
}

// ValidateVisit derives the visit-level verdict from the three checkpoints.
// It never fails: missing shop coordinates or wholly missing checkpoint
// data produce a well-formed no_data result. The function is pure apart
// from stamping the supplied time.
//
// Status rule: all scored checkpoints valid -> valid; none valid ->
// invalid; a mix -> partial, accepted as proof-of-presence when at least
// two of the three waypoints corroborate the shop location (tolerates one
// flaky reading, e.g. indoor signal loss at photo time).
func ValidateVisit(cps Checkpoints, ref *ShopReference, at time.Time) Result {
	if ref == nil || !(Coordinate{Latitude: ref.Latitude, Longitude: ref.Longitude}).Finite() {
		radius := float64(DefaultRadiusMeters)
		if ref != nil {
			radius = ref.RadiusMeters
		}
		return Result{
			IsValid:      false,
			Status:       StatusNoData,
			RadiusMeters: radius,
			ValidatedAt:  at,
		}
	}

	result := Result{
		ShopLatitude:  &ref.Latitude,
		ShopLongitude: &ref.Longitude,
		RadiusMeters:  ref.RadiusMeters,
		ValidatedAt:   at,
	}

	result.StartAuditDistance, result.Details.StartAuditValid = ValidateCheckpoint(cps.StartAudit, *ref)
	result.PhotoClickDistance, result.Details.PhotoClickValid = ValidateCheckpoint(cps.PhotoClick, *ref)
	result.ProceedClickDistance, result.Details.ProceedClickValid = ValidateCheckpoint(cps.ProceedClick, *ref)

	total := 0
	for _, d := range []*float64{result.StartAuditDistance, result.PhotoClickDistance, result.ProceedClickDistance} {
		if d != nil {
			total++
		}
	}
	validCount := 0
	for _, ok := range []bool{result.Details.StartAuditValid, result.Details.PhotoClickValid, result.Details.ProceedClickValid} {
		if ok {
			validCount++
		}
	}

	switch {
	case total == 0:
		result.Status = StatusNoData
	case validCount == total:
		result.Status = StatusValid
		result.IsValid = true
	case validCount == 0:
		result.Status = StatusInvalid
	default:
		result.Status = StatusPartial
		result.IsValid = validCount >= 2
	}

	return result
}
