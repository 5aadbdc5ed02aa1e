package models

import (
	"encoding/json"
	"log"
	"time"

	"github.com/jmoiron/sqlx/types"

	"shopaudit-backend/internal/gps"
)

// CheckpointKind names the three geotagged milestones of a visit attempt.
type CheckpointKind string

const (
	CheckpointStartAudit   CheckpointKind = "start_audit"
	CheckpointPhotoClick   CheckpointKind = "photo_click"
	CheckpointProceedClick CheckpointKind = "proceed_click"
)

// VisitAttempt is one pass by one role-holder through the visit lifecycle
// for a shop. A shop holds an append-only sequence of attempts; the open
// attempt is the latest unsubmitted one.
type VisitAttempt struct {
	ID     string `json:"id" db:"id"`
	ShopID string `json:"shop_id" db:"shop_id"`
	Role   Role   `json:"role" db:"role"`

	StartLatitude   *float64 `json:"start_latitude,omitempty" db:"start_latitude"`
	StartLongitude  *float64 `json:"start_longitude,omitempty" db:"start_longitude"`
	StartCapturedAt *int64   `json:"start_captured_at,omitempty" db:"start_captured_at"`

	PhotoLatitude   *float64 `json:"photo_latitude,omitempty" db:"photo_latitude"`
	PhotoLongitude  *float64 `json:"photo_longitude,omitempty" db:"photo_longitude"`
	PhotoCapturedAt *int64   `json:"photo_captured_at,omitempty" db:"photo_captured_at"`

	ProceedLatitude   *float64 `json:"proceed_latitude,omitempty" db:"proceed_latitude"`
	ProceedLongitude  *float64 `json:"proceed_longitude,omitempty" db:"proceed_longitude"`
	ProceedCapturedAt *int64   `json:"proceed_captured_at,omitempty" db:"proceed_captured_at"`

	ShopImage  *string `json:"shop_image,omitempty" db:"shop_image"`
	ShelfImage *string `json:"shelf_image,omitempty" db:"shelf_image"`

	Detection     types.JSONText `json:"detection,omitempty" db:"detection"`
	GPSValidation types.JSONText `json:"gps_validation,omitempty" db:"gps_validation"`

	Submitted   bool    `json:"submitted" db:"submitted"`
	SubmittedBy *string `json:"submitted_by,omitempty" db:"submitted_by"`
	SubmittedAt *int64  `json:"submitted_at,omitempty" db:"submitted_at"`

	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

// Open reports whether this attempt still accepts checkpoints.
func (v *VisitAttempt) Open() bool {
	return !v.Submitted
}

// SetCheckpoint overwrites the named checkpoint with the given coordinate
// (nil coordinate records the stage with no GPS fix) captured at the given
// time. Overwriting only ever touches this attempt, never historical ones.
func (v *VisitAttempt) SetCheckpoint(kind CheckpointKind, coord *gps.Coordinate, at time.Time) {
	var lat, lng *float64
	if coord != nil && coord.Finite() {
		latV, lngV := coord.Latitude, coord.Longitude
		lat, lng = &latV, &lngV
	}
	ts := at.Unix()

	switch kind {
	case CheckpointStartAudit:
		v.StartLatitude, v.StartLongitude, v.StartCapturedAt = lat, lng, &ts
	case CheckpointPhotoClick:
		v.PhotoLatitude, v.PhotoLongitude, v.PhotoCapturedAt = lat, lng, &ts
	case CheckpointProceedClick:
		v.ProceedLatitude, v.ProceedLongitude, v.ProceedCapturedAt = lat, lng, &ts
	}
}

// Checkpoints assembles the validator input from the stored columns.
func (v *VisitAttempt) Checkpoints() gps.Checkpoints {
	coord := func(lat, lng *float64) *gps.Coordinate {
		if lat == nil || lng == nil {
			return nil
		}
		c := gps.Coordinate{Latitude: *lat, Longitude: *lng}
		if !c.Finite() {
			return nil
		}
		return &c
	}
	return gps.Checkpoints{
		StartAudit:   coord(v.StartLatitude, v.StartLongitude),
		PhotoClick:   coord(v.PhotoLatitude, v.PhotoLongitude),
		ProceedClick: coord(v.ProceedLatitude, v.ProceedLongitude),
	}
}

// SetGPSValidation stores a validation result, replacing any previous one.
func (v *VisitAttempt) SetGPSValidation(result gps.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("❌ Failed to marshal GPS validation for attempt %s: %v", v.ID, err)
		return
	}
	v.GPSValidation = types.JSONText(data)
}

// GPSResult decodes the stored verdict; ok is false when none is stored.
func (v *VisitAttempt) GPSResult() (gps.Result, bool) {
	if len(v.GPSValidation) == 0 {
		return gps.Result{}, false
	}
	var r gps.Result
	if err := json.Unmarshal(v.GPSValidation, &r); err != nil {
		return gps.Result{}, false
	}
	return r, true
}

// SetDetection stores the normalized detection record.
func (v *VisitAttempt) SetDetection(result DetectionResult) {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("❌ Failed to marshal detection result for attempt %s: %v", v.ID, err)
		return
	}
	v.Detection = types.JSONText(data)
}

// DetectionRecord decodes the stored detection result, if any.
func (v *VisitAttempt) DetectionRecord() (DetectionResult, bool) {
	if len(v.Detection) == 0 {
		return DetectionResult{}, false
	}
	var r DetectionResult
	if err := json.Unmarshal(v.Detection, &r); err != nil {
		return DetectionResult{}, false
	}
	return r, true
}
