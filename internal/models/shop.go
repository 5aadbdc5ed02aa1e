package models

import (
	"time"

	"shopaudit-backend/internal/gps"
)

type Shop struct {
	ID          string   `json:"id" db:"id"`
	ShopName    string   `json:"shop_name" db:"shop_name"`
	ShopAddress string   `json:"shop_address" db:"shop_address"`
	GPSNorth    *float64 `json:"gps_n,omitempty" db:"gps_n"`
	GPSEast     *float64 `json:"gps_e,omitempty" db:"gps_e"`

	// Per-shop radius override in meters; gps.DefaultRadiusMeters applies
	// when NULL.
	RadiusThreshold *float64 `json:"radius_threshold,omitempty" db:"radius_threshold"`

	AssignedTo          *string `json:"assigned_to,omitempty" db:"assigned_to"`
	AssignedQC          *string `json:"assigned_qc,omitempty" db:"assigned_qc"`
	AssignedSalesperson *string `json:"assigned_salesperson,omitempty" db:"assigned_salesperson"`
	AssignedManagerID   *string `json:"assigned_manager_id,omitempty" db:"assigned_manager_id"`

	Visited   bool    `json:"visit" db:"visited"`
	VisitedBy *string `json:"visited_by,omitempty" db:"visited_by"`
	VisitedAt *int64  `json:"visited_at,omitempty" db:"visited_at"`

	VisitedByQC   bool    `json:"visit_by_qc" db:"visited_by_qc"`
	VisitedByQCID *string `json:"visited_by_qc_id,omitempty" db:"visited_by_qc_id"`
	VisitedAtByQC *int64  `json:"visited_at_by_qc,omitempty" db:"visited_at_by_qc"`

	VisitedBySaleperson   bool    `json:"visit_by_saleperson" db:"visited_by_saleperson"`
	VisitedBySalepersonID *string `json:"visited_by_saleperson_id,omitempty" db:"visited_by_saleperson_id"`
	VisitedAtBySaleperson *int64  `json:"visited_at_by_saleperson,omitempty" db:"visited_at_by_saleperson"`

	ShopFoundStatus    *bool    `json:"shop_found_status,omitempty" db:"shop_found_status"`
	ShopFoundLatitude  *float64 `json:"shop_found_latitude,omitempty" db:"shop_found_latitude"`
	ShopFoundLongitude *float64 `json:"shop_found_longitude,omitempty" db:"shop_found_longitude"`
	ShopFoundAt        *int64   `json:"shop_found_at,omitempty" db:"shop_found_at"`

	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

// RadiusMeters returns the shop's effective validation radius.
func (s *Shop) RadiusMeters() float64 {
	if s.RadiusThreshold != nil && *s.RadiusThreshold > 0 {
		return *s.RadiusThreshold
	}
	return gps.DefaultRadiusMeters
}

// Reference builds the validation input for this shop, or nil when the
// shop has no usable coordinates (validation then reports no_data).
func (s *Shop) Reference() *gps.ShopReference {
	if s.GPSNorth == nil || s.GPSEast == nil {
		return nil
	}
	c := gps.Coordinate{Latitude: *s.GPSNorth, Longitude: *s.GPSEast}
	if !c.Finite() {
		return nil
	}
	return &gps.ShopReference{
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		RadiusMeters: s.RadiusMeters(),
	}
}

// ShopResponse is what we send to the client with ISO timestamps.
type ShopResponse struct {
	ID                  string   `json:"id"`
	ShopName            string   `json:"shop_name"`
	ShopAddress         string   `json:"shop_address"`
	GPSNorth            *float64 `json:"gps_n,omitempty"`
	GPSEast             *float64 `json:"gps_e,omitempty"`
	RadiusThreshold     float64  `json:"radius_threshold"`
	AssignedTo          *string  `json:"assigned_to,omitempty"`
	AssignedQC          *string  `json:"assigned_qc,omitempty"`
	AssignedSalesperson *string  `json:"assigned_salesperson,omitempty"`
	AssignedManagerID   *string  `json:"assigned_manager_id,omitempty"`
	Visited             bool     `json:"visit"`
	VisitedBy           *string  `json:"visited_by,omitempty"`
	VisitedAtIso        *string  `json:"visitedAtIso,omitempty"`
	VisitedByQC         bool     `json:"visit_by_qc"`
	VisitedAtByQCIso    *string  `json:"visitedAtByQcIso,omitempty"`
	VisitedBySaleperson bool     `json:"visit_by_saleperson"`
	ShopFoundStatus     *bool    `json:"shop_found_status,omitempty"`
}

func (s *Shop) ToShopResponse() ShopResponse {
	resp := ShopResponse{
		ID:                  s.ID,
		ShopName:            s.ShopName,
		ShopAddress:         s.ShopAddress,
		GPSNorth:            s.GPSNorth,
		GPSEast:             s.GPSEast,
		RadiusThreshold:     s.RadiusMeters(),
		AssignedTo:          s.AssignedTo,
		AssignedQC:          s.AssignedQC,
		AssignedSalesperson: s.AssignedSalesperson,
		AssignedManagerID:   s.AssignedManagerID,
		Visited:             s.Visited,
		VisitedBy:           s.VisitedBy,
		VisitedByQC:         s.VisitedByQC,
		VisitedBySaleperson: s.VisitedBySaleperson,
		ShopFoundStatus:     s.ShopFoundStatus,
	}

	if s.VisitedAt != nil {
		iso := time.Unix(*s.VisitedAt, 0).Format(time.RFC3339)
		resp.VisitedAtIso = &iso
	}
	if s.VisitedAtByQC != nil {
		iso := time.Unix(*s.VisitedAtByQC, 0).Format(time.RFC3339)
		resp.VisitedAtByQCIso = &iso
	}

	return resp
}

// CreateShopRequest is the request body for POST /api/shops.
type CreateShopRequest struct {
	ShopName        string   `json:"shop_name"`
	ShopAddress     string   `json:"shop_address"`
	GPSNorth        *float64 `json:"gps_n,omitempty"`
	GPSEast         *float64 `json:"gps_e,omitempty"`
	RadiusThreshold *float64 `json:"radius_threshold,omitempty"`
}

// UpdateShopRequest is the request body for PUT /api/shops/{id}. Only
// non-nil fields are applied.
type UpdateShopRequest struct {
	ShopName        *string  `json:"shop_name,omitempty"`
	ShopAddress     *string  `json:"shop_address,omitempty"`
	GPSNorth        *float64 `json:"gps_n,omitempty"`
	GPSEast         *float64 `json:"gps_e,omitempty"`
	RadiusThreshold *float64 `json:"radius_threshold,omitempty"`
}
