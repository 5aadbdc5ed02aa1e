package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"shopaudit-backend/internal/gps"
	"shopaudit-backend/internal/middleware"
	"shopaudit-backend/internal/models"
	"shopaudit-backend/internal/services"
	"shopaudit-backend/internal/visits"
	"shopaudit-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// visitError maps lifecycle errors to HTTP status codes.
func visitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, visits.ErrShopNotFound):
		utils.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, visits.ErrNoOpenAttempt):
		utils.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, visits.ErrNotAssigned), errors.Is(err, visits.ErrRoleCannotVisit):
		utils.Error(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("❌ Visit operation failed: %v", err)
		utils.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

type checkpointRequest struct {
	ShopID    string   `json:"shop_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (req *checkpointRequest) coordinate() *gps.Coordinate {
	if req.Latitude == nil || req.Longitude == nil {
		return nil
	}
	return &gps.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
}

// StartAudit opens (or re-opens) the visit attempt for a shop.
func StartAudit(svc *visits.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req checkpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ShopID == "" {
			utils.Error(w, http.StatusBadRequest, "shop_id is required")
			return
		}

		attempt, err := svc.StartAudit(r.Context(), req.ShopID, req.coordinate(), models.Role(user.Role))
		if err != nil {
			visitError(w, err)
			return
		}
		utils.Success(w, attempt)
	}
}

// PhotoClick records the photo checkpoint on the open attempt.
func PhotoClick(svc *visits.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkpointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ShopID == "" {
			utils.Error(w, http.StatusBadRequest, "shop_id is required")
			return
		}

		attempt, err := svc.PhotoClick(r.Context(), req.ShopID, req.coordinate())
		if err != nil {
			visitError(w, err)
			return
		}
		utils.Success(w, attempt)
	}
}

// SubmitVisit closes the open attempt with the evidence photos and the
// proceed checkpoint. Multipart form: shop_id, latitude, longitude,
// shopImage, shelfImage.
func SubmitVisit(svc *visits.Service, cache *services.StatsCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}

		shopID := r.FormValue("shop_id")
		if shopID == "" {
			utils.Error(w, http.StatusBadRequest, "shop_id is required")
			return
		}

		var coord *gps.Coordinate
		if lat, err1 := strconv.ParseFloat(r.FormValue("latitude"), 64); err1 == nil {
			if lng, err2 := strconv.ParseFloat(r.FormValue("longitude"), 64); err2 == nil {
				coord = &gps.Coordinate{Latitude: lat, Longitude: lng}
			}
		}

		shopImage, err := saveEvidenceFile(r, "shopImage")
		if err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		shelfImage, err := saveEvidenceFile(r, "shelfImage")
		if err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		attempt, err := svc.Submit(r.Context(), visits.SubmitParams{
			ShopID:     shopID,
			UserID:     user.UserID,
			Role:       models.Role(user.Role),
			ShopImage:  shopImage,
			ShelfImage: shelfImage,
			Coord:      coord,
		})
		if err != nil {
			visitError(w, err)
			return
		}

		cache.Invalidate(r.Context())
		utils.Success(w, attempt)
	}
}

// saveEvidenceFile stores one uploaded image under UPLOAD_DIR and returns
// its serving path. Both evidence photos are mandatory: a submission
// without them is rejected before it reaches the lifecycle.
func saveEvidenceFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", fmt.Errorf("%s is required", field)
	}
	if err != nil {
		return "", fmt.Errorf("invalid %s upload", field)
	}
	defer file.Close()

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("upload storage unavailable")
	}

	name := uuid.New().String() + filepath.Ext(header.Filename)
	path := filepath.Join(uploadDir, name)
	if err := writeUpload(file, path); err != nil {
		log.Printf("❌ Failed to store %s: %v", field, err)
		return "", fmt.Errorf("failed to store %s", field)
	}

	return "/uploads/" + name, nil
}

func writeUpload(src multipart.File, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

// ResetVisits wipes all visit flags and attempt history.
func ResetVisits(svc *visits.Service, cache *services.StatsCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := svc.ResetAll(r.Context())
		if err != nil {
			visitError(w, err)
			return
		}

		cache.Invalidate(r.Context())
		utils.JSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"reset":   count,
		})
	}
}

// VisitStats is the dashboard counters payload.
type VisitStats struct {
	TotalShops           int `json:"total_shops" db:"total_shops"`
	VisitedByAuditor     int `json:"visited_by_auditor" db:"visited_by_auditor"`
	VisitedByQC          int `json:"visited_by_qc" db:"visited_by_qc"`
	VisitedBySaleperson  int `json:"visited_by_saleperson" db:"visited_by_saleperson"`
	SubmittedAttempts    int `json:"submitted_attempts" db:"submitted_attempts"`
	OpenAttempts         int `json:"open_attempts" db:"open_attempts"`
	ShopsWithoutGPS      int `json:"shops_without_gps" db:"shops_without_gps"`
	UnassignedForAuditor int `json:"unassigned_for_auditor" db:"unassigned_for_auditor"`
}

// UserVisitStats is the personal progress payload for field users.
type UserVisitStats struct {
	Assigned int `json:"assigned" db:"assigned"`
	Visited  int `json:"visited" db:"visited"`
	Pending  int `json:"pending" db:"pending"`
}

// GetVisitStats returns dashboard counters. Field users get their own
// assigned/visited/pending progress; everyone else gets the global view,
// cached briefly in Redis because every open dashboard polls it.
func GetVisitStats(db *sqlx.DB, cache *services.StatsCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if user, ok := middleware.GetUserFromContext(r); ok {
			if role := models.Role(user.Role); role.CanVisit() {
				serveUserStats(w, db, user.UserID, role)
				return
			}
		}

		if data, ok := cache.GetVisitStats(r.Context()); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(data)
			return
		}

		var stats VisitStats
		query := `
			SELECT
				(SELECT COUNT(*) FROM shops) AS total_shops,
				(SELECT COUNT(*) FROM shops WHERE visited = TRUE) AS visited_by_auditor,
				(SELECT COUNT(*) FROM shops WHERE visited_by_qc = TRUE) AS visited_by_qc,
				(SELECT COUNT(*) FROM shops WHERE visited_by_saleperson = TRUE) AS visited_by_saleperson,
				(SELECT COUNT(*) FROM visit_attempts WHERE submitted = TRUE) AS submitted_attempts,
				(SELECT COUNT(*) FROM visit_attempts WHERE submitted = FALSE) AS open_attempts,
				(SELECT COUNT(*) FROM shops WHERE gps_n IS NULL OR gps_e IS NULL) AS shops_without_gps,
				(SELECT COUNT(*) FROM shops WHERE assigned_to IS NULL) AS unassigned_for_auditor
		`
		if err := db.Get(&stats, query); err != nil {
			log.Printf("❌ Failed to compute visit stats: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to compute stats")
			return
		}

		payload, err := json.Marshal(stats)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to encode stats")
			return
		}
		cache.SetVisitStats(r.Context(), payload)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	}
}

// Columns are fixed per role, never taken from the request.
var roleStatsColumns = map[models.Role]struct{ assigned, visited string }{
	models.RoleAuditor:    {"assigned_to", "visited"},
	models.RoleQC:         {"assigned_qc", "visited_by_qc"},
	models.RoleSaleperson: {"assigned_salesperson", "visited_by_saleperson"},
}

func serveUserStats(w http.ResponseWriter, db *sqlx.DB, userID string, role models.Role) {
	cols, ok := roleStatsColumns[role]
	if !ok {
		utils.Error(w, http.StatusForbidden, "No visit stats for this role")
		return
	}

	var stats UserVisitStats
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS assigned,
			COUNT(*) FILTER (WHERE %[1]s = TRUE) AS visited,
			COUNT(*) FILTER (WHERE %[1]s = FALSE) AS pending
		FROM shops WHERE %[2]s = $1
	`, cols.visited, cols.assigned)
	if err := db.Get(&stats, query, userID); err != nil {
		log.Printf("❌ Failed to compute user stats: %v", err)
		utils.Error(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	utils.Success(w, stats)
}

// GPSSummary aggregates the stored GPS verdicts of all submitted attempts.
func GPSSummary(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows [][]byte
		query := `
			SELECT gps_validation FROM visit_attempts
			WHERE submitted = TRUE AND gps_validation IS NOT NULL
		`
		if err := db.Select(&rows, query); err != nil {
			log.Printf("❌ Failed to load GPS verdicts: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to load GPS verdicts")
			return
		}

		results := make([]gps.Result, 0, len(rows))
		for _, raw := range rows {
			var result gps.Result
			if err := json.Unmarshal(raw, &result); err != nil {
				continue
			}
			results = append(results, result)
		}

		summary := gps.Summarize(results)
		utils.Success(w, map[string]interface{}{
			"summary":      summary,
			"generated_at": time.Now().Format(time.RFC3339),
		})
	}
}
