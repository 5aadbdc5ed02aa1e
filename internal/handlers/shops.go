package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shopaudit-backend/internal/models"
	"shopaudit-backend/internal/services"
	"shopaudit-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
)

const insertShopQuery = `
	INSERT INTO shops (id, shop_name, shop_address, gps_n, gps_e, radius_threshold, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// UploadShops bulk-imports shops from an .xlsx sheet. Expected columns:
// shop_name, shop_address, gps_n, gps_e, and optionally radius_threshold.
// Rows without usable coordinates are imported anyway; their visits
// validate as no_data until coordinates are filled in.
func UploadShops(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/shops/upload - Bulk shop import")

		if err := r.ParseMultipartForm(16 << 20); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "Missing 'file' field")
			return
		}
		defer file.Close()

		log.Printf("   📄 File: %s (%d bytes)", header.Filename, header.Size)

		workbook, err := excelize.OpenReader(file)
		if err != nil {
			log.Printf("❌ Failed to open workbook: %v", err)
			utils.Error(w, http.StatusBadRequest, "File is not a valid xlsx workbook")
			return
		}
		defer workbook.Close()

		sheet := workbook.GetSheetName(0)
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "Failed to read worksheet")
			return
		}
		if len(rows) < 2 {
			utils.Error(w, http.StatusBadRequest, "Worksheet has no data rows")
			return
		}

		columns := headerIndex(rows[0])
		nameCol, okName := columns["shop_name"]
		addrCol, okAddr := columns["shop_address"]
		if !okName || !okAddr {
			utils.Error(w, http.StatusBadRequest, "Worksheet must have shop_name and shop_address columns")
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to begin transaction")
			return
		}
		defer tx.Rollback()

		now := time.Now().Unix()
		imported := 0
		skipped := 0
		for _, row := range rows[1:] {
			name := strings.TrimSpace(cellAt(row, nameCol))
			address := strings.TrimSpace(cellAt(row, addrCol))
			if name == "" {
				skipped++
				continue
			}

			lat := floatCell(row, columns, "gps_n")
			lng := floatCell(row, columns, "gps_e")
			radius := floatCell(row, columns, "radius_threshold")

			id := uuid.New().String()
			if _, err := tx.Exec(insertShopQuery, id, name, address, lat, lng, radius, now, now); err != nil {
				log.Printf("❌ Failed to import row for %q: %v", name, err)
				utils.Error(w, http.StatusInternalServerError, "Failed to import shops")
				return
			}
			imported++
		}

		if err := tx.Commit(); err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to commit import")
			return
		}

		log.Printf("✅ Imported %d shops (%d rows skipped)", imported, skipped)
		utils.JSON(w, http.StatusCreated, map[string]interface{}{
			"success":  true,
			"imported": imported,
			"skipped":  skipped,
		})
	}
}

func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key != "" {
			columns[key] = i
		}
	}
	return columns
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func floatCell(row []string, columns map[string]int, name string) *float64 {
	i, ok := columns[name]
	if !ok {
		return nil
	}
	raw := strings.TrimSpace(cellAt(row, i))
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &val
}

// AddShop registers a single shop. When the request carries no
// coordinates the address is geocoded so the validation engine has a
// reference point from day one.
func AddShop(db *sqlx.DB, geocoder *services.GeocodingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateShopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.ShopName) == "" {
			utils.Error(w, http.StatusBadRequest, "Shop name is required")
			return
		}

		lat, lng := req.GPSNorth, req.GPSEast
		if (lat == nil || lng == nil) && geocoder != nil && strings.TrimSpace(req.ShopAddress) != "" {
			if addr, err := geocoder.Geocode(req.ShopAddress); err == nil {
				lat, lng = &addr.Coordinates.Lat, &addr.Coordinates.Lng
				log.Printf("📍 Geocoded %q to (%f, %f)", req.ShopAddress, *lat, *lng)
			} else {
				log.Printf("⚠️ Geocoding failed for %q: %v", req.ShopAddress, err)
			}
		}

		now := time.Now().Unix()
		id := uuid.New().String()
		if _, err := db.Exec(insertShopQuery, id, req.ShopName, req.ShopAddress, lat, lng, req.RadiusThreshold, now, now); err != nil {
			log.Printf("❌ Failed to create shop: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create shop")
			return
		}

		var shop models.Shop
		if err := db.Get(&shop, "SELECT * FROM shops WHERE id = $1", id); err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to load created shop")
			return
		}

		log.Printf("✅ Shop created: %s (%s)", shop.ShopName, shop.ID)
		utils.JSON(w, http.StatusCreated, shop.ToShopResponse())
	}
}

// UpdateShop patches shop master data. Only non-nil fields are applied.
func UpdateShop(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "Shop id is required")
			return
		}

		var req models.UpdateShopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var shop models.Shop
		err := db.Get(&shop, "SELECT * FROM shops WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Shop not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		if req.ShopName != nil {
			shop.ShopName = *req.ShopName
		}
		if req.ShopAddress != nil {
			shop.ShopAddress = *req.ShopAddress
		}
		if req.GPSNorth != nil {
			shop.GPSNorth = req.GPSNorth
		}
		if req.GPSEast != nil {
			shop.GPSEast = req.GPSEast
		}
		if req.RadiusThreshold != nil {
			shop.RadiusThreshold = req.RadiusThreshold
		}
		shop.UpdatedAt = time.Now().Unix()

		updateQuery := `
			UPDATE shops SET shop_name = :shop_name, shop_address = :shop_address,
			                 gps_n = :gps_n, gps_e = :gps_e,
			                 radius_threshold = :radius_threshold, updated_at = :updated_at
			WHERE id = :id
		`
		if _, err := db.NamedExec(updateQuery, shop); err != nil {
			log.Printf("❌ Failed to update shop %s: %v", id, err)
			utils.Error(w, http.StatusInternalServerError, "Failed to update shop")
			return
		}

		log.Printf("✅ Shop updated: %s", shop.ShopName)
		utils.Success(w, shop.ToShopResponse())
	}
}

// GetShops lists all shops; ?unassigned=true narrows to shops with no
// auditor assignment yet.
func GetShops(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := "SELECT * FROM shops ORDER BY shop_name ASC"
		if r.URL.Query().Get("unassigned") == "true" {
			query = "SELECT * FROM shops WHERE assigned_to IS NULL ORDER BY shop_name ASC"
		}

		var shops []models.Shop
		if err := db.Select(&shops, query); err != nil {
			log.Printf("❌ Failed to fetch shops: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch shops")
			return
		}

		responses := make([]models.ShopResponse, len(shops))
		for i, shop := range shops {
			responses[i] = shop.ToShopResponse()
		}
		utils.Success(w, responses)
	}
}

// GetVisitedShops lists shops with a completed auditor visit.
func GetVisitedShops(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var shops []models.Shop
		query := "SELECT * FROM shops WHERE visited = TRUE ORDER BY visited_at DESC"
		if err := db.Select(&shops, query); err != nil {
			log.Printf("❌ Failed to fetch visited shops: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch shops")
			return
		}

		responses := make([]models.ShopResponse, len(shops))
		for i, shop := range shops {
			responses[i] = shop.ToShopResponse()
		}
		utils.Success(w, responses)
	}
}

// GetPendingAndVisitedShops filters by auditor visit state: ?visit=true
// for completed, ?visit=false for pending, both when omitted.
func GetPendingAndVisitedShops(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := "SELECT * FROM shops ORDER BY shop_name ASC"
		args := []interface{}{}
		switch r.URL.Query().Get("visit") {
		case "true":
			query = "SELECT * FROM shops WHERE visited = $1 ORDER BY shop_name ASC"
			args = append(args, true)
		case "false":
			query = "SELECT * FROM shops WHERE visited = $1 ORDER BY shop_name ASC"
			args = append(args, false)
		}

		var shops []models.Shop
		if err := db.Select(&shops, query, args...); err != nil {
			log.Printf("❌ Failed to fetch shops: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch shops")
			return
		}

		responses := make([]models.ShopResponse, len(shops))
		for i, shop := range shops {
			responses[i] = shop.ToShopResponse()
		}
		utils.Success(w, responses)
	}
}

// GetShopByID returns one shop.
func GetShopByID(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var shop models.Shop
		err := db.Get(&shop, "SELECT * FROM shops WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Shop not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.Success(w, shop.ToShopResponse())
	}
}

type AssignShopsRequest struct {
	ShopIDs []string `json:"shop_ids"`
	UserID  string   `json:"user_id"`
	Role    string   `json:"role"`
}

// AssignShops hands a batch of shops to one user on their role's track.
// A shop already assigned on that track is rejected rather than silently
// reassigned; unassignment is an explicit different action.
func AssignShops(db *sqlx.DB, fcm *services.FCMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/shops/assign")

		var req AssignShopsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.ShopIDs) == 0 || req.UserID == "" {
			utils.Error(w, http.StatusBadRequest, "shop_ids and user_id are required")
			return
		}

		var user models.User
		err := db.Get(&user, "SELECT * FROM users WHERE id = $1", req.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		role := user.Role
		if req.Role != "" {
			role = models.Role(req.Role)
		}
		if role != user.Role {
			utils.Error(w, http.StatusBadRequest, "Role does not match the user's role")
			return
		}
		column, ok := assignmentColumn(role)
		if !ok {
			utils.Error(w, http.StatusBadRequest, "This role does not receive shop assignments")
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to begin transaction")
			return
		}
		defer tx.Rollback()

		now := time.Now().Unix()
		for _, shopID := range req.ShopIDs {
			var current sql.NullString
			query := fmt.Sprintf("SELECT %s FROM shops WHERE id = $1 FOR UPDATE", column)
			err := tx.Get(&current, query, shopID)
			if errors.Is(err, sql.ErrNoRows) {
				utils.Error(w, http.StatusNotFound, "Shop not found: "+shopID)
				return
			}
			if err != nil {
				utils.Error(w, http.StatusInternalServerError, "Database error")
				return
			}
			if current.Valid && current.String != "" && current.String != req.UserID {
				log.Printf("❌ Shop %s already assigned on the %s track", shopID, role)
				utils.Error(w, http.StatusConflict, "Shop "+shopID+" is already assigned for this role")
				return
			}

			update := fmt.Sprintf("UPDATE shops SET %s = $1, updated_at = $2 WHERE id = $3", column)
			if _, err := tx.Exec(update, req.UserID, now, shopID); err != nil {
				utils.Error(w, http.StatusInternalServerError, "Failed to assign shops")
				return
			}
		}

		if err := tx.Commit(); err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to commit assignment")
			return
		}

		log.Printf("✅ Assigned %d shops to %s (%s)", len(req.ShopIDs), user.Username, role)

		// Push notification is best-effort; assignment already landed.
		if fcm != nil {
			notifyAssignee(db, fcm, req.UserID, len(req.ShopIDs))
		}

		utils.JSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"assigned": len(req.ShopIDs),
		})
	}
}

func notifyAssignee(db *sqlx.DB, fcm *services.FCMService, userID string, shopCount int) {
	var tokens []string
	if err := db.Select(&tokens, "SELECT token FROM fcm_tokens WHERE user_id = $1", userID); err != nil {
		log.Printf("⚠️ Failed to load FCM tokens for %s: %v", userID, err)
		return
	}
	for _, token := range tokens {
		if err := fcm.SendShopsAssignedNotification(token, shopCount); err != nil {
			log.Printf("⚠️ FCM notify failed: %v", err)
		}
	}
}

type MarkShopFoundRequest struct {
	Found     bool     `json:"found"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// MarkShopFound records whether the field user could locate the shop at
// its registered address, with the spot they reported from.
func MarkShopFound(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req MarkShopFoundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		now := time.Now().Unix()
		res, err := db.Exec(`
			UPDATE shops SET shop_found_status = $1, shop_found_latitude = $2,
			                 shop_found_longitude = $3, shop_found_at = $4, updated_at = $4
			WHERE id = $5
		`, req.Found, req.Latitude, req.Longitude, now, id)
		if err != nil {
			log.Printf("❌ Failed to mark shop found: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to update shop")
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			utils.Error(w, http.StatusNotFound, "Shop not found")
			return
		}

		log.Printf("✅ Shop %s found status set to %v", id, req.Found)
		utils.Message(w, "Shop found status updated")
	}
}

// GetDetectionResults returns the stored detection records of a shop's
// submitted attempts, newest first.
func GetDetectionResults(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var shopExists string
		err := db.Get(&shopExists, "SELECT id FROM shops WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "Shop not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		var attempts []models.VisitAttempt
		query := `
			SELECT * FROM visit_attempts
			WHERE shop_id = $1 AND submitted = TRUE AND detection IS NOT NULL
			ORDER BY submitted_at DESC
		`
		if err := db.Select(&attempts, query, id); err != nil {
			log.Printf("❌ Failed to fetch detections for shop %s: %v", id, err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch detections")
			return
		}

		type detectionEntry struct {
			AttemptID   string                 `json:"attempt_id"`
			Role        models.Role            `json:"role"`
			SubmittedAt *int64                 `json:"submitted_at,omitempty"`
			Detection   models.DetectionResult `json:"detection"`
		}

		results := make([]detectionEntry, 0, len(attempts))
		for _, attempt := range attempts {
			record, ok := attempt.DetectionRecord()
			if !ok {
				continue
			}
			results = append(results, detectionEntry{
				AttemptID:   attempt.ID,
				Role:        attempt.Role,
				SubmittedAt: attempt.SubmittedAt,
				Detection:   record,
			})
		}
		utils.Success(w, results)
	}
}
