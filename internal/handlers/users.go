package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"shopaudit-backend/internal/middleware"
	"shopaudit-backend/internal/models"
	"shopaudit-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// RegisterUser creates a new user. The creator's role bounds which roles
// they may create: admin > manager > supervisor > executive, and field
// roles only ever come from above.
func RegisterUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/users - Register new user")

		creator, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("❌ Invalid request body: %v", err)
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Username == "" || req.Password == "" || req.Name == "" || req.Role == "" {
			utils.Error(w, http.StatusBadRequest, "Username, password, name, and role are required")
			return
		}

		targetRole := models.Role(req.Role)
		if !models.Role(creator.Role).CanCreate(targetRole) {
			log.Printf("❌ %s (%s) may not create role %s", creator.Username, creator.Role, req.Role)
			utils.Error(w, http.StatusForbidden, "You are not allowed to create users with this role")
			return
		}

		var existing string
		if err := db.Get(&existing, "SELECT id FROM users WHERE username = $1", req.Username); err == nil {
			log.Printf("❌ User already exists: %s", req.Username)
			utils.Error(w, http.StatusConflict, "User with this username already exists")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		now := time.Now().Unix()
		user := models.User{
			ID:        uuid.New().String(),
			Username:  req.Username,
			Email:     req.Email,
			Password:  string(hashed),
			Name:      req.Name,
			Role:      targetRole,
			CreatedAt: now,
			UpdatedAt: now,
		}

		insertQuery := `
			INSERT INTO users (id, username, email, password, name, role, created_at, updated_at)
			VALUES (:id, :username, :email, :password, :name, :role, :created_at, :updated_at)
		`
		if _, err := db.NamedExec(insertQuery, user); err != nil {
			log.Printf("❌ Failed to create user: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		log.Printf("✅ User created: %s (%s) by %s", user.Username, user.Role, creator.Username)
		resp := user.ToUserResponse()
		utils.JSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"user":    resp,
		})
	}
}

// GetAllUsers returns every user account, newest first.
func GetAllUsers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		if err := db.Select(&users, "SELECT * FROM users ORDER BY created_at DESC"); err != nil {
			log.Printf("❌ Failed to fetch users: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch users")
			return
		}

		responses := make([]models.UserResponse, len(users))
		for i, user := range users {
			responses[i] = user.ToUserResponse()
		}
		utils.Success(w, responses)
	}
}

// GetAssignees returns the field users that shops can be assigned to for
// audit and QC tracks.
func GetAssignees(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		query := "SELECT * FROM users WHERE role IN ('auditor', 'qc') ORDER BY name ASC"
		if err := db.Select(&users, query); err != nil {
			log.Printf("❌ Failed to fetch assignees: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch assignees")
			return
		}

		responses := make([]models.UserResponse, len(users))
		for i, user := range users {
			responses[i] = user.ToUserResponse()
		}
		utils.Success(w, responses)
	}
}

// GetSalespersons returns the salesperson accounts for assignment pickers.
func GetSalespersons(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		query := "SELECT * FROM users WHERE role = 'saleperson' ORDER BY name ASC"
		if err := db.Select(&users, query); err != nil {
			log.Printf("❌ Failed to fetch salespersons: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to fetch salespersons")
			return
		}

		responses := make([]models.UserResponse, len(users))
		for i, user := range users {
			responses[i] = user.ToUserResponse()
		}
		utils.Success(w, responses)
	}
}

type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// UpdateUser patches a user's profile. Role changes are deliberately not
// supported; delete and recreate instead.
func UpdateUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "User id is required")
			return
		}

		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var user models.User
		err := db.Get(&user, "SELECT * FROM users WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		if req.Email != nil {
			user.Email = *req.Email
		}
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Password != nil {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				utils.Error(w, http.StatusInternalServerError, "Failed to hash password")
				return
			}
			user.Password = string(hashed)
		}
		user.UpdatedAt = time.Now().Unix()

		updateQuery := `
			UPDATE users SET email = :email, name = :name, password = :password, updated_at = :updated_at
			WHERE id = :id
		`
		if _, err := db.NamedExec(updateQuery, user); err != nil {
			log.Printf("❌ Failed to update user %s: %v", id, err)
			utils.Error(w, http.StatusInternalServerError, "Failed to update user")
			return
		}

		log.Printf("✅ User updated: %s", user.Username)
		utils.Success(w, user.ToUserResponse())
	}
}

// GetShopsForUser returns the shops assigned to a user through their
// role's assignment column.
func GetShopsForUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			utils.Error(w, http.StatusBadRequest, "User id is required")
			return
		}

		var user models.User
		err := db.Get(&user, "SELECT * FROM users WHERE id = $1", id)
		if errors.Is(err, sql.ErrNoRows) {
			utils.Error(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Database error")
			return
		}

		column, ok := assignmentColumn(user.Role)
		if !ok {
			utils.Error(w, http.StatusBadRequest, "This role does not receive shop assignments")
			return
		}

		var shops []models.Shop
		query := "SELECT * FROM shops WHERE " + column + " = $1 ORDER BY shop_name ASC"
		if err := db.Select(&shops, query, id); err != nil {
			log.Printf("❌ Failed to fetch shops for user %s: %v", id, err)
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

// assignmentColumn maps an assignable role to its shops column. Column
// names are fixed here, never taken from the request.
func assignmentColumn(role models.Role) (string, bool) {
	switch role {
	case models.RoleAuditor:
		return "assigned_to", true
	case models.RoleQC:
		return "assigned_qc", true
	case models.RoleSaleperson:
		return "assigned_salesperson", true
	case models.RoleManager:
		return "assigned_manager_id", true
	default:
		return "", false
	}
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// RegisterFCMToken stores or refreshes a device push token for the
// authenticated user.
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterFCMTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" {
			utils.Error(w, http.StatusBadRequest, "Token is required")
			return
		}
		if req.DeviceType != "ios" && req.DeviceType != "android" {
			utils.Error(w, http.StatusBadRequest, "Device type must be 'ios' or 'android'")
			return
		}

		query := `
			INSERT INTO fcm_tokens (user_id, token, device_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (token)
			DO UPDATE SET user_id = EXCLUDED.user_id,
			              device_type = EXCLUDED.device_type,
			              updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		`
		if _, err := db.Exec(query, user.UserID, req.Token, req.DeviceType); err != nil {
			log.Printf("❌ Failed to register FCM token: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to register token")
			return
		}

		log.Printf("✅ FCM token registered for %s (%s)", user.Username, req.DeviceType)
		utils.Message(w, "Token registered")
	}
}
