package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"shopaudit-backend/internal/models"
	"shopaudit-backend/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK    bool                 `json:"ok"`
	Token string               `json:"token,omitempty"`
	User  *models.UserResponse `json:"user,omitempty"`
}

func Login(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		log.Printf("🔐 Login attempt for: %s", req.Username)

		jwtSecret := os.Getenv("APP_JWT_SECRET")
		if jwtSecret == "" {
			log.Println("❌ JWT secret not configured")
			utils.JSON(w, http.StatusInternalServerError, LoginResponse{OK: false})
			return
		}

		var user models.User
		query := "SELECT * FROM users WHERE username = $1"
		if err := db.Get(&user, query, req.Username); err != nil {
			log.Printf("❌ User not found: %s", req.Username)
			utils.JSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			log.Printf("❌ Invalid password for: %s", req.Username)
			utils.JSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		tokenString, err := issueToken(jwtSecret, &user)
		if err != nil {
			log.Println("❌ Failed to create token")
			http.Error(w, "Failed to create token", http.StatusInternalServerError)
			return
		}

		userResponse := user.ToUserResponse()
		log.Printf("✅ Login successful: %s (%s)", user.Username, user.Role)

		utils.JSON(w, http.StatusOK, LoginResponse{
			OK:    true,
			Token: tokenString,
			User:  &userResponse,
		})
	}
}

func issueToken(jwtSecret string, user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(7 * 24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(jwtSecret))
}

type AdminCreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SetupKey string `json:"setup_key"`
}

// AdminCreate bootstraps an admin account. Guarded by ADMIN_SETUP_KEY so
// the endpoint is useless without deployment access.
func AdminCreate(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		setupKey := os.Getenv("ADMIN_SETUP_KEY")
		if setupKey == "" || req.SetupKey != setupKey {
			log.Println("❌ Admin create rejected: bad setup key")
			utils.Error(w, http.StatusForbidden, "Invalid setup key")
			return
		}

		if req.Username == "" || req.Password == "" {
			utils.Error(w, http.StatusBadRequest, "Username and password are required")
			return
		}

		var exists string
		if err := db.Get(&exists, "SELECT id FROM users WHERE username = $1", req.Username); err == nil {
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
			Role:      models.RoleAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}

		insertQuery := `
			INSERT INTO users (id, username, email, password, name, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := db.Exec(insertQuery, user.ID, user.Username, user.Email, user.Password, user.Name, user.Role, user.CreatedAt, user.UpdatedAt); err != nil {
			log.Printf("❌ Failed to create admin: %v", err)
			utils.Error(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		log.Printf("✅ Admin account created: %s", user.Username)
		resp := user.ToUserResponse()
		utils.JSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"user":    resp,
		})
	}
}
