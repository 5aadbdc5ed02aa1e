package database

import (
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// SeedAdminUser creates the bootstrap admin account when the users table
// is empty. Every other account is created through the API by someone
// higher in the hierarchy, so this is the only seed we ship.
func SeedAdminUser(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	log.Println("🌱 Seeding bootstrap admin user...")

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := map[string]interface{}{
		"id":       uuid.New().String(),
		"username": username,
		"email":    username + "@shopaudit.local",
		"password": string(hashed),
		"name":     "Administrator",
		"role":     "admin",
	}

	query := `
		INSERT INTO users (id, username, email, password, name, role)
		VALUES (:id, :username, :email, :password, :name, :role)
	`
	if _, err := db.NamedExec(query, admin); err != nil {
		return err
	}

	log.Printf("  ✓ Created admin user: %s", username)
	return nil
}
