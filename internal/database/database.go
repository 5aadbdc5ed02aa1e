package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Println("🔄 Step 1: Attempting sqlx.Connect()...")
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("✅ Step 1 Complete: sqlx.Connect() succeeded")

	log.Println("🔄 Step 2: Testing connection with Ping()...")
	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("✅ Step 2 Complete: Ping() succeeded")

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create users table
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('admin', 'manager', 'supervisor', 'executive', 'auditor', 'qc', 'saleperson')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create shops table. Assignment and visited flags are kept per
		// role: the auditor, QC and salesperson tracks are independent.
		`CREATE TABLE IF NOT EXISTS shops (
			id TEXT PRIMARY KEY,
			shop_name TEXT NOT NULL,
			shop_address TEXT NOT NULL,
			gps_n DOUBLE PRECISION,
			gps_e DOUBLE PRECISION,
			radius_threshold DOUBLE PRECISION,

			assigned_to TEXT,
			assigned_qc TEXT,
			assigned_salesperson TEXT,
			assigned_manager_id TEXT,

			visited BOOLEAN NOT NULL DEFAULT FALSE,
			visited_by TEXT,
			visited_at BIGINT,

			visited_by_qc BOOLEAN NOT NULL DEFAULT FALSE,
			visited_by_qc_id TEXT,
			visited_at_by_qc BIGINT,

			visited_by_saleperson BOOLEAN NOT NULL DEFAULT FALSE,
			visited_by_saleperson_id TEXT,
			visited_at_by_saleperson BIGINT,

			shop_found_status BOOLEAN,
			shop_found_latitude DOUBLE PRECISION,
			shop_found_longitude DOUBLE PRECISION,
			shop_found_at BIGINT,

			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,

			FOREIGN KEY (assigned_to) REFERENCES users(id) ON DELETE SET NULL,
			FOREIGN KEY (assigned_qc) REFERENCES users(id) ON DELETE SET NULL,
			FOREIGN KEY (assigned_salesperson) REFERENCES users(id) ON DELETE SET NULL,
			FOREIGN KEY (assigned_manager_id) REFERENCES users(id) ON DELETE SET NULL
		)`,

		// Create visit_attempts table. One row per pass through the
		// lifecycle; the open attempt is the newest unsubmitted row.
		`CREATE TABLE IF NOT EXISTS visit_attempts (
			id TEXT PRIMARY KEY,
			shop_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('auditor', 'qc', 'saleperson')),

			start_latitude DOUBLE PRECISION,
			start_longitude DOUBLE PRECISION,
			start_captured_at BIGINT,

			photo_latitude DOUBLE PRECISION,
			photo_longitude DOUBLE PRECISION,
			photo_captured_at BIGINT,

			proceed_latitude DOUBLE PRECISION,
			proceed_longitude DOUBLE PRECISION,
			proceed_captured_at BIGINT,

			shop_image TEXT,
			shelf_image TEXT,

			detection JSONB,
			gps_validation JSONB,

			submitted BOOLEAN NOT NULL DEFAULT FALSE,
			submitted_by TEXT,
			submitted_at BIGINT,

			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,

			FOREIGN KEY (shop_id) REFERENCES shops(id) ON DELETE CASCADE,
			FOREIGN KEY (submitted_by) REFERENCES users(id) ON DELETE SET NULL
		)`,

		// Create FCM tokens table
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_shops_assigned_to ON shops(assigned_to)`,
		`CREATE INDEX IF NOT EXISTS idx_shops_assigned_qc ON shops(assigned_qc)`,
		`CREATE INDEX IF NOT EXISTS idx_shops_assigned_salesperson ON shops(assigned_salesperson)`,
		`CREATE INDEX IF NOT EXISTS idx_shops_visited ON shops(visited)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_attempts_shop_id ON visit_attempts(shop_id)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_attempts_shop_created ON visit_attempts(shop_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_attempts_submitted ON visit_attempts(submitted)`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_user_id ON fcm_tokens(user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_fcm_tokens_token ON fcm_tokens(token)`,

		// Migration: per-shop radius override for existing deployments
		`ALTER TABLE shops ADD COLUMN IF NOT EXISTS radius_threshold DOUBLE PRECISION`,
		`ALTER TABLE shops ADD COLUMN IF NOT EXISTS assigned_manager_id TEXT`,
	}

	log.Printf("🔄 Running %d migrations...", len(migrations))
	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	log.Println("✅ Migrations complete")
	return nil
}
