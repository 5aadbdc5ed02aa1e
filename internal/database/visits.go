package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"shopaudit-backend/internal/models"
	"shopaudit-backend/internal/visits"
)

// VisitStore is the sqlx-backed persistence for the visit lifecycle.
type VisitStore struct {
	db *sqlx.DB
}

func NewVisitStore(db *sqlx.DB) *VisitStore {
	return &VisitStore{db: db}
}

func (s *VisitStore) GetShop(ctx context.Context, shopID string) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, "SELECT * FROM shops WHERE id = $1", shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, visits.ErrShopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shop %s: %w", shopID, err)
	}
	return &shop, nil
}

func (s *VisitStore) LatestAttempt(ctx context.Context, shopID string) (*models.VisitAttempt, error) {
	var attempt models.VisitAttempt
	err := s.db.GetContext(ctx, &attempt, `
		SELECT * FROM visit_attempts
		WHERE shop_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest attempt for shop %s: %w", shopID, err)
	}
	return &attempt, nil
}

const insertAttemptQuery = `
	INSERT INTO visit_attempts (
		id, shop_id, role,
		start_latitude, start_longitude, start_captured_at,
		photo_latitude, photo_longitude, photo_captured_at,
		proceed_latitude, proceed_longitude, proceed_captured_at,
		shop_image, shelf_image, detection, gps_validation,
		submitted, submitted_by, submitted_at,
		created_at, updated_at
	) VALUES (
		:id, :shop_id, :role,
		:start_latitude, :start_longitude, :start_captured_at,
		:photo_latitude, :photo_longitude, :photo_captured_at,
		:proceed_latitude, :proceed_longitude, :proceed_captured_at,
		:shop_image, :shelf_image, :detection, :gps_validation,
		:submitted, :submitted_by, :submitted_at,
		:created_at, :updated_at
	)
`

const updateAttemptQuery = `
	UPDATE visit_attempts SET
		start_latitude = :start_latitude,
		start_longitude = :start_longitude,
		start_captured_at = :start_captured_at,
		photo_latitude = :photo_latitude,
		photo_longitude = :photo_longitude,
		photo_captured_at = :photo_captured_at,
		proceed_latitude = :proceed_latitude,
		proceed_longitude = :proceed_longitude,
		proceed_captured_at = :proceed_captured_at,
		shop_image = :shop_image,
		shelf_image = :shelf_image,
		detection = :detection,
		gps_validation = :gps_validation,
		submitted = :submitted,
		submitted_by = :submitted_by,
		submitted_at = :submitted_at,
		updated_at = :updated_at
	WHERE id = :id
`

const updateShopVisitedQuery = `
	UPDATE shops SET
		visited = :visited,
		visited_by = :visited_by,
		visited_at = :visited_at,
		visited_by_qc = :visited_by_qc,
		visited_by_qc_id = :visited_by_qc_id,
		visited_at_by_qc = :visited_at_by_qc,
		visited_by_saleperson = :visited_by_saleperson,
		visited_by_saleperson_id = :visited_by_saleperson_id,
		visited_at_by_saleperson = :visited_at_by_saleperson,
		updated_at = :updated_at
	WHERE id = :id
`

func (s *VisitStore) InsertAttempt(ctx context.Context, attempt *models.VisitAttempt) error {
	if _, err := s.db.NamedExecContext(ctx, insertAttemptQuery, attempt); err != nil {
		return fmt.Errorf("failed to insert attempt %s: %w", attempt.ID, err)
	}
	return nil
}

func (s *VisitStore) UpdateAttempt(ctx context.Context, attempt *models.VisitAttempt) error {
	if _, err := s.db.NamedExecContext(ctx, updateAttemptQuery, attempt); err != nil {
		return fmt.Errorf("failed to update attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// FinalizeSubmission writes the submitted attempt and the shop's visited
// flags in one transaction. The shop row is locked first so two devices
// submitting the same attempt cannot interleave.
func (s *VisitStore) FinalizeSubmission(ctx context.Context, attempt *models.VisitAttempt, shop *models.Shop) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin submission transaction: %w", err)
	}
	defer tx.Rollback()

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, "SELECT id FROM shops WHERE id = $1 FOR UPDATE", shop.ID); err != nil {
		return fmt.Errorf("failed to lock shop %s: %w", shop.ID, err)
	}

	if _, err := tx.NamedExecContext(ctx, updateAttemptQuery, attempt); err != nil {
		return fmt.Errorf("failed to persist submitted attempt %s: %w", attempt.ID, err)
	}

	if _, err := tx.NamedExecContext(ctx, updateShopVisitedQuery, shop); err != nil {
		return fmt.Errorf("failed to persist visited flags for shop %s: %w", shop.ID, err)
	}

	return tx.Commit()
}

// ResetAllVisits clears visit flags on every shop and drops the attempt
// history. Returns the number of shops touched.
func (s *VisitStore) ResetAllVisits(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE shops SET
			visited = FALSE, visited_by = NULL, visited_at = NULL,
			visited_by_qc = FALSE, visited_by_qc_id = NULL, visited_at_by_qc = NULL,
			visited_by_saleperson = FALSE, visited_by_saleperson_id = NULL, visited_at_by_saleperson = NULL,
			updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset shop visit flags: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM visit_attempts"); err != nil {
		return 0, fmt.Errorf("failed to clear visit attempts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	count, _ := res.RowsAffected()
	return count, nil
}
