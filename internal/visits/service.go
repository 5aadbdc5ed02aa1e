package visits

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"shopaudit-backend/internal/gps"
	"shopaudit-backend/internal/models"
)

// Store is the persistence collaborator. The sqlx implementation lives in
// internal/database; tests substitute an in-memory fake.
type Store interface {
	GetShop(ctx context.Context, shopID string) (*models.Shop, error)
	// LatestAttempt returns the newest attempt for the shop, or nil when
	// the shop has none.
	LatestAttempt(ctx context.Context, shopID string) (*models.VisitAttempt, error)
	InsertAttempt(ctx context.Context, attempt *models.VisitAttempt) error
	UpdateAttempt(ctx context.Context, attempt *models.VisitAttempt) error
	// FinalizeSubmission persists the submitted attempt and the shop's
	// role-visited flags atomically: either both land or neither does.
	FinalizeSubmission(ctx context.Context, attempt *models.VisitAttempt, shop *models.Shop) error
	// ResetAllVisits clears visit flags and attempts shop-wide, returning
	// the number of shops touched.
	ResetAllVisits(ctx context.Context) (int64, error)
}

// Detector produces the stored detection record for a shelf image. It
// must degrade internally and never fail.
type Detector interface {
	Detect(ctx context.Context, imageRef string) models.DetectionResult
}

// Broadcaster pushes visit activity to connected manager dashboards.
// Best-effort: delivery failures never affect the operation.
type Broadcaster interface {
	BroadcastVisitEvent(event string, payload interface{})
}

// Service drives the visit lifecycle: Empty -> Started -> Captured ->
// Submitted, one open attempt per shop at a time.
type Service struct {
	store    Store
	detector Detector
	hub      Broadcaster
	now      func() time.Time
}

func NewService(store Store, detector Detector, hub Broadcaster) *Service {
	return &Service{
		store:    store,
		detector: detector,
		hub:      hub,
		now:      time.Now,
	}
}

// StartAudit opens a new attempt for the shop, or reuses the open one.
// Mobile clients retry on flaky networks, so a repeated StartAudit simply
// overwrites the open attempt's start checkpoint instead of stacking
// duplicate attempts.
func (s *Service) StartAudit(ctx context.Context, shopID string, coord *gps.Coordinate, role models.Role) (*models.VisitAttempt, error) {
	if !role.CanVisit() {
		return nil, ErrRoleCannotVisit
	}
	if _, err := s.store.GetShop(ctx, shopID); err != nil {
		return nil, err
	}

	now := s.now()
	attempt, err := s.store.LatestAttempt(ctx, shopID)
	if err != nil {
		return nil, err
	}

	if attempt != nil && attempt.Open() {
		attempt.Role = role
		attempt.SetCheckpoint(models.CheckpointStartAudit, coord, now)
		attempt.UpdatedAt = now.Unix()
		if err := s.store.UpdateAttempt(ctx, attempt); err != nil {
			return nil, err
		}
		log.Printf("🔄 StartAudit reused open attempt %s on shop %s", attempt.ID, shopID)
		return attempt, nil
	}

	attempt = &models.VisitAttempt{
		ID:        uuid.New().String(),
		ShopID:    shopID,
		Role:      role,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	attempt.SetCheckpoint(models.CheckpointStartAudit, coord, now)
	if err := s.store.InsertAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	log.Printf("🟢 StartAudit opened attempt %s on shop %s (%s)", attempt.ID, shopID, role)
	if s.hub != nil {
		s.hub.BroadcastVisitEvent("audit_started", map[string]interface{}{
			"shop_id":    shopID,
			"attempt_id": attempt.ID,
			"role":       role,
		})
	}
	return attempt, nil
}

// PhotoClick records where the user stood when taking the evidence photos.
// Requires an open attempt.
func (s *Service) PhotoClick(ctx context.Context, shopID string, coord *gps.Coordinate) (*models.VisitAttempt, error) {
	if _, err := s.store.GetShop(ctx, shopID); err != nil {
		return nil, err
	}

	attempt, err := s.store.LatestAttempt(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || !attempt.Open() {
		return nil, ErrNoOpenAttempt
	}

	now := s.now()
	attempt.SetCheckpoint(models.CheckpointPhotoClick, coord, now)
	attempt.UpdatedAt = now.Unix()
	if err := s.store.UpdateAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// SubmitParams carries everything recorded at evidence submission.
type SubmitParams struct {
	ShopID     string
	UserID     string
	Role       models.Role
	ShopImage  string
	ShelfImage string
	Coord      *gps.Coordinate
}

// Submit finalizes the open attempt: proceed checkpoint, evidence refs,
// shelf detection, GPS verdict, submitted flag and the role-specific
// visited flags on the shop — atomically via the store. Authorization is
// enforced here, not only at the route gate, because each role carries an
// independent assignment. The GPS verdict is stored for reporting but
// never blocks completion.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.VisitAttempt, error) {
	shop, err := s.store.GetShop(ctx, p.ShopID)
	if err != nil {
		return nil, err
	}

	if !p.Role.CanVisit() {
		return nil, ErrRoleCannotVisit
	}
	assignee := p.Role.AssignmentOf(shop)
	if assignee == nil || *assignee != p.UserID {
		return nil, ErrNotAssigned
	}

	attempt, err := s.store.LatestAttempt(ctx, p.ShopID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || !attempt.Open() {
		return nil, ErrNoOpenAttempt
	}

	now := s.now()
	attempt.SetCheckpoint(models.CheckpointProceedClick, p.Coord, now)
	attempt.ShopImage = &p.ShopImage
	attempt.ShelfImage = &p.ShelfImage

	// Detection degrades internally; a recognition outage must not stop
	// the field visit from completing.
	attempt.SetDetection(s.detector.Detect(ctx, p.ShelfImage))

	gpsResult := gps.ValidateVisit(attempt.Checkpoints(), shop.Reference(), now)
	attempt.SetGPSValidation(gpsResult)

	ts := now.Unix()
	attempt.Submitted = true
	attempt.SubmittedBy = &p.UserID
	attempt.SubmittedAt = &ts
	attempt.UpdatedAt = ts

	p.Role.MarkVisited(shop, p.UserID, ts)
	shop.UpdatedAt = ts

	if err := s.store.FinalizeSubmission(ctx, attempt, shop); err != nil {
		return nil, err
	}

	log.Printf("✅ Visit submitted: shop %s, attempt %s, role %s, gps %s", p.ShopID, attempt.ID, p.Role, gpsResult.Status)
	if s.hub != nil {
		s.hub.BroadcastVisitEvent("visit_submitted", map[string]interface{}{
			"shop_id":    p.ShopID,
			"attempt_id": attempt.ID,
			"role":       p.Role,
			"user_id":    p.UserID,
			"gps_status": gpsResult.Status,
			"gps_valid":  gpsResult.IsValid,
		})
	}
	return attempt, nil
}

// ResetAll clears visit flags and attempt history across every shop.
// Administrative, best-effort bulk operation.
func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	count, err := s.store.ResetAllVisits(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("🧹 Reset visits on %d shops", count)
	return count, nil
}
