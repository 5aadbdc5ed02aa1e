package visits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopaudit-backend/internal/gps"
	"shopaudit-backend/internal/models"
)

// fakeStore keeps shops and attempts in memory, mirroring the sqlx store's
// contract (latest attempt by insertion order, atomic finalize).
type fakeStore struct {
	shops       map[string]*models.Shop
	attempts    map[string][]*models.VisitAttempt
	finalizeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shops:    make(map[string]*models.Shop),
		attempts: make(map[string][]*models.VisitAttempt),
	}
}

func (f *fakeStore) GetShop(ctx context.Context, shopID string) (*models.Shop, error) {
	shop, ok := f.shops[shopID]
	if !ok {
		return nil, ErrShopNotFound
	}
	cp := *shop
	return &cp, nil
}

func (f *fakeStore) LatestAttempt(ctx context.Context, shopID string) (*models.VisitAttempt, error) {
	list := f.attempts[shopID]
	if len(list) == 0 {
		return nil, nil
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

func (f *fakeStore) InsertAttempt(ctx context.Context, attempt *models.VisitAttempt) error {
	cp := *attempt
	f.attempts[attempt.ShopID] = append(f.attempts[attempt.ShopID], &cp)
	return nil
}

func (f *fakeStore) UpdateAttempt(ctx context.Context, attempt *models.VisitAttempt) error {
	list := f.attempts[attempt.ShopID]
	for i, a := range list {
		if a.ID == attempt.ID {
			cp := *attempt
			list[i] = &cp
			return nil
		}
	}
	return errors.New("attempt not found")
}

func (f *fakeStore) FinalizeSubmission(ctx context.Context, attempt *models.VisitAttempt, shop *models.Shop) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	if err := f.UpdateAttempt(ctx, attempt); err != nil {
		return err
	}
	cp := *shop
	f.shops[shop.ID] = &cp
	return nil
}

func (f *fakeStore) ResetAllVisits(ctx context.Context) (int64, error) {
	n := int64(len(f.shops))
	for id, shop := range f.shops {
		reset := *shop
		reset.Visited = false
		reset.VisitedBy = nil
		reset.VisitedAt = nil
		reset.VisitedByQC = false
		reset.VisitedByQCID = nil
		reset.VisitedAtByQC = nil
		reset.VisitedBySaleperson = false
		reset.VisitedBySalepersonID = nil
		reset.VisitedAtBySaleperson = nil
		f.shops[id] = &reset
		f.attempts[id] = nil
	}
	return n, nil
}

type fakeDetector struct {
	result models.DetectionResult
	calls  int
}

func (f *fakeDetector) Detect(ctx context.Context, imageRef string) models.DetectionResult {
	f.calls++
	return f.result
}

type recordingHub struct {
	events []string
}

func (r *recordingHub) BroadcastVisitEvent(event string, payload interface{}) {
	r.events = append(r.events, event)
}

const (
	testShopID  = "shop-1"
	testAuditor = "auditor-1"
)

// Shop at the Bangalore test fixture with the default 30 m radius.
func seedShop(store *fakeStore) {
	lat, lng := 12.9716, 77.5946
	auditor := testAuditor
	store.shops[testShopID] = &models.Shop{
		ID:          testShopID,
		ShopName:    "MG Road General Store",
		ShopAddress: "12 MG Road, Bengaluru",
		GPSNorth:    &lat,
		GPSEast:     &lng,
		AssignedTo:  &auditor,
	}
}

func newTestService(store *fakeStore, detector *fakeDetector) *Service {
	svc := NewService(store, detector, nil)
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	svc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}
	return svc
}

func TestStartAuditUnknownShop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeDetector{})

	_, err := svc.StartAudit(context.Background(), "missing", nil, models.RoleAuditor)
	assert.ErrorIs(t, err, ErrShopNotFound)
}

func TestPhotoClickBeforeStartAudit(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})

	_, err := svc.PhotoClick(context.Background(), testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946})
	assert.ErrorIs(t, err, ErrNoOpenAttempt)
}

func TestStartAuditIsIdempotentOnOpenAttempt(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	first, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	second, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9720, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "a retried StartAudit must not open a second attempt")
	assert.Len(t, store.attempts[testShopID], 1)
	// The retry's coordinate wins.
	assert.Equal(t, 12.9720, *second.StartLatitude)
}

func TestStartAuditByRoleWithoutVisitLifecycle(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	for _, role := range []models.Role{models.RoleAdmin, models.RoleManager, models.RoleSupervisor} {
		_, err := svc.StartAudit(ctx, testShopID, nil, role)
		assert.ErrorIs(t, err, ErrRoleCannotVisit, "role %s", role)
	}
	assert.Empty(t, store.attempts[testShopID], "rejected StartAudit must not open an attempt")
}

// A QC starting over an auditor's abandoned attempt takes the attempt
// over. The row they later submit must carry their role, not the
// original opener's.
func TestStartAuditReuseByOtherRoleTakesOverAttempt(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	first, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	second, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9720, Longitude: 77.5946}, models.RoleQC)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.RoleQC, second.Role)
	stored, _ := store.LatestAttempt(ctx, testShopID)
	assert.Equal(t, models.RoleQC, stored.Role)
}

func TestSubmitByUnassignedUserRejectedWithoutMutation(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	detector := &fakeDetector{}
	svc := newTestService(store, detector)
	ctx := context.Background()

	opened, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, SubmitParams{
		ShopID:     testShopID,
		UserID:     "somebody-else",
		Role:       models.RoleAuditor,
		ShopImage:  "/uploads/shop.jpg",
		ShelfImage: "/uploads/shelf.jpg",
	})
	assert.ErrorIs(t, err, ErrNotAssigned)
	assert.Equal(t, 0, detector.calls)

	stored, _ := store.LatestAttempt(ctx, testShopID)
	assert.Equal(t, opened, stored, "rejected submit must not touch the attempt")
	assert.False(t, store.shops[testShopID].Visited)
}

func TestSubmitByRoleWithoutVisitLifecycle(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	manager := "manager-1"
	store.shops[testShopID].AssignedManagerID = &manager
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	_, err := svc.StartAudit(ctx, testShopID, nil, models.RoleAuditor)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, SubmitParams{ShopID: testShopID, UserID: manager, Role: models.RoleManager})
	assert.ErrorIs(t, err, ErrRoleCannotVisit)
}

func TestSubmitWithoutOpenAttempt(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})

	_, err := svc.Submit(context.Background(), SubmitParams{
		ShopID: testShopID,
		UserID: testAuditor,
		Role:   models.RoleAuditor,
	})
	assert.ErrorIs(t, err, ErrNoOpenAttempt)
}

// Full pass over the lifecycle at the Bangalore fixture: start on-site,
// photo ~5.5 m away, submit ~44 m away. Two of three checkpoints inside
// the 30 m radius -> partial but accepted, and the visit completes no
// matter what the GPS verdict says.
func TestSubmitEndToEnd(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	detector := &fakeDetector{result: models.DetectionResult{
		ProductDetected: true,
		ProductCount:    3,
		Confidence:      0.88,
		Method:          models.DetectionMethodLogo,
	}}
	hub := &recordingHub{}
	svc := NewService(store, detector, hub)
	ctx := context.Background()

	_, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	_, err = svc.PhotoClick(ctx, testShopID, &gps.Coordinate{Latitude: 12.97165, Longitude: 77.5946})
	require.NoError(t, err)

	attempt, err := svc.Submit(ctx, SubmitParams{
		ShopID:     testShopID,
		UserID:     testAuditor,
		Role:       models.RoleAuditor,
		ShopImage:  "/uploads/shop.jpg",
		ShelfImage: "/uploads/shelf.jpg",
		Coord:      &gps.Coordinate{Latitude: 12.9720, Longitude: 77.5946},
	})
	require.NoError(t, err)

	assert.True(t, attempt.Submitted)
	assert.Equal(t, testAuditor, *attempt.SubmittedBy)
	assert.Equal(t, "/uploads/shelf.jpg", *attempt.ShelfImage)

	gpsResult, ok := attempt.GPSResult()
	require.True(t, ok)
	assert.Equal(t, gps.StatusPartial, gpsResult.Status)
	assert.True(t, gpsResult.IsValid, "two corroborating checkpoints are proof of presence")
	require.NotNil(t, gpsResult.StartAuditDistance)
	assert.Equal(t, 0.0, *gpsResult.StartAuditDistance)
	require.NotNil(t, gpsResult.PhotoClickDistance)
	assert.InDelta(t, 5.5, *gpsResult.PhotoClickDistance, 0.2)
	require.NotNil(t, gpsResult.ProceedClickDistance)
	assert.InDelta(t, 44.5, *gpsResult.ProceedClickDistance, 0.5)
	assert.True(t, gpsResult.Details.StartAuditValid)
	assert.True(t, gpsResult.Details.PhotoClickValid)
	assert.False(t, gpsResult.Details.ProceedClickValid)

	detectionRecord, ok := attempt.DetectionRecord()
	require.True(t, ok)
	assert.True(t, detectionRecord.ProductDetected)
	assert.Equal(t, 3, detectionRecord.ProductCount)

	// Role-visited bookkeeping flips regardless of GPS validity.
	shop := store.shops[testShopID]
	assert.True(t, shop.Visited)
	assert.Equal(t, testAuditor, *shop.VisitedBy)
	assert.False(t, shop.VisitedByQC)

	assert.Equal(t, []string{"audit_started", "visit_submitted"}, hub.events)

	// The attempt is now closed; the next StartAudit opens a fresh one.
	next, err := svc.StartAudit(ctx, testShopID, nil, models.RoleAuditor)
	require.NoError(t, err)
	assert.NotEqual(t, attempt.ID, next.ID)
	assert.Len(t, store.attempts[testShopID], 2)
}

func TestSubmitStoresDegradedDetection(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	detector := &fakeDetector{result: models.DetectionResult{
		Method: models.DetectionMethodNone,
		Error:  "vision API returned status code 503",
	}}
	svc := newTestService(store, detector)
	ctx := context.Background()

	_, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	attempt, err := svc.Submit(ctx, SubmitParams{
		ShopID:     testShopID,
		UserID:     testAuditor,
		Role:       models.RoleAuditor,
		ShelfImage: "/uploads/shelf.jpg",
	})
	require.NoError(t, err, "a detection outage must not fail the submission")
	assert.True(t, attempt.Submitted)

	record, ok := attempt.DetectionRecord()
	require.True(t, ok)
	assert.False(t, record.ProductDetected)
	assert.Contains(t, record.Error, "503")
}

func TestSubmitWithoutShopCoordinatesStoresNoData(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	store.shops[testShopID].GPSNorth = nil
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	_, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	attempt, err := svc.Submit(ctx, SubmitParams{
		ShopID: testShopID,
		UserID: testAuditor,
		Role:   models.RoleAuditor,
	})
	require.NoError(t, err)

	gpsResult, ok := attempt.GPSResult()
	require.True(t, ok)
	assert.Equal(t, gps.StatusNoData, gpsResult.Status)
	assert.False(t, gpsResult.IsValid)
	assert.True(t, attempt.Submitted, "missing shop coordinates degrade the verdict, not the visit")
}

func TestSubmitPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	_, err := svc.StartAudit(ctx, testShopID, &gps.Coordinate{Latitude: 12.9716, Longitude: 77.5946}, models.RoleAuditor)
	require.NoError(t, err)

	store.finalizeErr = errors.New("connection reset by peer")
	_, err = svc.Submit(ctx, SubmitParams{
		ShopID: testShopID,
		UserID: testAuditor,
		Role:   models.RoleAuditor,
	})
	require.Error(t, err)

	stored, _ := store.LatestAttempt(ctx, testShopID)
	assert.False(t, stored.Submitted)
	assert.False(t, store.shops[testShopID].Visited)
}

func TestResetAll(t *testing.T) {
	store := newFakeStore()
	seedShop(store)
	svc := newTestService(store, &fakeDetector{})
	ctx := context.Background()

	_, err := svc.StartAudit(ctx, testShopID, nil, models.RoleAuditor)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitParams{ShopID: testShopID, UserID: testAuditor, Role: models.RoleAuditor})
	require.NoError(t, err)
	require.True(t, store.shops[testShopID].Visited)

	count, err := svc.ResetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.False(t, store.shops[testShopID].Visited)
	assert.Empty(t, store.attempts[testShopID])

	// Every role's history is gone: PhotoClick is back to square one.
	_, err = svc.PhotoClick(ctx, testShopID, nil)
	assert.ErrorIs(t, err, ErrNoOpenAttempt)
}
