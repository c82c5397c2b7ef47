package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"kompello/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) AddMembers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error {
	args := m.Called(ctx, tenantID, userIDs)
	return args.Error(0)
}

func (m *MockMembershipRepository) RemoveMembers(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error {
	args := m.Called(ctx, tenantID, userIDs)
	return args.Error(0)
}

func (m *MockMembershipRepository) ListMembers(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockMembershipRepository) IsMember(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) MemberCount(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockMembershipRepository) MemberCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetTenantMemberCount(ctx context.Context, tenantID uuid.UUID) (int, bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SetTenantMemberCount(ctx context.Context, tenantID uuid.UUID, count int, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, count, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteTenantMemberCount(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int) (bool, error) {
	args := m.Called(ctx, key, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	args := m.Called(ctx, key, window)
	return args.Error(0)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestStatsRefresher_Refresh(t *testing.T) {
	membershipRepo := new(MockMembershipRepository)
	cacheSvc := new(MockCacheService)

	tenant1 := uuid.New()
	tenant2 := uuid.New()
	counts := map[uuid.UUID]int{tenant1: 3, tenant2: 7}

	membershipRepo.On("MemberCounts", mock.Anything).Return(counts, nil)
	cacheSvc.On("SetTenantMemberCount", mock.Anything, tenant1, 3, 15*time.Minute).Return(nil)
	cacheSvc.On("SetTenantMemberCount", mock.Anything, tenant2, 7, 15*time.Minute).Return(nil)

	refresher := NewStatsRefresher(membershipRepo, cacheSvc, 15*time.Minute)
	err := refresher.Refresh(context.Background())

	assert.NoError(t, err)
	cacheSvc.AssertNumberOfCalls(t, "SetTenantMemberCount", 2)
}

func TestStatsRefresher_StoreError(t *testing.T) {
	membershipRepo := new(MockMembershipRepository)
	cacheSvc := new(MockCacheService)

	membershipRepo.On("MemberCounts", mock.Anything).
		Return(map[uuid.UUID]int(nil), errors.New("connection refused"))

	refresher := NewStatsRefresher(membershipRepo, cacheSvc, 15*time.Minute)
	err := refresher.Refresh(context.Background())

	assert.Error(t, err)
	cacheSvc.AssertNotCalled(t, "SetTenantMemberCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStatsRefresher_CacheWriteFailureDoesNotAbort(t *testing.T) {
	membershipRepo := new(MockMembershipRepository)
	cacheSvc := new(MockCacheService)

	tenantID := uuid.New()
	membershipRepo.On("MemberCounts", mock.Anything).
		Return(map[uuid.UUID]int{tenantID: 2}, nil)
	cacheSvc.On("SetTenantMemberCount", mock.Anything, tenantID, 2, 15*time.Minute).
		Return(errors.New("redis down"))

	refresher := NewStatsRefresher(membershipRepo, cacheSvc, 15*time.Minute)
	err := refresher.Refresh(context.Background())

	assert.NoError(t, err)
}
