package handlers

import (
	"context"
	"io"
	"time"

	"kompello/internal/models"
	"kompello/internal/providers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock repositories and services shared by the handler tests.

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) SetAvatar(ctx context.Context, id uuid.UUID, objectName string) error {
	args := m.Called(ctx, id, objectName)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.User), args.Error(1)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant, creatorID uuid.UUID) error {
	args := m.Called(ctx, tenant, creatorID)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

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

type MockSocialAuthRepository struct {
	mock.Mock
}

func (m *MockSocialAuthRepository) Create(ctx context.Context, link *models.SocialAuthLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockSocialAuthRepository) GetByProviderSubject(ctx context.Context, provider, subject string) (*models.SocialAuthLink, error) {
	args := m.Called(ctx, provider, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SocialAuthLink), args.Error(1)
}

func (m *MockSocialAuthRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.SocialAuthLink, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*models.SocialAuthLink), args.Error(1)
}

func (m *MockSocialAuthRepository) CreateUserWithLink(ctx context.Context, user *models.User, link *models.SocialAuthLink) error {
	args := m.Called(ctx, user, link)
	return args.Error(0)
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

type MockStorageService struct {
	mock.Mock
}

func (m *MockStorageService) UploadAvatar(ctx context.Context, bucketName, objectName, contentType string, reader io.Reader, objectSize int64) error {
	args := m.Called(ctx, bucketName, objectName, contentType, reader, objectSize)
	return args.Error(0)
}

func (m *MockStorageService) GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucketName, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorageService) DeleteAvatar(ctx context.Context, bucketName, objectName string) error {
	args := m.Called(ctx, bucketName, objectName)
	return args.Error(0)
}

func (m *MockStorageService) EnsureBucketExists(ctx context.Context, bucketName string) error {
	args := m.Called(ctx, bucketName)
	return args.Error(0)
}

// fakeProvider returns a fixed identity or error for social login tests.
type fakeProvider struct {
	name     string
	identity *providers.Identity
	err      error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) VerifyIDToken(ctx context.Context, rawToken string) (*providers.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}
