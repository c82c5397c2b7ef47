package handlers

import (
	"errors"
	"net/http"
	"path"
	"time"

	"kompello/internal/authz"
	"kompello/internal/caching"
	"kompello/internal/common"
	"kompello/internal/models"
	"kompello/internal/providers"
	"kompello/internal/repositories"
	"kompello/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// avatarURLTTL is shorter than the presign expiry so a cached URL is always
// still valid when served.
const avatarURLTTL = 10 * time.Minute

// UserHandlers handles user CRUD and account actions.
type UserHandlers struct {
	userRepo     repositories.UserRepository
	socialRepo   repositories.SocialAuthRepository
	storageSvc   services.StorageService
	cacheSvc     caching.CacheService
	registry     *providers.Registry
	avatarBucket string
}

func NewUserHandlers(userRepo repositories.UserRepository, socialRepo repositories.SocialAuthRepository,
	storageSvc services.StorageService, cacheSvc caching.CacheService,
	registry *providers.Registry, avatarBucket string) *UserHandlers {
	return &UserHandlers{
		userRepo:     userRepo,
		socialRepo:   socialRepo,
		storageSvc:   storageSvc,
		cacheSvc:     cacheSvc,
		registry:     registry,
		avatarBucket: avatarBucket,
	}
}

// authorizeUserAction checks the policy for an action on the user identified
// in the URL. The check needs only the target id, so it runs before any
// lookup: anonymous callers always get 401 and unprivileged callers 403,
// whether or not the target exists.
func (h *UserHandlers) authorizeUserAction(c echo.Context, action authz.Action) (uuid.UUID, error) {
	targetID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	caller, ok := common.CallerFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	if !authz.Allow(authz.CallerFor(caller), action, authz.UserTarget(targetID)) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}

	return targetID, nil
}

// ListUsersRequest represents query parameters for listing users
type ListUsersRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// ListUsers returns all users. Staff only.
func (h *UserHandlers) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := common.CallerFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	if !authz.Allow(authz.CallerFor(caller), authz.UserList, authz.Target{}) {
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}

	var req ListUsersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	limit, offset := common.ValidatePaginationParams(req.Limit, req.Offset)

	users, err := h.userRepo.List(ctx, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list users")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// CreateUserRequest represents the user creation payload
type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// CreateUser creates a user. Open to anonymous callers, matching the
// registration rule.
func (h *UserHandlers) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email, password, first name, and last name are required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}

	if err := h.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "User with this email already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	return c.JSON(http.StatusCreated, user)
}

// GetUser returns a single user. Self or staff.
func (h *UserHandlers) GetUser(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserRetrieve)
	if err != nil {
		return err
	}

	user, err := h.userRepo.GetByID(c.Request().Context(), targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	return c.JSON(http.StatusOK, user)
}

// UpdateUserRequest represents the user update payload. Absent fields are
// left unchanged, which covers both PUT and PATCH.
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UpdateUser updates a user's profile. Self or staff.
func (h *UserHandlers) UpdateUser(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserUpdate)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	user, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	if req.Email != nil {
		if *req.Email == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Email cannot be empty")
		}
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}

	if err := h.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "User with this email already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update user")
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user and their social links and memberships. Self or
// staff.
func (h *UserHandlers) DeleteUser(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserDelete)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete user")
	}

	if err := h.userRepo.Delete(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete user")
	}

	if user.AvatarObject != "" {
		// Best effort; the account is already gone.
		_ = h.storageSvc.DeleteAvatar(ctx, h.avatarBucket, user.AvatarObject)
		_ = h.cacheSvc.Delete(ctx, avatarURLKey(user.AvatarObject))
	}

	return c.NoContent(http.StatusNoContent)
}

// SetPasswordRequest represents the set-password payload
type SetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// SetPassword changes a user's password. Self or staff.
func (h *UserHandlers) SetPassword(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserSetPassword)
	if err != nil {
		return err
	}

	var req SetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Password is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	if err := h.userRepo.UpdatePassword(c.Request().Context(), targetID, string(hashedPassword)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to set password")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password set"})
}

// Me returns the currently authenticated user.
func (h *UserHandlers) Me(c echo.Context) error {
	caller, ok := common.CallerFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	return c.JSON(http.StatusOK, caller)
}

// Permissions lists the permission codenames held by a user. Self or staff.
func (h *UserHandlers) Permissions(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserPermissions)
	if err != nil {
		return err
	}

	target, err := h.userRepo.GetByID(c.Request().Context(), targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"permissions": authz.PermissionsFor(authz.CallerFor(target)),
	})
}

// UploadAvatar stores an avatar image for the user. Self or staff.
func (h *UserHandlers) UploadAvatar(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserAvatar)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Avatar file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read avatar file")
	}
	defer file.Close()

	objectName := targetID.String() + path.Ext(fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.storageSvc.UploadAvatar(ctx, h.avatarBucket, objectName, contentType, file, fileHeader.Size); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store avatar")
	}

	if err := h.userRepo.SetAvatar(ctx, targetID, objectName); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store avatar")
	}

	// The object was replaced, so any cached presigned URL is stale.
	_ = h.cacheSvc.Delete(ctx, avatarURLKey(objectName))

	return c.JSON(http.StatusOK, map[string]string{"message": "Avatar uploaded"})
}

// GetAvatar returns a short-lived URL for the user's avatar. Self or staff.
func (h *UserHandlers) GetAvatar(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserAvatar)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	if user.AvatarObject == "" {
		return echo.NewHTTPError(http.StatusNotFound, "Avatar not found")
	}

	key := avatarURLKey(user.AvatarObject)
	if url, err := h.cacheSvc.GetString(ctx, key); err == nil && url != "" {
		return c.JSON(http.StatusOK, map[string]string{"url": url})
	}

	url, err := h.storageSvc.GetPresignedURL(ctx, h.avatarBucket, user.AvatarObject, 15*time.Minute)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve avatar")
	}
	_ = h.cacheSvc.SetString(ctx, key, url, avatarURLTTL)

	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func avatarURLKey(objectName string) string {
	return "avatar_url:" + objectName
}

// SocialLinks lists the external identities linked to a user. Self or staff.
func (h *UserHandlers) SocialLinks(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserRetrieve)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.userRepo.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	links, err := h.socialRepo.ListByUser(ctx, targetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list social links")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"social_links": links})
}

// AddSocialLink attaches a verified external identity to a user so they can
// log in through that provider. Self or staff.
func (h *UserHandlers) AddSocialLink(c echo.Context) error {
	targetID, err := h.authorizeUserAction(c, authz.UserUpdate)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var req SocialLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Provider == "" || req.IDToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Provider and id token are required")
	}

	provider, err := h.registry.Get(req.Provider)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown provider")
	}

	identity, err := provider.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Identity verification failed")
	}

	if _, err := h.userRepo.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get user")
	}

	link := &models.SocialAuthLink{
		ID:       uuid.New(),
		UserID:   targetID,
		Provider: req.Provider,
		Subject:  identity.Subject,
	}
	if err := h.socialRepo.Create(ctx, link); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "Identity already linked")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to link identity")
	}

	return c.JSON(http.StatusCreated, link)
}
