package handlers

import (
	"errors"
	"net/http"

	"kompello/internal/caching"
	"kompello/internal/config"
	"kompello/internal/models"
	"kompello/internal/providers"
	"kompello/internal/repositories"
	"kompello/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandlers handles registration, login and token refresh.
type AuthHandlers struct {
	tokenSvc   services.TokenService
	userRepo   repositories.UserRepository
	socialRepo repositories.SocialAuthRepository
	registry   *providers.Registry
	cacheSvc   caching.CacheService
	cfg        *config.Config
}

func NewAuthHandlers(tokenSvc services.TokenService, userRepo repositories.UserRepository,
	socialRepo repositories.SocialAuthRepository, registry *providers.Registry,
	cacheSvc caching.CacheService, cfg *config.Config) *AuthHandlers {
	return &AuthHandlers{
		tokenSvc:   tokenSvc,
		userRepo:   userRepo,
		socialRepo: socialRepo,
		registry:   registry,
		cacheSvc:   cacheSvc,
		cfg:        cfg,
	}
}

// loginDummyHash keeps the cost of a login against an unknown email in line
// with a real password check.
var loginDummyHash, _ = bcrypt.GenerateFromPassword([]byte("kompello-timing-pad"), bcrypt.DefaultCost)

// RegisterRequest represents the registration payload
type RegisterRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
	PasswordRepeated string `json:"password_repeated" validate:"required"`
	FirstName        string `json:"first_name" validate:"required"`
	LastName         string `json:"last_name" validate:"required"`
}

// Register handles user self-registration and issues a session.
func (h *AuthHandlers) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email, password, first name, and last name are required")
	}

	if req.Password != req.PasswordRepeated {
		return echo.NewHTTPError(http.StatusBadRequest, "Passwords do not match")
	}

	if _, err := h.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "User with this email already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
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
		// The unique constraint wins races the pre-check cannot see.
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "User with this email already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	tokens, err := h.tokenSvc.GenerateTokenPair(ctx, user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	return c.JSON(http.StatusCreated, models.LoginResponse{TokenPair: *tokens, User: user})
}

// PasswordLoginRequest represents the password login payload. Username is the
// user's email.
type PasswordLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PasswordLogin handles email/password login. Unknown email and wrong
// password fail identically so accounts cannot be enumerated.
func (h *AuthHandlers) PasswordLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req PasswordLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}

	throttleKey := "login:" + req.Username
	if limited, err := h.cacheSvc.IsRateLimited(ctx, throttleKey, h.cfg.LoginRateLimit); err == nil && limited {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts")
	}

	user, err := h.userRepo.GetByEmail(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			bcrypt.CompareHashAndPassword(loginDummyHash, []byte(req.Password))
			return h.failLogin(c, throttleKey)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Login failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return h.failLogin(c, throttleKey)
	}

	tokens, err := h.tokenSvc.GenerateTokenPair(ctx, user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	return c.JSON(http.StatusOK, models.LoginResponse{TokenPair: *tokens, User: user})
}

func (h *AuthHandlers) failLogin(c echo.Context, throttleKey string) error {
	// Throttling is best effort; the login still fails closed.
	_ = h.cacheSvc.IncrementRateLimit(c.Request().Context(), throttleKey, h.cfg.LoginRateWindow)
	return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
}

// SocialLoginRequest represents the social login payload
type SocialLoginRequest struct {
	Provider    string `json:"provider" validate:"required"`
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token" validate:"required"`
}

// SocialLogin authenticates via a provider-signed id token. An identity that
// has no link fails with 401 unless auto-registration is configured.
func (h *AuthHandlers) SocialLogin(c echo.Context) error {
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
		// Never echo provider errors or tokens back.
		return echo.NewHTTPError(http.StatusBadRequest, "Social login failed")
	}

	link, err := h.socialRepo.GetByProviderSubject(ctx, req.Provider, identity.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return h.socialRegister(c, req.Provider, identity)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Login failed")
	}

	user, err := h.userRepo.GetByID(ctx, link.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	tokens, err := h.tokenSvc.GenerateTokenPair(ctx, user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	return c.JSON(http.StatusOK, models.LoginResponse{TokenPair: *tokens, User: user})
}

func (h *AuthHandlers) socialRegister(c echo.Context, providerName string, identity *providers.Identity) error {
	if !h.cfg.SocialAutoRegister {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	if identity.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Social login failed")
	}

	ctx := c.Request().Context()
	user := &models.User{
		ID:        uuid.New(),
		Email:     identity.Email,
		FirstName: identity.Name,
	}
	link := &models.SocialAuthLink{
		ID:       uuid.New(),
		UserID:   user.ID,
		Provider: providerName,
		Subject:  identity.Subject,
	}

	if err := h.socialRepo.CreateUserWithLink(ctx, user, link); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "Identity already registered")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	tokens, err := h.tokenSvc.GenerateTokenPair(ctx, user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	return c.JSON(http.StatusOK, models.LoginResponse{TokenPair: *tokens, User: user})
}

// RefreshRequest represents the token refresh payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a valid refresh token for a new token pair.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Refresh token is required")
	}

	claims, err := h.tokenSvc.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
	}

	userID, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
	}

	// Refuse refresh for users deleted after the token was issued.
	if _, err := h.userRepo.GetByID(ctx, userID); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
	}

	tokens, err := h.tokenSvc.GenerateTokenPair(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	return c.JSON(http.StatusOK, tokens)
}
