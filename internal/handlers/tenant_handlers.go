package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"kompello/internal/authz"
	"kompello/internal/caching"
	"kompello/internal/common"
	"kompello/internal/models"
	"kompello/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const memberCountTTL = 15 * time.Minute

// TenantHandlers handles tenant CRUD and membership management.
type TenantHandlers struct {
	tenantRepo     repositories.TenantRepository
	membershipRepo repositories.MembershipRepository
	cacheSvc       caching.CacheService
}

func NewTenantHandlers(tenantRepo repositories.TenantRepository, membershipRepo repositories.MembershipRepository, cacheSvc caching.CacheService) *TenantHandlers {
	return &TenantHandlers{
		tenantRepo:     tenantRepo,
		membershipRepo: membershipRepo,
		cacheSvc:       cacheSvc,
	}
}

// TenantResponse augments a tenant with its cached member count.
type TenantResponse struct {
	*models.Tenant
	MemberCount int `json:"member_count"`
}

// authorizeTenantAction evaluates the member-or-staff rule from the caller
// and the tenant id alone, before the tenant row is touched. Non-staff
// callers who fail the rule see 403 whether or not the tenant exists, so the
// id space does not leak; only callers who pass can subsequently observe 404.
func (h *TenantHandlers) authorizeTenantAction(c echo.Context, action authz.Action) (uuid.UUID, error) {
	tenantID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	caller, ok := common.CallerFromContext(ctx)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	isMember, err := h.membershipRepo.IsMember(ctx, tenantID, caller.ID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to check membership")
	}

	if !authz.Allow(authz.CallerFor(caller), action, authz.TenantTarget(isMember)) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}

	return tenantID, nil
}

// ListTenantsRequest represents query parameters for listing tenants
type ListTenantsRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// ListTenants returns the caller's tenants, or all tenants for staff.
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := common.CallerFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	var req ListTenantsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	limit, offset := common.ValidatePaginationParams(req.Limit, req.Offset)

	var tenants []*models.Tenant
	var err error
	if authz.StaffSeesAll(authz.CallerFor(caller)) {
		tenants, err = h.tenantRepo.List(ctx, limit, offset)
	} else {
		tenants, err = h.tenantRepo.ListForUser(ctx, caller.ID, limit, offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list tenants")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   limit,
		"offset":  offset,
	})
}

// CreateTenantRequest represents the tenant creation payload
type CreateTenantRequest struct {
	Slug string `json:"slug" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// CreateTenant creates a tenant; the creator becomes its first member in the
// same transaction.
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	ctx := c.Request().Context()

	caller, ok := common.CallerFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	if !authz.Allow(authz.CallerFor(caller), authz.TenantCreate, authz.Target{}) {
		return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
	}

	var req CreateTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if req.Slug == "" || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug and name are required")
	}
	if strings.ContainsAny(req.Slug, " \t") {
		return echo.NewHTTPError(http.StatusBadRequest, "Slug cannot contain spaces")
	}

	tenant := &models.Tenant{
		ID:   uuid.New(),
		Slug: req.Slug,
		Name: req.Name,
	}

	if err := h.tenantRepo.Create(ctx, tenant, caller.ID); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "Tenant with this slug already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create tenant")
	}

	return c.JSON(http.StatusCreated, tenant)
}

// GetTenant returns a tenant with its member count. Member or staff.
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	tenantID, err := h.authorizeTenantAction(c, authz.TenantRetrieve)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	tenant, err := h.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Tenant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get tenant")
	}

	return c.JSON(http.StatusOK, TenantResponse{
		Tenant:      tenant,
		MemberCount: h.memberCount(c, tenantID),
	})
}

// memberCount serves the cached count, falling back to the store on a miss.
func (h *TenantHandlers) memberCount(c echo.Context, tenantID uuid.UUID) int {
	ctx := c.Request().Context()

	if count, ok, err := h.cacheSvc.GetTenantMemberCount(ctx, tenantID); err == nil && ok {
		return count
	}

	count, err := h.membershipRepo.MemberCount(ctx, tenantID)
	if err != nil {
		return 0
	}
	_ = h.cacheSvc.SetTenantMemberCount(ctx, tenantID, count, memberCountTTL)
	return count
}

// UpdateTenantRequest represents the tenant update payload. Absent fields are
// left unchanged, which covers both PUT and PATCH.
type UpdateTenantRequest struct {
	Slug *string `json:"slug"`
	Name *string `json:"name"`
}

// UpdateTenant updates a tenant. Member or staff.
func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	tenantID, err := h.authorizeTenantAction(c, authz.TenantUpdate)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var req UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	tenant, err := h.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Tenant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get tenant")
	}

	if req.Slug != nil {
		if *req.Slug == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Slug cannot be empty")
		}
		if strings.ContainsAny(*req.Slug, " \t") {
			return echo.NewHTTPError(http.StatusBadRequest, "Slug cannot contain spaces")
		}
		tenant.Slug = *req.Slug
	}
	if req.Name != nil {
		if *req.Name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Name cannot be empty")
		}
		tenant.Name = *req.Name
	}

	if err := h.tenantRepo.Update(ctx, tenant); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "Tenant with this slug already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update tenant")
	}

	return c.JSON(http.StatusOK, tenant)
}

// DeleteTenant removes a tenant and its memberships. Member or staff.
func (h *TenantHandlers) DeleteTenant(c echo.Context) error {
	tenantID, err := h.authorizeTenantAction(c, authz.TenantDelete)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if err := h.tenantRepo.Delete(ctx, tenantID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Tenant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete tenant")
	}

	_ = h.cacheSvc.DeleteTenantMemberCount(ctx, tenantID)

	return c.NoContent(http.StatusNoContent)
}

// ListTenantUsers returns the tenant's members. Member or staff.
func (h *TenantHandlers) ListTenantUsers(c echo.Context) error {
	tenantID, err := h.authorizeTenantAction(c, authz.TenantListMembers)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.tenantRepo.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Tenant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get tenant")
	}

	users, err := h.membershipRepo.ListMembers(ctx, tenantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list members")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"users": users})
}

// UserUUIDListRequest represents a list of user ids for membership changes
type UserUUIDListRequest struct {
	UUIDs []string `json:"uuids" validate:"required"`
}

func parseUUIDList(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := common.ValidateUUID(s, "uuids")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AddUsers adds members to the tenant. Idempotent; unknown user ids are
// skipped. Member or staff.
func (h *TenantHandlers) AddUsers(c echo.Context) error {
	tenantID, err := h.authorizeTenantAction(c, authz.TenantAddMembers)
	if err != nil {
		return err
	}
	return h.changeMembers(c, tenantID, h.membershipRepo.AddMembers)
}

// RemoveUsers removes members from the tenant. Idempotent. Member or staff.
func (h *TenantHandlers) RemoveUsers(c echo.Context) error {
	tenantID, err := h.authorizeTenantAction(c, authz.TenantRemoveMembers)
	if err != nil {
		return err
	}
	return h.changeMembers(c, tenantID, h.membershipRepo.RemoveMembers)
}

func (h *TenantHandlers) changeMembers(c echo.Context, tenantID uuid.UUID,
	apply func(ctx context.Context, tenantID uuid.UUID, userIDs []uuid.UUID) error) error {
	ctx := c.Request().Context()

	if _, err := h.tenantRepo.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Tenant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get tenant")
	}

	var req UserUUIDListRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	userIDs, err := parseUUIDList(req.UUIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := apply(ctx, tenantID, userIDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update members")
	}

	_ = h.cacheSvc.DeleteTenantMemberCount(ctx, tenantID)

	return c.JSON(http.StatusOK, map[string]string{"message": "Success"})
}
