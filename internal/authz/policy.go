// Package authz decides whether a caller may perform an action on a target
// object. Decisions are pure functions over the caller, the action and facts
// about the target; no store access happens here, so handlers can evaluate
// permissions before fetching anything.
package authz

import (
	"github.com/google/uuid"

	"kompello/internal/models"
)

// Action identifies an operation on a resource.
type Action string

const (
	UserCreate      Action = "user.create"
	UserList        Action = "user.list"
	UserRetrieve    Action = "user.retrieve"
	UserUpdate      Action = "user.update"
	UserDelete      Action = "user.delete"
	UserSetPassword Action = "user.set_password"
	UserPermissions Action = "user.permissions"
	UserAvatar      Action = "user.avatar"

	TenantCreate        Action = "tenant.create"
	TenantList          Action = "tenant.list"
	TenantRetrieve      Action = "tenant.retrieve"
	TenantUpdate        Action = "tenant.update"
	TenantDelete        Action = "tenant.delete"
	TenantListMembers   Action = "tenant.list_members"
	TenantAddMembers    Action = "tenant.add_members"
	TenantRemoveMembers Action = "tenant.remove_members"
)

// Caller is the identity a request acts as. The zero value is anonymous.
type Caller struct {
	ID            uuid.UUID
	Staff         bool
	Superuser     bool
	Authenticated bool
}

// CallerFor builds the policy input for an authenticated user. A nil user is
// anonymous.
func CallerFor(user *models.User) Caller {
	if user == nil {
		return Caller{}
	}
	return Caller{
		ID:            user.ID,
		Staff:         user.IsStaff,
		Superuser:     user.IsSuperuser,
		Authenticated: true,
	}
}

// Target carries the facts about the target object a rule needs. For user
// objects that is the target user's id; for tenant objects it is whether the
// caller is a member. Both are known before the object itself is loaded.
type Target struct {
	UserID       uuid.UUID
	CallerMember bool
}

// UserTarget builds a target for an action on a user object.
func UserTarget(id uuid.UUID) Target { return Target{UserID: id} }

// TenantTarget builds a target for an action on a tenant object.
func TenantTarget(callerIsMember bool) Target { return Target{CallerMember: callerIsMember} }

// Allow reports whether caller may perform action on target. List actions are
// scoping decisions, not object checks: UserList requires staff, TenantList
// requires authentication and the handler narrows the result set via
// StaffSeesAll.
func Allow(caller Caller, action Action, target Target) bool {
	switch action {
	case UserCreate:
		// Registration is open to anonymous callers.
		return true

	case UserList:
		return caller.Authenticated && caller.Staff

	case UserRetrieve, UserUpdate, UserDelete, UserSetPassword, UserPermissions, UserAvatar:
		if !caller.Authenticated {
			return false
		}
		return caller.ID == target.UserID || caller.Staff

	case TenantCreate, TenantList:
		return caller.Authenticated

	case TenantRetrieve, TenantUpdate, TenantDelete,
		TenantListMembers, TenantAddMembers, TenantRemoveMembers:
		if !caller.Authenticated {
			return false
		}
		return target.CallerMember || caller.Staff

	default:
		return false
	}
}

// StaffSeesAll reports whether list results should be unscoped for the
// caller. Non-staff callers only see tenants they belong to.
func StaffSeesAll(caller Caller) bool {
	return caller.Authenticated && caller.Staff
}
