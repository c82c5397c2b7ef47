package authz

// Permission codenames reported by the user permissions endpoint. Staff users
// hold the full catalog; everyone else holds the base set covering their own
// account and the tenants they belong to.

var catalog = []string{
	"users.view_user",
	"users.change_user",
	"users.delete_user",
	"users.list_users",
	"tenants.add_tenant",
	"tenants.view_tenant",
	"tenants.change_tenant",
	"tenants.delete_tenant",
	"tenants.manage_members",
}

var baseSet = []string{
	"users.view_user",
	"users.change_user",
	"users.delete_user",
	"tenants.add_tenant",
	"tenants.view_tenant",
	"tenants.change_tenant",
	"tenants.delete_tenant",
	"tenants.manage_members",
}

// PermissionsFor returns the permission codenames held by the caller.
func PermissionsFor(caller Caller) []string {
	if !caller.Authenticated {
		return nil
	}
	if caller.Staff {
		out := make([]string, len(catalog))
		copy(out, catalog)
		return out
	}
	out := make([]string, len(baseSet))
	copy(out, baseSet)
	return out
}
