package auth

// Admin role constants.
const (
	RoleViewer     = "viewer"     // read restrictions and watch the feed
	RoleAdmin      = "admin"      // mute, unmute, edit records
	RoleSuperAdmin = "superadmin" // same as admin; reserved for token issuance policy
)

// AllAdminRoles returns all valid admin roles.
func AllAdminRoles() []string {
	return []string{RoleViewer, RoleAdmin, RoleSuperAdmin}
}

// WriteRoles returns roles that can modify restrictions.
func WriteRoles() []string {
	return []string{RoleAdmin, RoleSuperAdmin}
}

// IsAdminRole reports whether role is one of AllAdminRoles.
func IsAdminRole(role string) bool {
	for _, r := range AllAdminRoles() {
		if r == role {
			return true
		}
	}
	return false
}
