package shared

// Roles carried in access tokens.
const (
	RoleAdmin     = "admin"
	RoleCollector = "collector"
	RoleRetailer  = "retailer"
)

// AdminRoles are allowed on the admin portal.
func AdminRoles() []string {
	return []string{RoleAdmin}
}

// PaymentRecorderRoles may record collected payments.
func PaymentRecorderRoles() []string {
	return []string{RoleAdmin, RoleCollector}
}

// IsKnownRole reports whether role is one of the supported roles.
func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCollector, RoleRetailer:
		return true
	}
	return false
}
