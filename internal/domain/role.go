package domain

// Role names carried in JWT claims and user records.
const (
	RoleBuyer  = "buyer"
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
	// RoleGuest identifies callers that hold a token but have no directory
	// record. Guests may read public resources and never mutate.
	RoleGuest = "guest"
)

// ValidRole reports whether name is one of the known role names.
func ValidRole(name string) bool {
	switch name {
	case RoleBuyer, RoleFarmer, RoleAdmin, RoleGuest:
		return true
	}
	return false
}
