package auth

// Role represents an account's privilege level
type Role string

const (
	RoleStandard Role = "standard" // Regular storefront user
	RoleAdmin    Role = "admin"    // Can moderate deposits and the catalog
)

// ParseRole normalizes a role string, defaulting unknown values to standard
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleStandard
}

// Identity is the validated caller identity attached to each request
type Identity struct {
	AccountID string `json:"account_id"`
	Role      Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the administrator role
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}
