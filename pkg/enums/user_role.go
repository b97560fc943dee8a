package enums

import "fmt"

// UserRole maps to the user_role enum in Postgres.
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleDriver   UserRole = "driver"
	RoleAdmin    UserRole = "admin"
)

var validUserRoles = []UserRole{
	RoleCustomer,
	RoleDriver,
	RoleAdmin,
}

// IsValid reports whether the value matches the canonical user_role enum.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
