package enums

import (
	"fmt"
	"strings"
)

// Role is the caller principal's role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
	// RoleSystem is used by background jobs; it is never accepted from tokens.
	RoleSystem Role = "system"
)

var validRoles = []Role{RoleAdmin, RoleOwner, RoleCustomer}

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the role may appear on an access token.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid role %q", value)
}
