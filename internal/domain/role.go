package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleSuperAdmin        Role = "super_admin"
	RoleAdmin             Role = "admin"
	RoleStudent           Role = "student"
	RoleTutor             Role = "tutor"
	RoleParent            Role = "parent"
	RoleLimitedAccessUser Role = "limited_access_user"
)

// DefaultRole is granted to every newly created account.
const DefaultRole = RoleLimitedAccessUser

var knownRoles = map[Role]bool{
	RoleSuperAdmin:        true,
	RoleAdmin:             true,
	RoleStudent:           true,
	RoleTutor:             true,
	RoleParent:            true,
	RoleLimitedAccessUser: true,
}

func (r Role) Valid() bool {
	return knownRoles[r]
}

// Roles is an ordered set of roles without duplicates.
type Roles []Role

func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether rs and required share at least one role.
func (rs Roles) HasAny(required ...Role) bool {
	for _, r := range required {
		if rs.Has(r) {
			return true
		}
	}
	return false
}

func (rs Roles) Strings() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}
	return out
}

// ParseRoles converts raw values into a deduplicated Roles set.
// Unknown values fail with ErrInvalidRole.
func ParseRoles(raw []string) (Roles, error) {
	out := make(Roles, 0, len(raw))
	for _, v := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(v)))
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, v)
		}
		if !out.Has(role) {
			out = append(out, role)
		}
	}
	return out, nil
}

type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)
