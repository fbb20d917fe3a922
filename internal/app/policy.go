package app

import (
	"learnhub/internal/authz"
	"learnhub/internal/domain"
	"learnhub/internal/modules/materials"
	"learnhub/internal/modules/users"
)

// DefaultPolicy is the role table consulted when routes are registered.
func DefaultPolicy() authz.Policy {
	staff := []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleTutor}
	return authz.Policy{
		users.OpList:             {domain.RoleSuperAdmin, domain.RoleAdmin},
		users.OpUpdateRoles:      {domain.RoleSuperAdmin},
		materials.OpUpload:       {domain.RoleAdmin, domain.RoleTutor},
		materials.OpList:         staff,
		materials.OpListAssigned: {domain.RoleStudent, domain.RoleAdmin},
		materials.OpDelete:       staff,
		materials.OpAssign:       staff,
	}
}
