package repository

import "learnhub/internal/domain"

// Models lists the gorm models backing this package, for SQLite auto-migration.
func Models() []any {
	return []any{
		&userModel{},
		&domain.RefreshToken{},
		&materialModel{},
		&materialAssignmentModel{},
	}
}
