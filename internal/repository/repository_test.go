package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"learnhub/internal/database"
	"learnhub/internal/domain"
	"learnhub/internal/pkg/logging"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, Models()...))
	return db
}

func seedUser(t *testing.T, repo *UserRepository, email string, roles ...domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.NewUserParams{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$04$hash",
		Roles:        roles,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}
