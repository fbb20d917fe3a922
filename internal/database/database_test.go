package database

import (
	"context"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub/internal/database/migrations"
	"learnhub/internal/pkg/logging"
)

type widget struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestConnect_SQLiteAndAutoMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:database_test_%s?mode=memory&cache=shared", t.Name())
	db, err := Connect(dsn, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())

	require.NoError(t, Migrate(context.Background(), db, &widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, IsPostgresDSN("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN("file:dev.db"))
	assert.False(t, IsPostgresDSN(":memory:"))
}

func TestMigrations_AreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "00001_init.sql")
	assert.Contains(t, names, "00002_materials.sql")
}
