package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/wizard?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/wizard?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/wizard", migrateURL("postgresql://localhost/wizard"))
	assert.Equal(t, "pgx5://localhost/wizard", migrateURL("pgx5://localhost/wizard"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
