package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMigrateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@host:5432/db?sslmode=disable", want: "pgx5://u:p@host:5432/db?sslmode=disable"},
		{in: "postgresql://u@host/db", want: "pgx5://u@host/db"},
		{in: "pgx5://u@host/db", want: "pgx5://u@host/db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, toMigrateURL(tt.in))
		})
	}
}

func TestMigrationFilesArePaired(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestMigrations_UpDownUp(t *testing.T) {
	t.Parallel()

	_, connStr := SetupTestDB(t)

	version, dirty, err := GetVersion(connStr)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	require.NoError(t, MigrateDown(connStr, 0))
	version, _, err = GetVersion(connStr)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, MigrateUp(connStr))
	require.NoError(t, MigrateUp(connStr), "second up is a no-op")
}
