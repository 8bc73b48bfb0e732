package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsync/glsync/database"
	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/store"
)

func TestNewStorageFactory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     *config.Config
		errMsg  string
		isValid func(t *testing.T, f Factory)
	}{
		{
			name:   "nil config",
			cfg:    nil,
			errMsg: "config cannot be nil",
		},
		{
			name: "memory by default",
			cfg:  &config.Config{},
			isValid: func(t *testing.T, f Factory) {
				t.Helper()
				assert.IsType(t, &MemoryFactory{}, f)
			},
		},
		{
			name:   "database without settings",
			cfg:    &config.Config{Storage: config.StorageConfig{Type: config.StorageTypeDatabase}},
			errMsg: "database configuration is required",
		},
		{
			name:   "mongodb without settings",
			cfg:    &config.Config{Storage: config.StorageConfig{Type: config.StorageTypeMongoDB}},
			errMsg: "mongodb configuration is required",
		},
		{
			name:   "unknown type",
			cfg:    &config.Config{Storage: config.StorageConfig{Type: "file"}},
			errMsg: "unknown storage type: file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewStorageFactory(ctx, tt.cfg)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			t.Cleanup(f.Cleanup)
			tt.isValid(t, f)
		})
	}
}

func TestMemoryFactory_SharesStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := NewMemoryFactory()

	first, err := f.CreateStores(ctx)
	require.NoError(t, err)
	second, err := f.CreateStores(ctx)
	require.NoError(t, err)

	_, _, err = first.Issues.Upsert(ctx, &store.Record[entity.IssueDocument]{SourceID: 7})
	require.NoError(t, err)

	rec, err := second.Issues.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.SourceID)

	jobs1, err := f.CreateJobStore(ctx)
	require.NoError(t, err)
	jobs2, err := f.CreateJobStore(ctx)
	require.NoError(t, err)
	assert.Same(t, jobs1, jobs2)
}

func TestNewDatabaseFactory(t *testing.T) {
	t.Parallel()

	_, connStr := database.SetupTestDB(t)

	parsed, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte(parsed.ConnConfig.Password+"\n"), 0o600))

	ctx := context.Background()
	f, err := NewDatabaseFactory(ctx, &config.DatabaseConfig{
		Host:            parsed.ConnConfig.Host,
		Port:            int(parsed.ConnConfig.Port),
		User:            parsed.ConnConfig.User,
		PasswordFile:    passwordFile,
		Database:        parsed.ConnConfig.Database,
		SSLMode:         "disable",
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: "1h",
	})
	require.NoError(t, err)
	t.Cleanup(f.Cleanup)

	assert.Equal(t, int32(4), f.pool.Config().MaxConns)
	assert.Equal(t, time.Hour, f.pool.Config().MaxConnLifetime)

	stores, err := f.CreateStores(ctx)
	require.NoError(t, err)

	_, created, err := stores.Pipelines.Upsert(ctx, &store.Record[entity.PipelineDocument]{
		SourceID: 42,
		Entity:   entity.PipelineDocument{Status: "success"},
	})
	require.NoError(t, err)
	assert.True(t, created)

	jobs, err := f.CreateJobStore(ctx)
	require.NoError(t, err)
	counts, err := jobs.Counts(ctx, string(entity.TypePipelines))
	require.NoError(t, err)
	assert.Equal(t, queue.Counts{}, counts)
}

func TestNewDatabaseFactory_Unreachable(t *testing.T) {
	t.Parallel()

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("secret"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewDatabaseFactory(ctx, &config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "glsync",
		PasswordFile: passwordFile,
		Database:     "glsync",
		SSLMode:      "disable",
	})
	require.Error(t, err)
}
