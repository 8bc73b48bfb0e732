package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsync/glsync/internal/entity"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		yamlContent string
		wantConfig  *Config
		wantErr     string
	}{
		{
			name: "full_config",
			yamlContent: `upstream:
  endpoint: https://gitlab.example.com/api/graphql
  tokenFile: /secrets/token
  timeout: 45s
  maxConcurrentCategories: 4
storage:
  type: database
  database:
    host: db
    port: 5432
    user: glsync
    database: glsync
sync:
  errorAlertThreshold: 10
  thresholds:
    issuesClosed: 2000h
queue:
  maxAttempts: 5
  backoffBase: 1s
jobs:
  issues:
    interval: 5m
    batchSize: 50
    scopes: ["acme/web", "acme/api"]
server:
  address: ":9090"
logging:
  level: debug`,
			wantConfig: &Config{
				Upstream: UpstreamConfig{
					Endpoint:                "https://gitlab.example.com/api/graphql",
					TokenFile:               "/secrets/token",
					Timeout:                 "45s",
					MaxConcurrentCategories: 4,
				},
				Storage: StorageConfig{
					Type: StorageTypeDatabase,
					Database: &DatabaseConfig{
						Host:     "db",
						Port:     5432,
						User:     "glsync",
						Database: "glsync",
					},
				},
				Sync: SyncConfig{
					ErrorAlertThreshold: 10,
					Thresholds:          ThresholdsConfig{IssuesClosed: "2000h"},
				},
				Queue: QueueConfig{MaxAttempts: 5, BackoffBase: "1s"},
				Jobs: map[string]JobConfig{
					"issues": {Interval: "5m", BatchSize: 50, Scopes: []string{"acme/web", "acme/api"}},
				},
				Server:  ServerConfig{Address: ":9090"},
				Logging: LoggingConfig{Level: "debug"},
			},
		},
		{
			name:        "empty_config",
			yamlContent: ``,
			wantConfig:  &Config{},
		},
		{
			name: "mongodb_storage",
			yamlContent: `storage:
  type: mongodb
  mongodb:
    uri: mongodb://localhost:27017
    database: glsync`,
			wantConfig: &Config{
				Storage: StorageConfig{
					Type:    StorageTypeMongoDB,
					MongoDB: &MongoDBConfig{URI: "mongodb://localhost:27017", Database: "glsync"},
				},
			},
		},
		{
			name:        "invalid_yaml",
			yamlContent: "upstream: [",
			wantErr:     "failed to parse YAML config",
		},
		{
			name:        "unknown_storage_type",
			yamlContent: "storage:\n  type: redis",
			wantErr:     "storage.type must be one of",
		},
		{
			name:        "database_without_settings",
			yamlContent: "storage:\n  type: database",
			wantErr:     "storage.database is required",
		},
		{
			name:        "mongodb_without_database",
			yamlContent: "storage:\n  type: mongodb\n  mongodb:\n    uri: mongodb://localhost",
			wantErr:     "storage.mongodb.database is required",
		},
		{
			name:        "relative_endpoint",
			yamlContent: "upstream:\n  endpoint: /api/graphql",
			wantErr:     "upstream.endpoint must be an absolute URL",
		},
		{
			name:        "bad_timeout",
			yamlContent: "upstream:\n  timeout: soon",
			wantErr:     "upstream.timeout must be a valid duration",
		},
		{
			name:        "negative_threshold",
			yamlContent: "sync:\n  thresholds:\n    pipelinesFinished: -1h",
			wantErr:     "sync.thresholds.pipelinesFinished must be positive",
		},
		{
			name:        "unknown_job_type",
			yamlContent: "jobs:\n  epics:\n    interval: 1h",
			wantErr:     "jobs[0] (epics): unknown entity type",
		},
		{
			name:        "bad_job_interval",
			yamlContent: "jobs:\n  issues:\n    interval: 1h\n  users:\n    interval: often",
			wantErr:     "jobs[1] (users): interval must be a valid duration",
		},
		{
			name:        "empty_scope",
			yamlContent: "jobs:\n  projects:\n    scopes: [\"acme\", \" \"]",
			wantErr:     "jobs[0] (projects): scopes[1] must not be empty",
		},
		{
			name:        "bad_log_level",
			yamlContent: "logging:\n  level: loud",
			wantErr:     "logging.level must be one of",
		},
		{
			name:        "bad_queue_backoff",
			yamlContent: "queue:\n  backoffMax: 0s",
			wantErr:     "queue.backoffMax must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.yamlContent)

			cfg, err := LoadConfig(WithConfigPath(path))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, cfg)
		})
	}
}

func TestLoadConfig_NoPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageTypeMemory, cfg.Storage.GetType())
	assert.Equal(t, DefaultEndpoint, cfg.Upstream.GetEndpoint())
	assert.Equal(t, DefaultServerAddress, cfg.Server.GetAddress())
	assert.Equal(t, DefaultErrorAlertThreshold, cfg.Sync.GetErrorAlertThreshold())
	assert.Zero(t, cfg.Upstream.GetTimeout())
}

func TestWithConfigPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(WithConfigPath(""))
	assert.EqualError(t, err, "path is required")

	_, err = LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorContains(t, err, "failed to evaluate symlinks")

	dir := t.TempDir()
	target := writeConfig(t, "server:\n  address: \":7070\"")
	link := filepath.Join(dir, "link.yaml")
	require.NoError(t, os.Symlink(target, link))
	cfg, err := LoadConfig(WithConfigPath(link))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.GetAddress())
}

func TestConfig_Job(t *testing.T) {
	t.Parallel()
	cfg := &Config{Jobs: map[string]JobConfig{
		"pipelines": {Interval: "10m", BatchSize: 25},
	}}

	job := cfg.Job(entity.TypePipelines)
	assert.Equal(t, 10*time.Minute, job.GetInterval())
	assert.Equal(t, 25, job.BatchSize)

	assert.Zero(t, cfg.Job(entity.TypeUsers).GetInterval())
}

//nolint:paralleltest // uses t.Setenv
func TestUpstreamConfig_GetToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("  glpat-file\n"), 0o600))

	t.Setenv(EnvUpstreamToken, "glpat-env")

	u := &UpstreamConfig{TokenFile: tokenFile}
	token, err := u.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "glpat-file", token)

	u = &UpstreamConfig{}
	token, err = u.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "glpat-env", token)

	t.Setenv(EnvUpstreamToken, "")
	_, err = u.GetToken()
	assert.ErrorContains(t, err, EnvUpstreamToken)

	u = &UpstreamConfig{TokenFile: filepath.Join(t.TempDir(), "missing")}
	_, err = u.GetToken()
	assert.ErrorContains(t, err, "failed to read secret")
}

//nolint:paralleltest // uses t.Setenv
func TestDatabaseConfig_GetConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		envValue string
		want     string
		wantErr  bool
	}{
		{
			name:     "env_password_default_sslmode",
			config:   DatabaseConfig{Host: "db", Port: 5432, User: "glsync", Database: "glsync"},
			envValue: "s3cret",
			want:     "postgres://glsync:s3cret@db:5432/glsync?sslmode=require",
		},
		{
			name:     "escaped_password",
			config:   DatabaseConfig{Host: "db", Port: 5433, User: "u", Database: "d", SSLMode: "disable"},
			envValue: "p@ss/w:rd",
			want:     "postgres://u:p%40ss%2Fw%3Ard@db:5433/d?sslmode=disable",
		},
		{
			name:    "no_password",
			config:  DatabaseConfig{Host: "db", Port: 5432, User: "u", Database: "d"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDatabasePassword, tt.envValue)

			got, err := tt.config.GetConnectionString()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
