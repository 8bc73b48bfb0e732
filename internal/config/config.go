// Package config provides configuration loading and management for glsync.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/telemetry"
)

const (
	// StorageTypeMemory keeps documents in process memory
	StorageTypeMemory = "memory"

	// StorageTypeDatabase stores documents and jobs in PostgreSQL
	StorageTypeDatabase = "database"

	// StorageTypeMongoDB stores documents in MongoDB
	StorageTypeMongoDB = "mongodb"
)

const (
	// EnvPrefix is the prefix of the environment variables read by glsync
	EnvPrefix = "GLSYNC"

	// EnvUpstreamToken is the environment variable holding the upstream token
	EnvUpstreamToken = "GLSYNC_UPSTREAM_TOKEN"

	// EnvDatabasePassword is the environment variable holding the database password
	EnvDatabasePassword = "GLSYNC_DATABASE_PASSWORD"

	// DefaultEndpoint is the upstream GraphQL endpoint used when none is configured
	DefaultEndpoint = "https://gitlab.com/api/graphql"

	// DefaultServerAddress is the listen address of the control surface
	DefaultServerAddress = ":8080"

	// DefaultErrorAlertThreshold is the per-run entity error count that
	// triggers an operator alert
	DefaultErrorAlertThreshold = 50
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Upstream  UpstreamConfig       `yaml:"upstream"`
	Storage   StorageConfig        `yaml:"storage"`
	Sync      SyncConfig           `yaml:"sync"`
	Queue     QueueConfig          `yaml:"queue"`
	Jobs      map[string]JobConfig `yaml:"jobs,omitempty"`
	Server    ServerConfig         `yaml:"server"`
	Logging   LoggingConfig        `yaml:"logging"`
	Telemetry *telemetry.Config    `yaml:"telemetry,omitempty"`
}

// UpstreamConfig defines the GitLab GraphQL connection
type UpstreamConfig struct {
	// Endpoint is the GraphQL URL, e.g. https://gitlab.com/api/graphql
	Endpoint string `yaml:"endpoint,omitempty"`

	// TokenFile is the path to a file holding the access token.
	// GLSYNC_UPSTREAM_TOKEN is used when it is empty.
	TokenFile string `yaml:"tokenFile,omitempty"`

	// Timeout bounds a single upstream request (e.g., "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxConcurrentCategories bounds the category fan-out of one fetch
	MaxConcurrentCategories int `yaml:"maxConcurrentCategories,omitempty"`
}

// StorageConfig selects the document store backend
type StorageConfig struct {
	// Type is memory, database or mongodb. Defaults to memory.
	Type     string          `yaml:"type,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	MongoDB  *MongoDBConfig  `yaml:"mongodb,omitempty"`
}

// MongoDBConfig defines the MongoDB connection
type MongoDBConfig struct {
	// URI is the connection string, e.g. mongodb://localhost:27017
	URI string `yaml:"uri"`

	// Database is the database name
	Database string `yaml:"database"`
}

// SyncConfig holds the settings shared by every sync run
type SyncConfig struct {
	// ErrorAlertThreshold is the number of entity errors in one run above
	// which an operator alert is logged
	ErrorAlertThreshold int `yaml:"errorAlertThreshold,omitempty"`

	// Thresholds are the terminal-state ages after which records are skipped
	Thresholds ThresholdsConfig `yaml:"thresholds,omitempty"`
}

// ThresholdsConfig holds the skip policy thresholds as durations (e.g., "4380h")
type ThresholdsConfig struct {
	IssuesClosed        string `yaml:"issuesClosed,omitempty"`
	MergeRequestsClosed string `yaml:"mergeRequestsClosed,omitempty"`
	PipelinesFinished   string `yaml:"pipelinesFinished,omitempty"`
	MilestonesClosed    string `yaml:"milestonesClosed,omitempty"`
}

// QueueConfig tunes the job queues. Unset fields take the queue defaults.
type QueueConfig struct {
	MaxAttempts          int    `yaml:"maxAttempts,omitempty"`
	BackoffBase          string `yaml:"backoffBase,omitempty"`
	BackoffMax           string `yaml:"backoffMax,omitempty"`
	RemoveOnComplete     int    `yaml:"removeOnComplete,omitempty"`
	RemoveOnFail         int    `yaml:"removeOnFail,omitempty"`
	StalledAfter         string `yaml:"stalledAfter,omitempty"`
	StalledCheckInterval string `yaml:"stalledCheckInterval,omitempty"`
}

// JobConfig defines the schedule and defaults of one entity type
type JobConfig struct {
	// Interval is the repeat interval (e.g., "15m")
	Interval string `yaml:"interval,omitempty"`

	// BatchSize is the default discovery page size
	BatchSize int `yaml:"batchSize,omitempty"`

	// FullSync makes scheduled runs bypass the age part of the skip policy
	FullSync bool `yaml:"fullSync,omitempty"`

	// Scopes are the project or group paths to discover from
	Scopes []string `yaml:"scopes,omitempty"`
}

// ServerConfig defines the control surface listener
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoggingConfig defines log level and optional file rotation
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level,omitempty"`

	// File enables rotation to this path in addition to stderr
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file content is trimmed of surrounding whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of idle connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password from PasswordFile, falling back
// to the GLSYNC_DATABASE_PASSWORD environment variable.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		return readSecret(d.PasswordFile)
	}

	if envPassword := os.Getenv(EnvDatabasePassword); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", EnvDatabasePassword,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetToken returns the upstream token from TokenFile, falling back to the
// GLSYNC_UPSTREAM_TOKEN environment variable.
func (u *UpstreamConfig) GetToken() (string, error) {
	if u.TokenFile != "" {
		return readSecret(u.TokenFile)
	}
	if token := os.Getenv(EnvUpstreamToken); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("no upstream token configured: set tokenFile or %s environment variable", EnvUpstreamToken)
}

// GetEndpoint returns the endpoint, or DefaultEndpoint if not specified
func (u *UpstreamConfig) GetEndpoint() string {
	if u.Endpoint == "" {
		return DefaultEndpoint
	}
	return u.Endpoint
}

// GetTimeout returns the request timeout, or zero to use the client default
func (u *UpstreamConfig) GetTimeout() time.Duration {
	return parseDuration(u.Timeout)
}

// GetType returns the storage type, using memory if not specified
func (s *StorageConfig) GetType() string {
	if s.Type == "" {
		return StorageTypeMemory
	}
	return s.Type
}

// GetErrorAlertThreshold returns the alert threshold, or its default
func (s *SyncConfig) GetErrorAlertThreshold() int {
	if s.ErrorAlertThreshold <= 0 {
		return DefaultErrorAlertThreshold
	}
	return s.ErrorAlertThreshold
}

// GetAddress returns the listen address, or DefaultServerAddress
func (s *ServerConfig) GetAddress() string {
	if s.Address == "" {
		return DefaultServerAddress
	}
	return s.Address
}

// Job returns the job configuration of an entity type. Unconfigured types
// get a zero JobConfig.
func (c *Config) Job(t entity.Type) JobConfig {
	return c.Jobs[string(t)]
}

// GetInterval returns the repeat interval, or zero to use the default
func (j JobConfig) GetInterval() time.Duration {
	return parseDuration(j.Interval)
}

// LoadConfig loads and parses configuration from a YAML file. Without a path
// the defaults are returned.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Upstream.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Sync.Thresholds.validate(); err != nil {
		return err
	}
	if err := c.Queue.validate(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

func (u *UpstreamConfig) validate() error {
	if u.Endpoint != "" {
		parsed, err := url.Parse(u.Endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("upstream.endpoint must be an absolute URL, got %q", u.Endpoint)
		}
	}
	if err := validateDuration("upstream.timeout", u.Timeout); err != nil {
		return err
	}
	if u.MaxConcurrentCategories < 0 {
		return fmt.Errorf("upstream.maxConcurrentCategories must not be negative")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.GetType() {
	case StorageTypeMemory:
		return nil
	case StorageTypeDatabase:
		if s.Database == nil {
			return fmt.Errorf("storage.database is required when storage.type is %s", StorageTypeDatabase)
		}
		if s.Database.Host == "" || s.Database.Database == "" {
			return fmt.Errorf("storage.database: host and database are required")
		}
		return validateDuration("storage.database.connMaxLifetime", s.Database.ConnMaxLifetime)
	case StorageTypeMongoDB:
		if s.MongoDB == nil || s.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required when storage.type is %s", StorageTypeMongoDB)
		}
		if s.MongoDB.Database == "" {
			return fmt.Errorf("storage.mongodb.database is required")
		}
		return nil
	default:
		return fmt.Errorf("storage.type must be one of %s, %s or %s, got %q",
			StorageTypeMemory, StorageTypeDatabase, StorageTypeMongoDB, s.Type)
	}
}

func (t *ThresholdsConfig) validate() error {
	for name, value := range map[string]string{
		"issuesClosed":        t.IssuesClosed,
		"mergeRequestsClosed": t.MergeRequestsClosed,
		"pipelinesFinished":   t.PipelinesFinished,
		"milestonesClosed":    t.MilestonesClosed,
	} {
		if err := validateDuration("sync.thresholds."+name, value); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueueConfig) validate() error {
	if q.MaxAttempts < 0 {
		return fmt.Errorf("queue.maxAttempts must not be negative")
	}
	for name, value := range map[string]string{
		"backoffBase":          q.BackoffBase,
		"backoffMax":           q.BackoffMax,
		"stalledAfter":         q.StalledAfter,
		"stalledCheckInterval": q.StalledCheckInterval,
	} {
		if err := validateDuration("queue."+name, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateJobs() error {
	// Sorted for a deterministic first error.
	names := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		names = append(names, name)
	}
	slices.Sort(names)

	for i, name := range names {
		prefix := fmt.Sprintf("jobs[%d] (%s)", i, name)
		if _, err := entity.ParseType(name); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		job := c.Jobs[name]
		if err := validateDuration(prefix+": interval", job.Interval); err != nil {
			return err
		}
		if job.BatchSize < 0 {
			return fmt.Errorf("%s: batchSize must not be negative", prefix)
		}
		for j, scope := range job.Scopes {
			if strings.TrimSpace(scope) == "" {
				return fmt.Errorf("%s: scopes[%d] must not be empty", prefix, j)
			}
		}
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn or error, got %q", l.Level)
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation settings must not be negative")
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g., '30m', '1h'): %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}

// parseDuration parses a validated duration. Empty values yield zero.
func parseDuration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
