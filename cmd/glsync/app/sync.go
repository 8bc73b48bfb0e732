package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glsync/glsync/internal/app"
	"github.com/glsync/glsync/internal/app/storage"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/telemetry"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <entityType>",
		Short: "Run one sync of an entity type and print the result",
		Long: `Run one sync of an entity type in the foreground, without the job
queue, and print the result as JSON.

Entity types: namespaces, projects, users, milestones, issues,
mergeRequests, pipelines.

Examples:
  # Sync the issues of one project, ignoring the closed-age skip rule
  glsync sync issues --scope acme/web --full

  # Sync users with the stores of a configuration file
  glsync sync users --config config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	cmd.Flags().Bool("full", false, "Bypass the age part of the skip policy")
	cmd.Flags().String("scope", "", "Restrict discovery to one project or group path")
	cmd.Flags().Int("batch-size", 0, "Discovery page size (0 = configured default)")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	entityType, err := entity.ParseType(args[0])
	if err != nil {
		return err
	}

	opts, configPath, err := syncFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closer := setupLogging(cfg)
	defer func() { _ = closer.Close() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	factory, err := storage.NewStorageFactory(ctx, cfg, storage.WithTracerProvider(tel.TracerProvider()))
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	stores, err := factory.CreateStores(ctx)
	if err != nil {
		return fmt.Errorf("failed to create document stores: %w", err)
	}

	client, err := app.NewGitLabClient(cfg, logger, tel.TracerProvider())
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	metrics, err := telemetry.NewSyncMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	runner := app.NewRunners(cfg, client, stores,
		sync.WithLogger(logger),
		sync.WithMetrics(metrics),
		sync.WithTracer(tel.TracerProvider().Tracer(sync.TracerName)),
	)[entityType]

	job := cfg.Job(entityType)
	if opts.BatchSize == 0 {
		opts.BatchSize = job.BatchSize
	}
	opts.FullSync = opts.FullSync || job.FullSync

	logger.Info("Starting one-shot sync", "entity_type", entityType, "options", opts)
	result, err := runner.Run(ctx, opts, func(percent int) {
		logger.Info("Sync progress", "entity_type", entityType, "percent", percent)
	})
	if err != nil {
		return fmt.Errorf("sync of %s failed: %w", entityType, err)
	}

	return writeJSON(cmd.OutOrStdout(), result)
}

// syncFlags reads the run options and the config path from the flags.
func syncFlags(cmd *cobra.Command) (sync.Options, string, error) {
	var opts sync.Options

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return opts, "", fmt.Errorf("failed to get config flag: %w", err)
	}
	if opts.FullSync, err = cmd.Flags().GetBool("full"); err != nil {
		return opts, "", fmt.Errorf("failed to get full flag: %w", err)
	}
	if opts.Scope, err = cmd.Flags().GetString("scope"); err != nil {
		return opts, "", fmt.Errorf("failed to get scope flag: %w", err)
	}
	if opts.BatchSize, err = cmd.Flags().GetInt("batch-size"); err != nil {
		return opts, "", fmt.Errorf("failed to get batch-size flag: %w", err)
	}
	if opts.BatchSize < 0 {
		return opts, "", fmt.Errorf("batch-size must not be negative")
	}

	return opts, configPath, nil
}
