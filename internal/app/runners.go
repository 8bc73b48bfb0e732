package app

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/gitlab"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/entities"
	"github.com/glsync/glsync/internal/sync/policy"
)

// NewGitLabClient returns an upstream client configured from cfg. A nil
// tracer provider disables client spans.
func NewGitLabClient(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider) (*gitlab.Client, error) {
	token, err := cfg.Upstream.GetToken()
	if err != nil {
		return nil, err
	}
	return gitlab.NewClient(cfg.Upstream.GetEndpoint(), token, clientOptions(cfg, logger, tp)...), nil
}

func clientOptions(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider) []gitlab.Option {
	opts := []gitlab.Option{
		gitlab.WithTimeout(cfg.Upstream.GetTimeout()),
		gitlab.WithMaxConcurrentCategories(cfg.Upstream.MaxConcurrentCategories),
		gitlab.WithLogger(logger),
	}
	if tp != nil {
		opts = append(opts, gitlab.WithTracer(tp.Tracer(gitlab.TracerName)))
	}
	return opts
}

// NewRunners returns the sync driver of every entity type with the scopes
// and skip thresholds of cfg.
func NewRunners(
	cfg *config.Config,
	client *gitlab.Client,
	stores entities.Stores,
	opts ...sync.Option,
) map[entity.Type]sync.Runner {
	scopes := make(map[entity.Type][]string)
	for _, t := range entity.AllTypes() {
		if s := cfg.Job(t).Scopes; len(s) > 0 {
			scopes[t] = s
		}
	}

	opts = append([]sync.Option{sync.WithErrorAlertThreshold(cfg.Sync.GetErrorAlertThreshold())}, opts...)
	return entities.NewRunners(client, stores, entities.Settings{
		Scopes:     scopes,
		Thresholds: thresholds(cfg.Sync.Thresholds),
	}, opts...)
}

// thresholds overlays the configured thresholds on the defaults.
func thresholds(c config.ThresholdsConfig) policy.Thresholds {
	th := policy.DefaultThresholds()
	override := func(dst *time.Duration, value string) {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			*dst = d
		}
	}
	override(&th.IssuesClosed, c.IssuesClosed)
	override(&th.MergeRequestsClosed, c.MergeRequestsClosed)
	override(&th.PipelinesFinished, c.PipelinesFinished)
	override(&th.MilestonesClosed, c.MilestonesClosed)
	return th
}

// queueConfig converts the validated queue settings. Zero values keep the
// queue defaults.
func queueConfig(c config.QueueConfig) queue.Config {
	parse := func(value string) time.Duration {
		d, _ := time.ParseDuration(value)
		return d
	}
	return queue.Config{
		MaxAttempts:          c.MaxAttempts,
		BackoffBase:          parse(c.BackoffBase),
		BackoffMax:           parse(c.BackoffMax),
		RemoveOnComplete:     c.RemoveOnComplete,
		RemoveOnFail:         c.RemoveOnFail,
		StalledAfter:         parse(c.StalledAfter),
		StalledCheckInterval: parse(c.StalledCheckInterval),
	}
}
