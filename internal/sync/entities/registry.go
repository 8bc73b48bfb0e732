package entities

import (
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/gitlab"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/policy"
)

// Stores holds the document store of every entity type.
type Stores struct {
	Users         store.Store[entity.UserDocument]
	Projects      store.Store[entity.ProjectDocument]
	Issues        store.Store[entity.IssueDocument]
	MergeRequests store.Store[entity.MergeRequestDocument]
	Pipelines     store.Store[entity.PipelineDocument]
	Milestones    store.Store[entity.MilestoneDocument]
	Namespaces    store.Store[entity.NamespaceDocument]
}

// MemoryStores returns in-memory stores for every entity type.
func MemoryStores() Stores {
	return Stores{
		Users:         store.NewMemoryStore[entity.UserDocument](),
		Projects:      store.NewMemoryStore[entity.ProjectDocument](),
		Issues:        store.NewMemoryStore[entity.IssueDocument](),
		MergeRequests: store.NewMemoryStore[entity.MergeRequestDocument](),
		Pipelines:     store.NewMemoryStore[entity.PipelineDocument](),
		Milestones:    store.NewMemoryStore[entity.MilestoneDocument](),
		Namespaces:    store.NewMemoryStore[entity.NamespaceDocument](),
	}
}

// Settings are the per-type plugin settings.
type Settings struct {
	// Scopes are the configured discovery paths per entity type.
	Scopes map[entity.Type][]string
	// Thresholds are the terminal-state age thresholds.
	Thresholds policy.Thresholds
}

// NewRunners returns a sync driver for every entity type, keyed by type.
func NewRunners(client *gitlab.Client, stores Stores, settings Settings, opts ...sync.Option) map[entity.Type]sync.Runner {
	scopes := func(t entity.Type) []string { return settings.Scopes[t] }
	th := settings.Thresholds

	return map[entity.Type]sync.Runner{
		entity.TypeUsers: sync.NewDriver[entity.User, entity.UserDocument](
			NewUsersPlugin(client.Users(), scopes(entity.TypeUsers)), stores.Users, opts...),
		entity.TypeProjects: sync.NewDriver[entity.Project, entity.ProjectDocument](
			NewProjectsPlugin(client.Projects(), scopes(entity.TypeProjects)), stores.Projects, opts...),
		entity.TypeNamespaces: sync.NewDriver[entity.Namespace, entity.NamespaceDocument](
			NewNamespacesPlugin(client.Namespaces(), scopes(entity.TypeNamespaces)), stores.Namespaces, opts...),
		entity.TypeIssues: sync.NewDriver[entity.Issue, entity.IssueDocument](
			NewIssuesPlugin(client.Issues(), scopes(entity.TypeIssues),
				policy.Terminal{Threshold: th.IssuesClosed}), stores.Issues, opts...),
		entity.TypeMergeRequests: sync.NewDriver[entity.MergeRequest, entity.MergeRequestDocument](
			NewMergeRequestsPlugin(client.MergeRequests(), scopes(entity.TypeMergeRequests),
				policy.Terminal{Threshold: th.MergeRequestsClosed}), stores.MergeRequests, opts...),
		entity.TypePipelines: sync.NewDriver[entity.Pipeline, entity.PipelineDocument](
			NewPipelinesPlugin(client.Pipelines(), scopes(entity.TypePipelines),
				policy.Terminal{Threshold: th.PipelinesFinished}), stores.Pipelines, opts...),
		entity.TypeMilestones: sync.NewDriver[entity.Milestone, entity.MilestoneDocument](
			NewMilestonesPlugin(client.Milestones(), scopes(entity.TypeMilestones),
				policy.Terminal{Threshold: th.MilestonesClosed}), stores.Milestones, opts...),
	}
}
