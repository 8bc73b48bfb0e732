package entities

import (
	"maps"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/policy"
)

// PipelinesPlugin syncs pipelines.
type PipelinesPlugin struct {
	base[entity.Pipeline, entity.PipelineDocument]
	policy policy.Terminal
}

var _ sync.Plugin[entity.Pipeline, entity.PipelineDocument] = (*PipelinesPlugin)(nil)

// NewPipelinesPlugin returns the pipelines plugin.
func NewPipelinesPlugin(src Source[entity.Pipeline], scopes []string, p policy.Terminal) *PipelinesPlugin {
	return &PipelinesPlugin{
		base:   newBase[entity.Pipeline, entity.PipelineDocument](entity.TypePipelines, src, scopes),
		policy: p,
	}
}

// PipelineFinished reports whether a pipeline status is terminal.
func PipelineFinished(status string) bool {
	switch status {
	case "SUCCESS", "FAILED", "CANCELED", "SKIPPED":
		return true
	default:
		return false
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*PipelinesPlugin) IsCategoryPresent(rec *entity.Pipeline, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip skips pipelines finished longer ago than the threshold.
func (p *PipelinesPlugin) ShouldSkip(rec *store.Record[entity.PipelineDocument], opts sync.Options) bool {
	if skipExternal(rec) {
		return true
	}
	doc := rec.Entity
	return p.policy.Skip(PipelineFinished(doc.Status), doc.FinishedAt, opts.FullSync, p.now())
}

// MapToStorageSchema implements sync.Plugin.
func (*PipelinesPlugin) MapToStorageSchema(rec *entity.Pipeline) (entity.PipelineDocument, error) {
	if rec.Core == nil {
		return entity.PipelineDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.PipelineDocument{
		IID:         c.IID,
		ProjectPath: c.ProjectPath,
		Status:      c.Status,
		Ref:         c.Ref,
		SHA:         c.SHA,
		Source:      c.Source,
		Duration:    c.Duration,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		StartedAt:   c.StartedAt,
		FinishedAt:  c.FinishedAt,
	}

	if j := rec.Jobs; j != nil {
		doc.JobCount = ptr(j.Total)
		doc.JobsByStatus = maps.Clone(j.ByStatus)
		doc.FailedJobs = j.FailedJobs
	}
	if cm := rec.Commit; cm != nil {
		doc.CommitTitle = ptr(cm.Title)
		doc.CommitAuthor = ptr(cm.AuthorName)
	}
	return doc, nil
}
