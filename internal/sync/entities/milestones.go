package entities

import (
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/policy"
)

// MilestonesPlugin syncs project milestones.
type MilestonesPlugin struct {
	base[entity.Milestone, entity.MilestoneDocument]
	policy policy.Terminal
}

var _ sync.Plugin[entity.Milestone, entity.MilestoneDocument] = (*MilestonesPlugin)(nil)

// NewMilestonesPlugin returns the milestones plugin.
func NewMilestonesPlugin(src Source[entity.Milestone], scopes []string, p policy.Terminal) *MilestonesPlugin {
	return &MilestonesPlugin{
		base:   newBase[entity.Milestone, entity.MilestoneDocument](entity.TypeMilestones, src, scopes),
		policy: p,
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*MilestonesPlugin) IsCategoryPresent(rec *entity.Milestone, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip skips closed milestones not updated within the threshold.
// Milestones have no close timestamp, so the last update stands in for it.
func (p *MilestonesPlugin) ShouldSkip(rec *store.Record[entity.MilestoneDocument], opts sync.Options) bool {
	if skipExternal(rec) {
		return true
	}
	doc := rec.Entity
	return p.policy.Skip(doc.State == "closed", &doc.UpdatedAt, opts.FullSync, p.now())
}

// MapToStorageSchema implements sync.Plugin.
func (*MilestonesPlugin) MapToStorageSchema(rec *entity.Milestone) (entity.MilestoneDocument, error) {
	if rec.Core == nil {
		return entity.MilestoneDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.MilestoneDocument{
		IID:         c.IID,
		ProjectPath: c.ProjectPath,
		Title:       c.Title,
		Description: c.Description,
		State:       c.State,
		StartDate:   c.StartDate,
		DueDate:     c.DueDate,
		WebPath:     c.WebPath,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if s := rec.Stats; s != nil {
		doc.TotalIssues = ptr(s.TotalIssues)
		doc.ClosedIssues = ptr(s.ClosedIssues)
	}
	return doc, nil
}
