package entities

import (
	"time"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/policy"
)

// MergeRequestsPlugin syncs merge requests.
type MergeRequestsPlugin struct {
	base[entity.MergeRequest, entity.MergeRequestDocument]
	policy policy.Terminal
}

var _ sync.Plugin[entity.MergeRequest, entity.MergeRequestDocument] = (*MergeRequestsPlugin)(nil)

// NewMergeRequestsPlugin returns the merge requests plugin.
func NewMergeRequestsPlugin(src Source[entity.MergeRequest], scopes []string, p policy.Terminal) *MergeRequestsPlugin {
	return &MergeRequestsPlugin{
		base:   newBase[entity.MergeRequest, entity.MergeRequestDocument](entity.TypeMergeRequests, src, scopes),
		policy: p,
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*MergeRequestsPlugin) IsCategoryPresent(rec *entity.MergeRequest, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip skips merge requests merged or closed longer ago than the
// threshold.
func (p *MergeRequestsPlugin) ShouldSkip(rec *store.Record[entity.MergeRequestDocument], opts sync.Options) bool {
	if skipExternal(rec) {
		return true
	}
	doc := rec.Entity
	var terminalAt *time.Time
	switch doc.State {
	case "merged":
		terminalAt = doc.MergedAt
	case "closed":
		terminalAt = doc.ClosedAt
	default:
		return false
	}
	return p.policy.Skip(true, terminalAt, opts.FullSync, p.now())
}

// MapToStorageSchema implements sync.Plugin.
func (*MergeRequestsPlugin) MapToStorageSchema(rec *entity.MergeRequest) (entity.MergeRequestDocument, error) {
	if rec.Core == nil {
		return entity.MergeRequestDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.MergeRequestDocument{
		IID:          c.IID,
		ProjectPath:  c.ProjectPath,
		Title:        c.Title,
		Description:  c.Description,
		State:        c.State,
		Draft:        c.Draft,
		SourceBranch: c.SourceBranch,
		TargetBranch: c.TargetBranch,
		WebURL:       c.WebURL,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MergedAt:     c.MergedAt,
		ClosedAt:     c.ClosedAt,
	}

	if p := rec.People; p != nil {
		if p.Author != nil {
			doc.Author = ptr(p.Author.Username)
		}
		if p.MergeUser != nil {
			doc.MergedBy = ptr(p.MergeUser.Username)
		}
		doc.Assignees = entity.Usernames(p.Assignees)
		doc.Reviewers = entity.Usernames(p.Reviewers)
	}
	if a := rec.Approvals; a != nil {
		doc.Approved = ptr(a.Approved)
		doc.ApprovalsRequired = ptr(a.ApprovalsRequired)
		doc.ApprovalsLeft = ptr(a.ApprovalsLeft)
		doc.ApprovedBy = entity.Usernames(a.ApprovedBy)
	}
	if p := rec.Pipeline; p != nil && p.PipelineID != nil {
		doc.HeadPipelineID = ptr(*p.PipelineID)
		doc.HeadPipelineStatus = ptr(p.Status)
	}
	if ch := rec.Changes; ch != nil {
		doc.Additions = ptr(ch.Additions)
		doc.Deletions = ptr(ch.Deletions)
		doc.FileCount = ptr(ch.FileCount)
		doc.CommitCount = ptr(ch.CommitCount)
	}
	return doc, nil
}
