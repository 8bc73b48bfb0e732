package entities

import (
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/policy"
)

const issueStateClosed = "closed"

// IssuesPlugin syncs issues.
type IssuesPlugin struct {
	base[entity.Issue, entity.IssueDocument]
	policy policy.Terminal
}

var _ sync.Plugin[entity.Issue, entity.IssueDocument] = (*IssuesPlugin)(nil)

// NewIssuesPlugin returns the issues plugin.
func NewIssuesPlugin(src Source[entity.Issue], scopes []string, closedThreshold policy.Terminal) *IssuesPlugin {
	return &IssuesPlugin{
		base:   newBase[entity.Issue, entity.IssueDocument](entity.TypeIssues, src, scopes),
		policy: closedThreshold,
	}
}

// IsCategoryPresent implements sync.Plugin.
func (*IssuesPlugin) IsCategoryPresent(rec *entity.Issue, c entity.Category) bool {
	return rec.Has(c)
}

// ShouldSkip skips issues closed longer ago than the threshold.
func (p *IssuesPlugin) ShouldSkip(rec *store.Record[entity.IssueDocument], opts sync.Options) bool {
	if skipExternal(rec) {
		return true
	}
	doc := rec.Entity
	return p.policy.Skip(doc.State == issueStateClosed, doc.ClosedAt, opts.FullSync, p.now())
}

// MapToStorageSchema implements sync.Plugin.
func (*IssuesPlugin) MapToStorageSchema(rec *entity.Issue) (entity.IssueDocument, error) {
	if rec.Core == nil {
		return entity.IssueDocument{}, errMissingCore
	}
	c := rec.Core
	doc := entity.IssueDocument{
		IID:          c.IID,
		ProjectPath:  c.ProjectPath,
		Title:        c.Title,
		Description:  c.Description,
		State:        c.State,
		Confidential: c.Confidential,
		WebURL:       c.WebURL,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		ClosedAt:     c.ClosedAt,
	}

	if p := rec.People; p != nil {
		if p.Author != nil {
			doc.Author = ptr(p.Author.Username)
		}
		doc.Assignees = entity.Usernames(p.Assignees)
		doc.Participants = entity.Usernames(p.Participants)
	}
	if p := rec.Planning; p != nil {
		doc.Labels = p.Labels
		doc.DueDate = p.DueDate
		doc.Weight = p.Weight
		if p.Milestone != nil {
			doc.MilestoneID = ptr(p.Milestone.ID)
			doc.MilestoneTitle = ptr(p.Milestone.Title)
		}
	}
	if m := rec.MergeRequests; m != nil {
		doc.RelatedMergeRequests = make([]int64, 0, len(m.MergeRequests))
		for _, mr := range m.MergeRequests {
			doc.RelatedMergeRequests = append(doc.RelatedMergeRequests, mr.ID)
		}
	}
	if l := rec.Links; l != nil {
		doc.LinkedIssues = make([]int64, 0, len(l.Linked))
		for _, li := range l.Linked {
			doc.LinkedIssues = append(doc.LinkedIssues, li.ID)
		}
	}
	if tt := rec.TimeTracking; tt != nil {
		doc.TimeEstimate = ptr(tt.TimeEstimate)
		doc.TotalTimeSpent = ptr(tt.TotalTimeSpent)
	}
	return doc, nil
}
