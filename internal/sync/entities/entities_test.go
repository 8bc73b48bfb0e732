package entities

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/gitlab"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
	"github.com/glsync/glsync/internal/sync/policy"
)

var testNow = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func TestIssuesPlugin_MapToStorageSchema(t *testing.T) {
	t.Parallel()

	p := &IssuesPlugin{}

	t.Run("missing categories stay nil", func(t *testing.T) {
		t.Parallel()

		doc, err := p.MapToStorageSchema(&entity.Issue{
			SourceID: 1,
			Core:     &entity.IssueCore{IID: "4", Title: "t", State: "opened"},
		})
		require.NoError(t, err)
		assert.Equal(t, "t", doc.Title)
		assert.Nil(t, doc.Author)
		assert.Nil(t, doc.Assignees)
		assert.Nil(t, doc.Labels)
		assert.Nil(t, doc.TimeEstimate)
		assert.Nil(t, doc.LinkedIssues)
	})

	t.Run("present categories are flattened", func(t *testing.T) {
		t.Parallel()

		doc, err := p.MapToStorageSchema(&entity.Issue{
			SourceID: 1,
			Core:     &entity.IssueCore{IID: "4"},
			People: &entity.IssuePeople{
				Author:    &entity.UserRef{Username: "ada"},
				Assignees: []entity.UserRef{{Username: "bob"}, {Username: "eve"}},
			},
			Planning: &entity.IssuePlanning{
				Labels:    []string{"bug"},
				Milestone: &entity.MilestoneRef{ID: 9, Title: "v1"},
			},
			MergeRequests: &entity.IssueMergeRequests{MergeRequests: []entity.MergeRequestRef{{ID: 77}}},
			Links:         &entity.IssueLinks{Linked: []entity.LinkedIssue{{ID: 5}}},
			TimeTracking:  &entity.IssueTimeTracking{TimeEstimate: 3600},
		})
		require.NoError(t, err)
		assert.Equal(t, "ada", *doc.Author)
		assert.Equal(t, []string{"bob", "eve"}, doc.Assignees)
		assert.Equal(t, []string{"bug"}, doc.Labels)
		assert.Equal(t, int64(9), *doc.MilestoneID)
		assert.Equal(t, []int64{77}, doc.RelatedMergeRequests)
		assert.Equal(t, []int64{5}, doc.LinkedIssues)
		assert.Equal(t, 3600, *doc.TimeEstimate)
		assert.Equal(t, 0, *doc.TotalTimeSpent)
	})

	t.Run("missing core is an error", func(t *testing.T) {
		t.Parallel()

		_, err := p.MapToStorageSchema(&entity.Issue{SourceID: 1, People: &entity.IssuePeople{}})
		require.ErrorIs(t, err, errMissingCore)
	})
}

func TestMergeRequestsPlugin_MapToStorageSchema(t *testing.T) {
	t.Parallel()

	doc, err := (&MergeRequestsPlugin{}).MapToStorageSchema(&entity.MergeRequest{
		Core:      &entity.MergeRequestCore{IID: "3", State: "merged"},
		People:    &entity.MergeRequestPeople{MergeUser: &entity.UserRef{Username: "ada"}},
		Approvals: &entity.MergeRequestApprovals{Approved: true, ApprovalsRequired: 2},
		Pipeline:  &entity.MergeRequestPipeline{},
		Changes:   &entity.MergeRequestChanges{Additions: 10, Deletions: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "ada", *doc.MergedBy)
	assert.Nil(t, doc.Author)
	assert.True(t, *doc.Approved)
	assert.Equal(t, 2, *doc.ApprovalsRequired)
	assert.Nil(t, doc.HeadPipelineID, "no head pipeline")
	assert.Equal(t, 10, *doc.Additions)
}

func TestProjectsPlugin_MapToStorageSchema(t *testing.T) {
	t.Parallel()

	doc, err := (&ProjectsPlugin{}).MapToStorageSchema(&entity.Project{
		Core:      &entity.ProjectCore{FullPath: "acme/app"},
		Languages: &entity.ProjectLanguages{Languages: []entity.Language{{Name: "Go", Share: 92.5}}},
		Members: &entity.ProjectMembers{Members: []entity.ProjectMember{
			{User: entity.UserRef{Username: "ada"}, AccessLevel: 40},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Go": 92.5}, doc.Languages)
	assert.Equal(t, map[string]int{"ada": 40}, doc.Members)
	assert.Nil(t, doc.StorageSize)
}

func TestPipelinesPlugin_MapToStorageSchema(t *testing.T) {
	t.Parallel()

	byStatus := map[string]int{"SUCCESS": 3, "FAILED": 1}
	doc, err := (&PipelinesPlugin{}).MapToStorageSchema(&entity.Pipeline{
		Core: &entity.PipelineCore{Status: "FAILED"},
		Jobs: &entity.PipelineJobs{Total: 4, ByStatus: byStatus, FailedJobs: []string{"lint"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, *doc.JobCount)
	assert.Equal(t, byStatus, doc.JobsByStatus)
	byStatus["SUCCESS"] = 0
	assert.Equal(t, 3, doc.JobsByStatus["SUCCESS"], "job counts are copied")
	assert.Nil(t, doc.CommitTitle)
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	th := policy.DefaultThresholds()
	issues := &IssuesPlugin{policy: policy.Terminal{Threshold: th.IssuesClosed}}
	mrs := &MergeRequestsPlugin{policy: policy.Terminal{Threshold: th.MergeRequestsClosed}}
	pipelines := &PipelinesPlugin{policy: policy.Terminal{Threshold: th.PipelinesFinished}}
	milestones := &MilestonesPlugin{policy: policy.Terminal{Threshold: th.MilestonesClosed}}
	users := &UsersPlugin{}
	issues.now = func() time.Time { return testNow }
	mrs.now = issues.now
	pipelines.now = issues.now
	milestones.now = issues.now

	tests := []struct {
		name string
		skip func(opts sync.Options) bool
		opts sync.Options
		want bool
	}{
		{
			name: "issue closed past threshold",
			skip: func(o sync.Options) bool {
				return issues.ShouldSkip(&store.Record[entity.IssueDocument]{
					Entity: entity.IssueDocument{State: "closed", ClosedAt: ago(4381 * time.Hour)},
				}, o)
			},
			want: true,
		},
		{
			name: "issue closed exactly at threshold",
			skip: func(o sync.Options) bool {
				return issues.ShouldSkip(&store.Record[entity.IssueDocument]{
					Entity: entity.IssueDocument{State: "closed", ClosedAt: ago(4380 * time.Hour)},
				}, o)
			},
			want: false,
		},
		{
			name: "open issue",
			skip: func(o sync.Options) bool {
				return issues.ShouldSkip(&store.Record[entity.IssueDocument]{
					Entity: entity.IssueDocument{State: "opened", ClosedAt: ago(9000 * time.Hour)},
				}, o)
			},
			want: false,
		},
		{
			name: "full sync refreshes old closed issue",
			skip: func(o sync.Options) bool {
				return issues.ShouldSkip(&store.Record[entity.IssueDocument]{
					Entity: entity.IssueDocument{State: "closed", ClosedAt: ago(9000 * time.Hour)},
				}, o)
			},
			opts: sync.Options{FullSync: true},
			want: false,
		},
		{
			name: "externally managed issue is skipped even on full sync",
			skip: func(o sync.Options) bool {
				return issues.ShouldSkip(&store.Record[entity.IssueDocument]{
					ExternallyManaged: true,
					Entity:            entity.IssueDocument{State: "opened"},
				}, o)
			},
			opts: sync.Options{FullSync: true},
			want: true,
		},
		{
			name: "merged merge request uses mergedAt",
			skip: func(o sync.Options) bool {
				return mrs.ShouldSkip(&store.Record[entity.MergeRequestDocument]{
					Entity: entity.MergeRequestDocument{State: "merged", MergedAt: ago(2161 * time.Hour), ClosedAt: ago(time.Hour)},
				}, o)
			},
			want: true,
		},
		{
			name: "closed merge request uses closedAt",
			skip: func(o sync.Options) bool {
				return mrs.ShouldSkip(&store.Record[entity.MergeRequestDocument]{
					Entity: entity.MergeRequestDocument{State: "closed", ClosedAt: ago(time.Hour)},
				}, o)
			},
			want: false,
		},
		{
			name: "finished pipeline past threshold",
			skip: func(o sync.Options) bool {
				return pipelines.ShouldSkip(&store.Record[entity.PipelineDocument]{
					Entity: entity.PipelineDocument{Status: "CANCELED", FinishedAt: ago(721 * time.Hour)},
				}, o)
			},
			want: true,
		},
		{
			name: "running pipeline",
			skip: func(o sync.Options) bool {
				return pipelines.ShouldSkip(&store.Record[entity.PipelineDocument]{
					Entity: entity.PipelineDocument{Status: "RUNNING", FinishedAt: ago(721 * time.Hour)},
				}, o)
			},
			want: false,
		},
		{
			name: "closed milestone with default disabled threshold",
			skip: func(o sync.Options) bool {
				return milestones.ShouldSkip(&store.Record[entity.MilestoneDocument]{
					Entity: entity.MilestoneDocument{State: "closed", UpdatedAt: *ago(100000 * time.Hour)},
				}, o)
			},
			want: false,
		},
		{
			name: "user is never age skipped",
			skip: func(o sync.Options) bool {
				return users.ShouldSkip(&store.Record[entity.UserDocument]{}, o)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.skip(tt.opts))
		})
	}
}

type recordingSource[R any] struct {
	listed  []gitlab.ListOptions
	fetched map[int64]*R
}

func (s *recordingSource[R]) List(_ context.Context, opts gitlab.ListOptions) ([]entity.Target, error) {
	s.listed = append(s.listed, opts)
	return nil, nil
}

func (s *recordingSource[R]) Fetch(context.Context, []entity.Target) (map[int64]*R, gitlab.FetchReport, error) {
	return s.fetched, gitlab.FetchReport{}, nil
}

func TestBase_FetchDetail(t *testing.T) {
	t.Parallel()

	src := &recordingSource[entity.User]{
		fetched: map[int64]*entity.User{5: {SourceID: 5, Core: &entity.UserCore{Username: "ada"}}},
	}
	b := newBase[entity.User, entity.UserDocument](entity.TypeUsers, src, nil)

	got, err := b.FetchDetail(context.Background(), []entity.Target{{SourceID: 5}})
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Core.Username)

	missing, err := b.FetchDetail(context.Background(), []entity.Target{{SourceID: 6}})
	require.NoError(t, err)
	assert.Nil(t, missing, "not returned upstream")
}

func TestBase_ListCandidatesPassesScopes(t *testing.T) {
	t.Parallel()

	src := &recordingSource[entity.Project]{}
	b := newBase[entity.Project, entity.ProjectDocument](entity.TypeProjects, src, []string{"acme"})

	_, err := b.ListCandidates(context.Background(), sync.Options{Scope: "acme/sub", BatchSize: 20})
	require.NoError(t, err)
	require.Len(t, src.listed, 1)
	assert.Equal(t, "acme/sub", src.listed[0].Scope)
	assert.Equal(t, []string{"acme"}, src.listed[0].Scopes)
	assert.Equal(t, 20, src.listed[0].PageSize)
}
