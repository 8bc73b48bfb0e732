package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type mergeRequestsPage struct {
	Project struct {
		MergeRequests struct {
			Nodes    []iidTargetNode
			PageInfo pageInfo
		} `graphql:"mergeRequests(first: $first, after: $after)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type mergeRequestsByIID[N any] struct {
	Project struct {
		MergeRequests struct {
			Nodes []N
		} `graphql:"mergeRequests(iids: $iids)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type mergeRequestCoreNode struct {
	ID           string
	IID          string `graphql:"iid"`
	Title        string
	Description  *string
	State        string
	Draft        bool
	SourceBranch string
	TargetBranch string
	WebURL       string `graphql:"webUrl"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MergedAt     *time.Time
	ClosedAt     *time.Time
}

func (n mergeRequestCoreNode) nodeID() string { return n.ID }

type mergeRequestPeopleNode struct {
	ID        string
	Author    *userNode
	Assignees userConnection
	Reviewers userConnection
	MergeUser *userNode
}

func (n mergeRequestPeopleNode) nodeID() string { return n.ID }

type mergeRequestApprovalsNode struct {
	ID                string
	Approved          bool
	ApprovalsRequired *int
	ApprovalsLeft     *int
	ApprovedBy        userConnection
}

func (n mergeRequestApprovalsNode) nodeID() string { return n.ID }

type mergeRequestPipelineNode struct {
	ID           string
	HeadPipeline *struct {
		ID     string
		Status string
		SHA    string `graphql:"sha"`
	}
}

func (n mergeRequestPipelineNode) nodeID() string { return n.ID }

type mergeRequestChangesNode struct {
	ID               string
	DiffStatsSummary *struct {
		Additions int
		Deletions int
		FileCount int
	}
	CommitCount *int
}

func (n mergeRequestChangesNode) nodeID() string { return n.ID }

// MergeRequestsClient discovers and fetches merge requests.
type MergeRequestsClient struct {
	c *Client
}

// MergeRequests returns the merge requests client.
func (c *Client) MergeRequests() *MergeRequestsClient {
	return &MergeRequestsClient{c: c}
}

// List discovers merge requests of every project in scope.
func (mc *MergeRequestsClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	return mc.c.listPerProject(ctx, entity.TypeMergeRequests, opts, func(ctx context.Context, path string, pageSize int) ([]entity.Target, error) {
		return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q mergeRequestsPage
			if err := mc.c.query(ctx, "mergeRequests.list", &q, pageVars(pageSize, after, map[string]any{"fullPath": ID(path)})); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Project.MergeRequests.Nodes
			return mc.c.toTargets(ctx, entity.TypeMergeRequests, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, nodes[i].IID, path
			}), q.Project.MergeRequests.PageInfo, nil
		})
	})
}

// Fetch fetches every merge request category for the targets and merges them.
func (mc *MergeRequestsClient) Fetch(
	ctx context.Context,
	targets []entity.Target,
) (map[int64]*entity.MergeRequest, FetchReport, error) {
	return fetchCategories(ctx, mc.c, entity.TypeMergeRequests, targets,
		func(id int64) *entity.MergeRequest { return &entity.MergeRequest{SourceID: id} },
		mergeRequestCategory(mc.c, entity.CategoryCore, func(_ refParser, path string, n mergeRequestCoreNode) Contribution[entity.MergeRequest] {
			core := &entity.MergeRequestCore{
				IID:          n.IID,
				ProjectPath:  path,
				Title:        n.Title,
				Description:  deref(n.Description),
				State:        n.State,
				Draft:        n.Draft,
				SourceBranch: n.SourceBranch,
				TargetBranch: n.TargetBranch,
				WebURL:       n.WebURL,
				CreatedAt:    n.CreatedAt,
				UpdatedAt:    n.UpdatedAt,
				MergedAt:     n.MergedAt,
				ClosedAt:     n.ClosedAt,
			}
			return func(m *entity.MergeRequest) { m.Core = core }
		}),
		mergeRequestCategory(mc.c, entity.CategoryPeople, func(refs refParser, _ string, n mergeRequestPeopleNode) Contribution[entity.MergeRequest] {
			people := &entity.MergeRequestPeople{
				Author:    refs.user("author", n.Author),
				Assignees: refs.users("assignees", n.Assignees),
				Reviewers: refs.users("reviewers", n.Reviewers),
				MergeUser: refs.user("mergeUser", n.MergeUser),
			}
			return func(m *entity.MergeRequest) { m.People = people }
		}),
		mergeRequestCategory(mc.c, entity.CategoryApprovals, func(refs refParser, _ string, n mergeRequestApprovalsNode) Contribution[entity.MergeRequest] {
			approvals := &entity.MergeRequestApprovals{
				Approved:          n.Approved,
				ApprovalsRequired: deref(n.ApprovalsRequired),
				ApprovalsLeft:     deref(n.ApprovalsLeft),
				ApprovedBy:        refs.users("approvedBy", n.ApprovedBy),
			}
			return func(m *entity.MergeRequest) { m.Approvals = approvals }
		}),
		mergeRequestCategory(mc.c, entity.CategoryPipeline, func(refs refParser, _ string, n mergeRequestPipelineNode) Contribution[entity.MergeRequest] {
			// No head pipeline is a fetched, empty category.
			pipeline := &entity.MergeRequestPipeline{}
			if hp := n.HeadPipeline; hp != nil {
				if id, ok := refs.id("headPipeline", hp.ID); ok {
					pipeline.PipelineID = &id
				}
				pipeline.Status = hp.Status
				pipeline.SHA = hp.SHA
			}
			return func(m *entity.MergeRequest) { m.Pipeline = pipeline }
		}),
		mergeRequestCategory(mc.c, entity.CategoryChanges, func(_ refParser, _ string, n mergeRequestChangesNode) Contribution[entity.MergeRequest] {
			changes := &entity.MergeRequestChanges{CommitCount: deref(n.CommitCount)}
			if s := n.DiffStatsSummary; s != nil {
				changes.Additions = s.Additions
				changes.Deletions = s.Deletions
				changes.FileCount = s.FileCount
			}
			return func(m *entity.MergeRequest) { m.Changes = changes }
		}),
	)
}

func mergeRequestCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(refs refParser, path string, n N) Contribution[entity.MergeRequest],
) Category[entity.MergeRequest] {
	return Category[entity.MergeRequest]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.MergeRequest], error) {
			out := make(map[int64]Contribution[entity.MergeRequest], len(targets))
			refs := c.refParser(ctx, entity.TypeMergeRequests, cat)
			order, groups := groupByPath(targets)
			for _, path := range order {
				var q mergeRequestsByIID[N]
				if err := c.query(ctx, "mergeRequests."+string(cat), &q, projectIIDVars(path, groups[path])); err != nil {
					return nil, err
				}
				collect(ctx, c, entity.TypeMergeRequests, cat, q.Project.MergeRequests.Nodes, func(n N) Contribution[entity.MergeRequest] {
					return contribute(refs, path, n)
				}, out)
			}
			return out, nil
		},
	}
}
