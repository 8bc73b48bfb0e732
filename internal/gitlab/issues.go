package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type iidTargetNode struct {
	ID  string
	IID string `graphql:"iid"`
}

type issuesPage struct {
	Project struct {
		Issues struct {
			Nodes    []iidTargetNode
			PageInfo pageInfo
		} `graphql:"issues(first: $first, after: $after)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type issuesByIID[N any] struct {
	Project struct {
		Issues struct {
			Nodes []N
		} `graphql:"issues(iids: $iids)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type issueCoreNode struct {
	ID           string
	IID          string `graphql:"iid"`
	Title        string
	Description  *string
	State        string
	Confidential bool
	WebURL       string `graphql:"webUrl"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

func (n issueCoreNode) nodeID() string { return n.ID }

type issuePeopleNode struct {
	ID           string
	Author       *userNode
	Assignees    userConnection
	Participants userConnection
}

func (n issuePeopleNode) nodeID() string { return n.ID }

type issuePlanningNode struct {
	ID     string
	Labels struct {
		Nodes []struct {
			Title string
		}
	}
	Milestone *struct {
		ID    string
		Title string
	}
	DueDate *string
	Weight  *int
}

func (n issuePlanningNode) nodeID() string { return n.ID }

type issueMergeRequestsNode struct {
	ID                   string
	RelatedMergeRequests struct {
		Nodes []struct {
			ID    string
			IID   string `graphql:"iid"`
			Title string
			State string
		}
	}
}

func (n issueMergeRequestsNode) nodeID() string { return n.ID }

type issueLinksNode struct {
	ID              string
	LinkedWorkItems struct {
		Nodes []struct {
			LinkType string
			WorkItem *struct {
				ID     string
				IID    string `graphql:"iid"`
				WebURL string `graphql:"webUrl"`
			}
		}
	}
}

func (n issueLinksNode) nodeID() string { return n.ID }

type issueTimeTrackingNode struct {
	ID             string
	TimeEstimate   int
	TotalTimeSpent int
}

func (n issueTimeTrackingNode) nodeID() string { return n.ID }

// IssuesClient discovers and fetches issues.
type IssuesClient struct {
	c *Client
}

// Issues returns the issues client.
func (c *Client) Issues() *IssuesClient {
	return &IssuesClient{c: c}
}

// List discovers issues of every project in scope.
func (ic *IssuesClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	return ic.c.listPerProject(ctx, entity.TypeIssues, opts, func(ctx context.Context, path string, pageSize int) ([]entity.Target, error) {
		return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q issuesPage
			if err := ic.c.query(ctx, "issues.list", &q, pageVars(pageSize, after, map[string]any{"fullPath": ID(path)})); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Project.Issues.Nodes
			return ic.c.toTargets(ctx, entity.TypeIssues, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, nodes[i].IID, path
			}), q.Project.Issues.PageInfo, nil
		})
	})
}

// Fetch fetches every issue category for the targets and merges them.
func (ic *IssuesClient) Fetch(ctx context.Context, targets []entity.Target) (map[int64]*entity.Issue, FetchReport, error) {
	return fetchCategories(ctx, ic.c, entity.TypeIssues, targets,
		func(id int64) *entity.Issue { return &entity.Issue{SourceID: id} },
		issueCategory(ic.c, entity.CategoryCore, func(_ refParser, path string, n issueCoreNode) Contribution[entity.Issue] {
			core := &entity.IssueCore{
				IID:          n.IID,
				ProjectPath:  path,
				Title:        n.Title,
				Description:  deref(n.Description),
				State:        n.State,
				Confidential: n.Confidential,
				WebURL:       n.WebURL,
				CreatedAt:    n.CreatedAt,
				UpdatedAt:    n.UpdatedAt,
				ClosedAt:     n.ClosedAt,
			}
			return func(i *entity.Issue) { i.Core = core }
		}),
		issueCategory(ic.c, entity.CategoryPeople, func(refs refParser, _ string, n issuePeopleNode) Contribution[entity.Issue] {
			people := &entity.IssuePeople{
				Author:       refs.user("author", n.Author),
				Assignees:    refs.users("assignees", n.Assignees),
				Participants: refs.users("participants", n.Participants),
			}
			return func(i *entity.Issue) { i.People = people }
		}),
		issueCategory(ic.c, entity.CategoryPlanning, func(refs refParser, _ string, n issuePlanningNode) Contribution[entity.Issue] {
			planning := &entity.IssuePlanning{
				Labels:  make([]string, 0, len(n.Labels.Nodes)),
				DueDate: n.DueDate,
				Weight:  n.Weight,
			}
			for _, l := range n.Labels.Nodes {
				planning.Labels = append(planning.Labels, l.Title)
			}
			if n.Milestone != nil {
				if id, ok := refs.id("milestone", n.Milestone.ID); ok {
					planning.Milestone = &entity.MilestoneRef{ID: id, Title: n.Milestone.Title}
				}
			}
			return func(i *entity.Issue) { i.Planning = planning }
		}),
		issueCategory(ic.c, entity.CategoryMergeRequests, func(refs refParser, _ string, n issueMergeRequestsNode) Contribution[entity.Issue] {
			mrs := &entity.IssueMergeRequests{
				MergeRequests: make([]entity.MergeRequestRef, 0, len(n.RelatedMergeRequests.Nodes)),
			}
			for _, mr := range n.RelatedMergeRequests.Nodes {
				id, ok := refs.id("relatedMergeRequests", mr.ID)
				if !ok {
					continue
				}
				mrs.MergeRequests = append(mrs.MergeRequests, entity.MergeRequestRef{
					ID: id, IID: mr.IID, Title: mr.Title, State: mr.State,
				})
			}
			return func(i *entity.Issue) { i.MergeRequests = mrs }
		}),
		issueCategory(ic.c, entity.CategoryLinks, func(refs refParser, _ string, n issueLinksNode) Contribution[entity.Issue] {
			links := &entity.IssueLinks{Linked: make([]entity.LinkedIssue, 0, len(n.LinkedWorkItems.Nodes))}
			for _, l := range n.LinkedWorkItems.Nodes {
				if l.WorkItem == nil {
					continue
				}
				id, ok := refs.id("linkedWorkItems", l.WorkItem.ID)
				if !ok {
					continue
				}
				links.Linked = append(links.Linked, entity.LinkedIssue{
					ID: id, IID: l.WorkItem.IID, LinkType: l.LinkType, WebURL: l.WorkItem.WebURL,
				})
			}
			return func(i *entity.Issue) { i.Links = links }
		}),
		issueCategory(ic.c, entity.CategoryTimeTracking, func(_ refParser, _ string, n issueTimeTrackingNode) Contribution[entity.Issue] {
			tt := &entity.IssueTimeTracking{TimeEstimate: n.TimeEstimate, TotalTimeSpent: n.TotalTimeSpent}
			return func(i *entity.Issue) { i.TimeTracking = tt }
		}),
	)
}

// issueCategory builds a category fetch that queries issues by iid, one query
// per owning project.
func issueCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(refs refParser, path string, n N) Contribution[entity.Issue],
) Category[entity.Issue] {
	return Category[entity.Issue]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.Issue], error) {
			out := make(map[int64]Contribution[entity.Issue], len(targets))
			refs := c.refParser(ctx, entity.TypeIssues, cat)
			order, groups := groupByPath(targets)
			for _, path := range order {
				var q issuesByIID[N]
				if err := c.query(ctx, "issues."+string(cat), &q, projectIIDVars(path, groups[path])); err != nil {
					return nil, err
				}
				collect(ctx, c, entity.TypeIssues, cat, q.Project.Issues.Nodes, func(n N) Contribution[entity.Issue] {
					return contribute(refs, path, n)
				}, out)
			}
			return out, nil
		},
	}
}
