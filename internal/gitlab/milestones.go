package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type milestonesPage struct {
	Project struct {
		Milestones struct {
			Nodes    []iidTargetNode
			PageInfo pageInfo
		} `graphql:"milestones(first: $first, after: $after)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type milestonesByID[N any] struct {
	Project struct {
		Milestones struct {
			Nodes []N
		} `graphql:"milestones(ids: $ids)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type milestoneCoreNode struct {
	ID          string
	IID         string `graphql:"iid"`
	Title       string
	Description *string
	State       string
	StartDate   *string
	DueDate     *string
	WebPath     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (n milestoneCoreNode) nodeID() string { return n.ID }

type milestoneStatsNode struct {
	ID    string
	Stats *struct {
		TotalIssuesCount  int
		ClosedIssuesCount int
	}
}

func (n milestoneStatsNode) nodeID() string { return n.ID }

// MilestonesClient discovers and fetches project milestones.
type MilestonesClient struct {
	c *Client
}

// Milestones returns the milestones client.
func (c *Client) Milestones() *MilestonesClient {
	return &MilestonesClient{c: c}
}

// List discovers milestones of every project in scope.
func (mc *MilestonesClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	return mc.c.listPerProject(ctx, entity.TypeMilestones, opts, func(ctx context.Context, path string, pageSize int) ([]entity.Target, error) {
		return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q milestonesPage
			if err := mc.c.query(ctx, "milestones.list", &q, pageVars(pageSize, after, map[string]any{"fullPath": ID(path)})); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Project.Milestones.Nodes
			return mc.c.toTargets(ctx, entity.TypeMilestones, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, nodes[i].IID, path
			}), q.Project.Milestones.PageInfo, nil
		})
	})
}

// Fetch fetches every milestone category for the targets and merges them.
func (mc *MilestonesClient) Fetch(ctx context.Context, targets []entity.Target) (map[int64]*entity.Milestone, FetchReport, error) {
	return fetchCategories(ctx, mc.c, entity.TypeMilestones, targets,
		func(id int64) *entity.Milestone { return &entity.Milestone{SourceID: id} },
		milestoneCategory(mc.c, entity.CategoryCore, func(path string, n milestoneCoreNode) Contribution[entity.Milestone] {
			core := &entity.MilestoneCore{
				IID:         n.IID,
				ProjectPath: path,
				Title:       n.Title,
				Description: deref(n.Description),
				State:       n.State,
				StartDate:   n.StartDate,
				DueDate:     n.DueDate,
				WebPath:     n.WebPath,
				CreatedAt:   n.CreatedAt,
				UpdatedAt:   n.UpdatedAt,
			}
			return func(m *entity.Milestone) { m.Core = core }
		}),
		milestoneCategory(mc.c, entity.CategoryStats, func(_ string, n milestoneStatsNode) Contribution[entity.Milestone] {
			stats := &entity.MilestoneStats{}
			if n.Stats != nil {
				stats.TotalIssues = n.Stats.TotalIssuesCount
				stats.ClosedIssues = n.Stats.ClosedIssuesCount
			}
			return func(m *entity.Milestone) { m.Stats = stats }
		}),
	)
}

func milestoneCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(path string, n N) Contribution[entity.Milestone],
) Category[entity.Milestone] {
	return Category[entity.Milestone]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.Milestone], error) {
			out := make(map[int64]Contribution[entity.Milestone], len(targets))
			order, groups := groupByPath(targets)
			for _, path := range order {
				var q milestonesByID[N]
				vars := map[string]any{"fullPath": ID(path), "ids": globalIDs(groups[path])}
				if err := c.query(ctx, "milestones."+string(cat), &q, vars); err != nil {
					return nil, err
				}
				collect(ctx, c, entity.TypeMilestones, cat, q.Project.Milestones.Nodes, func(n N) Contribution[entity.Milestone] {
					return contribute(path, n)
				}, out)
			}
			return out, nil
		},
	}
}
