package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type pipelinesPage struct {
	Project struct {
		Pipelines struct {
			Nodes    []iidTargetNode
			PageInfo pageInfo
		} `graphql:"pipelines(first: $first, after: $after)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

// pipelineByIID queries a single pipeline; the upstream has no iid list
// filter for pipelines.
type pipelineByIID[N any] struct {
	Project struct {
		Pipeline *N `graphql:"pipeline(iid: $iid)"`
	} `graphql:"project(fullPath: $fullPath)"`
}

type pipelineCoreNode struct {
	ID         string
	IID        string `graphql:"iid"`
	Status     string
	Ref        *string
	SHA        *string `graphql:"sha"`
	Source     *string
	Duration   *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (n pipelineCoreNode) nodeID() string { return n.ID }

// pipelineJobsNode summarises at most the first 100 jobs.
type pipelineJobsNode struct {
	ID   string
	Jobs struct {
		Count int
		Nodes []struct {
			Name   string
			Status string
		}
	} `graphql:"jobs(first: 100)"`
}

func (n pipelineJobsNode) nodeID() string { return n.ID }

type pipelineCommitNode struct {
	ID     string
	Commit *struct {
		Title      string
		AuthorName string
	}
}

func (n pipelineCommitNode) nodeID() string { return n.ID }

// PipelinesClient discovers and fetches pipelines.
type PipelinesClient struct {
	c *Client
}

// Pipelines returns the pipelines client.
func (c *Client) Pipelines() *PipelinesClient {
	return &PipelinesClient{c: c}
}

// List discovers pipelines of every project in scope.
func (pc *PipelinesClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	return pc.c.listPerProject(ctx, entity.TypePipelines, opts, func(ctx context.Context, path string, pageSize int) ([]entity.Target, error) {
		return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q pipelinesPage
			if err := pc.c.query(ctx, "pipelines.list", &q, pageVars(pageSize, after, map[string]any{"fullPath": ID(path)})); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Project.Pipelines.Nodes
			return pc.c.toTargets(ctx, entity.TypePipelines, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, nodes[i].IID, path
			}), q.Project.Pipelines.PageInfo, nil
		})
	})
}

// Fetch fetches every pipeline category for the targets and merges them.
func (pc *PipelinesClient) Fetch(ctx context.Context, targets []entity.Target) (map[int64]*entity.Pipeline, FetchReport, error) {
	return fetchCategories(ctx, pc.c, entity.TypePipelines, targets,
		func(id int64) *entity.Pipeline { return &entity.Pipeline{SourceID: id} },
		pipelineCategory(pc.c, entity.CategoryCore, func(path string, n pipelineCoreNode) Contribution[entity.Pipeline] {
			core := &entity.PipelineCore{
				IID:         n.IID,
				ProjectPath: path,
				Status:      n.Status,
				Ref:         deref(n.Ref),
				SHA:         deref(n.SHA),
				Source:      deref(n.Source),
				Duration:    n.Duration,
				CreatedAt:   n.CreatedAt,
				UpdatedAt:   n.UpdatedAt,
				StartedAt:   n.StartedAt,
				FinishedAt:  n.FinishedAt,
			}
			return func(p *entity.Pipeline) { p.Core = core }
		}),
		pipelineCategory(pc.c, entity.CategoryJobs, func(_ string, n pipelineJobsNode) Contribution[entity.Pipeline] {
			jobs := &entity.PipelineJobs{
				Total:      n.Jobs.Count,
				ByStatus:   make(map[string]int),
				FailedJobs: []string{},
			}
			for _, j := range n.Jobs.Nodes {
				jobs.ByStatus[j.Status]++
				if j.Status == "FAILED" {
					jobs.FailedJobs = append(jobs.FailedJobs, j.Name)
				}
			}
			return func(p *entity.Pipeline) { p.Jobs = jobs }
		}),
		pipelineCategory(pc.c, entity.CategoryCommit, func(_ string, n pipelineCommitNode) Contribution[entity.Pipeline] {
			commit := &entity.PipelineCommit{}
			if n.Commit != nil {
				commit.Title = n.Commit.Title
				commit.AuthorName = n.Commit.AuthorName
			}
			return func(p *entity.Pipeline) { p.Commit = commit }
		}),
	)
}

func pipelineCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(path string, n N) Contribution[entity.Pipeline],
) Category[entity.Pipeline] {
	return Category[entity.Pipeline]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.Pipeline], error) {
			out := make(map[int64]Contribution[entity.Pipeline], len(targets))
			for _, t := range targets {
				var q pipelineByIID[N]
				vars := map[string]any{"fullPath": ID(t.Path), "iid": ID(t.IID)}
				if err := c.query(ctx, "pipelines."+string(cat), &q, vars); err != nil {
					return nil, err
				}
				if q.Project.Pipeline == nil {
					continue
				}
				collect(ctx, c, entity.TypePipelines, cat, []N{*q.Project.Pipeline}, func(n N) Contribution[entity.Pipeline] {
					return contribute(t.Path, n)
				}, out)
			}
			return out, nil
		},
	}
}
