package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type projectTargetNode struct {
	ID       string
	FullPath string
}

type memberProjectsPage struct {
	Projects struct {
		Nodes    []projectTargetNode
		PageInfo pageInfo
	} `graphql:"projects(membership: true, first: $first, after: $after)"`
}

type groupProjectsPage struct {
	Group struct {
		Projects struct {
			Nodes    []projectTargetNode
			PageInfo pageInfo
		} `graphql:"projects(includeSubgroups: true, first: $first, after: $after)"`
	} `graphql:"group(fullPath: $fullPath)"`
}

type projectCoreNode struct {
	ID             string
	Name           string
	FullPath       string
	Description    *string
	Visibility     string
	Archived       bool
	WebURL         string `graphql:"webUrl"`
	CreatedAt      time.Time
	LastActivityAt *time.Time
	Namespace      *struct {
		FullPath string
	}
}

func (n projectCoreNode) nodeID() string { return n.ID }

type projectStatisticsNode struct {
	ID         string
	Statistics *struct {
		StorageSize    float64
		RepositorySize float64
		CommitCount    float64
	}
	OpenIssuesCount *int
}

func (n projectStatisticsNode) nodeID() string { return n.ID }

type projectLanguagesNode struct {
	ID        string
	Languages []struct {
		Name  string
		Share *float64
	}
}

func (n projectLanguagesNode) nodeID() string { return n.ID }

type projectMembersNode struct {
	ID             string
	ProjectMembers struct {
		Nodes []struct {
			AccessLevel *struct {
				IntegerValue int
			}
			User *userNode
		}
	}
}

func (n projectMembersNode) nodeID() string { return n.ID }

type projectsByID[N any] struct {
	Projects struct {
		Nodes []N
	} `graphql:"projects(ids: $ids)"`
}

// ProjectsClient discovers and fetches projects.
type ProjectsClient struct {
	c *Client
}

// Projects returns the projects client.
func (c *Client) Projects() *ProjectsClient {
	return &ProjectsClient{c: c}
}

// List discovers projects. With a scope, projects of those groups (including
// subgroups) are listed; otherwise every project the token is a member of.
func (pc *ProjectsClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	paths := opts.paths()
	if len(paths) == 0 {
		return pc.c.listMemberProjects(ctx, opts.PageSize)
	}

	var out []entity.Target
	for _, group := range paths {
		targets, err := paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q groupProjectsPage
			vars := pageVars(opts.PageSize, after, map[string]any{"fullPath": ID(group)})
			if err := pc.c.query(ctx, "projects.listGroup", &q, vars); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Group.Projects.Nodes
			return pc.c.toTargets(ctx, entity.TypeProjects, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, "", nodes[i].FullPath
			}), q.Group.Projects.PageInfo, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, targets...)
	}
	return out, nil
}

func (c *Client) listMemberProjects(ctx context.Context, pageSize int) ([]entity.Target, error) {
	return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
		var q memberProjectsPage
		if err := c.query(ctx, "projects.list", &q, pageVars(pageSize, after, nil)); err != nil {
			return nil, pageInfo{}, err
		}
		nodes := q.Projects.Nodes
		return c.toTargets(ctx, entity.TypeProjects, len(nodes), func(i int) (string, string, string) {
			return nodes[i].ID, "", nodes[i].FullPath
		}), q.Projects.PageInfo, nil
	})
}

// Fetch fetches every project category for the targets and merges them.
func (pc *ProjectsClient) Fetch(ctx context.Context, targets []entity.Target) (map[int64]*entity.Project, FetchReport, error) {
	return fetchCategories(ctx, pc.c, entity.TypeProjects, targets,
		func(id int64) *entity.Project { return &entity.Project{SourceID: id} },
		projectCategory(pc.c, entity.CategoryCore, func(_ refParser, n projectCoreNode) Contribution[entity.Project] {
			core := &entity.ProjectCore{
				Name:           n.Name,
				FullPath:       n.FullPath,
				Description:    deref(n.Description),
				Visibility:     n.Visibility,
				Archived:       n.Archived,
				WebURL:         n.WebURL,
				CreatedAt:      n.CreatedAt,
				LastActivityAt: n.LastActivityAt,
			}
			if n.Namespace != nil {
				core.NamespacePath = n.Namespace.FullPath
			}
			return func(p *entity.Project) { p.Core = core }
		}),
		projectCategory(pc.c, entity.CategoryStatistics, func(_ refParser, n projectStatisticsNode) Contribution[entity.Project] {
			stats := &entity.ProjectStatistics{OpenIssues: deref(n.OpenIssuesCount)}
			if n.Statistics != nil {
				stats.StorageSize = int64(n.Statistics.StorageSize)
				stats.RepositorySize = int64(n.Statistics.RepositorySize)
				stats.CommitCount = int64(n.Statistics.CommitCount)
			}
			return func(p *entity.Project) { p.Statistics = stats }
		}),
		projectCategory(pc.c, entity.CategoryLanguages, func(_ refParser, n projectLanguagesNode) Contribution[entity.Project] {
			langs := &entity.ProjectLanguages{Languages: make([]entity.Language, 0, len(n.Languages))}
			for _, l := range n.Languages {
				langs.Languages = append(langs.Languages, entity.Language{Name: l.Name, Share: deref(l.Share)})
			}
			return func(p *entity.Project) { p.Languages = langs }
		}),
		projectCategory(pc.c, entity.CategoryMembers, func(refs refParser, n projectMembersNode) Contribution[entity.Project] {
			members := &entity.ProjectMembers{Members: make([]entity.ProjectMember, 0, len(n.ProjectMembers.Nodes))}
			for _, m := range n.ProjectMembers.Nodes {
				user := refs.user("projectMembers", m.User)
				if user == nil {
					continue
				}
				member := entity.ProjectMember{User: *user}
				if m.AccessLevel != nil {
					member.AccessLevel = m.AccessLevel.IntegerValue
				}
				members.Members = append(members.Members, member)
			}
			return func(p *entity.Project) { p.Members = members }
		}),
	)
}

func projectCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(refs refParser, n N) Contribution[entity.Project],
) Category[entity.Project] {
	return Category[entity.Project]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.Project], error) {
			var q projectsByID[N]
			if err := c.query(ctx, "projects."+string(cat), &q, map[string]any{"ids": globalIDs(targets)}); err != nil {
				return nil, err
			}
			out := make(map[int64]Contribution[entity.Project], len(q.Projects.Nodes))
			refs := c.refParser(ctx, entity.TypeProjects, cat)
			collect(ctx, c, entity.TypeProjects, cat, q.Projects.Nodes, func(n N) Contribution[entity.Project] {
				return contribute(refs, n)
			}, out)
			return out, nil
		},
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
