package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type groupTargetNode struct {
	ID       string
	FullPath string
}

type groupsPage struct {
	Groups struct {
		Nodes    []groupTargetNode
		PageInfo pageInfo
	} `graphql:"groups(first: $first, after: $after)"`
}

type descendantGroupsPage struct {
	Group struct {
		ID               string
		FullPath         string
		DescendantGroups struct {
			Nodes    []groupTargetNode
			PageInfo pageInfo
		} `graphql:"descendantGroups(first: $first, after: $after)"`
	} `graphql:"group(fullPath: $fullPath)"`
}

type groupQuery[N any] struct {
	Group *N `graphql:"group(fullPath: $fullPath)"`
}

type namespaceCoreNode struct {
	ID          string
	Name        string
	FullPath    string
	Description *string
	Visibility  *string
	WebURL      string `graphql:"webUrl"`
	CreatedAt   time.Time
	Parent      *struct {
		ID string
	}
}

func (n namespaceCoreNode) nodeID() string { return n.ID }

type namespaceStatisticsNode struct {
	ID                    string
	RootStorageStatistics *struct {
		StorageSize float64
	}
	Projects struct {
		Count int
	} `graphql:"projects(includeSubgroups: true)"`
	GroupMembersCount int
}

func (n namespaceStatisticsNode) nodeID() string { return n.ID }

// NamespacesClient discovers and fetches groups.
type NamespacesClient struct {
	c *Client
}

// Namespaces returns the namespaces client.
func (c *Client) Namespaces() *NamespacesClient {
	return &NamespacesClient{c: c}
}

// List discovers groups. With a scope, the scoped groups and all their
// descendants are listed.
func (nc *NamespacesClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	paths := opts.paths()
	if len(paths) == 0 {
		return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q groupsPage
			if err := nc.c.query(ctx, "namespaces.list", &q, pageVars(opts.PageSize, after, nil)); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Groups.Nodes
			return nc.c.toTargets(ctx, entity.TypeNamespaces, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, "", nodes[i].FullPath
			}), q.Groups.PageInfo, nil
		})
	}

	var out []entity.Target
	for _, root := range paths {
		first := true
		targets, err := paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q descendantGroupsPage
			vars := pageVars(opts.PageSize, after, map[string]any{"fullPath": ID(root)})
			if err := nc.c.query(ctx, "namespaces.listDescendants", &q, vars); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Group.DescendantGroups.Nodes
			if first && q.Group.ID != "" {
				nodes = append([]groupTargetNode{{ID: q.Group.ID, FullPath: q.Group.FullPath}}, nodes...)
			}
			first = false
			return nc.c.toTargets(ctx, entity.TypeNamespaces, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, "", nodes[i].FullPath
			}), q.Group.DescendantGroups.PageInfo, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, targets...)
	}
	return out, nil
}

// Fetch fetches every namespace category for the targets and merges them.
func (nc *NamespacesClient) Fetch(ctx context.Context, targets []entity.Target) (map[int64]*entity.Namespace, FetchReport, error) {
	return fetchCategories(ctx, nc.c, entity.TypeNamespaces, targets,
		func(id int64) *entity.Namespace { return &entity.Namespace{SourceID: id} },
		namespaceCategory(nc.c, entity.CategoryCore, func(refs refParser, n namespaceCoreNode) Contribution[entity.Namespace] {
			core := &entity.NamespaceCore{
				Name:        n.Name,
				FullPath:    n.FullPath,
				Description: deref(n.Description),
				Visibility:  deref(n.Visibility),
				WebURL:      n.WebURL,
				CreatedAt:   n.CreatedAt,
			}
			if n.Parent != nil {
				if id, ok := refs.id("parent", n.Parent.ID); ok {
					core.ParentID = &id
				}
			}
			return func(ns *entity.Namespace) { ns.Core = core }
		}),
		namespaceCategory(nc.c, entity.CategoryStatistics, func(_ refParser, n namespaceStatisticsNode) Contribution[entity.Namespace] {
			stats := &entity.NamespaceStatistics{
				ProjectsCount: n.Projects.Count,
				MembersCount:  n.GroupMembersCount,
			}
			if n.RootStorageStatistics != nil {
				stats.StorageSize = int64(n.RootStorageStatistics.StorageSize)
			}
			return func(ns *entity.Namespace) { ns.Statistics = stats }
		}),
	)
}

// namespaceCategory queries each group by path; groups have no batch lookup
// by id.
func namespaceCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(refs refParser, n N) Contribution[entity.Namespace],
) Category[entity.Namespace] {
	return Category[entity.Namespace]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.Namespace], error) {
			out := make(map[int64]Contribution[entity.Namespace], len(targets))
			refs := c.refParser(ctx, entity.TypeNamespaces, cat)
			for _, t := range targets {
				var q groupQuery[N]
				if err := c.query(ctx, "namespaces."+string(cat), &q, map[string]any{"fullPath": ID(t.Path)}); err != nil {
					return nil, err
				}
				if q.Group == nil {
					continue
				}
				collect(ctx, c, entity.TypeNamespaces, cat, []N{*q.Group}, func(n N) Contribution[entity.Namespace] {
					return contribute(refs, n)
				}, out)
			}
			return out, nil
		},
	}
}
