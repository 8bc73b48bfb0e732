package gitlab

import (
	"context"
	"time"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

type userTargetNode struct {
	ID       string
	Username string
}

type usersPage struct {
	Users struct {
		Nodes    []userTargetNode
		PageInfo pageInfo
	} `graphql:"users(first: $first, after: $after)"`
}

type groupMembersPage struct {
	Group struct {
		GroupMembers struct {
			Nodes []struct {
				User *userTargetNode
			}
			PageInfo pageInfo
		} `graphql:"groupMembers(first: $first, after: $after)"`
	} `graphql:"group(fullPath: $fullPath)"`
}

type usersByID[N any] struct {
	Users struct {
		Nodes []N
	} `graphql:"users(ids: $ids)"`
}

type userCoreNode struct {
	ID          string
	Username    string
	Name        string
	State       string
	Bot         bool
	PublicEmail *string
	AvatarURL   *string `graphql:"avatarUrl"`
	WebURL      string  `graphql:"webUrl"`
	CreatedAt   time.Time
}

func (n userCoreNode) nodeID() string { return n.ID }

type userStatusNode struct {
	ID     string
	Status *struct {
		Message      *string
		Availability string
	}
}

func (n userStatusNode) nodeID() string { return n.ID }

type userMembershipsNode struct {
	ID                 string
	GroupCount         *int
	ProjectMemberships struct {
		Count int
	}
}

func (n userMembershipsNode) nodeID() string { return n.ID }

// UsersClient discovers and fetches users.
type UsersClient struct {
	c *Client
}

// Users returns the users client.
func (c *Client) Users() *UsersClient {
	return &UsersClient{c: c}
}

// List discovers users. With a scope, members of those groups are listed.
func (uc *UsersClient) List(ctx context.Context, opts ListOptions) ([]entity.Target, error) {
	paths := opts.paths()
	if len(paths) == 0 {
		return paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q usersPage
			if err := uc.c.query(ctx, "users.list", &q, pageVars(opts.PageSize, after, nil)); err != nil {
				return nil, pageInfo{}, err
			}
			nodes := q.Users.Nodes
			return uc.c.toTargets(ctx, entity.TypeUsers, len(nodes), func(i int) (string, string, string) {
				return nodes[i].ID, "", ""
			}), q.Users.PageInfo, nil
		})
	}

	seen := make(map[int64]bool)
	var out []entity.Target
	for _, group := range paths {
		targets, err := paginate(ctx, func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error) {
			var q groupMembersPage
			vars := pageVars(opts.PageSize, after, map[string]any{"fullPath": ID(group)})
			if err := uc.c.query(ctx, "users.listMembers", &q, vars); err != nil {
				return nil, pageInfo{}, err
			}
			var users []userTargetNode
			for _, m := range q.Group.GroupMembers.Nodes {
				if m.User != nil {
					users = append(users, *m.User)
				}
			}
			return uc.c.toTargets(ctx, entity.TypeUsers, len(users), func(i int) (string, string, string) {
				return users[i].ID, "", ""
			}), q.Group.GroupMembers.PageInfo, nil
		})
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if !seen[t.SourceID] {
				seen[t.SourceID] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// Fetch fetches every user category for the targets and merges them.
func (uc *UsersClient) Fetch(ctx context.Context, targets []entity.Target) (map[int64]*entity.User, FetchReport, error) {
	return fetchCategories(ctx, uc.c, entity.TypeUsers, targets,
		func(id int64) *entity.User { return &entity.User{SourceID: id} },
		userCategory(uc.c, entity.CategoryCore, func(n userCoreNode) Contribution[entity.User] {
			core := &entity.UserCore{
				Username:    n.Username,
				Name:        n.Name,
				State:       n.State,
				Bot:         n.Bot,
				PublicEmail: n.PublicEmail,
				AvatarURL:   deref(n.AvatarURL),
				WebURL:      n.WebURL,
				CreatedAt:   n.CreatedAt,
			}
			return func(u *entity.User) { u.Core = core }
		}),
		userCategory(uc.c, entity.CategoryStatus, func(n userStatusNode) Contribution[entity.User] {
			status := &entity.UserStatus{}
			if n.Status != nil {
				status.Message = deref(n.Status.Message)
				status.Availability = n.Status.Availability
			}
			return func(u *entity.User) { u.Status = status }
		}),
		userCategory(uc.c, entity.CategoryMemberships, func(n userMembershipsNode) Contribution[entity.User] {
			memberships := &entity.UserMemberships{
				GroupCount:   deref(n.GroupCount),
				ProjectCount: n.ProjectMemberships.Count,
			}
			return func(u *entity.User) { u.Memberships = memberships }
		}),
	)
}

func userCategory[N identified](
	c *Client,
	cat entity.Category,
	contribute func(N) Contribution[entity.User],
) Category[entity.User] {
	return Category[entity.User]{
		Name: cat,
		Fetch: func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[entity.User], error) {
			var q usersByID[N]
			if err := c.query(ctx, "users."+string(cat), &q, map[string]any{"ids": globalIDs(targets)}); err != nil {
				return nil, err
			}
			out := make(map[int64]Contribution[entity.User], len(q.Users.Nodes))
			collect(ctx, c, entity.TypeUsers, cat, q.Users.Nodes, contribute, out)
			return out, nil
		},
	}
}
