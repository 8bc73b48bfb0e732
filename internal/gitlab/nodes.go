package gitlab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shurcooL/graphql"

	"github.com/glsync/glsync/internal/entity"
)

// identified is implemented by every detail node; it exposes the raw
// upstream id so results can be keyed by normalised source id.
type identified interface {
	nodeID() string
}

type userNode struct {
	ID       string
	Username string
	Name     string
}

type userConnection struct {
	Nodes []userNode
}

// refParser normalises the ids of references nested inside a detail node.
// A malformed id is logged and the reference is left out.
type refParser struct {
	ctx        context.Context
	logger     *slog.Logger
	entityType entity.Type
	category   entity.Category
}

func (c *Client) refParser(ctx context.Context, entityType entity.Type, category entity.Category) refParser {
	return refParser{ctx: ctx, logger: c.logger, entityType: entityType, category: category}
}

func (p refParser) id(field, raw string) (int64, bool) {
	id, err := entity.ParseUpstreamID(raw)
	if err != nil {
		p.logger.WarnContext(p.ctx, "Dropping reference with malformed id",
			"entity_type", p.entityType,
			"category", p.category,
			"field", field,
			"error", err)
		return 0, false
	}
	return id, true
}

func (p refParser) user(field string, n *userNode) *entity.UserRef {
	if n == nil {
		return nil
	}
	id, ok := p.id(field, n.ID)
	if !ok {
		return nil
	}
	return &entity.UserRef{ID: id, Username: n.Username, Name: n.Name}
}

// users returns a non-nil slice so a fetched but empty list stays distinct
// from a category that was never fetched.
func (p refParser) users(field string, c userConnection) []entity.UserRef {
	out := make([]entity.UserRef, 0, len(c.Nodes))
	for i := range c.Nodes {
		if r := p.user(field, &c.Nodes[i]); r != nil {
			out = append(out, *r)
		}
	}
	return out
}

type pageInfo struct {
	EndCursor   *string
	HasNextPage bool
}

// pageFunc fetches one discovery page starting after the cursor.
type pageFunc func(ctx context.Context, after *graphql.String) ([]entity.Target, pageInfo, error)

// paginate follows cursors until the last page.
func paginate(ctx context.Context, fetch pageFunc) ([]entity.Target, error) {
	var (
		out   []entity.Target
		after *graphql.String
	)
	for {
		page, info, err := fetch(ctx, after)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if !info.HasNextPage || info.EndCursor == nil {
			return out, nil
		}
		next := graphql.String(*info.EndCursor)
		if after != nil && *after == next {
			return nil, fmt.Errorf("pagination cursor %q did not advance", next)
		}
		after = &next
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// toTargets converts discovery nodes into targets, dropping nodes whose id
// cannot be normalised.
func (c *Client) toTargets(
	ctx context.Context,
	entityType entity.Type,
	nodes int,
	node func(i int) (rawID, iid, path string),
) []entity.Target {
	out := make([]entity.Target, 0, nodes)
	for i := range nodes {
		rawID, iid, path := node(i)
		id, err := entity.ParseUpstreamID(rawID)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping candidate with malformed id",
				"entity_type", entityType,
				"error", err)
			continue
		}
		out = append(out, entity.Target{SourceID: id, GlobalID: rawID, IID: iid, Path: path})
	}
	return out
}

func pageVars(pageSize int, after *graphql.String, extra map[string]any) map[string]any {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	vars := map[string]any{
		"first": graphql.Int(pageSize),
		"after": after,
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

func projectIIDVars(path string, targets []entity.Target) map[string]any {
	iids := make([]graphql.String, 0, len(targets))
	for _, t := range targets {
		iids = append(iids, graphql.String(t.IID))
	}
	return map[string]any{
		"fullPath": ID(path),
		"iids":     iids,
	}
}

func globalIDs(targets []entity.Target) []ID {
	ids := make([]ID, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, ID(t.GlobalID))
	}
	return ids
}
