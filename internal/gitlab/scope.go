package gitlab

import (
	"context"
	"fmt"
	"slices"

	"github.com/glsync/glsync/internal/entity"
)

// ListOptions restricts candidate discovery.
type ListOptions struct {
	// Scope is a one-off path restriction, typically from a manual trigger.
	// It wins over Scopes.
	Scope string
	// Scopes are the configured paths for the entity type.
	Scopes []string
	// PageSize is the discovery page size.
	PageSize int
}

// paths returns the explicit paths to discover under, if any.
func (o ListOptions) paths() []string {
	if o.Scope != "" {
		return []string{o.Scope}
	}
	return o.Scopes
}

// projectPaths resolves the projects to discover project-scoped entities
// under. Without an explicit scope every project the token is a member of
// is used.
func (c *Client) projectPaths(ctx context.Context, opts ListOptions) ([]string, error) {
	if paths := opts.paths(); len(paths) > 0 {
		return paths, nil
	}

	projects, err := c.listMemberProjects(ctx, opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project scope: %w", err)
	}
	paths := make([]string, 0, len(projects))
	for _, p := range projects {
		if p.Path != "" && !slices.Contains(paths, p.Path) {
			paths = append(paths, p.Path)
		}
	}
	return paths, nil
}

// listPerProject runs a paginated discovery for every resolved project path.
func (c *Client) listPerProject(
	ctx context.Context,
	entityType entity.Type,
	opts ListOptions,
	list func(ctx context.Context, path string, pageSize int) ([]entity.Target, error),
) ([]entity.Target, error) {
	paths, err := c.projectPaths(ctx, opts)
	if err != nil {
		return nil, err
	}

	var out []entity.Target
	for _, path := range paths {
		targets, err := list(ctx, path, opts.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s in %s: %w", entityType, path, err)
		}
		out = append(out, targets...)
	}
	c.logger.DebugContext(ctx, "Discovered candidates",
		"entity_type", entityType,
		"projects", len(paths),
		"count", len(out))
	return out, nil
}
