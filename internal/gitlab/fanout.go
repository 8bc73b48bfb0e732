package gitlab

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/otel"
)

// Contribution applies one category's data for one entity onto a composite.
type Contribution[R any] func(*R)

// Category fetches one category for a set of targets. The result maps each
// normalised source id to its contribution.
type Category[R any] struct {
	Name  entity.Category
	Fetch func(ctx context.Context, targets []entity.Target) (map[int64]Contribution[R], error)
}

// FetchReport describes which categories failed during one fan-out.
type FetchReport struct {
	Failed map[entity.Category]error
}

// OK reports whether the category was fetched successfully.
func (r FetchReport) OK(c entity.Category) bool {
	_, failed := r.Failed[c]
	return !failed
}

// fetchCategories starts every category fetch at once and waits for all of
// them to settle. A sibling failure is logged and reported but never returned;
// the affected composites simply lack that category. Composites are created
// only for ids present in the base category. A base failure is returned as an
// error because there is nothing to merge onto.
func fetchCategories[R any](
	ctx context.Context,
	c *Client,
	entityType entity.Type,
	targets []entity.Target,
	newRecord func(id int64) *R,
	base Category[R],
	siblings ...Category[R],
) (map[int64]*R, FetchReport, error) {
	all := append([]Category[R]{base}, siblings...)
	results := make([]map[int64]Contribution[R], len(all))
	errs := make([]error, len(all))
	ids := targetIDs(targets)

	var g errgroup.Group
	g.SetLimit(c.maxConcurrent)
	for i, cat := range all {
		g.Go(func() error {
			ctx, span := otel.StartSpan(ctx, c.tracer, "gitlab.fetchCategory",
				trace.WithAttributes(
					otel.AttrEntityType.String(string(entityType)),
					otel.AttrCategory.String(string(cat.Name)),
					otel.AttrTargetCount.Int(len(targets)),
				),
			)
			defer span.End()

			res, err := cat.Fetch(ctx, targets)
			if err != nil {
				otel.RecordError(span, err)
				errs[i] = err
				c.logger.WarnContext(ctx, "Category fetch failed",
					"entity_type", entityType,
					"category", cat.Name,
					"source_ids", ids,
					"error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := FetchReport{Failed: map[entity.Category]error{}}
	for i, err := range errs {
		if err != nil {
			report.Failed[all[i].Name] = err
		}
	}
	if errs[0] != nil {
		return nil, report, fmt.Errorf("base category %s failed: %w", base.Name, errs[0])
	}

	merged := make(map[int64]*R, len(results[0]))
	for _, id := range slices.Sorted(maps.Keys(results[0])) {
		rec := newRecord(id)
		results[0][id](rec)
		for _, res := range results[1:] {
			if apply, ok := res[id]; ok {
				apply(rec)
			}
		}
		merged[id] = rec
	}
	return merged, report, nil
}

// collect normalises node ids and registers each node's contribution.
// Nodes with malformed ids are logged and dropped.
func collect[N identified, R any](
	ctx context.Context,
	c *Client,
	entityType entity.Type,
	category entity.Category,
	nodes []N,
	contribute func(N) Contribution[R],
	out map[int64]Contribution[R],
) {
	for _, n := range nodes {
		id, err := entity.ParseUpstreamID(n.nodeID())
		if err != nil {
			c.logger.WarnContext(ctx, "Dropping node with malformed id",
				"entity_type", entityType,
				"category", category,
				"error", err)
			continue
		}
		out[id] = contribute(n)
	}
}

func targetIDs(targets []entity.Target) []int64 {
	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.SourceID)
	}
	return ids
}

// groupByPath groups targets by their owning path, preserving first-seen order.
func groupByPath(targets []entity.Target) ([]string, map[string][]entity.Target) {
	var order []string
	groups := make(map[string][]entity.Target)
	for _, t := range targets {
		if _, ok := groups[t.Path]; !ok {
			order = append(order, t.Path)
		}
		groups[t.Path] = append(groups[t.Path], t)
	}
	return order, groups
}
