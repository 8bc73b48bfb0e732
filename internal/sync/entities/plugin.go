// Package entities provides the sync plugins for every GitLab entity type:
// discovery and detail fetches through the upstream clients, mapping of the
// fetched composites to storage documents, and the per-type skip rules.
package entities

import (
	"context"
	"errors"
	"time"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/gitlab"
	"github.com/glsync/glsync/internal/store"
	"github.com/glsync/glsync/internal/sync"
)

// errMissingCore is returned when a composite lacks its base category.
var errMissingCore = errors.New("core category missing")

// Source discovers and fetches one entity type. The gitlab clients
// implement it.
type Source[R any] interface {
	List(ctx context.Context, opts gitlab.ListOptions) ([]entity.Target, error)
	Fetch(ctx context.Context, targets []entity.Target) (map[int64]*R, gitlab.FetchReport, error)
}

// base implements the plugin operations shared by every entity type.
type base[R any, D any] struct {
	entityType entity.Type
	source     Source[R]
	scopes     []string
	now        func() time.Time
}

func newBase[R any, D any](t entity.Type, src Source[R], scopes []string) base[R, D] {
	return base[R, D]{entityType: t, source: src, scopes: scopes, now: time.Now}
}

func (b base[R, D]) EntityType() entity.Type {
	return b.entityType
}

func (b base[R, D]) Categories() []entity.Category {
	return b.entityType.Categories()
}

func (b base[R, D]) ListCandidates(ctx context.Context, opts sync.Options) ([]entity.Target, error) {
	return b.source.List(ctx, gitlab.ListOptions{
		Scope:    opts.Scope,
		Scopes:   b.scopes,
		PageSize: opts.EffectiveBatchSize(),
	})
}

// FetchDetail fetches the first target. A target the upstream did not return
// yields nil.
func (b base[R, D]) FetchDetail(ctx context.Context, targets []entity.Target) (*R, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	got, _, err := b.source.Fetch(ctx, targets)
	if err != nil {
		return nil, err
	}
	return got[targets[0].SourceID], nil
}

// skipExternal reports records owned by another writer; they are never
// touched, full sync or not.
func skipExternal[D any](rec *store.Record[D]) bool {
	return rec.ExternallyManaged
}

func ptr[T any](v T) *T {
	return &v
}
