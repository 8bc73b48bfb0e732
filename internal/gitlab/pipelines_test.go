package gitlab

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/gitlab/mocks"
)

func TestPipelinesClient_Fetch(t *testing.T) {
	t.Parallel()

	targets := []entity.Target{
		{SourceID: 301, GlobalID: "gid://gitlab/Ci::Pipeline/301", IID: "11", Path: "acme/web"},
		{SourceID: 302, GlobalID: "gid://gitlab/Ci::Pipeline/302", IID: "12", Path: "acme/api"},
	}

	ctrl := gomock.NewController(t)
	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q any, vars map[string]any) error {
			iid, _ := vars["iid"].(ID)
			switch q := q.(type) {
			case *pipelineByIID[pipelineCoreNode]:
				if iid == "11" {
					assert.Equal(t, ID("acme/web"), vars["fullPath"])
					return answer(q, `{"project":{"pipeline":{
						"id": "gid://gitlab/Ci::Pipeline/301", "iid": "11", "status": "FAILED",
						"ref": "main", "sha": "f00d", "duration": 93, "createdAt": "2026-04-01T08:00:00Z"
					}}}`)
				}
				assert.Equal(t, ID("acme/api"), vars["fullPath"])
				return answer(q, `{"project":{"pipeline":{
					"id": "gid://gitlab/Ci::Pipeline/302", "iid": "12", "status": "SUCCESS", "createdAt": "2026-04-02T08:00:00Z"
				}}}`)
			case *pipelineByIID[pipelineJobsNode]:
				if iid == "12" {
					return answer(q, `{"project":{"pipeline":null}}`)
				}
				return answer(q, `{"project":{"pipeline":{
					"id": "gid://gitlab/Ci::Pipeline/301",
					"jobs": {"count": 3, "nodes": [
						{"name": "build", "status": "SUCCESS"},
						{"name": "lint", "status": "FAILED"},
						{"name": "test", "status": "FAILED"}
					]}
				}}}`)
			case *pipelineByIID[pipelineCommitNode]:
				return errors.New("commit lookup failed")
			default:
				t.Errorf("unexpected query %T", q)
			}
			return nil
		}).
		// core and jobs query once per target; commit stops at its first error.
		Times(5)

	c := NewClientWithQuerier(querier, WithLogger(slog.New(slog.DiscardHandler)))
	got, report, err := c.Pipelines().Fetch(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[301]
	require.NotNil(t, first.Core)
	assert.Equal(t, "FAILED", first.Core.Status)
	assert.Equal(t, "acme/web", first.Core.ProjectPath)
	assert.Equal(t, "main", first.Core.Ref)
	require.NotNil(t, first.Core.Duration)
	assert.Equal(t, 93, *first.Core.Duration)
	require.NotNil(t, first.Jobs)
	assert.Equal(t, 3, first.Jobs.Total)
	assert.Equal(t, map[string]int{"SUCCESS": 1, "FAILED": 2}, first.Jobs.ByStatus)
	assert.Equal(t, []string{"lint", "test"}, first.Jobs.FailedJobs)

	second := got[302]
	assert.Equal(t, "acme/api", second.Core.ProjectPath)
	assert.False(t, second.Has(entity.CategoryJobs), "a missing pipeline contributes nothing")

	for _, p := range got {
		assert.False(t, p.Has(entity.CategoryCommit))
	}
	assert.False(t, report.OK(entity.CategoryCommit))
	assert.True(t, report.OK(entity.CategoryJobs))
}

func TestPipelinesClient_Fetch_MissingBaseIsSkipped(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	querier := mocks.NewMockQuerier(ctrl)
	querier.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).
		Times(len(entity.TypePipelines.Categories()))

	c := NewClientWithQuerier(querier, WithLogger(slog.New(slog.DiscardHandler)))
	got, report, err := c.Pipelines().Fetch(context.Background(), []entity.Target{
		{SourceID: 9, GlobalID: "gid://gitlab/Ci::Pipeline/9", IID: "1", Path: "acme/gone"},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, report.Failed)
}
