package control_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/glsync/glsync/internal/api/control"
	"github.com/glsync/glsync/internal/api/control/mocks"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/jobs"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync"
)

func queuedJob(t entity.Type, opts sync.Options) *queue.Job {
	data, err := json.Marshal(opts)
	Expect(err).NotTo(HaveOccurred())
	return &queue.Job{
		ID:       uuid.New(),
		Queue:    string(t),
		Name:     jobs.JobName(t),
		Data:     data,
		Priority: queue.PriorityHigh,
		State:    queue.StateWaiting,
	}
}

var _ = Describe("Job control routes", func() {
	var (
		mockCtrl *mocks.MockController
		router   http.Handler
	)

	do := func(method, target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
		return rr
	}

	decodeError := func(rr *httptest.ResponseRecorder) string {
		var body map[string]string
		Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
		return body["error"]
	}

	BeforeEach(func() {
		ctrl := gomock.NewController(GinkgoT())
		mockCtrl = mocks.NewMockController(ctrl)
		router = control.Router(mockCtrl, slog.New(slog.DiscardHandler))
	})

	Describe("GET /", func() {
		It("lists the status of every queue", func() {
			mockCtrl.EXPECT().StatusAll(gomock.Any()).Return([]*jobs.Status{
				{EntityType: entity.TypeIssues, Counts: queue.Counts{Waiting: 2, Completed: 5}},
				{EntityType: entity.TypeUsers, Paused: true},
			}, nil)

			rr := do(http.MethodGet, "/")
			Expect(rr.Code).To(Equal(http.StatusOK))

			var resp control.JobsResponse
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Jobs).To(HaveLen(2))
			Expect(resp.Jobs[0].Counts.Completed).To(Equal(5))
			Expect(resp.Jobs[1].Paused).To(BeTrue())
		})

		It("hides internal errors", func() {
			mockCtrl.EXPECT().StatusAll(gomock.Any()).Return(nil, errors.New("connection refused"))

			rr := do(http.MethodGet, "/")
			Expect(rr.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeError(rr)).To(Equal("internal error"))
		})
	})

	Describe("GET /{entityType}", func() {
		It("returns the queue status", func() {
			mockCtrl.EXPECT().Status(gomock.Any(), entity.TypeMergeRequests).Return(&jobs.Status{
				EntityType: entity.TypeMergeRequests,
				Counts:     queue.Counts{Active: 1},
				Repeatable: &queue.Repeatable{Key: "sync-mergeRequests:900000", Name: "sync-mergeRequests"},
			}, nil)

			rr := do(http.MethodGet, "/mergeRequests")
			Expect(rr.Code).To(Equal(http.StatusOK))

			var status jobs.Status
			Expect(json.Unmarshal(rr.Body.Bytes(), &status)).To(Succeed())
			Expect(status.Counts.Active).To(Equal(1))
			Expect(status.Repeatable.Key).To(Equal("sync-mergeRequests:900000"))
		})

		It("returns 404 for an unknown entity type", func() {
			rr := do(http.MethodGet, "/epics")
			Expect(rr.Code).To(Equal(http.StatusNotFound))
			Expect(decodeError(rr)).To(ContainSubstring("unknown entity type"))
		})

		It("returns 404 for a type without a queue", func() {
			mockCtrl.EXPECT().Status(gomock.Any(), entity.TypeNamespaces).
				Return(nil, fmt.Errorf("%w: %q", jobs.ErrUnknownEntityType, entity.TypeNamespaces))

			rr := do(http.MethodGet, "/namespaces")
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 503 before the manager is initialized", func() {
			mockCtrl.EXPECT().Status(gomock.Any(), entity.TypeIssues).Return(nil, jobs.ErrNotInitialized)

			rr := do(http.MethodGet, "/issues")
			Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("POST /{entityType}/trigger", func() {
		It("passes the query parameters as sync options", func() {
			want := sync.Options{BatchSize: 25, Scope: "acme/web", FullSync: true}
			mockCtrl.EXPECT().TriggerManual(gomock.Any(), entity.TypeIssues, want).
				Return(queuedJob(entity.TypeIssues, want), nil)

			rr := do(http.MethodPost, "/issues/trigger?fullSync=true&scope=acme/web&batchSize=25")
			Expect(rr.Code).To(Equal(http.StatusAccepted))

			var resp control.TriggerResponse
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.EntityType).To(Equal(entity.TypeIssues))
			Expect(resp.Options).To(Equal(want))
			Expect(uuid.Parse(resp.JobID)).Error().NotTo(HaveOccurred())
		})

		It("triggers with empty options when no parameters are given", func() {
			mockCtrl.EXPECT().TriggerManual(gomock.Any(), entity.TypePipelines, sync.Options{}).
				Return(queuedJob(entity.TypePipelines, sync.Options{BatchSize: 100}), nil)

			rr := do(http.MethodPost, "/pipelines/trigger")
			Expect(rr.Code).To(Equal(http.StatusAccepted))
		})

		It("reports the requested options when the job data cannot be decoded", func() {
			var logs bytes.Buffer
			router = control.Router(mockCtrl, slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

			want := sync.Options{BatchSize: 10, Scope: "acme"}
			job := queuedJob(entity.TypeIssues, want)
			job.Data = json.RawMessage(`"not an object"`)
			mockCtrl.EXPECT().TriggerManual(gomock.Any(), entity.TypeIssues, want).Return(job, nil)

			rr := do(http.MethodPost, "/issues/trigger?scope=acme&batchSize=10")
			Expect(rr.Code).To(Equal(http.StatusAccepted))

			var resp control.TriggerResponse
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.JobID).To(Equal(job.ID.String()))
			Expect(resp.Options).To(Equal(want))
			Expect(logs.String()).To(ContainSubstring("Failed to decode job options"))
			Expect(logs.String()).To(ContainSubstring(job.ID.String()))
		})

		DescribeTable("rejects bad parameters",
			func(query string) {
				rr := do(http.MethodPost, "/issues/trigger?"+query)
				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("non-boolean fullSync", "fullSync=maybe"),
			Entry("non-numeric batchSize", "batchSize=lots"),
			Entry("negative batchSize", "batchSize=-5"),
		)
	})

	Describe("POST /trigger-all", func() {
		It("describes every enqueued job", func() {
			mockCtrl.EXPECT().TriggerAll(gomock.Any()).Return([]*queue.Job{
				queuedJob(entity.TypeUsers, sync.Options{}),
				queuedJob(entity.TypeIssues, sync.Options{BatchSize: 50}),
			}, nil)

			rr := do(http.MethodPost, "/trigger-all")
			Expect(rr.Code).To(Equal(http.StatusAccepted))

			var resp control.TriggerAllResponse
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Jobs).To(HaveLen(2))
			Expect(resp.Jobs[0].EntityType).To(Equal(entity.TypeUsers))
			Expect(resp.Jobs[1].Options.BatchSize).To(Equal(50))
		})
	})

	Describe("pause and resume", func() {
		It("pauses a queue", func() {
			mockCtrl.EXPECT().Pause(entity.TypeMilestones).Return(nil)

			rr := do(http.MethodPost, "/milestones/pause")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"entityType":"milestones","paused":true}`))
		})

		It("resumes a queue", func() {
			mockCtrl.EXPECT().Resume(entity.TypeMilestones).Return(nil)

			rr := do(http.MethodPost, "/milestones/resume")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"entityType":"milestones","paused":false}`))
		})

		It("rejects unknown types without calling the controller", func() {
			rr := do(http.MethodPost, "/bogus/pause")
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /cleanup", func() {
		It("defaults to a 24 hour grace period", func() {
			mockCtrl.EXPECT().Cleanup(gomock.Any(), control.DefaultGraceHours).Return(7, nil)

			rr := do(http.MethodPost, "/cleanup")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"removed":7,"graceHours":24}`))
		})

		It("uses the given grace period", func() {
			mockCtrl.EXPECT().Cleanup(gomock.Any(), 0).Return(3, nil)

			rr := do(http.MethodPost, "/cleanup?graceHours=0")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"removed":3,"graceHours":0}`))
		})

		It("rejects a negative grace period", func() {
			rr := do(http.MethodPost, "/cleanup?graceHours=-1")
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(rr)).To(ContainSubstring("graceHours"))
		})
	})
})
