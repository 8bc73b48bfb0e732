// Package control provides the HTTP handlers operating the sync job queues.
package control

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glsync/glsync/internal/api/common"
	"github.com/glsync/glsync/internal/entity"
	"github.com/glsync/glsync/internal/jobs"
	"github.com/glsync/glsync/internal/queue"
	"github.com/glsync/glsync/internal/sync"
)

// DefaultGraceHours is the cleanup grace period when none is given.
const DefaultGraceHours = 24

//go:generate mockgen -destination=mocks/mock_controller.go -package=mocks -source=routes.go Controller

// Controller operates the job queues. *jobs.Manager implements it.
type Controller interface {
	StatusAll(ctx context.Context) ([]*jobs.Status, error)
	Status(ctx context.Context, t entity.Type) (*jobs.Status, error)
	TriggerManual(ctx context.Context, t entity.Type, opts sync.Options) (*queue.Job, error)
	TriggerAll(ctx context.Context) ([]*queue.Job, error)
	Pause(t entity.Type) error
	Resume(t entity.Type) error
	Cleanup(ctx context.Context, graceHours int) (int, error)
}

// JobsResponse lists the status of every queue
type JobsResponse struct {
	Jobs []*jobs.Status `json:"jobs"`
}

// TriggerResponse describes an enqueued job
type TriggerResponse struct {
	JobID      string       `json:"jobId"`
	EntityType entity.Type  `json:"entityType"`
	Options    sync.Options `json:"options"`
}

// TriggerAllResponse describes the jobs enqueued by trigger-all
type TriggerAllResponse struct {
	Jobs []TriggerResponse `json:"jobs"`
}

// PauseResponse reports the paused flag of a queue
type PauseResponse struct {
	EntityType entity.Type `json:"entityType"`
	Paused     bool        `json:"paused"`
}

// CleanupResponse reports how many jobs a cleanup removed
type CleanupResponse struct {
	Removed    int `json:"removed"`
	GraceHours int `json:"graceHours"`
}

// Routes holds the job control handlers
type Routes struct {
	ctrl   Controller
	logger *slog.Logger
}

// NewRoutes creates a new Routes instance with the provided controller
func NewRoutes(ctrl Controller, logger *slog.Logger) *Routes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Routes{ctrl: ctrl, logger: logger}
}

// Router creates the router mounted at /jobs
func Router(ctrl Controller, logger *slog.Logger) http.Handler {
	routes := NewRoutes(ctrl, logger)

	r := chi.NewRouter()
	r.Get("/", routes.listStatus)
	r.Post("/trigger-all", routes.triggerAll)
	r.Post("/cleanup", routes.cleanup)
	r.Get("/{entityType}", routes.getStatus)
	r.Post("/{entityType}/trigger", routes.trigger)
	r.Post("/{entityType}/pause", routes.pause)
	r.Post("/{entityType}/resume", routes.resume)
	return r
}

func (rt *Routes) listStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := rt.ctrl.StatusAll(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, JobsResponse{Jobs: statuses}, http.StatusOK)
}

func (rt *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := rt.entityType(w, r)
	if !ok {
		return
	}
	status, err := rt.ctrl.Status(r.Context(), t)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, status, http.StatusOK)
}

func (rt *Routes) trigger(w http.ResponseWriter, r *http.Request) {
	t, ok := rt.entityType(w, r)
	if !ok {
		return
	}

	fullSync, err := common.QueryBool(r, "fullSync")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	batchSize, err := common.QueryInt(r, "batchSize", 0)
	if err != nil || batchSize < 0 {
		common.WriteErrorResponse(w, "batchSize must be a positive integer", http.StatusBadRequest)
		return
	}
	opts := sync.Options{
		BatchSize: batchSize,
		Scope:     r.URL.Query().Get("scope"),
		FullSync:  fullSync,
	}

	job, err := rt.ctrl.TriggerManual(r.Context(), t, opts)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, rt.triggerResponse(r.Context(), t, job, opts), http.StatusAccepted)
}

func (rt *Routes) triggerAll(w http.ResponseWriter, r *http.Request) {
	queued, err := rt.ctrl.TriggerAll(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	resp := TriggerAllResponse{Jobs: make([]TriggerResponse, 0, len(queued))}
	for _, job := range queued {
		resp.Jobs = append(resp.Jobs, rt.triggerResponse(r.Context(), entity.Type(job.Queue), job, sync.Options{}))
	}
	common.WriteJSONResponse(w, resp, http.StatusAccepted)
}

func (rt *Routes) pause(w http.ResponseWriter, r *http.Request) {
	rt.setPaused(w, r, true)
}

func (rt *Routes) resume(w http.ResponseWriter, r *http.Request) {
	rt.setPaused(w, r, false)
}

func (rt *Routes) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	t, ok := rt.entityType(w, r)
	if !ok {
		return
	}
	op := rt.ctrl.Resume
	if paused {
		op = rt.ctrl.Pause
	}
	if err := op(t); err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, PauseResponse{EntityType: t, Paused: paused}, http.StatusOK)
}

func (rt *Routes) cleanup(w http.ResponseWriter, r *http.Request) {
	grace, err := common.QueryInt(r, "graceHours", DefaultGraceHours)
	if err != nil || grace < 0 {
		common.WriteErrorResponse(w, "graceHours must be a non-negative integer", http.StatusBadRequest)
		return
	}
	removed, err := rt.ctrl.Cleanup(r.Context(), grace)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, CleanupResponse{Removed: removed, GraceHours: grace}, http.StatusOK)
}

// entityType parses the entityType URL parameter, writing a 404 for unknown
// types.
func (*Routes) entityType(w http.ResponseWriter, r *http.Request) (entity.Type, bool) {
	name, err := common.URLParam(r, "entityType")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	t, err := entity.ParseType(name)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return "", false
	}
	return t, true
}

func (rt *Routes) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrUnknownEntityType):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, jobs.ErrNotInitialized), errors.Is(err, queue.ErrQueueClosed):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	default:
		rt.logger.ErrorContext(r.Context(), "Job control request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		common.WriteErrorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

// triggerResponse describes a queued job. The options are read back from the
// job data, which the manager encodes from sync.Options; requested is
// reported when that data cannot be decoded.
func (rt *Routes) triggerResponse(ctx context.Context, t entity.Type, job *queue.Job, requested sync.Options) TriggerResponse {
	resp := TriggerResponse{JobID: job.ID.String(), EntityType: t}
	if err := job.Decode(&resp.Options); err != nil {
		rt.logger.DebugContext(ctx, "Failed to decode job options",
			"job_id", job.ID,
			"entity_type", t,
			"error", err)
		resp.Options = requested
	}
	return resp
}
